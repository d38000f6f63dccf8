package users_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-router"
	users "github.com/goliatone/go-users"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// Wires the real components together: registration hashes the password, login
// verifies it and mints a token, and the protected-route middleware validates
// that token and exposes the claims to handlers.
func TestRegisterLoginProtectedRoute(t *testing.T) {
	cfg := testConfig{signingKey: "integration-signing-key", tokenExpiration: 24}

	repo := NewMockRepositoryManager()
	repo.On("RunInTx", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	var stored *users.User
	repo.UsersRepo.On("RegisterTx", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			stored = args.Get(2).(*users.User)
		}).Return(&users.User{}, nil)

	register := users.NewRegisterUserHandler(repo)
	_, err := register.Execute(context.Background(), users.RegisterUserMessage{
		Email:     "tuser@example.com",
		Password:  "secret123",
		UseHashid: true,
	})
	require.NoError(t, err)
	require.NotNil(t, stored)
	require.NotEmpty(t, stored.PasswordHash)

	store := &MockUserTracker{}
	store.On("GetByIdentifier", mock.Anything, "tuser@example.com").Return(stored, nil)

	auther, err := users.NewAuthenticator(users.NewUserProvider(store), cfg)
	require.NoError(t, err)

	httpAuth, err := users.NewHTTPAuthenticator(auther, cfg)
	require.NoError(t, err)

	protected := httpAuth.ProtectedRoute(cfg, httpAuth.MakeAPIAuthErrorHandler(false))
	handler := protected(nil)

	token, err := auther.Login(context.Background(), "tuser@example.com", "secret123")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	t.Run("minted token passes the gate and resolves the subject", func(t *testing.T) {
		ctx := router.NewMockContext()
		ctx.On("GetString", "Authorization", "").Return("Bearer " + token)

		var captured users.AuthClaims
		ctx.On("Locals", "user", mock.Anything).Run(func(args mock.Arguments) {
			captured = args.Get(1).(users.AuthClaims)
		}).Return(nil)

		var enriched context.Context
		ctx.On("Context").Return(context.Background())
		ctx.On("SetContext", mock.Anything).Run(func(args mock.Arguments) {
			enriched = args.Get(0).(context.Context)
		}).Return()

		err := handler(ctx)
		require.NoError(t, err)
		assert.True(t, ctx.NextCalled)

		require.NotNil(t, captured)
		assert.Equal(t, stored.ID.String(), captured.Subject())
		assert.Equal(t, stored.ID.String(), captured.UserID())

		// handlers downstream read the same claims back out
		ctx.LocalsMock["user"] = captured
		routerClaims, ok := users.GetRouterClaims(ctx, cfg.GetContextKey())
		require.True(t, ok)
		assert.Equal(t, stored.ID.String(), routerClaims.UserID())

		require.NotNil(t, enriched)
		stdClaims, ok := users.GetClaims(enriched)
		require.True(t, ok)
		assert.Equal(t, stored.ID.String(), stdClaims.UserID())
	})

	reject := func(t *testing.T, header string) {
		t.Helper()
		ctx := router.NewMockContext()
		ctx.On("GetString", "Authorization", "").Return(header)

		var payload map[string]string
		ctx.On("JSON", router.StatusUnauthorized, mock.Anything).Run(func(args mock.Arguments) {
			payload = args.Get(1).(map[string]string)
		}).Return(nil)

		err := handler(ctx)
		require.NoError(t, err)
		assert.False(t, ctx.NextCalled)
		assert.Equal(t, map[string]string{"error": "Unauthorized"}, payload)
	}

	t.Run("tampered token is rejected at the gate", func(t *testing.T) {
		parts := strings.Split(token, ".")
		require.Len(t, parts, 3)
		sig := []byte(parts[2])
		if sig[0] == 'A' {
			sig[0] = 'B'
		} else {
			sig[0] = 'A'
		}
		reject(t, "Bearer "+parts[0]+"."+parts[1]+"."+string(sig))
	})

	t.Run("expired token is rejected at the gate", func(t *testing.T) {
		now := time.Now()
		expired, err := auther.TokenService().SignClaims(&users.JWTClaims{
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   stored.ID.String(),
				IssuedAt:  jwt.NewNumericDate(now.Add(-25 * time.Hour)),
				ExpiresAt: jwt.NewNumericDate(now.Add(-time.Minute)),
			},
		})
		require.NoError(t, err)
		reject(t, "Bearer "+expired)
	})

	t.Run("padded scheme is rejected at the gate", func(t *testing.T) {
		reject(t, "Bearer  "+token)
	})

	t.Run("missing header is rejected at the gate", func(t *testing.T) {
		reject(t, "")
	})
}
