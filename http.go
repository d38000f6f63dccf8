package users

import (
	"context"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/goliatone/go-users/middleware/jwtware"
)

// RouteAuthenticator wires the Authenticator into go-router HTTP routes. It
// issues tokens on login and gates protected routes behind the JWT middleware.
type RouteAuthenticator struct {
	auth          Authenticator
	cfg           Config
	tokenDuration time.Duration
	Logger        Logger
	ErrorHandler  func(c router.Context, err error) error
}

func NewHTTPAuthenticator(auther Authenticator, cfg Config) (*RouteAuthenticator, error) {
	tokenDuration := DefaultTokenExpiration * time.Hour
	if cfg.GetTokenExpiration() > 0 {
		tokenDuration = time.Duration(cfg.GetTokenExpiration()) * time.Hour
	}

	a := &RouteAuthenticator{
		cfg:           cfg,
		auth:          auther,
		Logger:        defLogger{},
		tokenDuration: tokenDuration,
	}

	a.ErrorHandler = a.defaultErrHandler

	return a, nil
}

func (a *RouteAuthenticator) WithLogger(l Logger) *RouteAuthenticator {
	if l != nil {
		a.Logger = l
	}
	return a
}

func (a RouteAuthenticator) GetTokenDuration() time.Duration {
	return a.tokenDuration
}

// ProtectedRoute builds the middleware that rejects requests lacking a valid
// bearer token. Validated claims end up both in Locals under the configured
// context key and in the request's standard context.
func (a *RouteAuthenticator) ProtectedRoute(cfg Config, errorHandler func(router.Context, error) error) router.MiddlewareFunc {
	return jwtware.New(jwtware.Config{
		ErrorHandler:   errorHandler,
		AuthScheme:     cfg.GetAuthScheme(),
		ContextKey:     cfg.GetContextKey(),
		TokenLookup:    cfg.GetTokenLookup(),
		TokenValidator: gateTokenValidator{svc: a.auth.TokenService()},
		ContextEnricher: func(c context.Context, claims jwtware.AuthClaims) context.Context {
			if ac, ok := claims.(AuthClaims); ok {
				return WithClaimsContext(c, ac)
			}
			return c
		},
	})
}

// Login verifies the credentials and returns a signed token. Every rejection
// surfaces as ErrInvalidCredentials regardless of which check failed.
func (a *RouteAuthenticator) Login(ctx router.Context, payload LoginPayload) (string, error) {
	token, err := a.auth.Login(ctx.Context(), payload.GetIdentifier(), payload.GetPassword())
	if err != nil {
		a.Logger.Error("Login error: %s", err)
		return "", err
	}

	return token, nil
}

// MakeAPIAuthErrorHandler maps every gate failure to the same 401 payload.
// When optional is true the request proceeds without an identity instead.
func (a *RouteAuthenticator) MakeAPIAuthErrorHandler(optional bool) func(router.Context, error) error {
	return func(ctx router.Context, err error) error {
		var richErr *errors.Error

		if IsTokenExpiredError(err) {
			richErr = ErrTokenExpired
		} else if IsMalformedError(err) {
			richErr = ErrTokenMalformed
		} else {
			richErr = errors.Wrap(err, errors.CategoryAuth, "Invalid authentication token").
				WithCode(errors.CodeUnauthorized)
		}

		if optional {
			a.Logger.Info("Optional auth failed, proceeding: %s", richErr.Message)
			return ctx.Next()
		}

		return a.ErrorHandler(ctx, richErr)
	}
}

func (a *RouteAuthenticator) defaultErrHandler(c router.Context, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryAuth, "An unexpected authentication error").
			WithCode(errors.CodeUnauthorized)
	}

	a.Logger.Info(
		"Auth middleware rejection: %s category=%s details=%s",
		richErr.Message,
		richErr.Category,
		print.MaybePrettyJSON(richErr.Metadata),
	)

	return c.JSON(router.StatusUnauthorized, map[string]string{
		"error": "Unauthorized",
	})
}

// gateTokenValidator adapts TokenService to the middleware's validator
// interface, which returns its own AuthClaims type.
type gateTokenValidator struct {
	svc TokenService
}

func (g gateTokenValidator) Validate(tokenString string) (jwtware.AuthClaims, error) {
	claims, err := g.svc.Validate(tokenString)
	if err != nil {
		return nil, err
	}
	return claims, nil
}
