package users

import (
	"context"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// HTTPAuthenticator is the surface the controller needs from the route
// authenticator.
type HTTPAuthenticator interface {
	Login(ctx router.Context, payload LoginPayload) (string, error)
	ProtectedRoute(cfg Config, errorHandler func(router.Context, error) error) router.MiddlewareFunc
	MakeAPIAuthErrorHandler(optional bool) func(router.Context, error) error
}

// RegisterUserRoutes mounts the authentication and user management endpoints.
// Login and registration stay public, everything else sits behind the token
// gate.
func RegisterUserRoutes[T any](app router.Router[T], cfg Config, opts ...UserControllerOption) {
	controller := NewUserController(opts...)

	protected := controller.Auther.ProtectedRoute(
		cfg,
		controller.Auther.MakeAPIAuthErrorHandler(false),
	)

	app.Post("/login", controller.LoginPost).SetName("sign-in.post")
	app.Post("/users", controller.Create).SetName("users.create")

	app.Get("/users", controller.List, protected).SetName("users.list")
	app.Get("/users/:id", controller.Show, protected).SetName("users.show")
	app.Put("/users/:id", controller.Update, protected).SetName("users.update")
	app.Delete("/users/:id", controller.Delete, protected).SetName("users.delete")
	app.Get("/me", controller.Me, protected).SetName("users.me")
}

type UserController struct {
	Debug        bool
	Logger       Logger
	Repo         RepositoryManager
	Auther       HTTPAuthenticator
	ContextKey   string
	ErrorHandler router.ErrorHandler
}

type UserControllerOption func(*UserController) *UserController

func NewUserController(opts ...UserControllerOption) *UserController {
	c := &UserController{
		Logger:     defLogger{},
		ContextKey: "user",
	}

	c.ErrorHandler = c.defaultErrHandler

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Repo == nil {
		panic("Missing RepositoryManager in user controller...")
	}

	if c.Auther == nil {
		panic("Missing HTTPAuthenticator in user controller...")
	}

	return c
}

func WithControllerLogger(l Logger) UserControllerOption {
	return func(c *UserController) *UserController {
		if l != nil {
			c.Logger = l
		}
		return c
	}
}

func WithControllerRepo(repo RepositoryManager) UserControllerOption {
	return func(c *UserController) *UserController {
		c.Repo = repo
		return c
	}
}

func WithControllerAuther(auther HTTPAuthenticator) UserControllerOption {
	return func(c *UserController) *UserController {
		c.Auther = auther
		return c
	}
}

func WithControllerContextKey(key string) UserControllerOption {
	return func(c *UserController) *UserController {
		if key != "" {
			c.ContextKey = key
		}
		return c
	}
}

// LoginRequest payload
type LoginRequest struct {
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
}

// GetIdentifier returns the identifier
func (r LoginRequest) GetIdentifier() string {
	return r.Email
}

// GetPassword will return the password
func (r LoginRequest) GetPassword() string {
	return r.Password
}

// Validate will run validation rules
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Email,
			validation.Required,
			is.Email,
		),
		validation.Field(
			&r.Password,
			validation.Required,
		),
	)
}

func (a *UserController) LoginPost(ctx router.Context) error {
	payload := new(LoginRequest)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("login parse payload: %s", err)
		return ctx.JSON(router.StatusBadRequest, map[string]string{
			"error": "Error parsing body",
		})
	}

	if err := payload.Validate(); err != nil {
		return ctx.JSON(router.StatusBadRequest, map[string]any{
			"error":      "Error validating payload",
			"validation": FormatValidationErrorToMap(err),
		})
	}

	if a.Debug {
		fmt.Println("======= AUTH LOGIN ======")
		fmt.Println(print.MaybePrettyJSON(payload))
		fmt.Println("=========================")
	}

	token, err := a.Auther.Login(ctx, payload)
	if err != nil {
		// every credential failure collapses to the same response, the
		// caller learns nothing about which part was wrong
		return ctx.JSON(router.StatusUnauthorized, map[string]string{
			"error": "Invalid credentials",
		})
	}

	return ctx.JSON(router.StatusOK, map[string]string{
		"token": token,
	})
}

// CreateUserRequest is the registration payload
type CreateUserRequest struct {
	Username string `form:"username" json:"username"`
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
}

// Validate will validate the payload
func (r CreateUserRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Length(1, 200)),
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(8, 100)),
	)
}

func (a *UserController) Create(ctx router.Context) error {
	payload := new(CreateUserRequest)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("register user parse payload: %s", err)
		return ctx.JSON(router.StatusBadRequest, map[string]string{
			"error": "Error parsing body",
		})
	}

	if err := payload.Validate(); err != nil {
		a.Logger.Error("register user validate payload: %s", err)
		return ctx.JSON(router.StatusBadRequest, map[string]any{
			"error":      "Error validating payload",
			"validation": FormatValidationErrorToMap(err),
		})
	}

	registerUser := NewRegisterUserHandler(a.Repo)
	user, err := registerUser.Execute(ctx.Context(), RegisterUserMessage{
		Username: payload.Username,
		Email:    payload.Email,
		Password: payload.Password,
	})
	if err != nil {
		a.Logger.Error("register user error: %s", err)
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusCreated, user)
}

func (a *UserController) List(ctx router.Context) error {
	records, err := a.Repo.Users().List(ctx.Context())
	if err != nil {
		a.Logger.Error("list users error: %s", err)
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, records)
}

func (a *UserController) Show(ctx router.Context) error {
	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		return ctx.JSON(router.StatusBadRequest, map[string]string{
			"error": "Invalid user id",
		})
	}

	record, err := a.Repo.Users().GetByID(ctx.Context(), id)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, record)
}

// UpdateUserRequest carries the mutable user fields. Empty fields are left
// untouched. A new password is rehashed before it is stored.
type UpdateUserRequest struct {
	Username string `form:"username" json:"username"`
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
}

// Validate will validate the payload
func (r UpdateUserRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Length(1, 200)),
		validation.Field(&r.Email, validation.Length(6, 100), is.Email),
		validation.Field(&r.Password, validation.Length(8, 100)),
	)
}

func (a *UserController) Update(ctx router.Context) error {
	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		return ctx.JSON(router.StatusBadRequest, map[string]string{
			"error": "Invalid user id",
		})
	}

	payload := new(UpdateUserRequest)
	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("update user parse payload: %s", err)
		return ctx.JSON(router.StatusBadRequest, map[string]string{
			"error": "Error parsing body",
		})
	}

	if err := payload.Validate(); err != nil {
		return ctx.JSON(router.StatusBadRequest, map[string]any{
			"error":      "Error validating payload",
			"validation": FormatValidationErrorToMap(err),
		})
	}

	record := &User{
		ID:       id,
		Username: payload.Username,
		Email:    payload.Email,
	}

	if payload.Password != "" {
		hash, err := HashPassword(payload.Password)
		if err != nil {
			a.Logger.Error("update user hash password: %s", err)
			return a.ErrorHandler(ctx, err)
		}
		// tokens minted before this change keep working until they expire
		record.PasswordHash = hash
	}

	err = a.Repo.RunInTx(ctx.Context(), nil, func(c context.Context, tx bun.Tx) error {
		record, err = a.Repo.Users().UpdateTx(c, tx, record)
		return err
	})
	if err != nil {
		a.Logger.Error("update user error: %s", err)
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, record)
}

func (a *UserController) Delete(ctx router.Context) error {
	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		return ctx.JSON(router.StatusBadRequest, map[string]string{
			"error": "Invalid user id",
		})
	}

	if err := a.Repo.Users().Delete(ctx.Context(), id); err != nil {
		a.Logger.Error("delete user error: %s", err)
		return a.ErrorHandler(ctx, err)
	}

	return ctx.Status(router.StatusNoContent).SendString("")
}

// Me resolves the record behind the authenticated token.
func (a *UserController) Me(ctx router.Context) error {
	claims, ok := GetRouterClaims(ctx, a.ContextKey)
	if !ok {
		return ctx.JSON(router.StatusUnauthorized, map[string]string{
			"error": "Unauthorized",
		})
	}

	id, err := uuid.Parse(claims.UserID())
	if err != nil {
		return ctx.JSON(router.StatusUnauthorized, map[string]string{
			"error": "Unauthorized",
		})
	}

	record, err := a.Repo.Users().GetByID(ctx.Context(), id)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, record)
}

func (a *UserController) defaultErrHandler(c router.Context, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryInternal, "An unexpected server error occurred").
			WithCode(errors.CodeInternal)
	}

	if a.Debug {
		fmt.Println(print.MaybePrettyJSON(richErr))
	}

	switch richErr.Category {
	case errors.CategoryNotFound:
		return c.JSON(router.StatusNotFound, map[string]string{
			"error": "Not found",
		})
	case errors.CategoryConflict:
		return c.JSON(router.StatusConflict, map[string]string{
			"error": "Conflict",
		})
	case errors.CategoryBadInput, errors.CategoryValidation:
		return c.JSON(router.StatusBadRequest, map[string]string{
			"error": richErr.Message,
		})
	case errors.CategoryAuth, errors.CategoryAuthz:
		return c.JSON(router.StatusUnauthorized, map[string]string{
			"error": "Unauthorized",
		})
	default:
		return c.JSON(router.StatusInternalServerError, map[string]string{
			"error": "Internal server error",
		})
	}
}

// FormatValidationErrorToMap flattens ozzo validation errors into a
// field to message map.
func FormatValidationErrorToMap(err error) map[string]string {
	out := map[string]string{}
	if err == nil {
		return out
	}

	if verrs, ok := err.(validation.Errors); ok {
		for field, ferr := range verrs {
			if ferr != nil {
				out[field] = ferr.Error()
			}
		}
		return out
	}

	out["error"] = err.Error()
	return out
}
