package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/kumoedu/kumo/core"
	"github.com/kumoedu/kumo/core/user"
)

// Envelope is the wire format of every auth endpoint response:
// an application code, a human readable message and an operation body.
type Envelope struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Body    interface{} `json:"body"`
}

type (
	LoginRequest struct {
		Username string `json:"username" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	LoginBody struct {
		Success bool   `json:"success"`
		Token   string `json:"token,omitempty"`
	}

	CheckRequest struct {
		Token string `json:"token" validate:"required"`
	}

	// CheckPayload is the decoded identity carried by a valid token.
	CheckPayload struct {
		ID       int       `json:"id"`
		Email    string    `json:"email"`
		Name     string    `json:"name"`
		Lastname string    `json:"lastname"`
		Username string    `json:"username"`
		Role     user.Role `json:"role"`
	}

	CheckBody struct {
		Valid   bool          `json:"valid"`
		Payload *CheckPayload `json:"payload,omitempty"`
	}

	LogoutBody struct {
		Success bool `json:"success"`
	}

	PasswordResetRequest struct {
		Email string `json:"email" validate:"required,email"`
	}

	SuccessResponse struct {
		Success string `json:"success"`
	}
)

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Username = core.CleanString(lr.Username, true /* lower */)
	return validate.Struct(lr)
}

func (pr *PasswordResetRequest) Validate(validate *validator.Validate) error {
	pr.Email = core.CleanString(pr.Email, true /* lower */)
	return validate.Struct(pr)
}

type authApi struct {
	svc        user.ServiceInterface
	auth       *authProvider
	validate   *validator.Validate
	translator ut.Translator
	logger     core.Logger
}

func registerAuthAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	auth *authProvider,
	svc user.ServiceInterface,
	validate *validator.Validate,
	translator ut.Translator,
	logger core.Logger,
) {
	api := authApi{
		svc:        svc,
		auth:       auth,
		validate:   validate,
		translator: translator,
		logger:     logger,
	}

	ag := g.Group("/auth")

	// un-authed endpoints
	ag.POST("/login", api.login)
	ag.POST("/check", api.check)
	ag.POST("/password-reset", api.resetPassword)
	ag.POST("/password-reset-confirm", api.confirmPasswordReset)

	// authed endpoints
	ag.POST("/logout", api.logout, jwt)
}

func envelope(ctx echo.Context, body interface{}) error {
	return ctx.JSON(http.StatusOK, Envelope{
		Code:    http.StatusOK,
		Message: "OK",
		Body:    body,
	})
}

// login authenticates the given credentials and issues a bearer token.
// Bad credentials resolve to success=false, never to a transport error.
func (api *authApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	claims, err := api.auth.authenticate(ctx.Request().Context(), data.Username, data.Password, api.svc)
	if err != nil {
		if errors.Cause(err) == errAuthenticationFailed || errors.Cause(err) == errAccountDeactivated {
			return envelope(ctx, LoginBody{Success: false})
		}
		return errors.Wrap(err, "authenticating")
	}
	token, err := api.auth.generateToken(claims)
	if err != nil {
		return errors.Wrap(err, "generating token")
	}

	return envelope(ctx, LoginBody{Success: true, Token: token})
}

// check validates a raw token and returns its decoded identity payload.
// An invalid token is data (valid=false), not an error.
func (api *authApi) check(ctx echo.Context) error {
	var data CheckRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to CheckRequest")
	}
	if err := api.validate.Struct(&data); err != nil {
		return err
	}

	claims, err := api.auth.parseToken(ctx.Request().Context(), data.Token)
	if err != nil {
		return envelope(ctx, CheckBody{Valid: false})
	}

	return envelope(ctx, CheckBody{
		Valid: true,
		Payload: &CheckPayload{
			ID:       claims.UserID,
			Email:    claims.Email,
			Name:     claims.Name,
			Lastname: claims.Lastname,
			Username: claims.Username,
			Role:     claims.Role,
		},
	})
}

// logout revokes the presented token until its natural expiry. Idempotent.
func (api *authApi) logout(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	if err = api.auth.revokeToken(ctx.Request().Context(), &claims); err != nil {
		return errors.Wrap(err, "revoking token")
	}
	return envelope(ctx, LogoutBody{Success: true})
}

func (api *authApi) resetPassword(ctx echo.Context) error {
	var data PasswordResetRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PasswordResetRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if err := api.svc.RequestPasswordReset(ctx.Request().Context(), data.Email); !(err == nil || errors.Cause(err) == user.ErrNotFound) {
		// do not return errors to attackers
		api.logger.Error("requesting password reset", errors.Wrap(err, "requesting password reset"))
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{
		Success: "If the email address supplied is associated with an active account on this system, " +
			"an email will arrive in your inbox shortly with instructions to reset your password.",
	})
}

func (api *authApi) confirmPasswordReset(ctx echo.Context) error {
	var data user.ResetUserPassword
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ResetUserPassword")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if err := api.svc.ResetPassword(ctx.Request().Context(), data); err != nil {
		return errors.Wrap(err, "resetting password")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Password has been reset with the new password."})
}
