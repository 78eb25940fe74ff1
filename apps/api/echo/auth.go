package echoapi

import (
	"context"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/kumoedu/kumo/core"
	"github.com/kumoedu/kumo/core/user"
	"github.com/kumoedu/kumo/storage/tokenstore"
)

const (
	contextTokenKey = "userToken"
	contextUserKey  = "user"
)

// Claims represents the authorization claims transmitted via a JWT.
// The identity fields mirror the payload returned by the token check
// endpoint: id, email, name, lastname, username, role.
type Claims struct {
	jwt.StandardClaims
	UserID   int       `json:"uid,omitempty"`
	Email    string    `json:"email,omitempty"`
	Name     string    `json:"name,omitempty"`
	Lastname string    `json:"lastname,omitempty"`
	Username string    `json:"username,omitempty"`
	Role     user.Role `json:"role"`
}

// authProvider mints, parses and revokes the API's bearer tokens.
type authProvider struct {
	appName         string
	signingKey      []byte
	expirationDelta time.Duration
	tokens          tokenstore.Store
}

func newAuthProvider(conf *core.Config, tokens tokenstore.Store) *authProvider {
	return &authProvider{
		appName:         conf.AppName,
		signingKey:      conf.SecretKey,
		expirationDelta: conf.Server.JWTExpirationDelta,
		tokens:          tokens,
	}
}

// jwtConfig returns the echo JWT middleware config for authed endpoints.
func (ap *authProvider) jwtConfig() middleware.JWTConfig {
	return middleware.JWTConfig{
		SigningKey:    ap.signingKey,
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    contextTokenKey,
		Claims:        new(Claims),
	}
}

func (ap *authProvider) getUserClaims(usr user.User) *Claims {
	now := time.Now()
	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Id:        uuid.NewString(),
			Issuer:    ap.appName,
			Subject:   strconv.Itoa(usr.ID),
			ExpiresAt: now.Add(ap.expirationDelta).Unix(),
			IssuedAt:  now.Unix(),
		},
		UserID:   usr.ID,
		Email:    usr.Email,
		Name:     usr.Name,
		Lastname: usr.Lastname,
		Username: usr.Username,
		Role:     usr.Role,
	}
}

// generateToken generates a signed JWT token string representing the user Claims.
func (ap *authProvider) generateToken(claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	ss, err := token.SignedString(ap.signingKey)
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

// parseToken validates a raw token string: signature, expiry and revocation.
func (ap *authProvider) parseToken(ctx context.Context, tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, new(Claims), func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ap.signingKey, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errUnauthorized
	}

	revoked, err := ap.tokens.IsRevoked(ctx, claims.Id)
	if err != nil {
		return nil, errors.Wrap(err, "checking token revocation")
	}
	if revoked {
		return nil, errUnauthorized
	}
	return claims, nil
}

// revokeToken denylists the token's jti until its natural expiry.
func (ap *authProvider) revokeToken(ctx context.Context, claims *Claims) error {
	return ap.tokens.Revoke(ctx, claims.Id, time.Unix(claims.ExpiresAt, 0))
}

// authenticate checks the given credentials and returns claims for the
// matched user. Unknown user and wrong password are indistinguishable.
func (ap *authProvider) authenticate(ctx context.Context, uname, pwd string, svc user.ServiceInterface) (*Claims, error) {
	usr, err := svc.GetByUsernameOrEmail(ctx, uname)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return nil, errAuthenticationFailed
		}
		return nil, errors.Wrap(err, "finding user by username or email")
	}
	if err = usr.CheckPassword(pwd); err != nil {
		return nil, errAuthenticationFailed
	}
	if !usr.IsActive {
		return nil, errAccountDeactivated
	}
	usr, err = svc.SetLastLogin(ctx, usr)
	if err != nil {
		return nil, errors.Wrap(err, "setting lastLogin")
	}
	return ap.getUserClaims(usr), nil
}

// checkRevocation runs right after the JWT middleware and rejects tokens
// that were revoked via logout.
func (ap *authProvider) checkRevocation(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		claims, err := getContextClaims(ctx)
		if err != nil {
			return err
		}
		revoked, err := ap.tokens.IsRevoked(ctx.Request().Context(), claims.Id)
		if err != nil {
			return errors.Wrap(err, "checking token revocation")
		}
		if revoked {
			return errUnauthorized
		}
		return next(ctx)
	}
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(contextTokenKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

func getContextUser(ctx echo.Context, svc user.ServiceInterface, clms ...Claims) (user.User, error) {
	if usr, ok := ctx.Get(contextUserKey).(user.User); ok {
		return usr, nil
	}

	var claims Claims
	var err error
	if len(clms) > 0 {
		claims = clms[0]
	} else {
		claims, err = getContextClaims(ctx)
		if err != nil {
			return user.User{}, errors.Wrap(err, "getting context claims")
		}
	}

	usr, err := svc.GetByID(ctx.Request().Context(), claims.UserID)
	if err != nil {
		return user.User{}, errors.Wrap(err, "finding user by ID")
	}
	ctx.Set(contextUserKey, usr)
	return usr, nil
}
