package runtime

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/flexr-nova/insight/config"
	"github.com/flexr-nova/insight/internal/apierr"
)

// timeNow is swapped out in tests exercising expiry boundaries.
var timeNow = time.Now

// LoadJWTSecret resolves the shared JWT secret from config.
func LoadJWTSecret(cfg *config.Config) ([]byte, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if cfg.Server.JWTSecret != "" {
		return []byte(cfg.Server.JWTSecret), nil
	}
	return nil, errors.New("jwt secret not configured (server.jwt_secret)")
}

// SignToken issues a signed session token for the given subject with the
// provided TTL. Tokens carry a jti so individual sessions are traceable in
// audit logs; validity is purely time-bound, there is no revocation list.
func SignToken(subject string, secret []byte, ttl time.Duration) (string, error) {
	now := timeNow()
	claims := jwt.MapClaims{
		"sub": subject,
		"jti": uuid.NewString(),
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// ParseToken validates a session token and returns its subject. Expired
// tokens and malformed/badly-signed tokens are distinguished so callers can
// surface the right code.
func ParseToken(tok string, secret []byte) (string, error) {
	parsed, err := jwt.Parse(tok, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return timeNow() }))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", apierr.TokenExpired()
		}
		return "", apierr.TokenMalformed()
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return "", apierr.TokenMalformed()
	}
	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return "", apierr.TokenMalformed()
	}
	return sub, nil
}

// EchoAuthMiddleware builds the session guard applied to every data-access
// route. Token comes from the Authorization header or the auth cookie; on
// failure the wrapped handler never runs.
func EchoAuthMiddleware(secret []byte) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tok := extractToken(c)
			if tok == "" {
				return apierr.Unauthenticated()
			}
			sub, err := ParseToken(tok, secret)
			if err != nil {
				return err
			}
			reqCtx := context.WithValue(c.Request().Context(), subjectKey{}, sub)
			c.Set("user_id", sub)
			c.SetRequest(c.Request().WithContext(reqCtx))
			return next(c)
		}
	}
}

func extractToken(c echo.Context) string {
	if h := c.Request().Header.Get("Authorization"); len(h) > 7 && h[:7] == "Bearer " {
		return h[7:]
	}
	if ck, err := c.Cookie("auth"); err == nil {
		return ck.Value
	}
	return ""
}

type subjectKey struct{}

// SubjectFromContext returns the session subject if stored in context via middleware.
func SubjectFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	if v := ctx.Value(subjectKey{}); v != nil {
		if s, ok := v.(string); ok {
			return s, true
		}
	}
	return "", false
}
