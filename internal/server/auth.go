package server

import (
	"database/sql"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/flexr-nova/insight/internal/apierr"
	"github.com/flexr-nova/insight/internal/runtime"
	"github.com/flexr-nova/insight/internal/store"
)

type AuthHandler struct {
	Store    *store.Store
	Secret   []byte
	TokenTTL time.Duration
	Throttle *LoginThrottle
}

func (a *AuthHandler) Register(g *echo.Group) {
	g.POST("/login", a.login)

	guarded := g.Group("")
	guarded.Use(runtime.EchoAuthMiddleware(a.Secret))
	guarded.POST("/logout", a.logout)
	guarded.GET("/me", a.me)
}

// login verifies a username/password pair and mints a time-boxed session
// token. Unknown usernames and wrong passwords are indistinguishable to the
// caller.
func (a *AuthHandler) login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return apierr.InvalidArgument("malformed login payload")
	}
	if req.Username == "" || req.Password == "" {
		return apierr.InvalidArgument("username and password are required")
	}
	ctx := c.Request().Context()
	if a.Throttle.Blocked(ctx, req.Username, c.RealIP()) {
		loginAttemptsTotal.WithLabelValues("throttled").Inc()
		return apierr.New(apierr.CodeInvalidCredentials, "too many failed attempts, try again later")
	}
	_, hash, err := a.Store.GetUserByUsername(ctx, req.Username)
	if err != nil {
		if ae, ok := apierr.From(err); ok {
			return ae
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		// fall through to the same failure path as a bad password
	}
	if hash == "" || bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.Password)) != nil {
		a.Throttle.Fail(ctx, req.Username, c.RealIP())
		loginAttemptsTotal.WithLabelValues("failure").Inc()
		return apierr.InvalidCredentials()
	}
	a.Throttle.Reset(ctx, req.Username, c.RealIP())

	signed, err := runtime.SignToken(req.Username, a.Secret, a.TokenTTL)
	if err != nil {
		return err
	}
	loginAttemptsTotal.WithLabelValues("success").Inc()

	cookie := new(http.Cookie)
	cookie.Name = "auth"
	cookie.Value = signed
	cookie.Path = "/"
	cookie.HttpOnly = true
	cookie.SameSite = http.SameSiteLaxMode
	if os.Getenv("INSIGHT_ENV") == "prod" {
		cookie.Secure = true
	}
	c.SetCookie(cookie)
	// also return token for Bearer flows
	c.Response().Header().Set("Authorization", "Bearer "+signed)
	return c.JSON(http.StatusOK, success(TokenResponse{AccessToken: signed, TokenType: "bearer"}))
}

// me returns the current session's principal.
func (a *AuthHandler) me(c echo.Context) error {
	username := c.Get("user_id").(string)
	id, _, err := a.Store.GetUserByUsername(c.Request().Context(), username)
	if err != nil {
		if ae, ok := apierr.From(err); ok {
			return ae
		}
		if errors.Is(err, sql.ErrNoRows) {
			return apierr.Unauthenticated()
		}
		return err
	}
	if id == "" {
		return apierr.Unauthenticated()
	}
	return c.JSON(http.StatusOK, success(MeResponse{Username: username, IsAuthenticated: true}))
}

// logout clears the auth cookie. Token validity is purely time-bound, so the
// client discarding the token is the whole story.
func (a *AuthHandler) logout(c echo.Context) error {
	username, _ := c.Get("user_id").(string)
	cookie := new(http.Cookie)
	cookie.Name = "auth"
	cookie.Value = ""
	cookie.Path = "/"
	cookie.MaxAge = -1
	c.SetCookie(cookie)
	return c.JSON(http.StatusOK, success(LogoutResponse{Message: "successfully logged out", Username: username}))
}
