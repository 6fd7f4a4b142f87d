package server

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/flexr-nova/insight/config"
	"github.com/flexr-nova/insight/internal/apierr"
	"github.com/flexr-nova/insight/internal/runtime"
	"github.com/flexr-nova/insight/internal/store"
)

func Run(cfg *config.Config) error {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(metricsMiddleware)

	// Unified HTTP error handler with structured JSON and logging
	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = httpErrorHandler(baseLogger)

	origins := cfg.Server.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Authorization", "Cookie"},
		AllowCredentials: true,
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(200, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	ctx := context.Background()
	st, err := store.NewWithDSN(ctx, cfg.Storage.Postgres.DSN(), cfg.Storage.Postgres.Timeout)
	if err != nil {
		return err
	}

	secret, err := runtime.LoadJWTSecret(cfg)
	if err != nil {
		return err
	}

	var throttle *LoginThrottle
	if addr := cfg.Storage.Redis.Addr(); addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: addr, Password: cfg.Storage.Redis.Password, DB: cfg.Storage.Redis.DB})
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis connection failed (%s): %w", addr, err)
		}
		throttle = &LoginThrottle{Rdb: rdb, Max: cfg.Throttle.MaxAttempts, Window: cfg.Throttle.Window}
	}

	auth := &AuthHandler{Store: st, Secret: secret, TokenTTL: cfg.Server.TokenTTL, Throttle: throttle}

	api := e.Group("/api")
	auth.Register(api.Group("/auth"))

	fh := &FeedbackHandler{Store: st}
	fh.Register(api.Group("/feedback"), secret)

	qh := &QALogsHandler{Store: st}
	qh.Register(api.Group("/qa-logs"), secret)

	lh := &LowSimilarityHandler{Store: st}
	lh.Register(api.Group("/low-similarity"), secret)

	nh := &NoResultHandler{Store: st}
	nh.Register(api.Group("/no-result"), secret)

	addr := cfg.Server.Address
	if addr != "" && addr[0] != ':' {
		addr = ":" + addr
	}
	if addr == "" {
		addr = ":10020"
	}
	log.Printf("listening on %s", addr)
	return e.Start(addr)
}

func httpErrorHandler(logger *log.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		status, payload := toEnvelopeError(err)
		req := c.Request()
		logger.Printf("%d %s %s from %s: %v", status, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(status, Envelope{Success: false, Error: payload})
		}
	}
}

// toEnvelopeError maps any handler error onto the wire envelope without
// leaking internal detail.
func toEnvelopeError(err error) (int, *apierr.Error) {
	if ae, ok := apierr.From(err); ok {
		return ae.Status(), ae
	}
	if he, ok := err.(*echo.HTTPError); ok {
		msg := http.StatusText(he.Code)
		if he.Message != nil {
			msg = fmt.Sprint(he.Message)
		}
		return he.Code, apierr.New(codeForStatus(he.Code), msg)
	}
	return http.StatusInternalServerError, apierr.New("Internal", "internal server error")
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return apierr.CodeInvalidArgument
	case http.StatusUnauthorized:
		return apierr.CodeUnauthenticated
	case http.StatusNotFound:
		return "NotFound"
	case http.StatusMethodNotAllowed:
		return "MethodNotAllowed"
	}
	return "Internal"
}
