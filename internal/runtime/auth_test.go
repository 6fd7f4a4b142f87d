package runtime

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/flexr-nova/insight/config"
	"github.com/flexr-nova/insight/internal/apierr"
)

var testSecret = []byte("test-secret")

func withFixedNow(t *testing.T, at time.Time) {
	t.Helper()
	timeNow = func() time.Time { return at }
	t.Cleanup(func() { timeNow = time.Now })
}

func TestTokenRoundTrip(t *testing.T) {
	tok, err := SignToken("analyst", testSecret, time.Hour)
	if err != nil {
		t.Fatalf("SignToken: %v", err)
	}
	sub, err := ParseToken(tok, testSecret)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if sub != "analyst" {
		t.Fatalf("expected subject analyst, got %q", sub)
	}
}

func TestTokenTTLBoundary(t *testing.T) {
	issued := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ttl := 120 * time.Minute

	withFixedNow(t, issued)
	tok, err := SignToken("analyst", testSecret, ttl)
	if err != nil {
		t.Fatalf("SignToken: %v", err)
	}

	timeNow = func() time.Time { return issued.Add(ttl - time.Second) }
	if _, err := ParseToken(tok, testSecret); err != nil {
		t.Fatalf("token should be valid one second before expiry: %v", err)
	}

	timeNow = func() time.Time { return issued.Add(ttl + time.Second) }
	_, err = ParseToken(tok, testSecret)
	if err == nil {
		t.Fatal("token should be invalid one second after expiry")
	}
	ae, ok := apierr.From(err)
	if !ok || ae.Code != apierr.CodeTokenExpired {
		t.Fatalf("expected TokenExpired, got %v", err)
	}
}

func TestParseTokenMalformed(t *testing.T) {
	if _, err := ParseToken("not-a-token", testSecret); err == nil {
		t.Fatal("expected error for garbage token")
	} else if ae, ok := apierr.From(err); !ok || ae.Code != apierr.CodeTokenMalformed {
		t.Fatalf("expected TokenMalformed, got %v", err)
	}

	tok, err := SignToken("analyst", []byte("other-secret"), time.Hour)
	if err != nil {
		t.Fatalf("SignToken: %v", err)
	}
	if _, err := ParseToken(tok, testSecret); err == nil {
		t.Fatal("expected error for wrong signature")
	} else if ae, ok := apierr.From(err); !ok || ae.Code != apierr.CodeTokenMalformed {
		t.Fatalf("expected TokenMalformed, got %v", err)
	}
}

func TestMiddlewareMissingToken(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)

	called := false
	h := EchoAuthMiddleware(testSecret)(func(c echo.Context) error {
		called = true
		return nil
	})
	err := h(ctx)
	if err == nil {
		t.Fatal("expected error for missing token")
	}
	if ae, ok := apierr.From(err); !ok || ae.Code != apierr.CodeUnauthenticated {
		t.Fatalf("expected Unauthenticated, got %v", err)
	}
	if called {
		t.Fatal("handler must not run without a token")
	}
}

func TestMiddlewareBearerAndCookie(t *testing.T) {
	tok, err := SignToken("analyst", testSecret, time.Hour)
	if err != nil {
		t.Fatalf("SignToken: %v", err)
	}
	e := echo.New()

	for name, set := range map[string]func(*http.Request){
		"bearer": func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+tok) },
		"cookie": func(r *http.Request) { r.AddCookie(&http.Cookie{Name: "auth", Value: tok}) },
	} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		set(req)
		rec := httptest.NewRecorder()
		ctx := e.NewContext(req, rec)

		h := EchoAuthMiddleware(testSecret)(func(c echo.Context) error {
			if got := c.Get("user_id"); got != "analyst" {
				t.Fatalf("%s: expected user_id analyst, got %v", name, got)
			}
			if sub, ok := SubjectFromContext(c.Request().Context()); !ok || sub != "analyst" {
				t.Fatalf("%s: subject missing from request context", name)
			}
			return nil
		})
		if err := h(ctx); err != nil {
			t.Fatalf("%s: middleware: %v", name, err)
		}
	}
}

func TestMiddlewareExpiredTokenShortCircuits(t *testing.T) {
	issued := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	withFixedNow(t, issued)
	tok, err := SignToken("analyst", testSecret, time.Minute)
	if err != nil {
		t.Fatalf("SignToken: %v", err)
	}
	timeNow = func() time.Time { return issued.Add(2 * time.Minute) }

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)

	called := false
	h := EchoAuthMiddleware(testSecret)(func(c echo.Context) error {
		called = true
		return nil
	})
	err = h(ctx)
	if ae, ok := apierr.From(err); !ok || ae.Code != apierr.CodeTokenExpired {
		t.Fatalf("expected TokenExpired, got %v", err)
	}
	if called {
		t.Fatal("handler must not run with an expired token")
	}
}

func TestLoadJWTSecretMissing(t *testing.T) {
	if _, err := LoadJWTSecret(nil); err == nil {
		t.Fatal("expected error for nil config")
	}
	cfg := &config.Config{}
	if _, err := LoadJWTSecret(cfg); err == nil {
		t.Fatal("expected error for empty secret")
	}
	cfg.Server.JWTSecret = "s"
	secret, err := LoadJWTSecret(cfg)
	if err != nil || string(secret) != "s" {
		t.Fatalf("expected configured secret, got %q err=%v", secret, err)
	}
}
