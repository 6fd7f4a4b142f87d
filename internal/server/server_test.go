package server

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"

	"github.com/flexr-nova/insight/internal/apierr"
	"github.com/flexr-nova/insight/internal/store"
)

// envelope mirrors Envelope with raw data for typed decoding in tests.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *apierr.Error   `json:"error"`
}

func newTestEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = httpErrorHandler(log.New(io.Discard, "", 0))
	return e
}

func newMockStore(t *testing.T) (*store.Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return &store.Store{DB: db}, mock
}

func doRequest(e *echo.Echo, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v (body %s)", err, rec.Body.String())
	}
	return env
}

func expectErrorCode(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("expected status %d got %d (body %s)", status, rec.Code, rec.Body.String())
	}
	env := decodeEnvelope(t, rec)
	if env.Success {
		t.Fatalf("expected error envelope, got success: %s", rec.Body.String())
	}
	if env.Error == nil || env.Error.Code != code {
		t.Fatalf("expected error code %s, got %+v", code, env.Error)
	}
}

func contextDeadlineExceeded() error { return context.DeadlineExceeded }

func TestErrorEnvelopeMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{apierr.InvalidArgument("bad"), http.StatusBadRequest, apierr.CodeInvalidArgument},
		{apierr.InvalidRange("bad range"), http.StatusBadRequest, apierr.CodeInvalidRange},
		{apierr.InvalidCredentials(), http.StatusUnauthorized, apierr.CodeInvalidCredentials},
		{apierr.TokenExpired(), http.StatusUnauthorized, apierr.CodeTokenExpired},
		{apierr.TokenMalformed(), http.StatusUnauthorized, apierr.CodeTokenMalformed},
		{apierr.Unauthenticated(), http.StatusUnauthorized, apierr.CodeUnauthenticated},
		{apierr.UpstreamTimeout(), http.StatusGatewayTimeout, apierr.CodeUpstreamTimeout},
		{apierr.UpstreamUnavailable(), http.StatusServiceUnavailable, apierr.CodeUpstreamUnavailable},
		{echo.NewHTTPError(http.StatusNotFound, "nope"), http.StatusNotFound, "NotFound"},
		{io.ErrUnexpectedEOF, http.StatusInternalServerError, "Internal"},
	}
	for _, tc := range cases {
		status, payload := toEnvelopeError(tc.err)
		if status != tc.status || payload.Code != tc.code {
			t.Fatalf("%v: got status=%d code=%s, want status=%d code=%s", tc.err, status, payload.Code, tc.status, tc.code)
		}
	}
}

func TestInternalErrorHidesDetail(t *testing.T) {
	_, payload := toEnvelopeError(io.ErrUnexpectedEOF)
	if payload.Message != "internal server error" {
		t.Fatalf("internal error message leaked detail: %q", payload.Message)
	}
}
