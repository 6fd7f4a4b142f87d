package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/flexr-nova/insight/internal/apierr"
	"github.com/flexr-nova/insight/internal/runtime"
	"github.com/flexr-nova/insight/internal/store"
)

type QALogsHandler struct {
	Store *store.Store
}

func (h *QALogsHandler) Register(g *echo.Group, secret []byte) {
	g.Use(runtime.EchoAuthMiddleware(secret))
	g.GET("", h.list)
	g.GET("/count", h.count)
}

// list returns one page of QA log entries, optionally filtered by a
// case-insensitive substring over query, response, and task id.
func (h *QALogsHandler) list(c echo.Context) error {
	skip, err := paramSkip(c)
	if err != nil {
		return err
	}
	limit, err := paramLimit(c, store.MaxPageSize)
	if err != nil {
		return err
	}
	search := c.QueryParam("search")

	done := observeQuery("qa_logs")
	items, err := h.Store.ListQALogs(c.Request().Context(), skip, limit, search)
	done()
	if err != nil {
		return storeErr(err)
	}
	return c.JSON(http.StatusOK, success(items))
}

// count returns the true total matching a search, not a page-fullness guess.
func (h *QALogsHandler) count(c echo.Context) error {
	search := c.QueryParam("search")
	done := observeQuery("qa_logs")
	total, err := h.Store.CountQALogs(c.Request().Context(), search)
	done()
	if err != nil {
		return storeErr(err)
	}
	return c.JSON(http.StatusOK, success(CountResponse{Total: total}))
}

// storeErr lets taxonomy errors through untouched and hides everything else
// behind an opaque upstream failure.
func storeErr(err error) error {
	if ae, ok := apierr.From(err); ok {
		return ae
	}
	return err
}
