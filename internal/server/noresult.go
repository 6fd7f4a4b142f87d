package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/flexr-nova/insight/internal/runtime"
	"github.com/flexr-nova/insight/internal/store"
)

type NoResultHandler struct {
	Store *store.Store
}

func (h *NoResultHandler) Register(g *echo.Group, secret []byte) {
	g.Use(runtime.EchoAuthMiddleware(secret))
	g.GET("/summary", h.summary)
}

// summary groups no-result events by exact query text and returns the top
// groups by occurrence, annotated with dataset-wide totals.
func (h *NoResultHandler) summary(c echo.Context) error {
	limit, err := paramLimit(c, 10)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	done := observeQuery("no_result")
	items, err := h.Store.NoResultSummaries(ctx, limit)
	if err != nil {
		done()
		return storeErr(err)
	}
	stats, err := h.Store.NoResultTotals(ctx)
	done()
	if err != nil {
		return storeErr(err)
	}
	return c.JSON(http.StatusOK, success(NoResultSummaryResponse{
		Items:             items,
		TotalEvents:       stats.TotalEvents,
		DistinctQueries:   stats.DistinctQueries,
		AverageOccurrence: averageOccurrence(stats.TotalEvents, stats.DistinctQueries),
	}))
}
