package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/flexr-nova/insight/internal/runtime"
	"github.com/flexr-nova/insight/internal/store"
)

type FeedbackHandler struct {
	Store *store.Store
}

func (h *FeedbackHandler) Register(g *echo.Group, secret []byte) {
	g.Use(runtime.EchoAuthMiddleware(secret))
	g.GET("/summary", h.summary)
}

// summary returns the most-discussed queries with their satisfaction split,
// ordered by total feedback count descending. Summary view, no offset.
func (h *FeedbackHandler) summary(c echo.Context) error {
	limit, err := paramLimit(c, 10)
	if err != nil {
		return err
	}
	done := observeQuery("feedback")
	rows, err := h.Store.FeedbackSummaries(c.Request().Context(), limit)
	done()
	if err != nil {
		return storeErr(err)
	}
	items := make([]FeedbackSummaryItem, 0, len(rows))
	for _, r := range rows {
		items = append(items, FeedbackSummaryItem{
			FeedbackSummary:  r,
			SatisfactionRate: satisfactionRate(r.SatisfiedCount, r.TotalCount),
		})
	}
	return c.JSON(http.StatusOK, success(items))
}
