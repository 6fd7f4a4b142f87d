package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/flexr-nova/insight/internal/runtime"
	"github.com/flexr-nova/insight/internal/store"
)

type LowSimilarityHandler struct {
	Store *store.Store
}

func (h *LowSimilarityHandler) Register(g *echo.Group, secret []byte) {
	g.Use(runtime.EchoAuthMiddleware(secret))
	g.GET("", h.list)
	g.GET("/count", h.count)
}

// list returns one page of low-similarity records filtered by an inclusive
// score range and an optional exact metric type.
func (h *LowSimilarityHandler) list(c echo.Context) error {
	skip, err := paramSkip(c)
	if err != nil {
		return err
	}
	limit, err := paramLimit(c, store.MaxPageSize)
	if err != nil {
		return err
	}
	minScore, maxScore, err := paramScoreRange(c)
	if err != nil {
		return err
	}
	metricType := c.QueryParam("metric_type")

	done := observeQuery("low_similarity")
	items, err := h.Store.ListLowSimilarity(c.Request().Context(), skip, limit, minScore, maxScore, metricType)
	done()
	if err != nil {
		return storeErr(err)
	}
	return c.JSON(http.StatusOK, success(items))
}

func (h *LowSimilarityHandler) count(c echo.Context) error {
	minScore, maxScore, err := paramScoreRange(c)
	if err != nil {
		return err
	}
	metricType := c.QueryParam("metric_type")
	done := observeQuery("low_similarity")
	total, err := h.Store.CountLowSimilarity(c.Request().Context(), minScore, maxScore, metricType)
	done()
	if err != nil {
		return storeErr(err)
	}
	return c.JSON(http.StatusOK, success(CountResponse{Total: total}))
}
