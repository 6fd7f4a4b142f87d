package server

import (
	"fmt"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/flexr-nova/insight/internal/apierr"
	"github.com/flexr-nova/insight/internal/store"
)

// Argument validation happens here, before any store access, so a bad input
// never triggers a partial query.

func paramSkip(c echo.Context) (int, error) {
	raw := c.QueryParam("skip")
	if raw == "" {
		return 0, nil
	}
	skip, err := strconv.Atoi(raw)
	if err != nil || skip < 0 {
		return 0, apierr.InvalidArgument("skip must be a non-negative integer")
	}
	return skip, nil
}

func paramLimit(c echo.Context, def int) (int, error) {
	raw := c.QueryParam("limit")
	limit := def
	if raw != "" {
		var err error
		limit, err = strconv.Atoi(raw)
		if err != nil {
			return 0, apierr.InvalidArgument("limit must be an integer")
		}
	}
	if limit < 1 || limit > store.MaxPageSize {
		return 0, apierr.InvalidArgument(fmt.Sprintf("limit must be between 1 and %d", store.MaxPageSize))
	}
	return limit, nil
}

// paramScore parses an optional [0,1] similarity bound, returning def when absent.
func paramScore(c echo.Context, name string, def float64) (float64, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return def, nil
	}
	score, err := strconv.ParseFloat(raw, 64)
	if err != nil || score < 0 || score > 1 {
		return 0, apierr.InvalidArgument(name + " must be a number between 0 and 1")
	}
	return score, nil
}

// paramScoreRange parses min_score/max_score with inclusive defaults [0,1]
// and rejects inverted ranges before any store access.
func paramScoreRange(c echo.Context) (minScore, maxScore float64, err error) {
	minScore, err = paramScore(c, "min_score", 0)
	if err != nil {
		return 0, 0, err
	}
	maxScore, err = paramScore(c, "max_score", 1)
	if err != nil {
		return 0, 0, err
	}
	if minScore > maxScore {
		return 0, 0, apierr.InvalidRange("min_score cannot be greater than max_score")
	}
	return minScore, maxScore, nil
}
