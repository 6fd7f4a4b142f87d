package server

import (
	"github.com/flexr-nova/insight/internal/apierr"
	"github.com/flexr-nova/insight/internal/store"
)

// Envelope is the tagged result returned by every endpoint: either a success
// variant carrying data or an error variant carrying code + message.
type Envelope struct {
	Success bool          `json:"success"`
	Data    interface{}   `json:"data,omitempty"`
	Error   *apierr.Error `json:"error,omitempty"`
}

func success(data interface{}) Envelope {
	return Envelope{Success: true, Data: data}
}

// LoginRequest represents the login payload (form or JSON).
type LoginRequest struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

// TokenResponse carries a bearer session token.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// MeResponse describes the current authenticated principal.
type MeResponse struct {
	Username        string `json:"username"`
	IsAuthenticated bool   `json:"is_authenticated"`
}

// LogoutResponse confirms a client-side logout.
type LogoutResponse struct {
	Message  string `json:"message"`
	Username string `json:"username"`
}

// CountResponse carries an explicit total for pagers.
type CountResponse struct {
	Total int64 `json:"total"`
}

// FeedbackSummaryItem annotates a feedback summary with its satisfaction rate.
type FeedbackSummaryItem struct {
	store.FeedbackSummary
	SatisfactionRate float64 `json:"satisfaction_rate"`
}

// NoResultSummaryResponse carries the top groups plus dataset-wide stats.
type NoResultSummaryResponse struct {
	Items             []store.NoResultSummary `json:"items"`
	TotalEvents       int64                   `json:"total_events"`
	DistinctQueries   int64                   `json:"distinct_queries"`
	AverageOccurrence float64                 `json:"average_occurrence"`
}

// satisfactionRate returns satisfied/total, never dividing by zero.
func satisfactionRate(satisfied, total int64) float64 {
	if total == 0 {
		return 0
	}
	return float64(satisfied) / float64(total)
}

// averageOccurrence returns events/queries, never dividing by zero.
func averageOccurrence(events, queries int64) float64 {
	if queries == 0 {
		return 0
	}
	return float64(events) / float64(queries)
}
