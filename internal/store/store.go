package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"net"
	"time"

	"github.com/lib/pq"

	"github.com/flexr-nova/insight/internal/apierr"
)

// DefaultQueryTimeout bounds every round trip to the data store.
const DefaultQueryTimeout = 10 * time.Second

// MaxPageSize is the largest window any list operation will return.
const MaxPageSize = 100

// Store is a read-only view over the analytics tables. The datasets are
// append-only upstream; this layer never inserts, updates, or deletes.
type Store struct {
	DB      *sql.DB
	Timeout time.Duration
}

// QALogEntry is a raw question/answer interaction record.
type QALogEntry struct {
	ID        int64     `json:"id"`
	TaskID    string    `json:"task_id"`
	Query     string    `json:"query"`
	Response  string    `json:"response"`
	CreatedAt time.Time `json:"created_at"`
}

// LowSimilarityQuery is a search whose best match scored below the usable
// confidence threshold.
type LowSimilarityQuery struct {
	ID              int64     `json:"id"`
	QueryType       int       `json:"query_type"`
	Col             string    `json:"col"`
	QueryContent    string    `json:"query_content"`
	SimilarityScore float64   `json:"similarity_score"`
	MetricType      string    `json:"metric_type"`
	Results         *string   `json:"results,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// FeedbackSummary aggregates feedback rows per answered query.
type FeedbackSummary struct {
	Query            string `json:"query"`
	SatisfiedCount   int64  `json:"satisfied_count"`
	UnsatisfiedCount int64  `json:"unsatisfied_count"`
	TotalCount       int64  `json:"total_count"`
}

// NoResultSummary groups no-result events by exact query text.
type NoResultSummary struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

// NoResultStats carries dataset-wide figures for the no-result log.
type NoResultStats struct {
	TotalEvents     int64 `json:"total_events"`
	DistinctQueries int64 `json:"distinct_queries"`
}

func NewWithDSN(ctx context.Context, dsn string, timeout time.Duration) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = DefaultQueryTimeout
	}
	return &Store{DB: db, Timeout: timeout}, nil
}

func (s *Store) queryCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	t := s.Timeout
	if t <= 0 {
		t = DefaultQueryTimeout
	}
	return context.WithTimeout(ctx, t)
}

// mapErr folds driver failures into the upstream error taxonomy. Anything
// unrecognised passes through and surfaces as an internal error.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apierr.UpstreamTimeout()
	}
	if errors.Is(err, driver.ErrBadConn) {
		return apierr.UpstreamUnavailable()
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return apierr.UpstreamTimeout()
		}
		return apierr.UpstreamUnavailable()
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code.Class() == "08" {
		// connection exception class
		return apierr.UpstreamUnavailable()
	}
	return err
}

// GetUserByUsername returns the credential row for a login check.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (id string, hash string, err error) {
	qctx, cancel := s.queryCtx(ctx)
	defer cancel()
	err = s.DB.QueryRowContext(qctx, `SELECT id, password_hash FROM users WHERE username=$1`, username).Scan(&id, &hash)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		err = mapErr(err)
	}
	return
}

// ListQALogs returns one stable page of QA log entries, newest first. The
// (created_at, id) ordering makes consecutive skip windows partition the
// dataset without gaps or duplicates. search matches query, response, or
// task id case-insensitively; empty search means no filter.
func (s *Store) ListQALogs(ctx context.Context, skip, limit int, search string) ([]QALogEntry, error) {
	qctx, cancel := s.queryCtx(ctx)
	defer cancel()
	rows, err := s.DB.QueryContext(qctx, `
		SELECT id, task_id, query, response, created_at FROM qa_logs
		WHERE ($1 = '' OR query ILIKE '%'||$1||'%' OR response ILIKE '%'||$1||'%' OR task_id ILIKE '%'||$1||'%')
		ORDER BY created_at DESC, id DESC
		OFFSET $2 LIMIT $3`, search, skip, limit)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()
	out := []QALogEntry{}
	for rows.Next() {
		var e QALogEntry
		if err := rows.Scan(&e.ID, &e.TaskID, &e.Query, &e.Response, &e.CreatedAt); err != nil {
			return nil, mapErr(err)
		}
		out = append(out, e)
	}
	return out, mapErr(rows.Err())
}

// CountQALogs reports the true total matching a search, so pagers do not have
// to guess totals from page fullness.
func (s *Store) CountQALogs(ctx context.Context, search string) (int64, error) {
	qctx, cancel := s.queryCtx(ctx)
	defer cancel()
	var n int64
	err := s.DB.QueryRowContext(qctx, `
		SELECT COUNT(*) FROM qa_logs
		WHERE ($1 = '' OR query ILIKE '%'||$1||'%' OR response ILIKE '%'||$1||'%' OR task_id ILIKE '%'||$1||'%')`, search).Scan(&n)
	return n, mapErr(err)
}

// ListLowSimilarity returns one stable page of low-similarity records with
// inclusive score bounds and an optional exact metric-type match.
func (s *Store) ListLowSimilarity(ctx context.Context, skip, limit int, minScore, maxScore float64, metricType string) ([]LowSimilarityQuery, error) {
	qctx, cancel := s.queryCtx(ctx)
	defer cancel()
	rows, err := s.DB.QueryContext(qctx, `
		SELECT id, query_type, col, query_content, similarity_score, metric_type, results, created_at
		FROM low_similarity_queries
		WHERE similarity_score >= $1 AND similarity_score <= $2
		  AND ($3 = '' OR metric_type = $3)
		ORDER BY created_at DESC, id DESC
		OFFSET $4 LIMIT $5`, minScore, maxScore, metricType, skip, limit)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()
	out := []LowSimilarityQuery{}
	for rows.Next() {
		var q LowSimilarityQuery
		var results sql.NullString
		if err := rows.Scan(&q.ID, &q.QueryType, &q.Col, &q.QueryContent, &q.SimilarityScore, &q.MetricType, &results, &q.CreatedAt); err != nil {
			return nil, mapErr(err)
		}
		if results.Valid {
			v := results.String
			q.Results = &v
		}
		out = append(out, q)
	}
	return out, mapErr(rows.Err())
}

// CountLowSimilarity reports the true total matching the score/metric filter.
func (s *Store) CountLowSimilarity(ctx context.Context, minScore, maxScore float64, metricType string) (int64, error) {
	qctx, cancel := s.queryCtx(ctx)
	defer cancel()
	var n int64
	err := s.DB.QueryRowContext(qctx, `
		SELECT COUNT(*) FROM low_similarity_queries
		WHERE similarity_score >= $1 AND similarity_score <= $2
		  AND ($3 = '' OR metric_type = $3)`, minScore, maxScore, metricType).Scan(&n)
	return n, mapErr(err)
}

// FeedbackSummaries groups feedback by the answered query, most-discussed
// first. Summary view only, so there is no offset.
func (s *Store) FeedbackSummaries(ctx context.Context, limit int) ([]FeedbackSummary, error) {
	qctx, cancel := s.queryCtx(ctx)
	defer cancel()
	rows, err := s.DB.QueryContext(qctx, `
		SELECT q.query,
		       COUNT(f.id) FILTER (WHERE f.liked)     AS satisfied_count,
		       COUNT(f.id) FILTER (WHERE NOT f.liked) AS unsatisfied_count,
		       COUNT(f.id)                            AS total_count
		FROM qa_logs q
		JOIN feedback f ON q.task_id = f.message_id
		GROUP BY q.query
		ORDER BY total_count DESC, q.query ASC
		LIMIT $1`, limit)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()
	out := []FeedbackSummary{}
	for rows.Next() {
		var fs FeedbackSummary
		if err := rows.Scan(&fs.Query, &fs.SatisfiedCount, &fs.UnsatisfiedCount, &fs.TotalCount); err != nil {
			return nil, mapErr(err)
		}
		out = append(out, fs)
	}
	return out, mapErr(rows.Err())
}

// NoResultSummaries groups no-result events by exact query text, counting
// occurrences. Ties are broken by first-seen order.
func (s *Store) NoResultSummaries(ctx context.Context, limit int) ([]NoResultSummary, error) {
	qctx, cancel := s.queryCtx(ctx)
	defer cancel()
	rows, err := s.DB.QueryContext(qctx, `
		SELECT query, COUNT(*) AS cnt
		FROM no_result_logs
		GROUP BY query
		ORDER BY cnt DESC, MIN(id) ASC
		LIMIT $1`, limit)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()
	out := []NoResultSummary{}
	for rows.Next() {
		var ns NoResultSummary
		if err := rows.Scan(&ns.Query, &ns.Count); err != nil {
			return nil, mapErr(err)
		}
		out = append(out, ns)
	}
	return out, mapErr(rows.Err())
}

// NoResultTotals reports dataset-wide event and distinct-query counts for
// the no-result log.
func (s *Store) NoResultTotals(ctx context.Context) (NoResultStats, error) {
	qctx, cancel := s.queryCtx(ctx)
	defer cancel()
	var st NoResultStats
	err := s.DB.QueryRowContext(qctx,
		`SELECT COUNT(*), COUNT(DISTINCT query) FROM no_result_logs`).Scan(&st.TotalEvents, &st.DistinctQueries)
	return st, mapErr(err)
}
