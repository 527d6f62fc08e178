package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrSubmissionNotFound = errors.New("orders: submission not found")

// Outcome is how a submission ended.
type Outcome string

const (
	OutcomeConfirmed Outcome = "confirmed"
	OutcomeFallback  Outcome = "fallback"
)

// ParseOutcome accepts "", "confirmed" or "fallback".
func ParseOutcome(s string) (Outcome, error) {
	switch o := Outcome(strings.ToLower(strings.TrimSpace(s))); o {
	case "", OutcomeConfirmed, OutcomeFallback:
		return o, nil
	}
	return "", fmt.Errorf("orders: unknown outcome %q", s)
}

// Submission is the durable record of one order attempt.
type Submission struct {
	ID          string          `json:"id"`
	RefOrderID  string          `json:"refOrderId"`
	OrderNo     string          `json:"orderNo,omitempty"`
	Outcome     Outcome         `json:"outcome"`
	Reason      string          `json:"reason,omitempty"`
	Mobile      string          `json:"mobile"`
	Email       string          `json:"email"`
	PackageCode string          `json:"packageCode"`
	Quantity    int             `json:"quantity"`
	Rate        int             `json:"rate"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// SubmissionFilter narrows List. A zero Outcome matches both outcomes.
type SubmissionFilter struct {
	Outcome Outcome
	Limit   int
}

// SubmissionRepository persists submissions.
type SubmissionRepository interface {
	Save(ctx context.Context, s Submission) error
	Get(ctx context.Context, refOrderID string) (Submission, error)
	List(ctx context.Context, filter SubmissionFilter) ([]Submission, error)
}

const defaultListLimit = 50

// MemorySubmissionRepository keeps submissions in process memory.
type MemorySubmissionRepository struct {
	mu   sync.RWMutex
	rows map[string]Submission
}

func NewMemorySubmissionRepository() *MemorySubmissionRepository {
	return &MemorySubmissionRepository{rows: make(map[string]Submission)}
}

func (r *MemorySubmissionRepository) Save(_ context.Context, s Submission) error {
	if strings.TrimSpace(s.RefOrderID) == "" {
		return errors.New("orders: ref_order_id required")
	}
	r.mu.Lock()
	r.rows[s.RefOrderID] = s
	r.mu.Unlock()
	return nil
}

func (r *MemorySubmissionRepository) Get(_ context.Context, refOrderID string) (Submission, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.rows[refOrderID]
	if !ok {
		return Submission{}, ErrSubmissionNotFound
	}
	return s, nil
}

// List returns the newest submissions first.
func (r *MemorySubmissionRepository) List(_ context.Context, filter SubmissionFilter) ([]Submission, error) {
	r.mu.RLock()
	out := make([]Submission, 0, len(r.rows))
	for _, s := range r.rows {
		if filter.Outcome != "" && s.Outcome != filter.Outcome {
			continue
		}
		out = append(out, s)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresSubmissionRepository stores submissions in order_submissions.
type PostgresSubmissionRepository struct {
	pool querier
}

func NewPostgresSubmissionRepository(pool *pgxpool.Pool) *PostgresSubmissionRepository {
	if pool == nil {
		panic("orders: pgx pool required")
	}
	return &PostgresSubmissionRepository{pool: pool}
}

func newPostgresSubmissionRepositoryWithQuerier(q querier) *PostgresSubmissionRepository {
	if q == nil {
		panic("orders: querier required")
	}
	return &PostgresSubmissionRepository{pool: q}
}

// Save upserts on ref_order_id.
func (r *PostgresSubmissionRepository) Save(ctx context.Context, s Submission) error {
	if strings.TrimSpace(s.RefOrderID) == "" {
		return errors.New("orders: ref_order_id required")
	}
	payload := s.Payload
	if len(payload) == 0 {
		payload = json.RawMessage("{}")
	}
	query := `
		INSERT INTO order_submissions (
			id, ref_order_id, order_no, outcome, reason, mobile, email,
			package_code, quantity, rate, payload, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (ref_order_id) DO UPDATE SET
			order_no = EXCLUDED.order_no,
			outcome = EXCLUDED.outcome,
			reason = EXCLUDED.reason,
			payload = EXCLUDED.payload
	`
	_, err := r.pool.Exec(ctx, query,
		s.ID, s.RefOrderID, s.OrderNo, string(s.Outcome), s.Reason, s.Mobile, s.Email,
		s.PackageCode, s.Quantity, s.Rate, []byte(payload), s.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("orders: save submission: %w", err)
	}
	return nil
}

const submissionColumns = `id, ref_order_id, order_no, outcome, reason, mobile, email,
			package_code, quantity, rate, payload, created_at`

func (r *PostgresSubmissionRepository) Get(ctx context.Context, refOrderID string) (Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM order_submissions WHERE ref_order_id = $1`
	s, err := scanSubmission(r.pool.QueryRow(ctx, query, refOrderID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Submission{}, ErrSubmissionNotFound
		}
		return Submission{}, fmt.Errorf("orders: get submission: %w", err)
	}
	return s, nil
}

// List returns the newest submissions first.
func (r *PostgresSubmissionRepository) List(ctx context.Context, filter SubmissionFilter) ([]Submission, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	var (
		rows pgx.Rows
		err  error
	)
	if filter.Outcome != "" {
		rows, err = r.pool.Query(ctx, `SELECT `+submissionColumns+` FROM order_submissions
			WHERE outcome = $1 ORDER BY created_at DESC LIMIT $2`, string(filter.Outcome), limit)
	} else {
		rows, err = r.pool.Query(ctx, `SELECT `+submissionColumns+` FROM order_submissions
			ORDER BY created_at DESC LIMIT $1`, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("orders: list submissions: %w", err)
	}
	defer rows.Close()

	var out []Submission
	for rows.Next() {
		s, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("orders: scan submission: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func scanSubmission(row pgx.Row) (Submission, error) {
	var (
		s       Submission
		outcome string
		payload []byte
	)
	if err := row.Scan(&s.ID, &s.RefOrderID, &s.OrderNo, &outcome, &s.Reason, &s.Mobile, &s.Email,
		&s.PackageCode, &s.Quantity, &s.Rate, &payload, &s.CreatedAt); err != nil {
		return Submission{}, err
	}
	s.Outcome = Outcome(outcome)
	if len(payload) > 0 {
		s.Payload = json.RawMessage(payload)
	}
	return s, nil
}
