// Package consent records the contact authorisation captured with each order.
// The form's authorisation overrides DND registration, so every grant is kept
// for later reference.
package consent

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Contact channels a customer can opt into.
const (
	ChannelWhatsApp = "whatsapp"
	ChannelCall     = "call"
	ChannelEmail    = "email"
	ChannelSMS      = "sms"
)

// Event is an immutable consent record.
type Event struct {
	ID         string    `json:"id"`
	RefOrderID string    `json:"ref_order_id"`
	Mobile     string    `json:"mobile"`
	Email      string    `json:"email,omitempty"`
	Authorized bool      `json:"authorized"`
	Channels   []string  `json:"channels"`
	Source     string    `json:"source,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Filter narrows Query. Mobile or RefOrderID is required.
type Filter struct {
	RefOrderID string
	Mobile     string
	Limit      int
}

// AuditLog writes consent events to Postgres.
type AuditLog struct {
	db *sql.DB
}

func NewAuditLog(db *sql.DB) *AuditLog {
	return &AuditLog{db: db}
}

// Record inserts ev, filling ID and CreatedAt when unset.
func (a *AuditLog) Record(ctx context.Context, ev Event) error {
	if a == nil || a.db == nil {
		return nil
	}
	if strings.TrimSpace(ev.RefOrderID) == "" {
		return errors.New("consent: ref_order_id required")
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	if ev.Channels == nil {
		ev.Channels = []string{}
	}

	query := `
		INSERT INTO consent_events (
			id, ref_order_id, mobile, email, authorized, channels, source, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := a.db.ExecContext(ctx, query,
		ev.ID,
		ev.RefOrderID,
		ev.Mobile,
		nullString(ev.Email),
		ev.Authorized,
		pq.Array(ev.Channels),
		nullString(ev.Source),
		ev.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("consent: failed to record event: %w", err)
	}
	return nil
}

// Query returns matching events, newest first.
func (a *AuditLog) Query(ctx context.Context, filter Filter) ([]Event, error) {
	if filter.RefOrderID == "" && filter.Mobile == "" {
		return nil, errors.New("consent: ref_order_id or mobile required")
	}
	query := `
		SELECT id, ref_order_id, mobile, email, authorized, channels, source, created_at
		FROM consent_events
		WHERE 1=1
	`
	var args []interface{}
	argIdx := 1
	if filter.RefOrderID != "" {
		query += fmt.Sprintf(" AND ref_order_id = $%d", argIdx)
		args = append(args, filter.RefOrderID)
		argIdx++
	}
	if filter.Mobile != "" {
		query += fmt.Sprintf(" AND mobile = $%d", argIdx)
		args = append(args, filter.Mobile)
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("consent: failed to query events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var email, source sql.NullString
		if err := rows.Scan(&e.ID, &e.RefOrderID, &e.Mobile, &email, &e.Authorized,
			pq.Array(&e.Channels), &source, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("consent: failed to scan event: %w", err)
		}
		e.Email = email.String
		e.Source = source.String
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("consent: failed to read events: %w", err)
	}
	return events, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
