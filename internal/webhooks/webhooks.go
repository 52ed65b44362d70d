// Package webhooks is the dedup ledger for external payment events. The
// unique constraint on stripe_event_id is the concurrency gate: whichever
// delivery inserts the row first applies the effects, every other delivery
// observes ErrDuplicateEvent.
package webhooks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	StatusSuccess = "success"
	StatusFailure = "failure"
	// StatusRejected marks deliveries whose effects were deliberately not
	// applied, such as completions arriving after session expiry.
	StatusRejected = "rejected"
)

// ErrDuplicateEvent reports an event id that has already been recorded.
var ErrDuplicateEvent = errors.New("webhook event already processed")

// Event is one recorded delivery.
type Event struct {
	ID            int64     `json:"id"`
	StripeEventID string    `json:"stripe_event_id"`
	EventType     string    `json:"event_type"`
	Status        string    `json:"status"`
	ProcessedAt   time.Time `json:"processed_at"`
}

type Conf struct {
	db *sql.DB
}

func NewConf(db *sql.DB) (*Conf, error) {
	if db == nil {
		return nil, fmt.Errorf("db is nil")
	}
	return &Conf{db: db}, nil
}

// InsertTx records the event inside the caller's transaction so the dedup row
// commits or rolls back together with the event's effects. A unique-violation
// conflict maps to ErrDuplicateEvent.
func InsertTx(ctx context.Context, tx *sql.Tx, stripeEventID, eventType, status string) error {
	const queryInsert = `
		INSERT INTO webhook_events (stripe_event_id, event_type, status, processed_at)
		VALUES ($1, $2, $3, NOW())
	`
	if _, err := tx.ExecContext(ctx, queryInsert, stripeEventID, eventType, status); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateEvent
		}
		return fmt.Errorf("inserting webhook event %s: %w", stripeEventID, err)
	}
	return nil
}

// Insert records the event in its own transaction. Used for failure rows,
// which carry no effects to bundle with.
func (w *Conf) Insert(ctx context.Context, stripeEventID, eventType, status string) error {
	const queryInsert = `
		INSERT INTO webhook_events (stripe_event_id, event_type, status, processed_at)
		VALUES ($1, $2, $3, NOW())
	`
	if _, err := w.db.ExecContext(ctx, queryInsert, stripeEventID, eventType, status); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateEvent
		}
		return fmt.Errorf("inserting webhook event %s: %w", stripeEventID, err)
	}
	return nil
}

// SetStatusTx rewrites the status of the event's row inside the caller's
// transaction, for outcomes only known after the dedup insert.
func SetStatusTx(ctx context.Context, tx *sql.Tx, stripeEventID, status string) error {
	if stripeEventID == "" {
		return fmt.Errorf("event id is required")
	}

	const queryUpdate = `UPDATE webhook_events SET status = $2 WHERE stripe_event_id = $1`
	if _, err := tx.ExecContext(ctx, queryUpdate, stripeEventID, status); err != nil {
		return fmt.Errorf("updating webhook event %s: %w", stripeEventID, err)
	}
	return nil
}

// Seen reports whether the event id has already been recorded. Used as a
// cheap pre-check; the insert conflict remains the authoritative gate.
func (w *Conf) Seen(ctx context.Context, stripeEventID string) (bool, error) {
	const querySeen = `SELECT EXISTS (SELECT 1 FROM webhook_events WHERE stripe_event_id = $1)`
	var seen bool
	if err := w.db.QueryRowContext(ctx, querySeen, stripeEventID).Scan(&seen); err != nil {
		return false, fmt.Errorf("checking webhook event %s: %w", stripeEventID, err)
	}
	return seen, nil
}

// isUniqueViolation reports whether err is the postgres unique-constraint
// error (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
