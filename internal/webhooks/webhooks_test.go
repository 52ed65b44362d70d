package webhooks

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestIsUniqueViolation(t *testing.T) {
	unique := &pgconn.PgError{Code: "23505", ConstraintName: "webhook_events_stripe_event_id_key"}

	assert.True(t, isUniqueViolation(unique))
	// Drivers wrap before we see the error.
	assert.True(t, isUniqueViolation(fmt.Errorf("inserting webhook event: %w", unique)))

	assert.False(t, isUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, isUniqueViolation(errors.New("connection refused")))
	assert.False(t, isUniqueViolation(nil))
}

// The event-id guard fires before the transaction is touched; a nil tx would
// panic otherwise.
func TestSetStatusTxRequiresEventID(t *testing.T) {
	err := SetStatusTx(context.Background(), nil, "", StatusRejected)
	assert.Error(t, err)
}
