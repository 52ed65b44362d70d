package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Amount validation happens before the transaction is touched; a nil tx would
// panic if either function reached the database with a bad amount.
func TestDebitTxRejectsNonPositiveAmounts(t *testing.T) {
	for _, amount := range []int{0, -1, -500} {
		_, err := DebitTx(context.Background(), nil, "user-1", amount, "bad debit", nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "must be positive")
	}
}

func TestCreditTxRejectsNonPositiveAmounts(t *testing.T) {
	for _, amount := range []int{0, -1, -500} {
		_, err := CreditTx(context.Background(), nil, "user-1", amount, "bad credit", nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "must be positive")
	}
}

func TestNewConfRequiresDB(t *testing.T) {
	_, err := NewConf(nil)
	require.Error(t, err)
}
