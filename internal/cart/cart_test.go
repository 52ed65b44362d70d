package cart

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Quantity validation happens before the database; the untouched handle
// would panic if either method reached it with a bad quantity.
func TestAddItemRejectsNonPositiveQuantity(t *testing.T) {
	c := &Conf{db: &sql.DB{}}
	for _, quantity := range []int{0, -1} {
		_, err := c.AddItem(context.Background(), "user-1", "p1", quantity)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "must be positive")
	}
}

func TestSetQuantityRejectsNonPositiveQuantity(t *testing.T) {
	c := &Conf{db: &sql.DB{}}
	for _, quantity := range []int{0, -1} {
		err := c.SetQuantity(context.Background(), "user-1", "p1", quantity)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "must be positive")
	}
}
