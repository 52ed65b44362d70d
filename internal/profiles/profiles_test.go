package profiles

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Identity validation happens before the transaction opens; the untouched
// handle would panic if Bootstrap reached it with an empty id.
func TestBootstrapRequiresUserID(t *testing.T) {
	p := &Conf{db: &sql.DB{}}

	created, err := p.Bootstrap(context.Background(), "", "user@example.com", 100)
	require.Error(t, err)
	assert.False(t, created)
}

func TestNewConfRequiresDB(t *testing.T) {
	_, err := NewConf(nil)
	require.Error(t, err)
}
