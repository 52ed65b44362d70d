package cache

import (
	"strings"
	"testing"

	"storefront-service/internal/products"

	"github.com/stretchr/testify/assert"
)

func TestListKeyCoversFullFilterShape(t *testing.T) {
	base := products.ListFilter{Name: "sunset", Category: "images", Limit: 20, Offset: 0, Sort: "name", Order: "asc"}

	key := ListKey(base)
	assert.True(t, strings.HasPrefix(key, keyPrefix))

	// Changing any single field must change the key, otherwise two different
	// listings would serve each other's results.
	variants := []products.ListFilter{
		{Name: "neon", Category: "images", Limit: 20, Offset: 0, Sort: "name", Order: "asc"},
		{Name: "sunset", Category: "video", Limit: 20, Offset: 0, Sort: "name", Order: "asc"},
		{Name: "sunset", Category: "images", Limit: 50, Offset: 0, Sort: "name", Order: "asc"},
		{Name: "sunset", Category: "images", Limit: 20, Offset: 20, Sort: "name", Order: "asc"},
		{Name: "sunset", Category: "images", Limit: 20, Offset: 0, Sort: "price_cents", Order: "asc"},
		{Name: "sunset", Category: "images", Limit: 20, Offset: 0, Sort: "name", Order: "desc"},
	}
	for _, f := range variants {
		assert.NotEqual(t, key, ListKey(f))
	}

	assert.Equal(t, key, ListKey(base))
}
