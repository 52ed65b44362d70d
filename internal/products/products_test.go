package products

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSortClause(t *testing.T) {
	tests := []struct {
		name      string
		sort      string
		order     string
		wantCol   string
		wantOrder string
	}{
		{name: "default", sort: "", order: "", wantCol: "name", wantOrder: "ASC"},
		{name: "price descending", sort: "price_cents", order: "desc", wantCol: "price_cents", wantOrder: "DESC"},
		{name: "order case insensitive", sort: "points_price", order: "DESC", wantCol: "points_price", wantOrder: "DESC"},
		{name: "created_at ascending", sort: "created_at", order: "asc", wantCol: "created_at", wantOrder: "ASC"},
		{name: "unknown column falls back", sort: "points; DROP TABLE products", order: "desc", wantCol: "name", wantOrder: "DESC"},
		{name: "unknown order falls back", sort: "name", order: "sideways", wantCol: "name", wantOrder: "ASC"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			col, order := SortClause(tt.sort, tt.order)
			assert.Equal(t, tt.wantCol, col)
			assert.Equal(t, tt.wantOrder, order)
		})
	}
}
