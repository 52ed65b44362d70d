package checkout

import (
	"encoding/json"
	"testing"
)

func TestParseSessionMetadataOrder(t *testing.T) {
	md := map[string]string{
		"checkout_type": "order",
		"order_id":      "ord-1",
		"user_id":       "user-1",
		"products":      `[{"product_id":"p1","quantity":2},{"product_id":"p2","quantity":1}]`,
	}

	cs, err := ParseSessionMetadata(md)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cs.OrderID != "ord-1" || cs.UserID != "user-1" {
		t.Fatalf("unexpected session: %+v", cs)
	}
	if len(cs.Items) != 2 || cs.Items[0].Quantity != 2 {
		t.Fatalf("unexpected items: %+v", cs.Items)
	}
	ids := cs.ProductIDs()
	if len(ids) != 2 || ids[0] != "p1" || ids[1] != "p2" {
		t.Fatalf("unexpected product ids: %v", ids)
	}
}

func TestParseSessionMetadataPointsPackage(t *testing.T) {
	md := map[string]string{
		"checkout_type": "points_package",
		"user_id":       "user-1",
		"package_id":    "pkg-1",
		"points":        "500",
	}

	cs, err := ParseSessionMetadata(md)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cs.PackageID != "pkg-1" || cs.PackagePoints != 500 {
		t.Fatalf("unexpected session: %+v", cs)
	}
}

func TestParseSessionMetadataRejects(t *testing.T) {
	tests := []struct {
		name string
		md   map[string]string
	}{
		{"missing user", map[string]string{"checkout_type": "order", "order_id": "o"}},
		{"missing order id", map[string]string{"checkout_type": "order", "user_id": "u"}},
		{"unknown type", map[string]string{"checkout_type": "gift", "user_id": "u"}},
		{"missing package id", map[string]string{"checkout_type": "points_package", "user_id": "u", "points": "10"}},
		{"stringly garbage points", map[string]string{"checkout_type": "points_package", "user_id": "u", "package_id": "p", "points": "lots"}},
		{"negative points", map[string]string{"checkout_type": "points_package", "user_id": "u", "package_id": "p", "points": "-5"}},
		{"bad products json", map[string]string{"checkout_type": "order", "user_id": "u", "order_id": "o", "products": "{"}},
	}

	for _, tt := range tests {
		if _, err := ParseSessionMetadata(tt.md); err == nil {
			t.Fatalf("%s: expected error, got none", tt.name)
		}
	}
}

// Clients sometimes send price fields on checkout items; the request type
// must not even have a place to put them.
func TestRequestIgnoresClientPrices(t *testing.T) {
	body := `{
		"payment_method": "points",
		"items": [{"product_id": "p1", "quantity": 1, "price_cents": 1, "points_price": 1}]
	}`

	var req Request
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(req.Items) != 1 {
		t.Fatalf("unexpected items: %+v", req.Items)
	}

	round, err := json.Marshal(req.Items[0])
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var fields map[string]interface{}
	if err := json.Unmarshal(round, &fields); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := fields["price_cents"]; ok {
		t.Fatal("request item must not carry a client price")
	}
}
