package orders

import "testing"

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from Status
		to   Status
		want bool
	}{
		{StatusPending, StatusCompleted, true},
		{StatusPending, StatusFailed, true},
		{StatusPending, StatusPending, false},
		{StatusCompleted, StatusPending, false},
		{StatusCompleted, StatusFailed, false},
		{StatusCompleted, StatusCompleted, false},
		{StatusFailed, StatusPending, false},
		{StatusFailed, StatusCompleted, false},
		{Status("bogus"), StatusCompleted, false},
	}

	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Fatalf("CanTransition(%q, %q) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestValidStatus(t *testing.T) {
	for _, s := range []Status{StatusPending, StatusCompleted, StatusFailed} {
		if !ValidStatus(s) {
			t.Fatalf("expected status %q to be valid", s)
		}
	}
	for _, s := range []Status{"", "paid", "PENDING"} {
		if ValidStatus(s) {
			t.Fatalf("expected status %q to be invalid", s)
		}
	}
}
