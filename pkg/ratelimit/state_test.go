package ratelimit

import (
	"testing"
	"time"
)

func TestCreditState_IsLow(t *testing.T) {
	tests := []struct {
		name      string
		remaining int
		want      bool
	}{
		{"healthy", 200, false},
		{"at threshold", RemainingWarningThreshold, false},
		{"below threshold", RemainingWarningThreshold - 1, true},
		{"exhausted", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &CreditState{Remaining: tt.remaining}
			if got := s.IsLow(); got != tt.want {
				t.Errorf("IsLow() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCreditState_IsStale(t *testing.T) {
	fresh := &CreditState{LastUpdate: time.Now().Add(-10 * time.Second)}
	if fresh.IsStale(time.Minute) {
		t.Error("recent observation reported stale")
	}

	old := &CreditState{LastUpdate: time.Now().Add(-2 * time.Minute)}
	if !old.IsStale(time.Minute) {
		t.Error("old observation reported fresh")
	}
}
