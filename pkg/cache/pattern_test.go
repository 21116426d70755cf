package cache

import (
	"sort"
	"testing"
	"time"
)

func TestKeysByPattern(t *testing.T) {
	s := newTestStore(10, 0)
	defer s.Shutdown()

	s.Put("order-1", 1)
	s.Put("order-2", 2)
	s.Put("invoice-1", 3)

	tests := []struct {
		name    string
		pattern string
		want    []string
	}{
		{"prefix glob", "order-*", []string{"order-1", "order-2"}},
		{"single char", "order-?", []string{"order-1", "order-2"}},
		{"exact", "invoice-1", []string{"invoice-1"}},
		{"all", "*", []string{"invoice-1", "order-1", "order-2"}},
		{"no match", "payment-*", []string{}},
		{"empty pattern", "", []string{}},
		{"regex metachars literal", "order.1", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.KeysByPattern(tt.pattern)
			sort.Strings(got)
			if len(got) != len(tt.want) {
				t.Fatalf("KeysByPattern(%q) = %v, want %v", tt.pattern, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("KeysByPattern(%q) = %v, want %v", tt.pattern, got, tt.want)
					break
				}
			}
		})
	}
}

func TestKeysByPattern_SkipsExpired(t *testing.T) {
	s := newTestStore(10, 0)
	defer s.Shutdown()

	s.Put("live", 1)
	s.PutTTL("dead", 2, 10*time.Millisecond)
	time.Sleep(30 * time.Millisecond)

	got := s.KeysByPattern("*")
	if len(got) != 1 || got[0] != "live" {
		t.Errorf("KeysByPattern(*) = %v, want [live]", got)
	}
}

func TestMatch(t *testing.T) {
	tests := []struct {
		pattern string
		key     string
		want    bool
	}{
		{"orders.*", "orders.created", true},
		{"orders.*", "payments.created", false},
		{"order-?", "order-1", true},
		{"order-?", "order-12", false},
		{"*", "anything", true},
		{"", "anything", false},
		{"exact", "exact", true},
	}

	for _, tt := range tests {
		if got := Match(tt.pattern, tt.key); got != tt.want {
			t.Errorf("Match(%q, %q) = %v, want %v", tt.pattern, tt.key, got, tt.want)
		}
	}
}
