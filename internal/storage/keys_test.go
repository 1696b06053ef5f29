package storage

import "testing"

func TestKeys(t *testing.T) {
	k := NewKeys("companion:")

	tests := []struct {
		got  string
		want string
	}{
		{k.RateLimitMinute("alice"), "companion:ratelimit:alice:minute"},
		{k.RateLimitHour("alice"), "companion:ratelimit:alice:hour"},
		{k.TokenLimit("alice", 1700000000), "companion:tokens:alice:1700000000"},
	}

	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("key = %s, want %s", tt.got, tt.want)
		}
	}
}
