package moderation

import (
	"testing"
	"time"
)

func TestParseDuration(t *testing.T) {
	cases := []struct {
		in   string
		want time.Duration
		ok   bool
	}{
		{"30s", 30 * time.Second, true},
		{"5m", 5 * time.Minute, true},
		{"2h", 2 * time.Hour, true},
		{"1d", 24 * time.Hour, true},
		{"15", 15 * time.Minute, true},
		{" 10M ", 10 * time.Minute, true},
		{"", 0, false},
		{"0m", 0, false},
		{"-5m", 0, false},
		{"soon", 0, false},
		{"h", 0, false},
	}
	for _, tc := range cases {
		got, ok := ParseDuration(tc.in)
		if ok != tc.ok || got != tc.want {
			t.Errorf("ParseDuration(%q) = %v, %v; want %v, %v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestMuteSuffix(t *testing.T) {
	cases := []struct {
		d    time.Duration
		want string
	}{
		{0, " indefinitely"},
		{45 * time.Second, " for 45 seconds"},
		{5 * time.Minute, " for 5 minutes"},
		{2 * time.Hour, " for 120 minutes"},
	}
	for _, tc := range cases {
		if got := muteSuffix(tc.d); got != tc.want {
			t.Errorf("muteSuffix(%v) = %q, want %q", tc.d, got, tc.want)
		}
	}
}
