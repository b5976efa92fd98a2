package overlord

import (
	"math/rand"
	"testing"
	"time"
)

func TestBaseExclusionTable(t *testing.T) {
	cases := []struct {
		label string
		want  time.Duration
	}{
		{"shutdown", 0},
		{"completed", 0},
		{"completed_with_failures", 120 * time.Second},
		{"ws_close", 120 * time.Second},
		{"disconnected", 120 * time.Second},
		{"rejected", 10 * time.Minute},
		{"timeout", 60 * time.Second},
		{"http_server_error", 10 * time.Minute},
		{"http_client_error", 120 * time.Second},
		{"http_redirect", 120 * time.Second},
		{"lost_overlord", 15 * time.Second},
		{"some_unknown_label", 120 * time.Second},
	}
	for _, c := range cases {
		if got := baseExclusion(c.label); got != c.want {
			t.Errorf("baseExclusion(%q) = %v, want %v", c.label, got, c.want)
		}
	}
}

func TestBenign(t *testing.T) {
	if !benign("shutdown") || !benign("completed") {
		t.Error("shutdown and completed should be benign")
	}
	if benign("timeout") || benign("rejected") {
		t.Error("timeout and rejected should not be benign")
	}
}

func TestRandomizeExclusionStaysInHalfOpenRange(t *testing.T) {
	rnd := rand.New(rand.NewSource(42))
	e := 100 * time.Second
	for i := 0; i < 50; i++ {
		got := randomizeExclusion(rnd, e)
		if got < e/2 || got >= e {
			t.Fatalf("randomizeExclusion = %v, want in [%v, %v)", got, e/2, e)
		}
	}
}

func TestRandomizeExclusionZero(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))
	if got := randomizeExclusion(rnd, 0); got != 0 {
		t.Errorf("randomizeExclusion(0) = %v, want 0", got)
	}
}
