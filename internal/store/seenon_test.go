package store

import (
	"testing"
	"time"
)

func TestSeenOnRecordsSighting(t *testing.T) {
	st := openTestStore(t)
	at := time.Unix(1_700_000_000, 0)
	if err := st.SeenOn("event1", "wss://relay.a", at); err != nil {
		t.Fatal(err)
	}
	pairs, err := st.GetSeenOn("event1")
	if err != nil {
		t.Fatal(err)
	}
	if len(pairs) != 1 || pairs[0].RelayURL != "wss://relay.a" {
		t.Fatalf("GetSeenOn = %v, want a single wss://relay.a sighting", pairs)
	}
	if !pairs[0].At.Equal(at) {
		t.Errorf("At = %v, want %v", pairs[0].At, at)
	}
}

func TestSeenOnDoesNotOverwriteEarlierSighting(t *testing.T) {
	st := openTestStore(t)
	first := time.Unix(1_700_000_000, 0)
	later := time.Unix(1_700_001_000, 0)

	if err := st.SeenOn("event1", "wss://relay.a", first); err != nil {
		t.Fatal(err)
	}
	if err := st.SeenOn("event1", "wss://relay.a", later); err != nil {
		t.Fatal(err)
	}
	pairs, err := st.GetSeenOn("event1")
	if err != nil {
		t.Fatal(err)
	}
	if len(pairs) != 1 || !pairs[0].At.Equal(first) {
		t.Errorf("expected the first sighting preserved, got %v", pairs)
	}
}

func TestSeenOnTracksMultipleRelays(t *testing.T) {
	st := openTestStore(t)
	now := time.Unix(1_700_000_000, 0)
	if err := st.SeenOn("event1", "wss://a.example", now); err != nil {
		t.Fatal(err)
	}
	if err := st.SeenOn("event1", "wss://b.example", now); err != nil {
		t.Fatal(err)
	}
	pairs, err := st.GetSeenOn("event1")
	if err != nil {
		t.Fatal(err)
	}
	if len(pairs) != 2 {
		t.Errorf("GetSeenOn returned %d relays, want 2", len(pairs))
	}
}

func TestGetSeenOnUnknownEventIsEmpty(t *testing.T) {
	st := openTestStore(t)
	pairs, err := st.GetSeenOn("nope")
	if err != nil {
		t.Fatal(err)
	}
	if len(pairs) != 0 {
		t.Errorf("expected no sightings for an unknown event, got %v", pairs)
	}
}
