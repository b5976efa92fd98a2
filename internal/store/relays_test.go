package store

import (
	"testing"

	"github.com/pinpox/nitrousd/internal/relay"
)

func TestGetRelayMissingDefaultsRankThree(t *testing.T) {
	st := openTestStore(t)
	r, err := st.GetRelay("wss://new.example")
	if err != nil {
		t.Fatal(err)
	}
	if r.Rank != 3 {
		t.Errorf("GetRelay on a miss: Rank = %d, want 3", r.Rank)
	}
}

func TestPutRelayThenGetRoundtrips(t *testing.T) {
	st := openTestStore(t)
	r := &relay.Relay{URL: "wss://a.example", Rank: 5}
	if err := st.PutRelay(r); err != nil {
		t.Fatal(err)
	}
	got, err := st.GetRelay("wss://a.example")
	if err != nil {
		t.Fatal(err)
	}
	if got.Rank != 5 {
		t.Errorf("GetRelay = %+v, want Rank=5", got)
	}
}

func TestFilterRelaysAppliesPredicate(t *testing.T) {
	st := openTestStore(t)
	if err := st.PutRelay(&relay.Relay{URL: "wss://a.example", Rank: 1}); err != nil {
		t.Fatal(err)
	}
	if err := st.PutRelay(&relay.Relay{URL: "wss://b.example", Rank: 5}); err != nil {
		t.Fatal(err)
	}

	highRank, err := st.FilterRelays(func(r *relay.Relay) bool { return r.Rank >= 5 })
	if err != nil {
		t.Fatal(err)
	}
	if len(highRank) != 1 || highRank[0].URL != "wss://b.example" {
		t.Errorf("FilterRelays(rank>=5) = %v, want just wss://b.example", highRank)
	}
}

func TestAllRelaysReturnsEverything(t *testing.T) {
	st := openTestStore(t)
	if err := st.PutRelay(&relay.Relay{URL: "wss://a.example"}); err != nil {
		t.Fatal(err)
	}
	if err := st.PutRelay(&relay.Relay{URL: "wss://b.example"}); err != nil {
		t.Fatal(err)
	}
	all, err := st.AllRelays()
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Errorf("AllRelays() returned %d, want 2", len(all))
	}
}
