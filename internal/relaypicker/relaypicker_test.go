package relaypicker

import (
	"math/rand"
	"testing"
)

func TestScoreExcludedOrZeroRankIsZero(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))
	if s := Score(ScoreInputs{RelayRank: 5, Excluded: true}, rnd); s != 0 {
		t.Errorf("excluded relay scored %v, want 0", s)
	}
	if s := Score(ScoreInputs{RelayRank: 0}, rnd); s != 0 {
		t.Errorf("zero-rank relay scored %v, want 0", s)
	}
}

func TestScoreRewardsRankAndRelayListMembership(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))
	low := Score(ScoreInputs{RelayRank: 1, SuccessRate: 1}, rnd)
	high := Score(ScoreInputs{RelayRank: 9, SuccessRate: 1}, rnd)
	if high <= low {
		t.Errorf("higher rank should score higher: low=%v high=%v", low, high)
	}
	plain := Score(ScoreInputs{RelayRank: 5, SuccessRate: 1}, rnd)
	listed := Score(ScoreInputs{RelayRank: 5, SuccessRate: 1, InAuthorRelayList: true}, rnd)
	if listed <= plain {
		t.Errorf("relay-list membership should boost score: plain=%v listed=%v", plain, listed)
	}
}

func TestPickCoversEveryPubkeyUpToN(t *testing.T) {
	p := New(2, 0)
	candidates := []Candidate{
		{RelayURL: "wss://a", Scores: map[string]float64{"alice": 0.9, "bob": 0.8}},
		{RelayURL: "wss://b", Scores: map[string]float64{"alice": 0.7, "bob": 0.6}},
		{RelayURL: "wss://c", Scores: map[string]float64{"alice": 0.5}},
	}
	assignments := p.Pick(candidates, []string{"alice", "bob"})

	coverage := map[string]int{}
	for _, a := range assignments {
		for _, pk := range a.Pubkeys {
			coverage[pk]++
		}
	}
	if coverage["alice"] != 2 {
		t.Errorf("alice covered %d times, want 2", coverage["alice"])
	}
	if coverage["bob"] != 2 {
		t.Errorf("bob covered %d times, want 2", coverage["bob"])
	}
}

func TestPickRespectsMaxPerRelay(t *testing.T) {
	p := New(1, 1)
	candidates := []Candidate{
		{RelayURL: "wss://a", Scores: map[string]float64{"alice": 0.9, "bob": 0.8, "carol": 0.7}},
	}
	assignments := p.Pick(candidates, []string{"alice", "bob", "carol"})
	if len(assignments) != 1 {
		t.Fatalf("expected 1 assignment, got %d", len(assignments))
	}
	if len(assignments[0].Pubkeys) != 1 {
		t.Errorf("expected MaxPerRelay=1 to cap assignment, got %d pubkeys", len(assignments[0].Pubkeys))
	}
}

func TestPickStopsWhenNoUsableRelayRemains(t *testing.T) {
	p := New(3, 0)
	candidates := []Candidate{
		{RelayURL: "wss://a", Scores: map[string]float64{"alice": 0.9}},
	}
	assignments := p.Pick(candidates, []string{"alice"})
	total := 0
	for _, a := range assignments {
		total += len(a.Pubkeys)
	}
	if total != 1 {
		t.Errorf("expected exactly one assignment of alice despite wanting 3x coverage, got %d", total)
	}
}

func TestGCDropsIdleRelays(t *testing.T) {
	p := New(1, 0)
	p.Pick([]Candidate{{RelayURL: "wss://a", Scores: map[string]float64{"alice": 0.9}}}, []string{"alice"})
	idled := p.GC(map[string]bool{})
	if len(idled) != 1 || idled[0] != "wss://a" {
		t.Errorf("expected wss://a to idle out, got %v", idled)
	}
}

func TestRelayDisconnectedClearsAssignment(t *testing.T) {
	p := New(1, 0)
	p.Pick([]Candidate{{RelayURL: "wss://a", Scores: map[string]float64{"alice": 0.9}}}, []string{"alice"})
	p.RelayDisconnected("wss://a")
	assignments := p.Pick([]Candidate{{RelayURL: "wss://a", Scores: map[string]float64{"alice": 0.9}}}, []string{"alice"})
	if len(assignments) != 1 || len(assignments[0].Pubkeys) != 1 {
		t.Errorf("expected alice to need re-covering after disconnect, got %v", assignments)
	}
}
