// Package relaypicker implements greedy weighted set cover over target
// pubkeys and their known outbox relays.
package relaypicker

import (
	"math/rand"
	"sort"
	"time"

	"github.com/pinpox/nitrousd/internal/relay"
)

// ScoreInputs is everything the scoring function needs for one
// (author, relay) pair.
type ScoreInputs struct {
	RelayRank      int
	SuccessRate    float64
	SuccessCount   int
	FailureCount   int
	InAuthorRelayList bool
	Excluded       bool
}

// Threshold scores at or below this are discarded as unusable.
const Threshold = 0.05

// Score computes a (author, relay) score from the relay's rank, recent
// success rate, advertised-relay-list membership, and a small jitter. The
// exact weights are this package's own policy choice (see DESIGN.md).
func Score(in ScoreInputs, rnd *rand.Rand) float64 {
	if in.Excluded || in.RelayRank == 0 {
		return 0
	}
	base := float64(in.RelayRank) / 9.0
	base *= 0.3 + 0.7*in.SuccessRate
	if in.InAuthorRelayList {
		base *= 1.5
	}
	jitter := 1.0
	if rnd != nil {
		jitter = 0.95 + 0.10*rnd.Float64()
	}
	return base * jitter
}

// Assignment is one relay's share of the pick: the pubkeys it will cover.
type Assignment struct {
	RelayURL string
	Pubkeys  []string
}

// Candidate is one (relay) with its per-pubkey score map, as seen by the
// picker for this round.
type Candidate struct {
	RelayURL string
	Scores   map[string]float64 // pubkey -> score, only entries above Threshold
}

// Picker runs the greedy set-cover algorithm.
type Picker struct {
	NumRelaysPerPubkey int // N: minimum cover count
	MaxPerRelay        int // cap on pubkeys assigned to one relay per round
	rnd                *rand.Rand

	// assignments tracks relay -> pubkeys currently assigned, so repeated
	// Pick calls can garbage-collect stale coverage.
	assignments map[string]map[string]bool
}

// New creates a Picker. numPerPubkey and maxPerRelay are the configured N
// and per-relay pubkey cap.
func New(numPerPubkey, maxPerRelay int) *Picker {
	return &Picker{
		NumRelaysPerPubkey: numPerPubkey,
		MaxPerRelay:        maxPerRelay,
		rnd:                rand.New(rand.NewSource(time.Now().UnixNano())),
		assignments:        make(map[string]map[string]bool),
	}
}

// GC drops assignments whose pubkeys are no longer in `needed`, returning
// the relays that became fully idle (step 1 of the algorithm).
func (p *Picker) GC(needed map[string]bool) (idled []string) {
	for relayURL, pubkeys := range p.assignments {
		for pk := range pubkeys {
			if !needed[pk] {
				delete(pubkeys, pk)
			}
		}
		if len(pubkeys) == 0 {
			delete(p.assignments, relayURL)
			idled = append(idled, relayURL)
		}
	}
	return idled
}

// Pick runs one greedy round: given the full candidate pool and the set of
// pubkeys still needing coverage, emit relay assignments until every
// pubkey reaches NumRelaysPerPubkey coverage or no usable relay remains.
func (p *Picker) Pick(candidates []Candidate, pubkeys []string) []Assignment {
	covered := make(map[string]int, len(pubkeys))
	for _, pk := range pubkeys {
		covered[pk] = p.currentCoverage(pk)
	}

	remaining := append([]Candidate(nil), candidates...)
	var out []Assignment

	for {
		needsCover := false
		for _, pk := range pubkeys {
			if covered[pk] < p.NumRelaysPerPubkey {
				needsCover = true
				break
			}
		}
		if !needsCover || len(remaining) == 0 {
			break
		}

		bestIdx := -1
		bestUtility := 0.0
		for i, c := range remaining {
			utility := 0.0
			for pk, score := range c.Scores {
				if covered[pk] < p.NumRelaysPerPubkey {
					utility += score
				}
			}
			if utility > bestUtility {
				bestUtility = utility
				bestIdx = i
			}
		}
		if bestIdx < 0 || bestUtility <= 0 {
			break
		}

		best := remaining[bestIdx]
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)

		type scored struct {
			pk    string
			score float64
		}
		var ranked []scored
		for pk, score := range best.Scores {
			if covered[pk] < p.NumRelaysPerPubkey && score > Threshold {
				ranked = append(ranked, scored{pk, score})
			}
		}
		sort.Slice(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })
		if p.MaxPerRelay > 0 && len(ranked) > p.MaxPerRelay {
			ranked = ranked[:p.MaxPerRelay]
		}
		if len(ranked) == 0 {
			continue
		}

		assigned := make([]string, 0, len(ranked))
		for _, r := range ranked {
			assigned = append(assigned, r.pk)
			covered[r.pk]++
		}
		out = append(out, Assignment{RelayURL: best.RelayURL, Pubkeys: assigned})

		if p.assignments[best.RelayURL] == nil {
			p.assignments[best.RelayURL] = make(map[string]bool)
		}
		for _, pk := range assigned {
			p.assignments[best.RelayURL][pk] = true
		}
	}

	return out
}

func (p *Picker) currentCoverage(pubkey string) int {
	n := 0
	for _, pubkeys := range p.assignments {
		if pubkeys[pubkey] {
			n++
		}
	}
	return n
}

// RelayDisconnected removes relayURL from every assignment, the feedback
// path the Overlord calls after a minion exit so the next Pick call
// re-covers any pubkeys that lost their only relay.
func (p *Picker) RelayDisconnected(relayURL string) {
	delete(p.assignments, relayURL)
}

// BuildCandidate turns a relay record plus each author's scoring inputs
// into a Candidate, applying Score and the Threshold cutoff.
func BuildCandidate(r *relay.Relay, now time.Time, perAuthor map[string]ScoreInputs, rnd *rand.Rand) Candidate {
	c := Candidate{RelayURL: r.URL, Scores: make(map[string]float64)}
	for pk, in := range perAuthor {
		in.Excluded = in.Excluded || r.Excluded(now) || r.Rank == 0
		in.RelayRank = r.Rank
		score := Score(in, rnd)
		if score > Threshold {
			c.Scores[pk] = score
		}
	}
	return c
}
