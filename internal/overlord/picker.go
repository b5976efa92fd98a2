package overlord

import (
	"context"
	"time"

	"github.com/pinpox/nitrousd/internal/comms"
	"github.com/pinpox/nitrousd/internal/relay"
	"github.com/pinpox/nitrousd/internal/relaypicker"
)

// drivePicker keeps connected_relays covering every target author up to
// max_relays times while Online: it feeds the followed set into the
// RelayPicker, engages minions for every fresh assignment, and subscribes
// them to that author's general feed.
func (o *Overlord) drivePicker(ctx context.Context) {
	pubkeys := o.followedPubkeys()
	if len(pubkeys) == 0 {
		return
	}

	o.picker.GC(toSet(pubkeys))

	relays, err := o.store.AllRelays()
	if err != nil {
		return
	}
	now := time.Now()

	candidates := make([]relaypicker.Candidate, 0, len(relays))
	for _, r := range relays {
		perAuthor := make(map[string]relaypicker.ScoreInputs, len(pubkeys))
		for _, pk := range pubkeys {
			in := relaypicker.ScoreInputs{
				SuccessRate:  r.SuccessRate(),
				SuccessCount: r.SuccessCount,
				FailureCount: r.FailureCount,
			}
			if edge, err := o.store.GetPersonRelay(pk, r.URL); err == nil && edge != nil {
				in.InAuthorRelayList = edge.Write
			}
			perAuthor[pk] = in
		}
		candidates = append(candidates, relaypicker.BuildCandidate(r, now, perAuthor, o.rnd))
	}

	assignments := o.picker.Pick(candidates, pubkeys)
	if o.cfg.MaxRelays > 0 && len(assignments) > o.cfg.MaxRelays {
		assignments = assignments[:o.cfg.MaxRelays]
	}

	for _, a := range assignments {
		if _, already := o.connected.Load(relay.CanonicalizeURL(a.RelayURL)); already {
			continue
		}
		fs := &comms.FilterSet{Kind: comms.FSGeneralFeedFuture, Pubkeys: a.Pubkeys, Anchor: 0}
		job := comms.RelayJob{ID: o.nextID(), Reason: comms.ReasonFollow, FilterSet: fs, RelayURL: a.RelayURL}
		_ = o.engageMinion(ctx, a.RelayURL, job)
	}
}

func toSet(ss []string) map[string]bool {
	out := make(map[string]bool, len(ss))
	for _, s := range ss {
		out[s] = true
	}
	return out
}
