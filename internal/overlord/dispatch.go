package overlord

import (
	"context"
	"time"

	"github.com/pinpox/nitrousd/internal/comms"
	"github.com/pinpox/nitrousd/internal/relay"
)

// DispatchFetchEvent implements both pipeline.Dispatcher and
// seeker.Dispatcher: ask the minion of each hinted relay (spawning one where
// none is connected) to fetch id.
func (o *Overlord) DispatchFetchEvent(id string, hints []string) {
	if o.seek.InFlight(id) {
		return
	}
	o.seek.Seek(id, "", hints)
	job := comms.RelayJob{ID: o.nextID(), Reason: comms.ReasonFetchEvent}
	ctx := context.Background()
	for _, url := range hints {
		if err := o.engageMinion(ctx, url, job); err == nil {
			if h, ok := o.connected.Load(relay.CanonicalizeURL(url)); ok {
				o.sendToMinion(h, comms.ToMinionMessage{Target: h.url, Kind: comms.MinionFetchEvent, JobID: job.ID, EventID: id, EventHints: hints})
			}
		}
	}
}

// DispatchFetchNAddr implements pipeline.Dispatcher for naddr lookups.
func (o *Overlord) DispatchFetchNAddr(addr string) {
	job := comms.RelayJob{ID: o.nextID(), Reason: comms.ReasonFetchEvent}
	ctx := context.Background()
	o.connected.Range(func(url string, _ *minionHandle) bool {
		_ = o.engageMinion(ctx, url, job)
		return true
	})
}

// DispatchDiscover implements seeker.Dispatcher: subscribe to author's
// relay-list advertisement on every relay usable for discovery.
func (o *Overlord) DispatchDiscover(author string) {
	rs, err := o.store.FilterRelays(func(r *relay.Relay) bool {
		return r.Usage.Has(relay.Discover) && r.Usable(time.Now())
	})
	if err != nil {
		return
	}
	fs := &comms.FilterSet{Kind: comms.FSDiscover, Pubkeys: []string{author}}
	job := comms.RelayJob{ID: o.nextID(), Reason: comms.ReasonDiscovery, FilterSet: fs}
	ctx := context.Background()
	for _, r := range rs {
		_ = o.engageMinion(ctx, r.URL, job)
	}
}
