package overlord

import (
	"context"
	"time"

	"github.com/nbd-wtf/go-nostr"

	"github.com/pinpox/nitrousd/internal/comms"
	"github.com/pinpox/nitrousd/internal/relay"
)

// post runs an outgoing event through the same pipeline an inbound relay
// event would go through — storage, invalidation, tag scan, seeker hook,
// and relationship extraction — before parking its id in delayedPosts and
// arming a timer that releases it for relay dispatch after
// undo_send_seconds unless PostCancel removes it first. Routing through
// o.pipe rather than writing to the store directly is what makes a
// self-authored reply's RepliesTo edge (and every other derived
// relationship) available immediately, without waiting for a relay to
// echo the event back. The timer reports back on releaseCh rather than
// mutating delayedPosts itself, keeping every mutation of overlord state
// on the single Run goroutine.
func (o *Overlord) post(ctx context.Context, e *nostr.Event) error {
	if err := o.pipe.ProcessNewEvent(e, "", "", false, true); err != nil {
		return err
	}
	o.delayedPosts[e.ID] = e

	window := o.cfg.UndoSendWindow()
	if window <= 0 {
		delete(o.delayedPosts, e.ID)
		o.dispatchPost(ctx, e)
		return nil
	}
	id := e.ID
	time.AfterFunc(window, func() {
		select {
		case o.releaseCh <- id:
		default:
		}
	})
	return nil
}

// releasePost is called on the Run goroutine when releaseCh fires: if the
// post wasn't cancelled meanwhile, dispatch it to output relays.
func (o *Overlord) releasePost(ctx context.Context, id string) {
	e, ok := o.delayedPosts[id]
	if !ok {
		return
	}
	delete(o.delayedPosts, id)
	o.dispatchPost(ctx, e)
}

// dispatchPost chooses output relays (the author's own write/outbox
// relays, falling back to the configured relay list) and issues
// PostEvents jobs.
func (o *Overlord) dispatchPost(ctx context.Context, e *nostr.Event) {
	o.postToRelays(ctx, e, o.outputRelaysFor(e.PubKey))
}

// postToRelays issues a PostEvent job for e against an explicit relay set,
// bypassing outputRelaysFor's own-write-relays lookup. Gift-wrapped DMs need
// this: a wrap's on-the-wire author is an ephemeral ratchet key, not the
// sender's own pubkey, so the usual author-based relay resolution doesn't
// apply and the caller must say where each copy goes.
func (o *Overlord) postToRelays(ctx context.Context, e *nostr.Event, urls []string) {
	job := comms.RelayJob{ID: o.nextID(), Reason: comms.ReasonPostEvent, Event: e}
	for _, url := range urls {
		if err := o.engageMinion(ctx, url, job); err == nil {
			if h, ok := o.connected.Load(relay.CanonicalizeURL(url)); ok {
				o.sendToMinion(h, comms.ToMinionMessage{Target: h.url, Kind: comms.MinionPostEvent, JobID: job.ID, Job: &job, Event: e})
			}
		}
	}
}

func (o *Overlord) outputRelaysFor(pubkey string) []string {
	rs, err := o.store.FilterRelays(func(r *relay.Relay) bool {
		return r.Usage.Has(relay.Write) && r.Usable(time.Now())
	})
	if err != nil || len(rs) == 0 {
		return o.cfg.Relays
	}
	urls := make([]string, 0, len(rs))
	for _, r := range rs {
		urls = append(urls, r.URL)
	}
	return urls
}

// postCancel implements PostCancel: drop every delayed post and remove it
// from the store (it was written optimistically by post()).
func (o *Overlord) postCancel() {
	for id := range o.delayedPosts {
		_ = o.store.DeleteEvent(id)
		delete(o.delayedPosts, id)
	}
}
