// Package pipeline implements the event pipeline that verifies,
// deduplicates, stores, and derives relationships from incoming events.
package pipeline

import (
	"strings"
	"time"

	"github.com/nbd-wtf/go-nostr"

	"github.com/pinpox/nitrousd/internal/errs"
	"github.com/pinpox/nitrousd/internal/person"
	"github.com/pinpox/nitrousd/internal/relay"
	"github.com/pinpox/nitrousd/internal/store"
)

// SpamVerdict is the result of the spam filter.
type SpamVerdict int

const (
	Allow SpamVerdict = iota
	Deny
	MuteAuthor
)

// SpamFilter evaluates an incoming event, not called for global-feed
// subscriptions.
type SpamFilter func(e *nostr.Event) SpamVerdict

// Seeker is the subset of the seeker the pipeline drives (found-hook,
// seeking new references).
type Seeker interface {
	Found(e *nostr.Event)
	Seek(id, author string, hints []string)
	InFlight(id string) bool
}

// Dispatcher lets the pipeline ask the overlord to fetch referenced events
// or naddrs without importing the overlord package.
type Dispatcher interface {
	DispatchFetchEvent(id string, hints []string)
	DispatchFetchNAddr(addr string)
}

// Options configures a Pipeline.
type Options struct {
	FutureAllowance    time.Duration
	MyPubkey           string
	DeleteAuthorAllowed func(eventAuthor, deleteAuthor string) bool
	SpamFilter         SpamFilter
	GiftwrapUnwrap     func(e *nostr.Event) (*nostr.Event, bool)
	NostrConnect       func(e *nostr.Event) // kind-24133 events, undecoded
}

// Pipeline is the stateful entry point: process_new_event.
type Pipeline struct {
	store   *store.Store
	cache   *store.GlobalCache
	seeker  Seeker
	dispatch Dispatcher
	opts    Options

	invalidations chan string
}

// New builds a Pipeline.
func New(st *store.Store, cache *store.GlobalCache, seeker Seeker, dispatch Dispatcher, opts Options) *Pipeline {
	if opts.DeleteAuthorAllowed == nil {
		opts.DeleteAuthorAllowed = func(eventAuthor, deleteAuthor string) bool { return eventAuthor == deleteAuthor }
	}
	return &Pipeline{
		store: st, cache: cache, seeker: seeker, dispatch: dispatch, opts: opts,
		invalidations: make(chan string, 4096),
	}
}

// Invalidations returns the channel of event ids the UI should re-render.
func (p *Pipeline) Invalidations() <-chan string { return p.invalidations }

func (p *Pipeline) invalidate(id string) {
	select {
	case p.invalidations <- id:
	default:
	}
}

// ProcessNewEvent is the pipeline's entry point: verification, dedup,
// spam filtering, storage, and relationship extraction run in order.
func (p *Pipeline) ProcessNewEvent(e *nostr.Event, seenOn, subscription string, verify, processEvenIfDuplicate bool) error {
	// Step 1: duplicate probe.
	isGlobalFeed := strings.Contains(subscription, "global_feed")
	duplicate := false
	if isGlobalFeed && p.cache.Has(e.ID) {
		duplicate = true
	} else if has, err := p.store.HasEvent(e.ID); err != nil {
		return err
	} else if has {
		duplicate = true
	}

	// Step 2: verify.
	if !duplicate && verify {
		if ok, _ := e.CheckSignature(); !ok {
			return errs.Newf(errs.KindVerifyFailed, "bad signature for event %s", e.ID)
		}
		if int64(e.CreatedAt) > time.Now().Add(p.opts.FutureAllowance).Unix() {
			return errs.Newf(errs.KindVerifyFailed, "event %s created_at too far in the future", e.ID)
		}
	}

	// Step 3: seen-on update.
	if seenOn != "" {
		if err := p.store.SeenOn(e.ID, seenOn, time.Now()); err != nil {
			return err
		}
		edge, err := p.store.GetPersonRelay(e.PubKey, seenOn)
		if err == nil {
			edge.LastFetched = time.Now()
			_ = p.store.PutPersonRelay(edge)
		}
	}

	// Step 4: spam filter.
	if p.opts.SpamFilter != nil && !isGlobalFeed {
		switch p.opts.SpamFilter(e) {
		case Deny:
			return nil
		case MuteAuthor:
			p.muteAuthor(e.PubKey)
			return nil
		}
	}

	// Step 5: invalidate.
	p.invalidate(e.ID)

	// Step 6.
	if duplicate && !processEvenIfDuplicate {
		return nil
	}

	// Step 7: deletion gate. A replaceable/addressable event can have been
	// deleted by an a-tag-only delete that never names this specific id, so
	// both the by-id and by-address relationship sets are consulted; either
	// requires DeleteAuthorAllowed to accept the deleter before it sticks.
	deleted, err := p.deletionApplies(e)
	if err != nil {
		return err
	}
	if deleted {
		return nil
	}

	// Step 8: store.
	if err := p.storeEvent(e, isGlobalFeed); err != nil {
		return err
	}

	// Step 9: tag scan.
	p.tagScan(e)

	// Step 10: seeker hook.
	p.seeker.Found(e)

	// Step 11: relationship extraction.
	affected := p.extractRelationships(e)
	for _, id := range affected {
		p.invalidate(id)
	}

	// Step 12: feed-displayable nostr: URI content scan.
	p.scanContentRefs(e)

	// Step 13: by-kind dispatch.
	p.dispatchByKind(e)

	return nil
}

func (p *Pipeline) storeEvent(e *nostr.Event, isGlobalFeed bool) error {
	if isGlobalFeed {
		p.cache.Put(e)
		return nil
	}
	if store.IsEphemeral(e.Kind) {
		return nil
	}
	if store.IsReplaceable(e.Kind) {
		_, err := p.store.ReplaceEvent(e)
		return err
	}
	_, err := p.store.WriteIfMissing(e)
	return err
}

func (p *Pipeline) tagScan(e *nostr.Event) {
	for _, t := range e.Tags {
		if len(t) < 2 {
			continue
		}
		switch t[0] {
		case "e", "a":
			if len(t) >= 3 && t[2] != "" {
				p.ensureRelay(t[2])
			}
		case "p":
			if len(t) >= 3 && t[2] != "" {
				p.ensureRelay(t[2])
				edge, err := p.store.GetPersonRelay(t[1], t[2])
				if err == nil {
					edge.LastSuggested = time.Now()
					_ = p.store.PutPersonRelay(edge)
				}
			}
			p.ensurePerson(t[1])
		}
	}
}

func (p *Pipeline) ensureRelay(url string) {
	canon := relay.CanonicalizeURL(url)
	if r, err := p.store.GetRelay(canon); err == nil {
		if r.Rank == 0 && r.SuccessCount == 0 && r.FailureCount == 0 {
			r.Rank = 3
			_ = p.store.PutRelay(r)
		}
	}
}

func (p *Pipeline) ensurePerson(pubkey string) {
	if pr, err := p.store.GetPerson(pubkey); err == nil {
		_ = p.store.PutPerson(pr)
	}
}

func (p *Pipeline) muteAuthor(pubkey string) {
	l, err := p.store.GetList(person.Muted, 0)
	if err != nil {
		return
	}
	if l == nil {
		return
	}
	l.Add(pubkey, false)
	_ = p.store.PutList(l)
}

func (p *Pipeline) scanContentRefs(e *nostr.Event) {
	for _, ref := range extractNostrURIs(e.Content) {
		switch ref.kind {
		case refEvent:
			if has, _ := p.store.HasEvent(ref.value); !has {
				p.dispatch.DispatchFetchEvent(ref.value, ref.relays)
			}
		case refNAddr:
			p.dispatch.DispatchFetchNAddr(ref.value)
		case refProfile, refPubkey:
			p.ensurePerson(ref.value)
		}
	}
}
