package pipeline

import (
	"testing"
	"time"

	"github.com/nbd-wtf/go-nostr"

	"github.com/pinpox/nitrousd/internal/store"
)

type fakeSeeker struct {
	found    []*nostr.Event
	sought   []string
	inflight map[string]bool
}

func (f *fakeSeeker) Found(e *nostr.Event)                      { f.found = append(f.found, e) }
func (f *fakeSeeker) Seek(id, author string, hints []string)     { f.sought = append(f.sought, id) }
func (f *fakeSeeker) InFlight(id string) bool                     { return f.inflight[id] }

type fakeDispatcher struct {
	fetched []string
	naddrs  []string
}

func (f *fakeDispatcher) DispatchFetchEvent(id string, hints []string) { f.fetched = append(f.fetched, id) }
func (f *fakeDispatcher) DispatchFetchNAddr(addr string)                { f.naddrs = append(f.naddrs, addr) }

func newTestPipeline(t *testing.T, opts Options) (*Pipeline, *store.Store, *fakeSeeker, *fakeDispatcher) {
	t.Helper()
	st, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	cache := store.NewGlobalCache(time.Hour)
	seeker := &fakeSeeker{inflight: map[string]bool{}}
	dispatch := &fakeDispatcher{}
	p := New(st, cache, seeker, dispatch, opts)
	return p, st, seeker, dispatch
}

func signedNote(t *testing.T, content string, tags nostr.Tags) *nostr.Event {
	t.Helper()
	sk := nostr.GeneratePrivateKey()
	pk, err := nostr.GetPublicKey(sk)
	if err != nil {
		t.Fatal(err)
	}
	e := &nostr.Event{Kind: 1, Content: content, Tags: tags, CreatedAt: nostr.Now(), PubKey: pk}
	if err := e.Sign(sk); err != nil {
		t.Fatal(err)
	}
	return e
}

func TestProcessNewEventStoresAndDedupes(t *testing.T) {
	p, st, seeker, _ := newTestPipeline(t, Options{})
	e := signedNote(t, "hello", nil)

	if err := p.ProcessNewEvent(e, "wss://relay.example.com", "", true, false); err != nil {
		t.Fatalf("ProcessNewEvent (first): %v", err)
	}
	has, err := st.HasEvent(e.ID)
	if err != nil || !has {
		t.Fatalf("expected event stored, has=%v err=%v", has, err)
	}
	if len(seeker.found) != 1 {
		t.Errorf("expected Found called once, got %d", len(seeker.found))
	}

	// Re-processing the same id again is a no-op: seeker.Found is not
	// called again, and no error occurs.
	if err := p.ProcessNewEvent(e, "wss://relay.example.com", "", true, false); err != nil {
		t.Fatalf("ProcessNewEvent (duplicate): %v", err)
	}
	if len(seeker.found) != 1 {
		t.Errorf("expected duplicate processing to skip Found, got %d calls", len(seeker.found))
	}
}

func TestProcessNewEventRejectsBadSignature(t *testing.T) {
	p, _, _, _ := newTestPipeline(t, Options{})
	e := signedNote(t, "hello", nil)
	e.Content = "tampered" // invalidates the signature without re-signing

	if err := p.ProcessNewEvent(e, "", "", true, false); err == nil {
		t.Error("expected an error for a tampered/invalid signature")
	}
}

func TestProcessNewEventSkipsVerifyWhenToldTo(t *testing.T) {
	p, st, _, _ := newTestPipeline(t, Options{})
	e := signedNote(t, "hello", nil)
	e.Content = "tampered"

	if err := p.ProcessNewEvent(e, "", "", false, false); err != nil {
		t.Fatalf("ProcessNewEvent with verify=false: %v", err)
	}
	has, err := st.HasEvent(e.ID)
	if err != nil || !has {
		t.Errorf("expected event stored when verify=false, has=%v err=%v", has, err)
	}
}

func TestProcessNewEventRejectsFarFutureEvents(t *testing.T) {
	p, _, _, _ := newTestPipeline(t, Options{FutureAllowance: time.Minute})
	sk := nostr.GeneratePrivateKey()
	pk, _ := nostr.GetPublicKey(sk)
	e := &nostr.Event{Kind: 1, CreatedAt: nostr.Timestamp(time.Now().Add(time.Hour).Unix()), PubKey: pk}
	if err := e.Sign(sk); err != nil {
		t.Fatal(err)
	}
	if err := p.ProcessNewEvent(e, "", "", true, false); err == nil {
		t.Error("expected an error for an event far in the future")
	}
}

func TestProcessNewEventDeletionGateSuppressesReappearance(t *testing.T) {
	p, st, _, _ := newTestPipeline(t, Options{})
	target := signedNote(t, "to be deleted", nil)

	// Record a same-author deletion edge against target.ID directly, the
	// way relationship extraction (extractRelationships) would for a kind-5
	// naming this id, without needing to construct the kind-5 event itself.
	if err := st.AddRelationshipByID(target.ID, store.Relationship{Kind: store.RelDeletes, By: target.PubKey}); err != nil {
		t.Fatal(err)
	}

	// The original event now arrives (e.g. from a relay that hadn't yet
	// seen the deletion): step 7's gate must refuse to store it.
	if err := p.ProcessNewEvent(target, "", "", true, false); err != nil {
		t.Fatal(err)
	}
	has, err := st.HasEvent(target.ID)
	if err != nil {
		t.Fatal(err)
	}
	if has {
		t.Error("expected the deletion gate to prevent a deleted event from being stored")
	}
}

func TestProcessNewEventDeletionGateHonorsByAddrEdge(t *testing.T) {
	p, st, _, _ := newTestPipeline(t, Options{})
	sk := nostr.GeneratePrivateKey()
	pk, err := nostr.GetPublicKey(sk)
	if err != nil {
		t.Fatal(err)
	}
	target := &nostr.Event{
		Kind: 30001, PubKey: pk, CreatedAt: nostr.Now(),
		Tags: nostr.Tags{{"d", "profile-badges"}},
	}
	if err := target.Sign(sk); err != nil {
		t.Fatal(err)
	}

	// Only an a-tag-only delete was ever seen, so the by-address edge is
	// recorded against the address, never against target.ID directly.
	addr := Addr(target.Kind, target.PubKey, "profile-badges")
	if err := st.AddRelationshipByAddr(addr, store.Relationship{Kind: store.RelDeletes, By: target.PubKey}); err != nil {
		t.Fatal(err)
	}

	if err := p.ProcessNewEvent(target, "", "", true, false); err != nil {
		t.Fatal(err)
	}
	has, err := st.HasEvent(target.ID)
	if err != nil {
		t.Fatal(err)
	}
	if has {
		t.Error("expected a by-address deletion edge to suppress a republish at the same address")
	}
}

func TestProcessNewEventDeletionGateHonorsDeleteAuthorAllowed(t *testing.T) {
	p, st, _, _ := newTestPipeline(t, Options{
		DeleteAuthorAllowed: func(eventAuthor, deleteAuthor string) bool { return false },
	})
	target := signedNote(t, "moderator takedown", nil)

	if err := st.AddRelationshipByID(target.ID, store.Relationship{Kind: store.RelDeletes, By: "someone-else"}); err != nil {
		t.Fatal(err)
	}

	if err := p.ProcessNewEvent(target, "", "", true, false); err != nil {
		t.Fatal(err)
	}
	has, err := st.HasEvent(target.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !has {
		t.Error("expected a custom DeleteAuthorAllowed policy to be consulted by the deletion gate")
	}
}

func TestProcessNewEventSpamFilterDeny(t *testing.T) {
	p, st, _, _ := newTestPipeline(t, Options{
		SpamFilter: func(e *nostr.Event) SpamVerdict { return Deny },
	})
	e := signedNote(t, "spam", nil)
	if err := p.ProcessNewEvent(e, "", "normal_feed", true, false); err != nil {
		t.Fatal(err)
	}
	has, err := st.HasEvent(e.ID)
	if err != nil {
		t.Fatal(err)
	}
	if has {
		t.Error("expected a Deny verdict to prevent storage")
	}
}

func TestProcessNewEventSpamFilterSkippedForGlobalFeed(t *testing.T) {
	called := false
	p, st, _, _ := newTestPipeline(t, Options{
		SpamFilter: func(e *nostr.Event) SpamVerdict { called = true; return Deny },
	})
	e := signedNote(t, "on the global feed", nil)
	if err := p.ProcessNewEvent(e, "", "global_feed_chunk", true, false); err != nil {
		t.Fatal(err)
	}
	if called {
		t.Error("spam filter must not run for global-feed subscriptions")
	}
	_ = st
}

func TestGlobalFeedEventsGoToCacheNotStore(t *testing.T) {
	p, st, _, _ := newTestPipeline(t, Options{})
	e := signedNote(t, "global", nil)
	if err := p.ProcessNewEvent(e, "", "global_feed_chunk", true, false); err != nil {
		t.Fatal(err)
	}
	has, err := st.HasEvent(e.ID)
	if err != nil {
		t.Fatal(err)
	}
	if has {
		t.Error("global-feed events should live in the volatile cache, not the badger store")
	}
	if !p.cache.Has(e.ID) {
		t.Error("expected the event to be present in the global cache")
	}
}

func TestReplaceableEventReplacesOlder(t *testing.T) {
	p, st, _, _ := newTestPipeline(t, Options{})
	sk := nostr.GeneratePrivateKey()
	pk, _ := nostr.GetPublicKey(sk)

	older := &nostr.Event{Kind: 0, CreatedAt: 100, PubKey: pk, Content: "old"}
	if err := older.Sign(sk); err != nil {
		t.Fatal(err)
	}
	newer := &nostr.Event{Kind: 0, CreatedAt: 200, PubKey: pk, Content: "new"}
	if err := newer.Sign(sk); err != nil {
		t.Fatal(err)
	}

	if err := p.ProcessNewEvent(older, "", "", true, false); err != nil {
		t.Fatal(err)
	}
	if err := p.ProcessNewEvent(newer, "", "", true, false); err != nil {
		t.Fatal(err)
	}
	got, err := st.GetEvent(newer.ID)
	if err != nil || got == nil {
		t.Fatalf("expected the newer replaceable event stored: %v, %v", got, err)
	}
}

func TestInvalidationsChannelReceivesProcessedIDs(t *testing.T) {
	p, _, _, _ := newTestPipeline(t, Options{})
	e := signedNote(t, "hello", nil)
	if err := p.ProcessNewEvent(e, "", "", true, false); err != nil {
		t.Fatal(err)
	}
	select {
	case id := <-p.Invalidations():
		if id != e.ID {
			t.Errorf("invalidation id = %q, want %q", id, e.ID)
		}
	default:
		t.Error("expected an invalidation to be queued for the processed event")
	}
}
