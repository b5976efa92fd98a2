// Package feed provides a Feed value holding the current FeedKind and
// cached id vectors, recomputed synchronously on kind switch or on a
// configurable period.
package feed

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nbd-wtf/go-nostr"

	"github.com/pinpox/nitrousd/internal/person"
	"github.com/pinpox/nitrousd/internal/store"
)

// Kind is the discriminant of which feed is currently selected.
type Kind int

const (
	KFollowed Kind = iota
	KInbox
	KThread
	KPerson
	KDmChat
	KGlobal
	KBookmarks
	KList
)

// Selector fully identifies the current feed: the kind plus its parameters.
type Selector struct {
	Kind Kind

	WithReplies bool // Followed, List
	Indirect    bool // Inbox

	ThreadID           string // Thread
	ThreadReferencedBy string
	ThreadAuthor       string

	PersonPubkey string // Person

	DmChannel string // DmChat

	ListSlot int // List
}

// Source is what the feed reads from: the store plus whatever in-memory
// sets the overlord maintains (followed pubkeys, window sizes).
type Source struct {
	Store *store.Store

	FollowedPubkeys func() []string
	MyPubkey        string

	FollowedWindow time.Duration
	InboxWindow    time.Duration
	PersonWindow   time.Duration

	FeedDisplayableKinds []int
	DMKinds              []int
}

// Feed holds the current selector, the cached id list per kind, and the
// recompute throttle state.
type Feed struct {
	src Source

	mu       sync.RWMutex
	selector Selector
	ids      map[Kind][]string

	recomputing int32
	interval    time.Duration
	lastComputed time.Time

	threadParent string
}

// New creates a Feed bound to src, recomputing at most every interval.
func New(src Source, interval time.Duration) *Feed {
	return &Feed{src: src, ids: make(map[Kind][]string), interval: interval}
}

// SetSelector switches the current feed kind/parameters and recomputes
// synchronously, since a selector change is cheap relative to a full tick.
func (f *Feed) SetSelector(sel Selector) {
	f.mu.Lock()
	f.selector = sel
	f.mu.Unlock()
	f.Recompute()
}

// Selector returns the current selector.
func (f *Feed) Selector() Selector {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.selector
}

// IDs returns the cached id list for the current selector's kind.
func (f *Feed) IDs() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]string(nil), f.ids[f.selector.Kind]...)
}

// ThreadParent returns the highest locally-connected ancestor id computed
// by the last Thread recompute.
func (f *Feed) ThreadParent() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.threadParent
}

// MaybeRecomputePeriodic recomputes if interval has elapsed since the last
// run; callers call this on a ticker.
func (f *Feed) MaybeRecomputePeriodic() {
	f.mu.RLock()
	due := time.Since(f.lastComputed) >= f.interval
	f.mu.RUnlock()
	if due {
		f.Recompute()
	}
}

// Recompute acquires the in-flight flag (a no-op if already set, so
// concurrent calls collapse) and recomputes the current kind's id list.
func (f *Feed) Recompute() {
	if !atomic.CompareAndSwapInt32(&f.recomputing, 0, 1) {
		return
	}
	defer atomic.StoreInt32(&f.recomputing, 0)

	sel := f.Selector()
	var ids []string
	var threadParent string

	switch sel.Kind {
	case KFollowed:
		ids = f.computeFollowed(sel)
	case KInbox:
		ids = f.computeInbox(sel)
	case KThread:
		ids, threadParent = f.computeThread(sel)
	case KPerson:
		ids = f.computePerson(sel)
	case KDmChat:
		ids = f.computeDmChat(sel)
	case KGlobal:
		ids = f.computeGlobal()
	case KBookmarks:
		ids = f.computeBookmarks()
	case KList:
		ids = f.computeList(sel)
	}

	f.mu.Lock()
	f.ids[sel.Kind] = ids
	f.threadParent = threadParent
	f.lastComputed = time.Now()
	f.mu.Unlock()
}

func displayableMinusDM(all, dm []int) []int {
	dmSet := make(map[int]bool, len(dm))
	for _, k := range dm {
		dmSet[k] = true
	}
	var out []int
	for _, k := range all {
		if !dmSet[k] {
			out = append(out, k)
		}
	}
	return out
}

func (f *Feed) computeFollowed(sel Selector) []string {
	authors := f.src.FollowedPubkeys()
	if f.src.MyPubkey != "" {
		authors = append(authors, f.src.MyPubkey)
	}
	kinds := displayableMinusDM(f.src.FeedDisplayableKinds, f.src.DMKinds)
	since := nostr.Timestamp(time.Now().Add(-f.src.FollowedWindow).Unix())
	until := nostr.Timestamp(time.Now().Unix())
	evs, err := f.src.Store.QueryByAuthors(authors, since, until, 0)
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range evs {
		if !kindIn(e.Kind, kinds) {
			continue
		}
		if !sel.WithReplies && isDirectReply(e) {
			continue
		}
		out = append(out, e.ID)
	}
	return out
}

func (f *Feed) computeInbox(sel Selector) []string {
	since := nostr.Timestamp(time.Now().Add(-f.src.InboxWindow).Unix())
	until := nostr.Timestamp(time.Now().Unix())
	evs, err := f.src.Store.QueryByTag('p', f.src.MyPubkey, since, until, 0)
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range evs {
		if kindIn(e.Kind, f.src.DMKinds) {
			out = append(out, e.ID)
			continue
		}
		if sel.Indirect || f.repliesToMe(e) {
			out = append(out, e.ID)
		}
	}
	return out
}

func (f *Feed) computeThread(sel Selector) (ids []string, threadParent string) {
	threadParent = f.climbToRoot(sel.ThreadID, 64)
	return []string{sel.ThreadID}, threadParent
}

func (f *Feed) climbToRoot(id string, maxHops int) string {
	current := id
	for i := 0; i < maxHops; i++ {
		e, err := f.src.Store.GetEvent(current)
		if err != nil || e == nil {
			return current
		}
		parent := directParent(e)
		if parent == "" {
			return current
		}
		current = parent
	}
	return current
}

func (f *Feed) computePerson(sel Selector) []string {
	since := nostr.Timestamp(time.Now().Add(-f.src.PersonWindow).Unix())
	until := nostr.Timestamp(time.Now().Unix())
	evs, err := f.src.Store.QueryByAuthors([]string{sel.PersonPubkey}, since, until, 0)
	if err != nil {
		return nil
	}
	sort.Slice(evs, func(i, j int) bool {
		if evs[i].CreatedAt != evs[j].CreatedAt {
			return evs[i].CreatedAt > evs[j].CreatedAt
		}
		return evs[i].ID > evs[j].ID
	})
	ids := make([]string, len(evs))
	for i, e := range evs {
		ids[i] = e.ID
	}
	return ids
}

func (f *Feed) computeDmChat(sel Selector) []string {
	evs, err := f.src.Store.QueryByTag('p', sel.DmChannel, 0, nostr.Timestamp(time.Now().Unix()), 0)
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range evs {
		if kindIn(e.Kind, f.src.DMKinds) {
			out = append(out, e.ID)
		}
	}
	return out
}

func (f *Feed) computeGlobal() []string {
	// The global feed lives in the volatile cache, not here; a GlobalCache
	// reference is supplied by the overlord wiring via SetGlobalIDs.
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]string(nil), f.ids[KGlobal]...)
}

// SetGlobalIDs lets the overlord push the global-feed id list computed from
// the volatile cache (the pipeline's GlobalCache, which this package does
// not import to avoid a dependency cycle on pipeline).
func (f *Feed) SetGlobalIDs(ids []string) {
	f.mu.Lock()
	f.ids[KGlobal] = ids
	f.mu.Unlock()
}

// computeBookmarks returns the bookmarks list's membership directly as the
// feed's id vector. Unlike every other person.List, Bookmarks members are
// event ids (or "kind:pubkey:dtag" addresses), not pubkeys — BuildListEvent
// and ParseListEvent both special-case Bookmarks onto e-tags rather than
// p-tags for exactly this reason.
func (f *Feed) computeBookmarks() []string {
	l, err := f.src.Store.GetList(person.Bookmarks, 0)
	if err != nil || l == nil {
		return nil
	}
	ids := make([]string, 0, l.Len())
	for id := range l.Members {
		ids = append(ids, id)
	}
	return ids
}

func (f *Feed) computeList(sel Selector) []string {
	l, err := f.src.Store.GetList(person.Custom, sel.ListSlot)
	if err != nil || l == nil {
		return nil
	}
	authors := make([]string, 0, l.Len())
	for pk := range l.Members {
		authors = append(authors, pk)
	}
	kinds := f.src.FeedDisplayableKinds
	since := nostr.Timestamp(time.Now().Add(-f.src.FollowedWindow).Unix())
	until := nostr.Timestamp(time.Now().Unix())
	evs, err := f.src.Store.QueryByAuthors(authors, since, until, 0)
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range evs {
		if !kindIn(e.Kind, kinds) {
			continue
		}
		if !sel.WithReplies && isDirectReply(e) {
			continue
		}
		out = append(out, e.ID)
	}
	return out
}

func kindIn(k int, kinds []int) bool {
	for _, x := range kinds {
		if x == k {
			return true
		}
	}
	return false
}

func directParent(e *nostr.Event) string {
	var fallback string
	for _, t := range e.Tags {
		if len(t) >= 2 && t[0] == "e" {
			if len(t) >= 4 && t[3] == "reply" {
				return t[1]
			}
			fallback = t[1]
		}
	}
	return fallback
}

func isDirectReply(e *nostr.Event) bool {
	return directParent(e) != ""
}

// repliesToMe reports whether e's direct parent (the "reply"-marked e-tag,
// or the last e-tag absent NIP-10 markers) was authored by MyPubkey.
func (f *Feed) repliesToMe(e *nostr.Event) bool {
	parent := directParent(e)
	if parent == "" {
		return false
	}
	pe, err := f.src.Store.GetEvent(parent)
	if err != nil || pe == nil {
		return false
	}
	return pe.PubKey == f.src.MyPubkey
}
