// Package seeker implements a multi-stage background resolver that
// locates an event by id, climbing author metadata when needed.
package seeker

import (
	"sync"
	"time"

	"github.com/nbd-wtf/go-nostr"
)

// Stage is which lookup stage an in-flight search is on.
type Stage int

const (
	StageKnownRelays Stage = iota
	StageAuthorRelays
	StageClimb
)

const (
	minOutboxThreshold = 2
	stageExpiry        = 20 * time.Second
)

// search is one in-flight lookup.
type search struct {
	id       string
	author   string // may be empty if unknown
	hints    []string
	stage    Stage
	expireAt time.Time
}

// Dispatcher is implemented by the overlord: the seeker asks it to run jobs
// on specific relays without importing the overlord package.
type Dispatcher interface {
	DispatchFetchEvent(id string, relays []string)
	DispatchDiscover(author string)
}

// PersonRelays is implemented by the store: outbox lookups for an author.
type PersonRelays interface {
	BestOutboxRelays(pubkey string, n int) ([]string, error)
}

// Seeker tracks in-flight event lookups and drives them through stages.
type Seeker struct {
	mu      sync.Mutex
	pending map[string]*search

	dispatcher Dispatcher
	people     PersonRelays
}

// New creates a Seeker bound to a dispatcher and a person-relay lookup.
func New(dispatcher Dispatcher, people PersonRelays) *Seeker {
	return &Seeker{
		pending:    make(map[string]*search),
		dispatcher: dispatcher,
		people:     people,
	}
}

// Seek starts (or restarts) a lookup for id. If hints are given, stage 1
// dispatches immediately; otherwise it moves straight to stage 2 if author
// is known.
func (s *Seeker) Seek(id, author string, hints []string) {
	s.mu.Lock()
	srch := &search{id: id, author: author, hints: hints, expireAt: time.Now().Add(stageExpiry)}
	s.pending[id] = srch
	s.mu.Unlock()

	if len(hints) > 0 {
		srch.stage = StageKnownRelays
		s.dispatcher.DispatchFetchEvent(id, hints)
		return
	}
	if author != "" {
		s.tryAuthorRelays(srch)
	}
}

func (s *Seeker) tryAuthorRelays(srch *search) {
	srch.stage = StageAuthorRelays
	outboxes, err := s.people.BestOutboxRelays(srch.author, 8)
	if err != nil {
		return
	}
	if len(outboxes) < minOutboxThreshold {
		s.dispatcher.DispatchDiscover(srch.author)
	}
	if len(outboxes) > 0 {
		s.dispatcher.DispatchFetchEvent(srch.id, outboxes)
	}
}

// Found is called by the pipeline when an event arrives; it completes any
// matching in-flight search and, if the event references a parent whose
// author is known but whose outboxes are missing, starts a climb for that
// parent (stage 3).
func (s *Seeker) Found(e *nostr.Event) {
	s.mu.Lock()
	_, was := s.pending[e.ID]
	if was {
		delete(s.pending, e.ID)
	}
	s.mu.Unlock()

	parentID, parentAuthor := parentReference(e)
	if parentID == "" {
		return
	}
	s.mu.Lock()
	_, already := s.pending[parentID]
	s.mu.Unlock()
	if already {
		return
	}
	if parentAuthor != "" {
		s.Seek(parentID, parentAuthor, nil)
	}
}

func parentReference(e *nostr.Event) (id, author string) {
	for _, t := range e.Tags {
		if len(t) >= 2 && (t[0] == "e" || t[0] == "a") {
			id = t[1]
			if t[0] == "e" && len(t) >= 5 {
				author = t[4]
			}
			return
		}
	}
	return "", ""
}

// Expire drops any in-flight search past its expiry, so the seeker "does
// not loop indefinitely".
func (s *Seeker) Expire() {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, srch := range s.pending {
		if now.After(srch.expireAt) {
			delete(s.pending, id)
		}
	}
}

// InFlight reports whether id currently has a pending search.
func (s *Seeker) InFlight(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pending[id]
	return ok
}
