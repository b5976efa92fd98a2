// Package person models people (by public key), the person-relay edge, and
// person lists (Followed, Muted, and user-allocated custom lists).
package person

import "time"

// Person is the record for one author's public key.
type Person struct {
	PubKey string

	Metadata     string // raw kind-0 JSON content, last received
	MetadataAt   time.Time

	Nip05         string
	Nip05Valid    bool
	Nip05LastChecked time.Time

	Petname string

	RelayListLastReceived time.Time
	RelayListCreatedAt    time.Time
	RelayListLastSought   time.Time
}

// RelayEdge is the Person<->Relay edge: {read?, write?, last_fetched,
// last_suggested}.
type RelayEdge struct {
	PubKey   string
	RelayURL string
	Read     bool
	Write    bool

	LastFetched   time.Time
	LastSuggested time.Time
}

// ListKind identifies a well-known or custom person list.
type ListKind int

const (
	Followed ListKind = iota
	Muted
	Bookmarks
	Custom
)

// List is the Person List entity: an enumerated set with metadata and a
// membership map of pubkey -> private.
type List struct {
	Kind ListKind
	Slot int // only meaningful when Kind == Custom

	DTag            string
	Title           string
	EventCreatedAt  time.Time
	EventPublicLen  int
	EventPrivateLen int
	LastEditTime    time.Time
	Private         bool

	// Members maps pubkey -> private (true if only present in the encrypted
	// content, not the public tags).
	Members map[string]bool
}

// NewList creates an empty list of the given kind/slot.
func NewList(kind ListKind, slot int, title string) *List {
	return &List{
		Kind:    kind,
		Slot:    slot,
		Title:   title,
		Members: make(map[string]bool),
	}
}

// Len returns the membership count.
func (l *List) Len() int { return len(l.Members) }

// Add inserts or updates a membership.
func (l *List) Add(pubkey string, private bool) {
	if l.Members == nil {
		l.Members = make(map[string]bool)
	}
	l.Members[pubkey] = private
	l.LastEditTime = time.Now()
}

// Remove deletes a membership.
func (l *List) Remove(pubkey string) {
	delete(l.Members, pubkey)
	l.LastEditTime = time.Now()
}

// Has reports membership regardless of public/private.
func (l *List) Has(pubkey string) bool {
	_, ok := l.Members[pubkey]
	return ok
}

// WellKnown reports whether this list is Followed, Muted or Bookmarks: such lists
// cannot be deleted or reallocated, matching ErrKindListIsWellKnown's use
// in the allocator.
func (l *List) WellKnown() bool {
	return l.Kind == Followed || l.Kind == Muted || l.Kind == Bookmarks
}
