package overlord

import (
	"context"

	"github.com/pinpox/nitrousd/internal/person"
	"github.com/pinpox/nitrousd/internal/postbuilder"
	"github.com/pinpox/nitrousd/internal/relay"
)

// listKindForSlot maps a ToOverlordMessage's PersonListSlot onto a
// person.ListKind: the three well-known lists occupy fixed slots 0-2,
// everything else is a user-allocated Custom list at that slot number.
func listKindForSlot(slot int) (person.ListKind, int) {
	switch slot {
	case 0:
		return person.Followed, 0
	case 1:
		return person.Muted, 0
	case 2:
		return person.Bookmarks, 0
	default:
		return person.Custom, slot
	}
}

// pushPersonList builds and posts the event for the list at slot: kind 3
// for Followed, kind 10003 for Bookmarks, kind 30000 otherwise.
func (o *Overlord) pushPersonList(ctx context.Context, slot int) error {
	kind, customSlot := listKindForSlot(slot)
	l, err := o.store.GetList(kind, customSlot)
	if err != nil {
		return err
	}
	if l == nil {
		return nil
	}

	if kind == person.Followed {
		e, err := o.build.ContactList(l, nil)
		if err != nil {
			return err
		}
		for pk := range l.Members {
			o.followed[pk] = true
		}
		return o.post(ctx, e)
	}

	if kind == person.Bookmarks {
		return o.pushBookmarks(ctx, l)
	}

	e, err := o.build.FollowSets(l, customSlot)
	if err != nil {
		return err
	}
	return o.post(ctx, e)
}

// pushBookmarks builds and posts the kind-10003 bookmarks event for l.
func (o *Overlord) pushBookmarks(ctx context.Context, l *person.List) error {
	e, err := o.build.BookmarksList(l)
	if err != nil {
		return err
	}
	return o.post(ctx, e)
}

// bookmarkAdd records eventID (an event id or "kind:pubkey:dtag" address)
// as bookmarked and republishes the bookmarks list, allocating it on first
// use the way pushPersonList finds an already-allocated one.
func (o *Overlord) bookmarkAdd(ctx context.Context, eventID string, private bool) error {
	l, err := o.store.GetList(person.Bookmarks, 0)
	if err != nil {
		return err
	}
	if l == nil {
		l = person.NewList(person.Bookmarks, 0, "")
	}
	l.Add(eventID, private)
	if err := o.store.PutList(l); err != nil {
		return err
	}
	return o.pushBookmarks(ctx, l)
}

// bookmarkRemove drops eventID from the bookmarks list and republishes it,
// a no-op if the list was never allocated or never contained it.
func (o *Overlord) bookmarkRemove(ctx context.Context, eventID string) error {
	l, err := o.store.GetList(person.Bookmarks, 0)
	if err != nil {
		return err
	}
	if l == nil || !l.Has(eventID) {
		return nil
	}
	l.Remove(eventID)
	if err := o.store.PutList(l); err != nil {
		return err
	}
	return o.pushBookmarks(ctx, l)
}

// advertiseRelayList builds and posts the kind-10002 NIP-65 relay list from
// every relay the user reads or writes through.
func (o *Overlord) advertiseRelayList(ctx context.Context) error {
	rs, err := o.store.FilterRelays(func(r *relay.Relay) bool {
		return !r.Hidden && (r.Usage.Has(relay.Read) || r.Usage.Has(relay.Write))
	})
	if err != nil {
		return err
	}
	entries := make([]postbuilder.RelayListEntry, 0, len(rs))
	for _, r := range rs {
		entries = append(entries, postbuilder.RelayListEntry{URL: r.URL, Usage: r.Usage})
	}
	e, err := o.build.RelayList(entries)
	if err != nil {
		return err
	}
	return o.post(ctx, e)
}
