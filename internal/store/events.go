package store

import (
	"sort"

	"github.com/dgraph-io/badger/v4"
	"github.com/nbd-wtf/go-nostr"

	"github.com/pinpox/nitrousd/internal/errs"
)

// StoredEvent is the on-disk representation of an nostr.Event.
type StoredEvent struct {
	ID        string
	PubKey    string
	CreatedAt int64
	Kind      int
	Tags      nostr.Tags
	Content   string
	Sig       string
}

func toStored(e *nostr.Event) StoredEvent {
	return StoredEvent{
		ID: e.ID, PubKey: e.PubKey, CreatedAt: int64(e.CreatedAt),
		Kind: e.Kind, Tags: e.Tags, Content: e.Content, Sig: e.Sig,
	}
}

func (se StoredEvent) toEvent() *nostr.Event {
	return &nostr.Event{
		ID: se.ID, PubKey: se.PubKey, CreatedAt: nostr.Timestamp(se.CreatedAt),
		Kind: se.Kind, Tags: se.Tags, Content: se.Content, Sig: se.Sig,
	}
}

// IsReplaceable reports whether kind is a replaceable (one per
// author+kind+d-tag) or addressable event kind per NIP-01/33.
func IsReplaceable(kind int) bool {
	if kind == 0 || kind == 3 {
		return true
	}
	if kind >= 10000 && kind < 20000 {
		return true
	}
	if kind >= 30000 && kind < 40000 {
		return true
	}
	return false
}

// IsEphemeral reports whether kind is ephemeral (never stored).
func IsEphemeral(kind int) bool {
	return kind >= 20000 && kind < 30000
}

func dTagOf(e *nostr.Event) string {
	for _, t := range e.Tags {
		if len(t) >= 2 && t[0] == "d" {
			return t[1]
		}
	}
	return ""
}

// HasEvent reports whether id is already stored.
func (s *Store) HasEvent(id string) (bool, error) {
	var found bool
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(eventKey(id))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	if err != nil {
		return false, errs.Wrap(errs.KindStorage, err)
	}
	return found, nil
}

// GetEvent fetches a single event by id.
func (s *Store) GetEvent(id string) (*nostr.Event, error) {
	var se StoredEvent
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(eventKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error { return unmarshal(val, &se) })
	})
	if err == badger.ErrKeyNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, errs.Wrap(errs.KindStorage, err)
	}
	return se.toEvent(), nil
}

// WriteIfMissing stores a regular (non-replaceable) event iff no event with
// the same id already exists. Returns stored=false if it already existed.
func (s *Store) WriteIfMissing(e *nostr.Event) (stored bool, err error) {
	err = s.db.Update(func(txn *badger.Txn) error {
		_, getErr := txn.Get(eventKey(e.ID))
		if getErr == nil {
			return nil // already present
		}
		if getErr != badger.ErrKeyNotFound {
			return getErr
		}
		if putErr := s.putEvent(txn, e); putErr != nil {
			return putErr
		}
		stored = true
		return nil
	})
	if err != nil {
		return false, errs.Wrap(errs.KindStorage, err)
	}
	return stored, nil
}

// ReplaceEvent enforces the replaceable invariant: only the highest
// (created_at, id) survives per (author, kind, d-tag). Returns replaced=false
// if a newer (or equal, tie-broken by id) event is already stored.
func (s *Store) ReplaceEvent(e *nostr.Event) (replaced bool, err error) {
	dTag := dTagOf(e)
	rk := replaceableKey(e.PubKey, e.Kind, dTag)

	err = s.db.Update(func(txn *badger.Txn) error {
		item, getErr := txn.Get(rk)
		if getErr != nil && getErr != badger.ErrKeyNotFound {
			return getErr
		}
		if getErr == nil {
			var existingID string
			if verr := item.Value(func(val []byte) error { existingID = string(val); return nil }); verr != nil {
				return verr
			}
			existing, eerr := s.getEventTxn(txn, existingID)
			if eerr != nil && eerr != badger.ErrKeyNotFound {
				return eerr
			}
			if existing != nil && !newerOrEqual(e, existing) {
				return nil // existing wins
			}
			if existing != nil && existing.ID != e.ID {
				if derr := s.deleteEventTxn(txn, existing); derr != nil {
					return derr
				}
			}
		}
		if err := s.putEvent(txn, e); err != nil {
			return err
		}
		if err := txn.Set(rk, []byte(e.ID)); err != nil {
			return err
		}
		replaced = true
		return nil
	})
	if err != nil {
		return false, errs.Wrap(errs.KindStorage, err)
	}
	return replaced, nil
}

// newerOrEqual reports whether candidate should win over existing: strictly
// greater created_at, or equal created_at with a lexicographically greater
// id.
func newerOrEqual(candidate, existing *nostr.Event) bool {
	if candidate.CreatedAt != existing.CreatedAt {
		return candidate.CreatedAt > existing.CreatedAt
	}
	return candidate.ID > existing.ID
}

func (s *Store) putEvent(txn *badger.Txn, e *nostr.Event) error {
	se := toStored(e)
	raw, err := marshal(se)
	if err != nil {
		return err
	}
	if err := txn.Set(eventKey(e.ID), raw); err != nil {
		return err
	}
	if err := txn.Set(byAuthorTimeKey(e.PubKey, int64(e.CreatedAt), e.ID), nil); err != nil {
		return err
	}
	for _, t := range e.Tags {
		if len(t) >= 2 && len(t[0]) == 1 {
			if err := txn.Set(byTagKey(t[0][0], t[1], int64(e.CreatedAt), e.ID), nil); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Store) getEventTxn(txn *badger.Txn, id string) (*nostr.Event, error) {
	item, err := txn.Get(eventKey(id))
	if err != nil {
		return nil, err
	}
	var se StoredEvent
	if err := item.Value(func(val []byte) error { return unmarshal(val, &se) }); err != nil {
		return nil, err
	}
	return se.toEvent(), nil
}

func (s *Store) deleteEventTxn(txn *badger.Txn, e *nostr.Event) error {
	if err := txn.Delete(eventKey(e.ID)); err != nil {
		return err
	}
	if err := txn.Delete(byAuthorTimeKey(e.PubKey, int64(e.CreatedAt), e.ID)); err != nil {
		return err
	}
	for _, t := range e.Tags {
		if len(t) >= 2 && len(t[0]) == 1 {
			if err := txn.Delete(byTagKey(t[0][0], t[1], int64(e.CreatedAt), e.ID)); err != nil {
				return err
			}
		}
	}
	return nil
}

// DeleteEvent removes an event and its indexes.
func (s *Store) DeleteEvent(id string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		e, err := s.getEventTxn(txn, id)
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return s.deleteEventTxn(txn, e)
	})
}

// QueryByAuthors returns events by the given authors with created_at in
// (sinceExclusive, until], newest first, bounded by limit. This backs the
// feed's Followed/Person kinds.
func (s *Store) QueryByAuthors(authors []string, since, until nostr.Timestamp, limit int) ([]*nostr.Event, error) {
	var out []*nostr.Event
	err := s.db.View(func(txn *badger.Txn) error {
		for _, author := range authors {
			opts := badger.DefaultIteratorOptions
			prefix := append([]byte{prefixEventByAuthorTime}, author...)
			it := txn.NewIterator(opts)
			start := append(append([]byte{}, prefix...), invI64be(int64(until))...)
			for it.Seek(start); it.ValidForPrefix(prefix); it.Next() {
				key := it.Item().Key()
				id := string(key[len(prefix)+8:])
				ev, err := s.getEventTxn(txn, id)
				if err != nil {
					continue
				}
				if ev.CreatedAt <= since {
					break
				}
				out = append(out, ev)
			}
			it.Close()
		}
		return nil
	})
	if err != nil {
		return nil, errs.Wrap(errs.KindStorage, err)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt > out[j].CreatedAt
		}
		return out[i].ID > out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// AllEvents returns every stored event, in no particular order. It backs
// administrative bulk operations (index rebuilds, content-based moderation
// sweeps) that need to walk the whole event table rather than a
// by-author or by-tag slice of it.
func (s *Store) AllEvents() ([]*nostr.Event, error) {
	var out []*nostr.Event
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte{prefixEvent}
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(opts.Prefix); it.ValidForPrefix(opts.Prefix); it.Next() {
			var se StoredEvent
			if err := it.Item().Value(func(val []byte) error { return unmarshal(val, &se) }); err != nil {
				continue
			}
			out = append(out, se.toEvent())
		}
		return nil
	})
	if err != nil {
		return nil, errs.Wrap(errs.KindStorage, err)
	}
	return out, nil
}

// QueryByTag returns events tagging (letter, value), newest first.
func (s *Store) QueryByTag(letter byte, value string, since, until nostr.Timestamp, limit int) ([]*nostr.Event, error) {
	var out []*nostr.Event
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := append([]byte{prefixEventByTag, letter}, value...)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		start := append(append([]byte{}, prefix...), invI64be(int64(until))...)
		for it.Seek(start); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().Key()
			id := string(key[len(prefix)+8:])
			ev, err := s.getEventTxn(txn, id)
			if err != nil {
				continue
			}
			if ev.CreatedAt <= since {
				break
			}
			out = append(out, ev)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, errs.Wrap(errs.KindStorage, err)
	}
	return out, nil
}
