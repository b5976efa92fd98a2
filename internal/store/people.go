package store

import (
	"sort"

	"github.com/dgraph-io/badger/v4"

	"github.com/pinpox/nitrousd/internal/errs"
	"github.com/pinpox/nitrousd/internal/person"
)

func personKey(pubkey string) []byte {
	return append([]byte{prefixPerson}, pubkey...)
}

// GetPerson fetches a person record, returning a zero-value with the
// pubkey set if it doesn't exist yet (callers decide whether to persist).
func (s *Store) GetPerson(pubkey string) (*person.Person, error) {
	var p person.Person
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(personKey(pubkey))
		if err == badger.ErrKeyNotFound {
			p = person.Person{PubKey: pubkey}
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error { return unmarshal(val, &p) })
	})
	if err != nil {
		return nil, errs.Wrap(errs.KindStorage, err)
	}
	return &p, nil
}

// PutPerson writes a person record, creating it if it doesn't already
// exist; person records are created on first reference.
func (s *Store) PutPerson(p *person.Person) error {
	raw, err := marshal(p)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(personKey(p.PubKey), raw)
	})
}

func personRelayKey(pubkey, relayURL string) []byte {
	k := make([]byte, 0, 1+len(pubkey)+1+len(relayURL))
	k = append(k, prefixPersonRelay)
	k = append(k, pubkey...)
	k = append(k, 0)
	return append(k, relayURL...)
}

// GetPersonRelay fetches a Person<->Relay edge.
func (s *Store) GetPersonRelay(pubkey, relayURL string) (*person.RelayEdge, error) {
	var e person.RelayEdge
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(personRelayKey(pubkey, relayURL))
		if err == badger.ErrKeyNotFound {
			e = person.RelayEdge{PubKey: pubkey, RelayURL: relayURL}
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error { return unmarshal(val, &e) })
	})
	if err != nil {
		return nil, errs.Wrap(errs.KindStorage, err)
	}
	return &e, nil
}

// PutPersonRelay writes a Person<->Relay edge.
func (s *Store) PutPersonRelay(e *person.RelayEdge) error {
	raw, err := marshal(e)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(personRelayKey(e.PubKey, e.RelayURL), raw)
	})
}

// PersonRelaysFor returns every relay edge recorded for a pubkey.
func (s *Store) PersonRelaysFor(pubkey string) ([]*person.RelayEdge, error) {
	var out []*person.RelayEdge
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := append([]byte{prefixPersonRelay}, pubkey...)
		prefix = append(prefix, 0)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var e person.RelayEdge
			if err := it.Item().Value(func(val []byte) error { return unmarshal(val, &e) }); err != nil {
				return err
			}
			out = append(out, &e)
		}
		return nil
	})
	if err != nil {
		return nil, errs.Wrap(errs.KindStorage, err)
	}
	return out, nil
}

// BestOutboxRelays returns up to n relay URLs this pubkey writes to, the
// simple heuristic relays_for_event and the seeker both need: only edges
// marked Write, most-recently-suggested first.
func (s *Store) BestOutboxRelays(pubkey string, n int) ([]string, error) {
	edges, err := s.PersonRelaysFor(pubkey)
	if err != nil {
		return nil, err
	}
	sort.Slice(edges, func(i, j int) bool { return edges[i].LastSuggested.After(edges[j].LastSuggested) })
	var out []string
	for _, e := range edges {
		if e.Write {
			out = append(out, e.RelayURL)
			if n > 0 && len(out) >= n {
				break
			}
		}
	}
	return out, nil
}
