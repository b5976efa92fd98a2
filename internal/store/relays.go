package store

import (
	"github.com/dgraph-io/badger/v4"

	"github.com/pinpox/nitrousd/internal/errs"
	"github.com/pinpox/nitrousd/internal/relay"
)

func relayKey(url string) []byte {
	return append([]byte{prefixRelay}, url...)
}

// GetRelay fetches a relay record, or a zero-value with rank defaulted to 3
// if it doesn't exist (write-if-missing creation happens on first Put).
func (s *Store) GetRelay(url string) (*relay.Relay, error) {
	var r relay.Relay
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(relayKey(url))
		if err == badger.ErrKeyNotFound {
			r = relay.Relay{URL: url, Rank: 3}
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error { return unmarshal(val, &r) })
	})
	if err != nil {
		return nil, errs.Wrap(errs.KindStorage, err)
	}
	return &r, nil
}

// PutRelay writes a relay record.
func (s *Store) PutRelay(r *relay.Relay) error {
	raw, err := marshal(r)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(relayKey(r.URL), raw)
	})
}

// FilterRelays returns every relay record for which pred returns true.
func (s *Store) FilterRelays(pred func(*relay.Relay) bool) ([]*relay.Relay, error) {
	var out []*relay.Relay
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := []byte{prefixRelay}
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var r relay.Relay
			if err := it.Item().Value(func(val []byte) error { return unmarshal(val, &r) }); err != nil {
				return err
			}
			if pred == nil || pred(&r) {
				out = append(out, &r)
			}
		}
		return nil
	})
	if err != nil {
		return nil, errs.Wrap(errs.KindStorage, err)
	}
	return out, nil
}

// AllRelays returns every relay record.
func (s *Store) AllRelays() ([]*relay.Relay, error) {
	return s.FilterRelays(nil)
}
