package store

import (
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/pinpox/nitrousd/internal/errs"
)

func seenOnKey(eventID, relayURL string) []byte {
	k := make([]byte, 0, 1+len(eventID)+1+len(relayURL))
	k = append(k, prefixSeenOn)
	k = append(k, eventID...)
	k = append(k, 0)
	return append(k, relayURL...)
}

// SeenOn records that eventID was seen on relayURL at the given time. This
// never overwrites an earlier sighting's timestamp with a later one for the
// same relay; repeated sightings from the same relay just keep the first.
func (s *Store) SeenOn(eventID, relayURL string, at time.Time) error {
	key := seenOnKey(eventID, relayURL)
	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); err == nil {
			return nil
		} else if err != badger.ErrKeyNotFound {
			return err
		}
		return txn.Set(key, i64be(at.Unix()))
	})
}

// SeenOnPair is one (relay, timestamp) sighting.
type SeenOnPair struct {
	RelayURL string
	At       time.Time
}

// GetSeenOn returns every relay this event has been sighted on.
func (s *Store) GetSeenOn(eventID string) ([]SeenOnPair, error) {
	var out []SeenOnPair
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := append([]byte{prefixSeenOn}, eventID...)
		prefix = append(prefix, 0)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			relayURL := string(item.Key()[len(prefix):])
			var unixSec int64
			if err := item.Value(func(val []byte) error {
				if len(val) == 8 {
					unixSec = int64(beUint64(val))
				}
				return nil
			}); err != nil {
				return err
			}
			out = append(out, SeenOnPair{RelayURL: relayURL, At: time.Unix(unixSec, 0)})
		}
		return nil
	})
	if err != nil {
		return nil, errs.Wrap(errs.KindStorage, err)
	}
	return out, nil
}

func beUint64(b []byte) uint64 {
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v
}
