package store

import (
	"github.com/dgraph-io/badger/v4"

	"github.com/pinpox/nitrousd/internal/errs"
)

// Handler is a NIP-89 handler-information record (kind 31990).
type Handler struct {
	Pubkey  string
	DTag    string
	Kinds   []int
	Name    string
	WebURL  string
}

// ConfiguredHandler is our reconciliation of which handler we use for a
// given kind.
type ConfiguredHandler struct {
	Kind      int
	HandlerID string // "pubkey:dtag"
	Enabled   bool
}

func handlerKey(pubkey, dtag string) []byte {
	k := make([]byte, 0, 1+len(pubkey)+1+len(dtag))
	k = append(k, prefixHandler)
	k = append(k, pubkey...)
	k = append(k, 0)
	return append(k, dtag...)
}

// PutHandler upserts a handler-information record.
func (s *Store) PutHandler(h *Handler) error {
	raw, err := marshal(h)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(handlerKey(h.Pubkey, h.DTag), raw)
	})
}

// AllHandlers returns every known handler-information record.
func (s *Store) AllHandlers() ([]*Handler, error) {
	var out []*Handler
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := []byte{prefixHandler}
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var h Handler
			if err := it.Item().Value(func(val []byte) error { return unmarshal(val, &h) }); err != nil {
				return err
			}
			out = append(out, &h)
		}
		return nil
	})
	if err != nil {
		return nil, errs.Wrap(errs.KindStorage, err)
	}
	return out, nil
}

func configuredHandlerKey(kind int) []byte {
	k := make([]byte, 0, 5)
	k = append(k, prefixConfiguredHandler)
	return append(k, i64be(int64(kind))...)
}

// PutConfiguredHandler upserts our per-kind handler choice.
func (s *Store) PutConfiguredHandler(c *ConfiguredHandler) error {
	raw, err := marshal(c)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(configuredHandlerKey(c.Kind), raw)
	})
}

// GetConfiguredHandler fetches our per-kind handler choice, or nil.
func (s *Store) GetConfiguredHandler(kind int) (*ConfiguredHandler, error) {
	var c ConfiguredHandler
	found := false
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(configuredHandlerKey(kind))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(val []byte) error { return unmarshal(val, &c) })
	})
	if err != nil {
		return nil, errs.Wrap(errs.KindStorage, err)
	}
	if !found {
		return nil, nil
	}
	return &c, nil
}
