package store

import (
	"github.com/dgraph-io/badger/v4"

	"github.com/pinpox/nitrousd/internal/errs"
)

// Nip46Server is a stored remote-signer pairing (NIP-46).
type Nip46Server struct {
	ClientPubkey string
	RemotePubkey string
	Relays       []string
	Secret       string
}

func nip46Key(clientPubkey string) []byte {
	return append([]byte{prefixNip46Server}, clientPubkey...)
}

// PutNip46Server upserts a NIP-46 pairing record.
func (s *Store) PutNip46Server(n *Nip46Server) error {
	raw, err := marshal(n)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(nip46Key(n.ClientPubkey), raw)
	})
}

// GetNip46Server fetches a NIP-46 pairing record, or nil.
func (s *Store) GetNip46Server(clientPubkey string) (*Nip46Server, error) {
	var n Nip46Server
	found := false
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(nip46Key(clientPubkey))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(val []byte) error { return unmarshal(val, &n) })
	})
	if err != nil {
		return nil, errs.Wrap(errs.KindStorage, err)
	}
	if !found {
		return nil, nil
	}
	return &n, nil
}

func settingKey(name string) []byte {
	return append([]byte{prefixSetting}, name...)
}

// SetSetting stores a single named setting as raw bytes (caller encodes).
func (s *Store) SetSetting(name string, value []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(settingKey(name), value)
	})
}

// GetSetting fetches a named setting, or nil if unset.
func (s *Store) GetSetting(name string) ([]byte, error) {
	var out []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(settingKey(name))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			out = append([]byte(nil), val...)
			return nil
		})
	})
	if err != nil {
		return nil, errs.Wrap(errs.KindStorage, err)
	}
	return out, nil
}

func flagKey(name string) []byte {
	return append([]byte{prefixFlag}, name...)
}

// SetFlag stores a boolean flag.
func (s *Store) SetFlag(name string, value bool) error {
	b := byte(0)
	if value {
		b = 1
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(flagKey(name), []byte{b})
	})
}

// GetFlag fetches a boolean flag, defaulting to false if unset.
func (s *Store) GetFlag(name string) (bool, error) {
	var out bool
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(flagKey(name))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			out = len(val) > 0 && val[0] != 0
			return nil
		})
	})
	if err != nil {
		return false, errs.Wrap(errs.KindStorage, err)
	}
	return out, nil
}
