// Package store is the single key-value environment: one badger database
// holding events, seen-on associations, hashtag and tag indexes,
// relationships, people, relay records, person lists, handlers, NIP-46
// server records, settings, and flags. Options tuning, sequence leases,
// and transactional delete follow the usual badger-backed storage idiom.
package store

import (
	"encoding/binary"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/pinpox/nitrousd/internal/errs"
)

// Key prefixes, one byte each, keeping every logical table in a single
// badger keyspace.
const (
	prefixEvent             byte = 'E'
	prefixEventByAuthorTime byte = 'A'
	prefixEventByTag        byte = 'T'
	prefixReplaceableIndex  byte = 'R'
	prefixSeenOn            byte = 'S'
	prefixHashtag           byte = 'H'
	prefixRelationshipByID  byte = 'L'
	prefixRelationshipByAddr byte = 'D'
	prefixPerson            byte = 'P'
	prefixPersonRelay       byte = 'G'
	prefixPersonList        byte = 'O'
	prefixRelay             byte = 'U'
	prefixHandler           byte = 'N'
	prefixConfiguredHandler byte = 'C'
	prefixNip46Server       byte = 'M'
	prefixSetting           byte = 'F'
	prefixFlag              byte = 'X'
)

// Store wraps a badger.DB with helpers for every logical table above.
// Writes take explicit write-transactions and commit atomically; readers
// never block writers and see a transaction-consistent snapshot, since
// this is the only authoritative concurrent store in the process.
type Store struct {
	db  *badger.DB
	seq *badger.Sequence
	dir string
}

// Open creates or opens the badger environment at dir.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errs.Wrap(errs.KindIO, err)
	}
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, errs.Wrap(errs.KindStorage, err)
	}
	seq, err := db.GetSequence([]byte("EVENTS"), 1000)
	if err != nil {
		db.Close()
		return nil, errs.Wrap(errs.KindStorage, err)
	}
	return &Store{db: db, seq: seq, dir: dir}, nil
}

// Close releases the sequence lease and closes the database.
func (s *Store) Close() error {
	if s.seq != nil {
		_ = s.seq.Release()
	}
	return s.db.Close()
}

// Path returns the directory this store was opened at.
func (s *Store) Path() string { return s.dir }

func u64be(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

func i64be(v int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(v))
	return b
}

// invI64be inverts the sign bit ordering so big-endian byte comparison of
// i64be(^v) sorts descending for a naturally ascending value v >= 0. Used
// for the created_at-desc event index, where iteration order matters.
func invI64be(v int64) []byte {
	return i64be(^v)
}

func eventKey(id string) []byte {
	k := make([]byte, 0, 1+len(id))
	k = append(k, prefixEvent)
	return append(k, id...)
}

func byAuthorTimeKey(author string, createdAt int64, id string) []byte {
	k := make([]byte, 0, 1+len(author)+8+len(id))
	k = append(k, prefixEventByAuthorTime)
	k = append(k, author...)
	k = append(k, invI64be(createdAt)...)
	return append(k, id...)
}

func byTagKey(letter byte, value string, createdAt int64, id string) []byte {
	k := make([]byte, 0, 2+len(value)+8+len(id))
	k = append(k, prefixEventByTag, letter)
	k = append(k, value...)
	k = append(k, invI64be(createdAt)...)
	return append(k, id...)
}

func replaceableKey(author string, kind int, dTag string) []byte {
	k := make([]byte, 0, 1+len(author)+4+len(dTag))
	k = append(k, prefixReplaceableIndex)
	k = append(k, author...)
	var kb [4]byte
	binary.BigEndian.PutUint32(kb[:], uint32(kind))
	k = append(k, kb[:]...)
	return append(k, dTag...)
}

func now() time.Time { return time.Now() }

func marshal(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, errs.Wrap(errs.KindJSON, err)
	}
	return b, nil
}

func unmarshal(b []byte, v any) error {
	if err := json.Unmarshal(b, v); err != nil {
		return errs.Wrap(errs.KindJSON, err)
	}
	return nil
}

func withPath(dir, name string) string { return filepath.Join(dir, name) }
