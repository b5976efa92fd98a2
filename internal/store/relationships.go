package store

import (
	"github.com/dgraph-io/badger/v4"

	"github.com/pinpox/nitrousd/internal/errs"
)

// RelationshipKind enumerates the derived edge kinds tracked between
// events and the actors that reply to, repost, react to, delete, or
// otherwise reference them.
type RelationshipKind int

const (
	RelRepliesTo RelationshipKind = iota
	RelReposts
	RelQuotes
	RelReactsTo
	RelDeletes
	RelZaps
	RelLabels
	RelMutes
	RelPins
	RelTimestamps
	RelAnnotates
	RelSuppliesJobResult
	RelReports
	RelChatsWithin
	RelAwardsBadge
	RelRecommendsHandler
)

// Relationship is a derived edge targeting an event id or an address
// (kind:pubkey:dtag).
type Relationship struct {
	Kind     RelationshipKind
	By       string // the acting pubkey (reactor, deleter, reposter, ...)
	Reason   string // deletion reason, reaction char, label namespace, ...
	Amount   int64  // zap amount msats
}

func relByIDKey(targetID string, kind RelationshipKind, by string) []byte {
	k := make([]byte, 0, 1+len(targetID)+1+1+len(by))
	k = append(k, prefixRelationshipByID)
	k = append(k, targetID...)
	k = append(k, 0, byte(kind))
	return append(k, by...)
}

func relByAddrKey(addr string, kind RelationshipKind, by string) []byte {
	k := make([]byte, 0, 1+len(addr)+1+1+len(by))
	k = append(k, prefixRelationshipByAddr)
	k = append(k, addr...)
	k = append(k, 0, byte(kind))
	return append(k, by...)
}

// AddRelationshipByID writes (or overwrites) a by-id relationship edge.
func (s *Store) AddRelationshipByID(targetID string, rel Relationship) error {
	raw, err := marshal(rel)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(relByIDKey(targetID, rel.Kind, rel.By), raw)
	})
}

// AddRelationshipByAddr writes (or overwrites) a by-address relationship
// edge, addr being "kind:pubkey:dtag".
func (s *Store) AddRelationshipByAddr(addr string, rel Relationship) error {
	raw, err := marshal(rel)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(relByAddrKey(addr, rel.Kind, rel.By), raw)
	})
}

// RelationshipsByID returns every relationship recorded against targetID.
func (s *Store) RelationshipsByID(targetID string) ([]Relationship, error) {
	var out []Relationship
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := append([]byte{prefixRelationshipByID}, targetID...)
		prefix = append(prefix, 0)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var rel Relationship
			if err := it.Item().Value(func(val []byte) error { return unmarshal(val, &rel) }); err != nil {
				return err
			}
			out = append(out, rel)
		}
		return nil
	})
	if err != nil {
		return nil, errs.Wrap(errs.KindStorage, err)
	}
	return out, nil
}

// DeletesByAuthor reports whether targetID has a recorded Deletes edge
// authored by `by`, the pipeline's deletion gate.
func (s *Store) DeletesByAuthor(targetID, by string) (bool, error) {
	rels, err := s.RelationshipsByID(targetID)
	if err != nil {
		return false, err
	}
	for _, r := range rels {
		if r.Kind == RelDeletes && r.By == by {
			return true, nil
		}
	}
	return false, nil
}

// RelationshipsByAddr returns every relationship recorded against an
// addressable target.
func (s *Store) RelationshipsByAddr(addr string) ([]Relationship, error) {
	var out []Relationship
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := append([]byte{prefixRelationshipByAddr}, addr...)
		prefix = append(prefix, 0)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var rel Relationship
			if err := it.Item().Value(func(val []byte) error { return unmarshal(val, &rel) }); err != nil {
				return err
			}
			out = append(out, rel)
		}
		return nil
	})
	if err != nil {
		return nil, errs.Wrap(errs.KindStorage, err)
	}
	return out, nil
}
