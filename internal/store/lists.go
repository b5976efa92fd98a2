package store

import (
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/pinpox/nitrousd/internal/errs"
	"github.com/pinpox/nitrousd/internal/person"
)

func listKey(kind person.ListKind, slot int) []byte {
	return []byte(fmt.Sprintf("%c%d:%d", prefixPersonList, kind, slot))
}

// PutList writes a person list.
func (s *Store) PutList(l *person.List) error {
	raw, err := marshal(l)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(listKey(l.Kind, l.Slot), raw)
	})
}

// GetList fetches a person list, or nil if never allocated.
func (s *Store) GetList(kind person.ListKind, slot int) (*person.List, error) {
	var l person.List
	found := false
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(listKey(kind, slot))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(val []byte) error { return unmarshal(val, &l) })
	})
	if err != nil {
		return nil, errs.Wrap(errs.KindStorage, err)
	}
	if !found {
		return nil, nil
	}
	return &l, nil
}

// AllLists returns every allocated person list.
func (s *Store) AllLists() ([]*person.List, error) {
	var out []*person.List
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := []byte{prefixPersonList}
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var l person.List
			if err := it.Item().Value(func(val []byte) error { return unmarshal(val, &l) }); err != nil {
				return err
			}
			out = append(out, &l)
		}
		return nil
	})
	if err != nil {
		return nil, errs.Wrap(errs.KindStorage, err)
	}
	return out, nil
}

// AllocateCustomSlot finds the lowest unused Custom slot number, the
// analogue of the source's "list allocation" operation (ErrKindListAllocationFailed
// on exhaustion).
func (s *Store) AllocateCustomSlot(max int) (int, error) {
	lists, err := s.AllLists()
	if err != nil {
		return 0, err
	}
	used := make(map[int]bool)
	for _, l := range lists {
		if l.Kind == person.Custom {
			used[l.Slot] = true
		}
	}
	for slot := 1; slot <= max; slot++ {
		if !used[slot] {
			return slot, nil
		}
	}
	return 0, errs.New(errs.KindListAllocationFailed, "no free custom list slots")
}

// RenameList renames a list by (kind, slot), refusing the Followed and Muted
// lists.
func (s *Store) RenameList(kind person.ListKind, slot int, newTitle string) error {
	if kind == person.Followed || kind == person.Muted {
		return errs.New(errs.KindListIsWellKnown, "cannot rename a well-known list")
	}
	l, err := s.GetList(kind, slot)
	if err != nil {
		return err
	}
	if l == nil {
		return errs.New(errs.KindEventNotFound, "list not found")
	}
	l.Title = newTitle
	return s.PutList(l)
}
