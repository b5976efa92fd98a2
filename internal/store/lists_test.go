package store

import (
	"testing"

	"github.com/pinpox/nitrousd/internal/person"
)

func TestListPutGetRoundtrip(t *testing.T) {
	s := openTestStore(t)
	l := person.NewList(person.Followed, 0, "")
	l.Add("alice", false)
	l.Add("bob", true)

	if err := s.PutList(l); err != nil {
		t.Fatalf("PutList: %v", err)
	}
	got, err := s.GetList(person.Followed, 0)
	if err != nil {
		t.Fatalf("GetList: %v", err)
	}
	if got == nil || got.Len() != 2 {
		t.Fatalf("GetList = %+v, want 2 members", got)
	}
}

func TestGetListUnallocatedReturnsNil(t *testing.T) {
	s := openTestStore(t)
	got, err := s.GetList(person.Custom, 5)
	if err != nil {
		t.Fatalf("GetList: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for unallocated custom list, got %+v", got)
	}
}

func TestAllocateCustomSlotSkipsUsed(t *testing.T) {
	s := openTestStore(t)
	l := person.NewList(person.Custom, 1, "group one")
	if err := s.PutList(l); err != nil {
		t.Fatal(err)
	}
	slot, err := s.AllocateCustomSlot(10)
	if err != nil {
		t.Fatalf("AllocateCustomSlot: %v", err)
	}
	if slot != 2 {
		t.Errorf("AllocateCustomSlot = %d, want 2 (slot 1 already used)", slot)
	}
}

func TestAllocateCustomSlotExhausted(t *testing.T) {
	s := openTestStore(t)
	for i := 1; i <= 3; i++ {
		if err := s.PutList(person.NewList(person.Custom, i, "")); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := s.AllocateCustomSlot(3); err == nil {
		t.Error("expected an error when every slot up to max is used")
	}
}

func TestRenameListRefusesWellKnown(t *testing.T) {
	s := openTestStore(t)
	if err := s.PutList(person.NewList(person.Followed, 0, "")); err != nil {
		t.Fatal(err)
	}
	if err := s.RenameList(person.Followed, 0, "renamed"); err == nil {
		t.Error("expected RenameList to refuse the well-known Followed list")
	}
}

func TestRenameListCustom(t *testing.T) {
	s := openTestStore(t)
	if err := s.PutList(person.NewList(person.Custom, 1, "old title")); err != nil {
		t.Fatal(err)
	}
	if err := s.RenameList(person.Custom, 1, "new title"); err != nil {
		t.Fatalf("RenameList: %v", err)
	}
	got, err := s.GetList(person.Custom, 1)
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "new title" {
		t.Errorf("Title = %q, want %q", got.Title, "new title")
	}
}
