package store

import (
	"testing"

	"github.com/nbd-wtf/go-nostr"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func signedEvent(t *testing.T, kind int, createdAt nostr.Timestamp, tags nostr.Tags) *nostr.Event {
	t.Helper()
	sk := nostr.GeneratePrivateKey()
	e := &nostr.Event{Kind: kind, CreatedAt: createdAt, Tags: tags}
	pk, err := nostr.GetPublicKey(sk)
	if err != nil {
		t.Fatalf("GetPublicKey: %v", err)
	}
	e.PubKey = pk
	if err := e.Sign(sk); err != nil {
		t.Fatalf("Sign: %v", err)
	}
	return e
}

func TestWriteIfMissing(t *testing.T) {
	s := openTestStore(t)
	e := signedEvent(t, 1, 100, nil)

	stored, err := s.WriteIfMissing(e)
	if err != nil {
		t.Fatalf("WriteIfMissing: %v", err)
	}
	if !stored {
		t.Error("expected first write to report stored=true")
	}

	stored, err = s.WriteIfMissing(e)
	if err != nil {
		t.Fatalf("WriteIfMissing (second): %v", err)
	}
	if stored {
		t.Error("expected second write of the same id to report stored=false")
	}

	got, err := s.GetEvent(e.ID)
	if err != nil {
		t.Fatalf("GetEvent: %v", err)
	}
	if got == nil || got.ID != e.ID {
		t.Fatalf("GetEvent returned %v, want event %s", got, e.ID)
	}
}

func TestReplaceEventKeepsNewest(t *testing.T) {
	s := openTestStore(t)
	sk := nostr.GeneratePrivateKey()
	pk, _ := nostr.GetPublicKey(sk)

	older := &nostr.Event{Kind: 0, CreatedAt: 100, PubKey: pk, Content: "old"}
	if err := older.Sign(sk); err != nil {
		t.Fatal(err)
	}
	newer := &nostr.Event{Kind: 0, CreatedAt: 200, PubKey: pk, Content: "new"}
	if err := newer.Sign(sk); err != nil {
		t.Fatal(err)
	}

	if replaced, err := s.ReplaceEvent(older); err != nil || !replaced {
		t.Fatalf("ReplaceEvent(older) = %v, %v", replaced, err)
	}
	if replaced, err := s.ReplaceEvent(newer); err != nil || !replaced {
		t.Fatalf("ReplaceEvent(newer) = %v, %v", replaced, err)
	}
	// An older event arriving after a newer one must not win.
	if replaced, err := s.ReplaceEvent(older); err != nil || replaced {
		t.Fatalf("ReplaceEvent(older again) = %v, %v, want replaced=false", replaced, err)
	}

	got, err := s.GetEvent(newer.ID)
	if err != nil || got == nil {
		t.Fatalf("GetEvent(newer): %v, %v", got, err)
	}
	if _, err := s.GetEvent(older.ID); err != nil {
		t.Fatalf("GetEvent(older) errored: %v", err)
	}
	stillThere, err := s.HasEvent(older.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stillThere {
		t.Error("older replaced event should have been deleted from the store")
	}
}

func TestReplaceEventTieBreaksByID(t *testing.T) {
	s := openTestStore(t)
	sk := nostr.GeneratePrivateKey()
	pk, _ := nostr.GetPublicKey(sk)

	a := &nostr.Event{Kind: 0, CreatedAt: 100, PubKey: pk, Content: "a"}
	if err := a.Sign(sk); err != nil {
		t.Fatal(err)
	}
	b := &nostr.Event{Kind: 0, CreatedAt: 100, PubKey: pk, Content: "b"}
	if err := b.Sign(sk); err != nil {
		t.Fatal(err)
	}

	first, second := a, b
	if first.ID > second.ID {
		first, second = second, first
	}
	// first has the lexicographically smaller id.

	if _, err := s.ReplaceEvent(second); err != nil {
		t.Fatal(err)
	}
	replaced, err := s.ReplaceEvent(first)
	if err != nil {
		t.Fatal(err)
	}
	if replaced {
		t.Error("lexicographically smaller id at equal created_at must not replace the winner")
	}
}

func TestAllEvents(t *testing.T) {
	s := openTestStore(t)
	e1 := signedEvent(t, 1, 100, nil)
	e2 := signedEvent(t, 1, 200, nil)
	if _, err := s.WriteIfMissing(e1); err != nil {
		t.Fatal(err)
	}
	if _, err := s.WriteIfMissing(e2); err != nil {
		t.Fatal(err)
	}
	all, err := s.AllEvents()
	if err != nil {
		t.Fatalf("AllEvents: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("AllEvents returned %d events, want 2", len(all))
	}
	ids := map[string]bool{all[0].ID: true, all[1].ID: true}
	if !ids[e1.ID] || !ids[e2.ID] {
		t.Errorf("AllEvents missing an expected id: %v", ids)
	}
}

func TestQueryByAuthorsOrdersNewestFirstAndRespectsSince(t *testing.T) {
	s := openTestStore(t)
	sk := nostr.GeneratePrivateKey()
	pk, _ := nostr.GetPublicKey(sk)

	var ids []string
	for _, ts := range []nostr.Timestamp{100, 200, 300} {
		e := &nostr.Event{Kind: 1, CreatedAt: ts, PubKey: pk}
		if err := e.Sign(sk); err != nil {
			t.Fatal(err)
		}
		if _, err := s.WriteIfMissing(e); err != nil {
			t.Fatal(err)
		}
		ids = append(ids, e.ID)
	}

	got, err := s.QueryByAuthors([]string{pk}, 100, 1000, 0)
	if err != nil {
		t.Fatalf("QueryByAuthors: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 events with since=100 excluding it, got %d", len(got))
	}
	if got[0].CreatedAt < got[1].CreatedAt {
		t.Error("expected newest-first ordering")
	}
}

func TestQueryByTag(t *testing.T) {
	s := openTestStore(t)
	e := signedEvent(t, 1, 100, nostr.Tags{{"e", "target123"}})
	if _, err := s.WriteIfMissing(e); err != nil {
		t.Fatal(err)
	}
	got, err := s.QueryByTag('e', "target123", 0, nostr.Now()+1, 0)
	if err != nil {
		t.Fatalf("QueryByTag: %v", err)
	}
	if len(got) != 1 || got[0].ID != e.ID {
		t.Fatalf("QueryByTag returned %v, want [%s]", got, e.ID)
	}
}

func TestDeleteEventRemovesIndexes(t *testing.T) {
	s := openTestStore(t)
	e := signedEvent(t, 1, 100, nostr.Tags{{"e", "ref"}})
	if _, err := s.WriteIfMissing(e); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteEvent(e.ID); err != nil {
		t.Fatalf("DeleteEvent: %v", err)
	}
	has, err := s.HasEvent(e.ID)
	if err != nil {
		t.Fatal(err)
	}
	if has {
		t.Error("expected event to be gone after DeleteEvent")
	}
	byTag, err := s.QueryByTag('e', "ref", 0, nostr.Now()+1, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(byTag) != 0 {
		t.Errorf("expected tag index cleared after delete, got %v", byTag)
	}
}

func TestIsReplaceableAndEphemeral(t *testing.T) {
	cases := []struct {
		kind        int
		replaceable bool
		ephemeral   bool
	}{
		{0, true, false},
		{3, true, false},
		{1, false, false},
		{10002, true, false},
		{19999, true, false},
		{20000, false, true},
		{29999, false, true},
		{30000, true, false},
		{39999, true, false},
		{40000, false, false},
	}
	for _, c := range cases {
		if got := IsReplaceable(c.kind); got != c.replaceable {
			t.Errorf("IsReplaceable(%d) = %v, want %v", c.kind, got, c.replaceable)
		}
		if got := IsEphemeral(c.kind); got != c.ephemeral {
			t.Errorf("IsEphemeral(%d) = %v, want %v", c.kind, got, c.ephemeral)
		}
	}
}
