package feed

import (
	"testing"
	"time"

	"github.com/nbd-wtf/go-nostr"

	"github.com/pinpox/nitrousd/internal/person"
	"github.com/pinpox/nitrousd/internal/store"
)

func newTestSource(t *testing.T, followed []string, myPubkey string) (Source, *store.Store) {
	t.Helper()
	st, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return Source{
		Store:                st,
		FollowedPubkeys:      func() []string { return followed },
		MyPubkey:             myPubkey,
		FollowedWindow:       time.Hour,
		InboxWindow:          time.Hour,
		PersonWindow:         time.Hour,
		FeedDisplayableKinds: []int{1, 1111, 6, 16},
		DMKinds:              []int{4, 1059},
	}, st
}

func signNote(t *testing.T, sk string, kind int, content string, tags nostr.Tags) *nostr.Event {
	t.Helper()
	pk, err := nostr.GetPublicKey(sk)
	if err != nil {
		t.Fatal(err)
	}
	e := &nostr.Event{Kind: kind, Content: content, Tags: tags, CreatedAt: nostr.Now(), PubKey: pk}
	if err := e.Sign(sk); err != nil {
		t.Fatal(err)
	}
	return e
}

func TestComputeFollowedIncludesFollowedAndSelf(t *testing.T) {
	aliceSK := nostr.GeneratePrivateKey()
	alicePK, _ := nostr.GetPublicKey(aliceSK)
	meSK := nostr.GeneratePrivateKey()
	mePK, _ := nostr.GetPublicKey(meSK)

	src, st := newTestSource(t, []string{alicePK}, mePK)
	aliceNote := signNote(t, aliceSK, 1, "hi", nil)
	myNote := signNote(t, meSK, 1, "me too", nil)
	strangerNote := signNote(t, nostr.GeneratePrivateKey(), 1, "unrelated", nil)

	for _, e := range []*nostr.Event{aliceNote, myNote, strangerNote} {
		if _, err := st.WriteIfMissing(e); err != nil {
			t.Fatal(err)
		}
	}

	f := New(src, time.Hour)
	f.SetSelector(Selector{Kind: KFollowed})
	ids := f.IDs()

	want := map[string]bool{aliceNote.ID: true, myNote.ID: true}
	got := map[string]bool{}
	for _, id := range ids {
		got[id] = true
	}
	for id := range want {
		if !got[id] {
			t.Errorf("expected %s in followed feed, got %v", id, ids)
		}
	}
	if got[strangerNote.ID] {
		t.Error("unrelated stranger's note should not appear in the followed feed")
	}
}

func TestComputeFollowedExcludesRepliesWithoutWithReplies(t *testing.T) {
	aliceSK := nostr.GeneratePrivateKey()
	alicePK, _ := nostr.GetPublicKey(aliceSK)
	src, st := newTestSource(t, []string{alicePK}, "")

	reply := signNote(t, aliceSK, 1, "a reply", nostr.Tags{{"e", "parent123", "", "reply"}})
	if _, err := st.WriteIfMissing(reply); err != nil {
		t.Fatal(err)
	}

	f := New(src, time.Hour)
	f.SetSelector(Selector{Kind: KFollowed, WithReplies: false})
	if ids := f.IDs(); len(ids) != 0 {
		t.Errorf("expected replies excluded, got %v", ids)
	}

	f.SetSelector(Selector{Kind: KFollowed, WithReplies: true})
	if ids := f.IDs(); len(ids) != 1 {
		t.Errorf("expected the reply included with WithReplies=true, got %v", ids)
	}
}

func TestComputeInboxFindsMentionsAndDMs(t *testing.T) {
	meSK := nostr.GeneratePrivateKey()
	mePK, _ := nostr.GetPublicKey(meSK)
	src, st := newTestSource(t, nil, mePK)

	mention := signNote(t, nostr.GeneratePrivateKey(), 1, "hey you", nostr.Tags{{"e", "root", "", "reply"}, {"p", mePK}})
	dm := signNote(t, nostr.GeneratePrivateKey(), 4, "encrypted", nostr.Tags{{"p", mePK}})
	for _, e := range []*nostr.Event{mention, dm} {
		if _, err := st.WriteIfMissing(e); err != nil {
			t.Fatal(err)
		}
	}

	f := New(src, time.Hour)
	f.SetSelector(Selector{Kind: KInbox, Indirect: true})
	ids := map[string]bool{}
	for _, id := range f.IDs() {
		ids[id] = true
	}
	if !ids[mention.ID] {
		t.Error("expected a mention tagging me to appear in the inbox")
	}
	if !ids[dm.ID] {
		t.Error("expected a DM tagging me to appear in the inbox")
	}
}

func TestComputeThreadWalksToRoot(t *testing.T) {
	src, st := newTestSource(t, nil, "")
	sk := nostr.GeneratePrivateKey()
	root := signNote(t, sk, 1, "root", nil)
	mid := signNote(t, sk, 1, "mid", nostr.Tags{{"e", root.ID, "", "reply"}})
	leaf := signNote(t, sk, 1, "leaf", nostr.Tags{{"e", mid.ID, "", "reply"}})
	for _, e := range []*nostr.Event{root, mid, leaf} {
		if _, err := st.WriteIfMissing(e); err != nil {
			t.Fatal(err)
		}
	}

	f := New(src, time.Hour)
	f.SetSelector(Selector{Kind: KThread, ThreadID: leaf.ID})
	if f.ThreadParent() != root.ID {
		t.Errorf("ThreadParent() = %q, want %q", f.ThreadParent(), root.ID)
	}
}

func TestComputeGlobalReadsFromSetGlobalIDs(t *testing.T) {
	src, _ := newTestSource(t, nil, "")
	f := New(src, time.Hour)
	f.SetGlobalIDs([]string{"a", "b", "c"})
	f.SetSelector(Selector{Kind: KGlobal})
	ids := f.IDs()
	if len(ids) != 3 {
		t.Errorf("IDs() = %v, want 3 global ids", ids)
	}
}

func TestComputeBookmarks(t *testing.T) {
	src, st := newTestSource(t, nil, "")
	l := person.NewList(person.Bookmarks, 0, "")
	l.Add("bookmarkedid123", false)
	if err := st.PutList(l); err != nil {
		t.Fatal(err)
	}

	f := New(src, time.Hour)
	f.SetSelector(Selector{Kind: KBookmarks})
	ids := map[string]bool{}
	for _, id := range f.IDs() {
		ids[id] = true
	}
	if !ids["bookmarkedid123"] {
		t.Errorf("expected bookmarked id present, got %v", f.IDs())
	}
}
