package postbuilder

import (
	"context"
	"testing"

	"github.com/nbd-wtf/go-nostr"

	"github.com/pinpox/nitrousd/internal/errs"
	"github.com/pinpox/nitrousd/internal/person"
)

type memSigner struct {
	sk string
	pk string
}

func newMemSigner(t *testing.T) *memSigner {
	t.Helper()
	sk := nostr.GeneratePrivateKey()
	pk, err := nostr.GetPublicKey(sk)
	if err != nil {
		t.Fatalf("GetPublicKey: %v", err)
	}
	return &memSigner{sk: sk, pk: pk}
}

func (m *memSigner) SignEvent(e *nostr.Event) error { return e.Sign(m.sk) }
func (m *memSigner) PublicKey() (string, bool)      { return m.pk, true }
func (m *memSigner) SecretKey() (string, error)     { return m.sk, nil }

type memStore struct {
	events map[string]*nostr.Event
}

func newMemStore() *memStore { return &memStore{events: make(map[string]*nostr.Event)} }

func (m *memStore) GetEvent(id string) (*nostr.Event, error) {
	e, ok := m.events[id]
	if !ok {
		return nil, nil
	}
	return e, nil
}

func (m *memStore) put(e *nostr.Event) { m.events[e.ID] = e }

func TestTextNoteSimple(t *testing.T) {
	b := New(newMemStore(), newMemSigner(t), Options{})
	e, err := b.TextNote("hello world", nil, "", "", "")
	if err != nil {
		t.Fatalf("TextNote: %v", err)
	}
	if e.Kind != 1 || e.Content != "hello world" {
		t.Errorf("TextNote = %+v", e)
	}
	ok, err := e.CheckSignature()
	if err != nil || !ok {
		t.Fatalf("expected a validly signed note: ok=%v err=%v", ok, err)
	}
}

func TestTextNoteClientTag(t *testing.T) {
	b := New(newMemStore(), newMemSigner(t), Options{ClientTag: true})
	e, err := b.TextNote("hi", nil, "", "", "")
	if err != nil {
		t.Fatal(err)
	}
	var found bool
	for _, tg := range e.Tags {
		if len(tg) >= 2 && tg[0] == "client" && tg[1] == "nitrousd" {
			found = true
		}
	}
	if !found {
		t.Error("expected a client tag when Options.ClientTag is set")
	}
}

func TestTextNoteReplyChainMarksRootAndReply(t *testing.T) {
	st := newMemStore()
	b := New(st, newMemSigner(t), Options{})

	root, err := b.TextNote("root post", nil, "", "", "")
	if err != nil {
		t.Fatal(err)
	}
	st.put(root)

	mid, err := b.TextNote("middle reply", nil, root.ID, "", "")
	if err != nil {
		t.Fatal(err)
	}
	st.put(mid)

	leaf, err := b.TextNote("leaf reply", nil, mid.ID, "", "")
	if err != nil {
		t.Fatal(err)
	}

	var rootTag, replyTag nostr.Tag
	for _, tg := range leaf.Tags {
		if len(tg) >= 4 && tg[0] == "e" {
			switch tg[3] {
			case "root":
				rootTag = tg
			case "reply":
				replyTag = tg
			}
		}
	}
	if replyTag == nil || replyTag[1] != mid.ID {
		t.Errorf("expected reply marker on the direct parent %s, got %v", mid.ID, leaf.Tags)
	}
	if rootTag == nil || rootTag[1] != root.ID {
		t.Errorf("expected root marker on the thread root %s, got %v", root.ID, leaf.Tags)
	}
}

func TestTextNoteReplyChainSingleParentIsBothRootAndReply(t *testing.T) {
	st := newMemStore()
	b := New(st, newMemSigner(t), Options{})
	root, err := b.TextNote("root post", nil, "", "", "")
	if err != nil {
		t.Fatal(err)
	}
	st.put(root)

	reply, err := b.TextNote("direct reply", nil, root.ID, "", "")
	if err != nil {
		t.Fatal(err)
	}
	var found bool
	for _, tg := range reply.Tags {
		if len(tg) >= 4 && tg[0] == "e" && tg[1] == root.ID && tg[3] == "root" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected the single ancestor to be tagged root, got %v", reply.Tags)
	}
}

func TestRepostKind1EmbedsJSON(t *testing.T) {
	b := New(newMemStore(), newMemSigner(t), Options{})
	target, err := b.TextNote("original", nil, "", "", "")
	if err != nil {
		t.Fatal(err)
	}
	repost, err := b.Repost(target, "")
	if err != nil {
		t.Fatal(err)
	}
	if repost.Kind != 6 {
		t.Errorf("Kind = %d, want 6 for a kind-1 repost", repost.Kind)
	}
	if repost.Content == "" {
		t.Error("expected kind-6 repost to embed the original event JSON")
	}
}

func TestRepostOtherKindUsesKind16(t *testing.T) {
	b := New(newMemStore(), newMemSigner(t), Options{})
	target := &nostr.Event{ID: "x", Kind: 30023, PubKey: "author"}
	repost, err := b.Repost(target, "myslug")
	if err != nil {
		t.Fatal(err)
	}
	if repost.Kind != 16 {
		t.Errorf("Kind = %d, want 16 for a non-kind-1 repost", repost.Kind)
	}
	var hasK, hasA bool
	for _, tg := range repost.Tags {
		if len(tg) >= 2 && tg[0] == "k" && tg[1] == "30023" {
			hasK = true
		}
		if len(tg) >= 2 && tg[0] == "a" {
			hasA = true
		}
	}
	if !hasK {
		t.Error("expected a k-tag naming the original kind")
	}
	if !hasA {
		t.Error("expected an a-tag for an addressable target")
	}
}

func TestDeleteBuildsEAndATags(t *testing.T) {
	b := New(newMemStore(), newMemSigner(t), Options{})
	e, err := b.Delete([]string{"id1"}, []string{"30000:pk:slot"}, "spam")
	if err != nil {
		t.Fatal(err)
	}
	if e.Kind != 5 || e.Content != "spam" {
		t.Errorf("Delete event = %+v", e)
	}
	var hasE, hasA bool
	for _, tg := range e.Tags {
		if tg[0] == "e" {
			hasE = true
		}
		if tg[0] == "a" {
			hasA = true
		}
	}
	if !hasE || !hasA {
		t.Errorf("expected both e-tag and a-tag, got %v", e.Tags)
	}
}

func TestBookmarksListUsesKind10003AndETags(t *testing.T) {
	sign := newMemSigner(t)
	b := New(newMemStore(), sign, Options{})
	l := person.NewList(person.Bookmarks, 0, "")
	l.Add("bookmarkedevent1", false)

	e, err := b.BookmarksList(l)
	if err != nil {
		t.Fatalf("BookmarksList: %v", err)
	}
	if e.Kind != person.KindBookmarks {
		t.Errorf("Kind = %d, want %d", e.Kind, person.KindBookmarks)
	}
	var found bool
	for _, tg := range e.Tags {
		if len(tg) >= 2 && tg[0] == "e" && tg[1] == "bookmarkedevent1" {
			found = true
		}
	}
	if !found {
		t.Error("expected the bookmarked event id to appear as an e-tag")
	}
}

func TestMineEventReachesTargetBits(t *testing.T) {
	signer := newMemSigner(t)
	e := &nostr.Event{Kind: 1, Content: "mined"}
	if err := MineEvent(signer, e, 8, nil, nil); err != nil {
		t.Fatalf("MineEvent: %v", err)
	}
	ok, err := e.CheckSignature()
	if err != nil || !ok {
		t.Fatalf("mined event should still carry a valid signature: ok=%v err=%v", ok, err)
	}
	var hasNonce bool
	for _, tg := range e.Tags {
		if len(tg) >= 1 && tg[0] == "nonce" {
			hasNonce = true
		}
	}
	if !hasNonce {
		t.Error("expected a nonce tag on the mined event")
	}
}

func TestMineEventCancellation(t *testing.T) {
	signer := newMemSigner(t)
	e := &nostr.Event{Kind: 1, Content: "mined"}
	cancel := make(chan struct{})
	close(cancel)
	err := MineEvent(signer, e, 255, nil, cancel)
	if err == nil {
		t.Fatal("expected MineEvent to return an error once cancelled")
	}
	if errs.KindOf(err) != errs.KindTimeout {
		t.Errorf("expected KindTimeout, got %v", errs.KindOf(err))
	}
}

func TestDirectMessageToLegacyNip04(t *testing.T) {
	sender := newMemSigner(t)
	recipientSK := nostr.GeneratePrivateKey()
	recipientPK, err := nostr.GetPublicKey(recipientSK)
	if err != nil {
		t.Fatal(err)
	}
	b := New(newMemStore(), sender, Options{})
	dm, err := b.DirectMessageTo(context.Background(), recipientPK, "hi there", false)
	if err != nil {
		t.Fatalf("DirectMessageTo: %v", err)
	}
	if !dm.Legacy || dm.ToThem == nil || dm.ToUs != nil {
		t.Fatalf("expected a legacy-only DM, got %+v", dm)
	}
	if dm.ToThem.Kind != 4 {
		t.Errorf("Kind = %d, want 4", dm.ToThem.Kind)
	}
	if dm.ToThem.Content == "hi there" {
		t.Error("expected the DM content to be encrypted, not stored in plaintext")
	}
}

func TestDirectMessageToGiftwrapNip17(t *testing.T) {
	sender := newMemSigner(t)
	recipientSK := nostr.GeneratePrivateKey()
	recipientPK, err := nostr.GetPublicKey(recipientSK)
	if err != nil {
		t.Fatal(err)
	}
	b := New(newMemStore(), sender, Options{})
	dm, err := b.DirectMessageTo(context.Background(), recipientPK, "hi there", true)
	if err != nil {
		t.Fatalf("DirectMessageTo: %v", err)
	}
	if dm.Legacy {
		t.Error("expected a giftwrapped DM, not legacy")
	}
	if dm.ToUs == nil || dm.ToThem == nil {
		t.Fatalf("expected both ToUs and ToThem giftwraps, got %+v", dm)
	}
	if dm.ToUs.Kind != 1059 || dm.ToThem.Kind != 1059 {
		t.Errorf("expected kind-1059 giftwraps, got %d/%d", dm.ToUs.Kind, dm.ToThem.Kind)
	}
	if dm.ToUs.ID == dm.ToThem.ID {
		t.Error("the two giftwrap copies should have distinct ids (distinct ephemeral wrap keys)")
	}
}
