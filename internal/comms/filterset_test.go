package comms

import (
	"testing"

	"github.com/nbd-wtf/go-nostr"
)

func TestHandleDeterministic(t *testing.T) {
	fs := FilterSet{Kind: FSPersonFeedChunk, Pubkeys: []string{"alice"}}
	if fs.Handle() != fs.Handle() {
		t.Error("Handle() should be stable across calls for the same value")
	}
}

func TestHandleDistinctPerVariant(t *testing.T) {
	a := FilterSet{Kind: FSRepliesToID, ID: "event1"}
	b := FilterSet{Kind: FSRepliesToID, ID: "event2"}
	if a.Handle() == b.Handle() {
		t.Errorf("distinct IDs should yield distinct handles, got %q for both", a.Handle())
	}

	c := FilterSet{Kind: FSSearch, Text: "nostr"}
	if a.Handle() == c.Handle() {
		t.Error("different FilterSetKinds should not collide")
	}
}

func TestHandleGiftwrapsUsesEventIDN(t *testing.T) {
	fs := FilterSet{Kind: FSGiftwraps, EventIDN: 7}
	if fs.Handle() != "temp_events_7" {
		t.Errorf("Handle() = %q, want temp_events_7", fs.Handle())
	}
}

func TestFiltersNip46(t *testing.T) {
	fs := FilterSet{Kind: FSNip46, Pubkeys: []string{"pk1"}}
	filters := fs.Filters(false)
	if len(filters) != 1 {
		t.Fatalf("expected 1 filter, got %d", len(filters))
	}
	f := filters[0]
	if len(f.Kinds) != 1 || f.Kinds[0] != 24133 {
		t.Errorf("expected kind 24133, got %v", f.Kinds)
	}
	if got := f.Tags["p"]; len(got) != 1 || got[0] != "pk1" {
		t.Errorf("expected p-tag filter on pk1, got %v", got)
	}
}

func TestFiltersGiftwrapsRange(t *testing.T) {
	fs := FilterSet{Kind: FSGiftwraps, Pubkeys: []string{"pk1"}, Range: [2]nostr.Timestamp{100, 200}}
	f := fs.Filters(false)[0]
	if f.Since == nil || *f.Since != 100 {
		t.Errorf("expected Since=100, got %v", f.Since)
	}
	if f.Until == nil || *f.Until != 200 {
		t.Errorf("expected Until=200, got %v", f.Until)
	}
}

func TestIsLoadingMore(t *testing.T) {
	if !(FilterSet{Kind: FSGeneralFeedChunk}).IsLoadingMore() {
		t.Error("FSGeneralFeedChunk should be loading-more")
	}
	if !(FilterSet{Kind: FSPersonFeedChunk}).IsLoadingMore() {
		t.Error("FSPersonFeedChunk should be loading-more")
	}
	if (FilterSet{Kind: FSMetadata}).IsLoadingMore() {
		t.Error("FSMetadata should not be loading-more")
	}
}

func TestCanHaveDuplicates(t *testing.T) {
	if !(FilterSet{Kind: FSGiftwraps}).CanHaveDuplicates() {
		t.Error("FSGiftwraps should allow duplicate subscriptions")
	}
	if (FilterSet{Kind: FSSearch}).CanHaveDuplicates() {
		t.Error("FSSearch should not allow duplicate subscriptions")
	}
}
