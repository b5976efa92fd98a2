// Package comms defines the inter-task message types: FilterSet, RelayJob,
// the Overlord/Minion message sum types, and Pending approval items.
package comms

import (
	"fmt"

	"github.com/nbd-wtf/go-nostr"
)

// FilterSetKind enumerates the purposes a subscription can serve. Each kind
// deterministically produces a handle and a wire filter list.
type FilterSetKind int

const (
	FSGeneralFeedFuture FilterSetKind = iota
	FSGeneralFeedChunk
	FSInboxFeedFuture
	FSMetadata
	FSDiscover
	FSRepliesToID
	FSPersonFeedChunk
	FSGiftwraps
	FSSearch
	FSConfig
	FSNip46
)

var fsPrefix = map[FilterSetKind]string{
	FSGeneralFeedFuture: "general_feed_future",
	FSGeneralFeedChunk:  "general_feed_chunk",
	FSInboxFeedFuture:   "inbox_feed_future",
	FSMetadata:          "temp_subscribe_metadata",
	FSDiscover:          "discover",
	FSRepliesToID:       "replies_to",
	FSPersonFeedChunk:   "person_feed_chunk",
	FSGiftwraps:         "giftwraps",
	FSSearch:            "search",
	FSConfig:            "config",
	FSNip46:             "nip46",
}

// FilterSet is a purpose-tagged bundle of parameters that can be turned into
// a stable handle string and a concrete list of wire filters.
type FilterSet struct {
	Kind FilterSetKind

	Pubkeys []string
	Anchor  nostr.Timestamp
	Until   nostr.Timestamp

	ID       string // for RepliesToID lookups
	Range    [2]nostr.Timestamp
	Text     string
	EventIDN int // disambiguator for temp_events_N style handles
}

// Handle returns the stable, deterministic subscription handle for this
// FilterSet. Distinct variants yield distinct prefixes; computing it twice
// for the same value yields the same string.
func (fs FilterSet) Handle() string {
	prefix := fsPrefix[fs.Kind]
	switch fs.Kind {
	case FSGeneralFeedFuture, FSGeneralFeedChunk, FSInboxFeedFuture:
		return prefix
	case FSMetadata, FSConfig, FSNip46, FSDiscover:
		return prefix
	case FSRepliesToID:
		return fmt.Sprintf("%s_%s", prefix, fs.ID)
	case FSPersonFeedChunk:
		if len(fs.Pubkeys) > 0 {
			return fmt.Sprintf("%s_%s", prefix, fs.Pubkeys[0])
		}
		return prefix
	case FSGiftwraps:
		return fmt.Sprintf("temp_events_%d", fs.EventIDN)
	case FSSearch:
		return fmt.Sprintf("%s_%s", prefix, fs.Text)
	default:
		return prefix
	}
}

// Filters builds the wire nostr.Filter list for this FilterSet. Callers pass
// the relay's SpamSafe usage bit as spamsafe; no variant's filters depend on
// it.
func (fs FilterSet) Filters(spamsafe bool) []nostr.Filter {
	switch fs.Kind {
	case FSGeneralFeedFuture:
		f := nostr.Filter{Authors: fs.Pubkeys, Since: tsPtr(fs.Anchor)}
		return []nostr.Filter{f}
	case FSGeneralFeedChunk:
		f := nostr.Filter{Authors: fs.Pubkeys, Until: tsPtr(fs.Anchor), Limit: 100}
		return []nostr.Filter{f}
	case FSInboxFeedFuture:
		f := nostr.Filter{Tags: nostr.TagMap{"p": fs.Pubkeys}, Since: tsPtr(fs.Anchor)}
		return []nostr.Filter{f}
	case FSMetadata:
		return []nostr.Filter{{Kinds: []int{0}, Authors: fs.Pubkeys}}
	case FSDiscover:
		return []nostr.Filter{{Kinds: []int{10002}, Authors: fs.Pubkeys}}
	case FSRepliesToID:
		return []nostr.Filter{{Tags: nostr.TagMap{"e": {fs.ID}}}}
	case FSPersonFeedChunk:
		f := nostr.Filter{Authors: fs.Pubkeys, Until: tsPtr(fs.Anchor), Limit: 100}
		return []nostr.Filter{f}
	case FSGiftwraps:
		f := nostr.Filter{Kinds: []int{1059}, Tags: nostr.TagMap{"p": fs.Pubkeys}}
		if fs.Range[0] != 0 {
			f.Since = tsPtr(fs.Range[0])
		}
		if fs.Range[1] != 0 {
			f.Until = tsPtr(fs.Range[1])
		}
		return []nostr.Filter{f}
	case FSSearch:
		return []nostr.Filter{{Search: fs.Text, Limit: 100}}
	case FSConfig:
		return []nostr.Filter{{Kinds: []int{30078}, Authors: fs.Pubkeys}}
	case FSNip46:
		return []nostr.Filter{{Kinds: []int{24133}, Tags: nostr.TagMap{"p": fs.Pubkeys}}}
	default:
		return nil
	}
}

// IsLoadingMore reports whether this FilterSet represents a "load more"
// backward pagination chunk (GeneralFeedChunk or PersonFeedChunk).
func (fs FilterSet) IsLoadingMore() bool {
	return fs.Kind == FSGeneralFeedChunk || fs.Kind == FSPersonFeedChunk
}

// CanHaveDuplicates reports whether the same handle may legitimately be
// subscribed more than once concurrently (e.g. one-shot event lookups),
// as opposed to subscriptions that should collapse onto the existing one.
func (fs FilterSet) CanHaveDuplicates() bool {
	return fs.Kind == FSGiftwraps
}

func tsPtr(ts nostr.Timestamp) *nostr.Timestamp {
	if ts == 0 {
		return nil
	}
	v := ts
	return &v
}
