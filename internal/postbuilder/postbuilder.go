// Package postbuilder provides deterministic PreEvent builders for every
// outgoing event kind the Overlord can post, a single reusable
// construction surface that signs through internal/signer instead of a
// bare secret-key string.
package postbuilder

import (
	"context"
	"fmt"

	"github.com/nbd-wtf/go-nostr"

	"github.com/pinpox/nitrousd/internal/errs"
	"github.com/pinpox/nitrousd/internal/person"
	"github.com/pinpox/nitrousd/internal/relay"
)

// StoreReader is the subset of internal/store the reply-chain walk needs.
type StoreReader interface {
	GetEvent(id string) (*nostr.Event, error)
}

// Signer is the subset of internal/signer a builder needs.
type Signer interface {
	SignEvent(e *nostr.Event) error
	PublicKey() (string, bool)
	SecretKey() (string, error)
}

// Options configures every builder.
type Options struct {
	ClientTag bool // add client=nitrousd when true, mirroring gossip's client tag
	PowTarget int  // leading zero bits required; 0 disables mining
}

// Builder constructs and signs outgoing events.
type Builder struct {
	store StoreReader
	sign  Signer
	opts  Options
}

// New creates a Builder.
func New(store StoreReader, sign Signer, opts Options) *Builder {
	return &Builder{store: store, sign: sign, opts: opts}
}

func (b *Builder) clientTag() (nostr.Tag, bool) {
	if !b.opts.ClientTag {
		return nil, false
	}
	return nostr.Tag{"client", "nitrousd"}, true
}

func (b *Builder) finish(e *nostr.Event) (*nostr.Event, error) {
	if e.CreatedAt == 0 {
		e.CreatedAt = nostr.Now()
	}
	if pk, ok := b.sign.PublicKey(); ok {
		e.PubKey = pk
	}
	if b.opts.PowTarget > 0 {
		if err := MineEvent(b.sign, e, b.opts.PowTarget, nil, nil); err != nil {
			return nil, err
		}
		return e, nil
	}
	if err := b.sign.SignEvent(e); err != nil {
		return nil, err
	}
	return e, nil
}

// TextNote builds a kind-1 note. inReplyTo, if non-empty, is the id of the
// direct parent being replied to; the full ancestor chain is e-tagged per
// NIP-10 and every p-tag of the direct parent is re-emitted.
func (b *Builder) TextNote(content string, extraTags nostr.Tags, inReplyTo, subject, contentWarning string) (*nostr.Event, error) {
	tags := append(nostr.Tags{}, extraTags...)
	if t, ok := b.clientTag(); ok {
		tags = append(tags, t)
	}
	if subject != "" {
		tags = append(tags, nostr.Tag{"subject", subject})
	}
	if contentWarning != "" {
		tags = append(tags, nostr.Tag{"content-warning", contentWarning})
	}
	if inReplyTo != "" {
		tags = append(tags, b.replyChainTags(inReplyTo)...)
	}
	e := &nostr.Event{Kind: 1, Content: content, Tags: tags}
	return b.finish(e)
}

// replyChainTags walks every locally-known ancestor of parentID and emits
// an e-tag for each, marking the root and the direct parent per NIP-10, and
// re-emits every p-tag the direct parent itself carried.
func (b *Builder) replyChainTags(parentID string) nostr.Tags {
	var chain []string
	current := parentID
	for i := 0; i < 64 && current != ""; i++ {
		chain = append(chain, current)
		parent, err := b.store.GetEvent(current)
		if err != nil || parent == nil {
			break
		}
		current = directParentID(parent)
	}

	var tags nostr.Tags
	for i, id := range chain {
		marker := ""
		switch {
		case i == 0:
			marker = "reply"
		case i == len(chain)-1:
			marker = "root"
		}
		if marker == "" {
			tags = append(tags, nostr.Tag{"e", id})
			continue
		}
		tags = append(tags, nostr.Tag{"e", id, "", marker})
	}
	if len(chain) == 1 {
		// direct parent is also the root
		tags = nostr.Tags{{"e", chain[0], "", "root"}}
	}

	if parent, err := b.store.GetEvent(parentID); err == nil && parent != nil {
		tags = append(tags, nostr.Tag{"p", parent.PubKey})
		for _, t := range parent.Tags {
			if len(t) >= 2 && t[0] == "p" {
				tags = append(tags, t)
			}
		}
	}
	return tags
}

func directParentID(e *nostr.Event) string {
	var fallback string
	for _, t := range e.Tags {
		if len(t) >= 2 && t[0] == "e" {
			if len(t) >= 4 && t[3] == "reply" {
				return t[1]
			}
			fallback = t[1]
		}
	}
	return fallback
}

// Comment builds a kind-1111 NIP-22 comment, used for replies to non-text-note
// events. rootKind/rootAuthor/rootID identify the thread root; parentID may
// equal rootID for a top-level comment.
func (b *Builder) Comment(content string, rootKind int, rootAuthor, rootID, parentID, parentAuthor string, parentKind int) (*nostr.Event, error) {
	tags := nostr.Tags{
		{"E", rootID, "", rootAuthor},
		{"K", fmt.Sprintf("%d", rootKind)},
		{"P", rootAuthor},
		{"e", parentID, "", parentAuthor},
		{"k", fmt.Sprintf("%d", parentKind)},
		{"p", parentAuthor},
	}
	e := &nostr.Event{Kind: 1111, Content: content, Tags: tags}
	return b.finish(e)
}

// Repost builds kind 6 (kind-1 targets, JSON embedded) or kind 16 (any other
// kind, with a k-tag for the original kind and an a-tag if addressable).
func (b *Builder) Repost(target *nostr.Event, dTag string) (*nostr.Event, error) {
	var e *nostr.Event
	if target.Kind == 1 {
		raw, err := target.MarshalJSON()
		if err != nil {
			return nil, errs.Wrap(errs.KindJSON, err)
		}
		e = &nostr.Event{
			Kind:    6,
			Content: string(raw),
			Tags:    nostr.Tags{{"e", target.ID}, {"p", target.PubKey}},
		}
	} else {
		tags := nostr.Tags{
			{"e", target.ID}, {"p", target.PubKey},
			{"k", fmt.Sprintf("%d", target.Kind)},
		}
		if addr := addressOf(target, dTag); addr != "" {
			tags = append(tags, nostr.Tag{"a", addr})
		}
		e = &nostr.Event{Kind: 16, Tags: tags}
	}
	return b.finish(e)
}

func addressOf(e *nostr.Event, dTag string) string {
	if e.Kind < 10000 {
		return ""
	}
	return fmt.Sprintf("%d:%s:%s", e.Kind, e.PubKey, dTag)
}

// React builds a kind-7 reaction.
func (b *Builder) React(targetID, targetAuthor, char string) (*nostr.Event, error) {
	e := &nostr.Event{
		Kind:    7,
		Content: char,
		Tags:    nostr.Tags{{"e", targetID}, {"p", targetAuthor}},
	}
	return b.finish(e)
}

// Delete builds a kind-5 deletion covering ids and addresses.
func (b *Builder) Delete(ids, addrs []string, reason string) (*nostr.Event, error) {
	var tags nostr.Tags
	for _, id := range ids {
		tags = append(tags, nostr.Tag{"e", id})
	}
	for _, addr := range addrs {
		tags = append(tags, nostr.Tag{"a", addr})
	}
	e := &nostr.Event{Kind: 5, Content: reason, Tags: tags}
	return b.finish(e)
}

// RelayListEntry is one r-tag for a kind-10002 relay list.
type RelayListEntry struct {
	URL   string
	Usage relay.Usage // only Read/Write bits are meaningful on the wire
}

// RelayList builds the kind-10002 advertised relay list.
func (b *Builder) RelayList(entries []RelayListEntry) (*nostr.Event, error) {
	var tags nostr.Tags
	for _, r := range entries {
		read, write := r.Usage.Has(relay.Read), r.Usage.Has(relay.Write)
		switch {
		case read && write:
			tags = append(tags, nostr.Tag{"r", r.URL})
		case read:
			tags = append(tags, nostr.Tag{"r", r.URL, "read"})
		case write:
			tags = append(tags, nostr.Tag{"r", r.URL, "write"})
		}
	}
	e := &nostr.Event{Kind: 10002, Tags: tags}
	return b.finish(e)
}

// DMRelayList builds the kind-10050 DM relay list.
func (b *Builder) DMRelayList(urls []string) (*nostr.Event, error) {
	var tags nostr.Tags
	for _, u := range urls {
		tags = append(tags, nostr.Tag{"relay", u})
	}
	e := &nostr.Event{Kind: 10050, Tags: tags}
	return b.finish(e)
}

// ContactList builds a kind-3 contact list from the Followed person list,
// embedding each followed pubkey's best-known relay usage as legacy JSON
// content (the format NIP-02 predates NIP-65 with, still widely read).
func (b *Builder) ContactList(l *person.List, relayHints map[string]struct{ Read, Write bool }) (*nostr.Event, error) {
	var tags nostr.Tags
	for pk := range l.Members {
		tags = append(tags, nostr.Tag{"p", pk})
	}
	content := "{}"
	if len(relayHints) > 0 {
		content = marshalRelayHints(relayHints)
	}
	e := &nostr.Event{Kind: 3, Content: content, Tags: tags}
	return b.finish(e)
}

// FollowSets builds a kind-30000 follow set (custom list) from l, using
// person.BuildListEvent's NIP-51 public/private tag split.
func (b *Builder) FollowSets(l *person.List, slot int) (*nostr.Event, error) {
	sk, err := b.sign.SecretKey()
	if err != nil {
		return nil, err
	}
	tags, content, err := person.BuildListEvent(context.Background(), sk, l)
	if err != nil {
		return nil, err
	}
	tags = append(tags, nostr.Tag{"d", fmt.Sprintf("custom-%d", slot)})
	e := &nostr.Event{Kind: 30000, Content: content, Tags: tags}
	return b.finish(e)
}

// BookmarksList builds the kind-10003 bookmarks event from l, a plain
// replaceable list (no d-tag, unlike the parameterized kind-30000 sets
// FollowSets produces) whose members are event ids rather than pubkeys.
func (b *Builder) BookmarksList(l *person.List) (*nostr.Event, error) {
	sk, err := b.sign.SecretKey()
	if err != nil {
		return nil, err
	}
	tags, content, err := person.BuildListEvent(context.Background(), sk, l)
	if err != nil {
		return nil, err
	}
	e := &nostr.Event{Kind: person.KindBookmarks, Content: content, Tags: tags}
	return b.finish(e)
}

// Metadata builds a kind-0 profile event from raw already-marshaled JSON
// content (the caller, not this package, owns the kind-0 JSON shape).
func (b *Builder) Metadata(contentJSON string) (*nostr.Event, error) {
	e := &nostr.Event{Kind: 0, Content: contentJSON}
	return b.finish(e)
}

// BlossomServerList builds the kind-10063 server list.
func (b *Builder) BlossomServerList(servers []string) (*nostr.Event, error) {
	var tags nostr.Tags
	for _, s := range servers {
		tags = append(tags, nostr.Tag{"server", s})
	}
	e := &nostr.Event{Kind: 10063, Tags: tags}
	return b.finish(e)
}

func marshalRelayHints(hints map[string]struct{ Read, Write bool }) string {
	out := "{"
	first := true
	for url, rw := range hints {
		if !first {
			out += ","
		}
		first = false
		out += fmt.Sprintf("%q:{\"read\":%t,\"write\":%t}", url, rw.Read, rw.Write)
	}
	return out + "}"
}
