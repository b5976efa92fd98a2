package person

import (
	"context"
	"encoding/json"

	"github.com/nbd-wtf/go-nostr"
	"github.com/nbd-wtf/go-nostr/nip04"
)

// Kind constants for the well-known and custom person list event kinds
// (NIP-51 lists), built on top of the List entity.
const (
	KindMuteList      = 10000
	KindFollowedList  = 3 // contact list doubles as the Followed list
	KindFollowSets    = 30000
	KindRelayList     = 10002
	KindDmRelayList   = 10050
	KindBlossomServers = 10063
	KindBookmarks     = 10003
)

// BuildListEvent produces the PreEvent content/tags for a List: public
// members become `p` tags (`e` tags for Bookmarks), private members go into
// nip04-encrypted content as a JSON array of the same tags, per NIP-51.
func BuildListEvent(ctx context.Context, sk string, l *List) (tags nostr.Tags, content string, err error) {
	memberTagName := "p"
	if l.Kind == Bookmarks {
		memberTagName = "e"
	}
	var privateTags nostr.Tags
	for member, private := range l.Members {
		t := nostr.Tag{memberTagName, member}
		if private {
			privateTags = append(privateTags, t)
		} else {
			tags = append(tags, t)
		}
	}
	if l.DTag != "" {
		tags = append(tags, nostr.Tag{"d", l.DTag})
	}
	if l.Title != "" {
		tags = append(tags, nostr.Tag{"title", l.Title})
	}

	if len(privateTags) > 0 {
		raw, merr := json.Marshal(privateTags)
		if merr != nil {
			return nil, "", merr
		}
		pub, gerr := nostr.GetPublicKey(sk)
		if gerr != nil {
			return nil, "", gerr
		}
		content, err = nip04.Encrypt(string(raw), sharedSecret(sk, pub))
		if err != nil {
			return nil, "", err
		}
	}
	return tags, content, nil
}

// sharedSecret computes a nip04 shared secret with oneself, the convention
// NIP-51 uses for self-encrypted private list content.
func sharedSecret(sk, pub string) (ss []byte) {
	ss, _ = nip04.ComputeSharedSecret(pub, sk)
	return ss
}

// ParseListEvent reconstructs a List's membership from an event's public
// tags plus (if sk is non-empty) its decrypted private content.
func ParseListEvent(sk string, evt *nostr.Event, kind ListKind, slot int) (*List, error) {
	l := NewList(kind, slot, "")
	l.EventCreatedAt = evt.CreatedAt.Time()

	memberTagName := "p"
	if kind == Bookmarks {
		memberTagName = "e"
	}

	for _, t := range evt.Tags {
		if len(t) < 2 {
			continue
		}
		switch t[0] {
		case memberTagName:
			l.Add(t[1], false)
		case "d":
			l.DTag = t[1]
		case "title":
			l.Title = t[1]
		}
	}
	l.EventPublicLen = l.Len()

	if sk != "" && evt.Content != "" {
		pub, err := nostr.GetPublicKey(sk)
		if err != nil {
			return l, nil
		}
		plain, err := nip04.Decrypt(evt.Content, sharedSecret(sk, pub))
		if err != nil {
			return l, nil // can't decrypt: keep public members only
		}
		var privateTags nostr.Tags
		if err := json.Unmarshal([]byte(plain), &privateTags); err == nil {
			for _, t := range privateTags {
				if len(t) >= 2 && t[0] == memberTagName {
					l.Add(t[1], true)
				}
			}
		}
	}
	l.EventPrivateLen = l.Len() - l.EventPublicLen
	return l, nil
}
