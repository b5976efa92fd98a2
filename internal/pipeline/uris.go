package pipeline

import (
	"strconv"
	"strings"

	"github.com/nbd-wtf/go-nostr"
	"github.com/nbd-wtf/go-nostr/nip19"
)

func parseKindTag(s string) (int, error) {
	return strconv.Atoi(strings.TrimSpace(s))
}

type refKind int

const (
	refEvent refKind = iota
	refNAddr
	refProfile
	refPubkey
)

type nostrRef struct {
	kind   refKind
	value  string
	relays []string
}

// extractNostrURIs scans content for nostr:npub/nprofile/nevent/naddr/nrelay
// references.
func extractNostrURIs(content string) []nostrRef {
	var out []nostrRef
	for _, tok := range strings.FieldsFunc(content, func(r rune) bool {
		return r == ' ' || r == '\n' || r == '\t' || r == '(' || r == ')'
	}) {
		tok = strings.TrimPrefix(tok, "nostr:")
		if !strings.HasPrefix(tok, "npub1") && !strings.HasPrefix(tok, "nprofile1") &&
			!strings.HasPrefix(tok, "nevent1") && !strings.HasPrefix(tok, "naddr1") {
			continue
		}
		prefix, data, err := nip19.Decode(tok)
		if err != nil {
			continue
		}
		switch prefix {
		case "npub":
			if pk, ok := data.(string); ok {
				out = append(out, nostrRef{kind: refPubkey, value: pk})
			}
		case "nprofile":
			if pp, ok := data.(nostr.ProfilePointer); ok {
				out = append(out, nostrRef{kind: refProfile, value: pp.PublicKey, relays: pp.Relays})
			}
		case "nevent":
			if ep, ok := data.(nostr.EventPointer); ok {
				out = append(out, nostrRef{kind: refEvent, value: ep.ID, relays: ep.Relays})
			}
		case "naddr":
			if ep, ok := data.(nostr.EntityPointer); ok {
				addr := Addr(ep.Kind, ep.PublicKey, ep.Identifier)
				out = append(out, nostrRef{kind: refNAddr, value: addr, relays: ep.Relays})
			}
		}
	}
	return out
}
