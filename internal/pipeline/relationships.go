package pipeline

import (
	"fmt"
	"strconv"

	"github.com/nbd-wtf/go-nostr"

	"github.com/pinpox/nitrousd/internal/store"
)

// extractRelationships writes edges for every applicable relationship kind
// and returns the set of affected ids for UI invalidation.
func (p *Pipeline) extractRelationships(e *nostr.Event) []string {
	affected := map[string]bool{}

	switch e.Kind {
	case 1, 1111:
		for _, id := range eTagIDs(e) {
			_ = p.store.AddRelationshipByID(id, store.Relationship{Kind: store.RelRepliesTo, By: e.PubKey})
			affected[id] = true
		}
	case 6, 16:
		for _, id := range eTagIDs(e) {
			_ = p.store.AddRelationshipByID(id, store.Relationship{Kind: store.RelReposts, By: e.PubKey})
			affected[id] = true
		}
		for _, addr := range aTagAddrs(e) {
			_ = p.store.AddRelationshipByAddr(addr, store.Relationship{Kind: store.RelReposts, By: e.PubKey})
		}
	case 7:
		for _, id := range eTagIDs(e) {
			_ = p.store.AddRelationshipByID(id, store.Relationship{Kind: store.RelReactsTo, By: e.PubKey, Reason: e.Content})
			affected[id] = true
		}
	case 5:
		for _, id := range eTagIDs(e) {
			if p.opts.DeleteAuthorAllowed != nil {
				_ = p.store.AddRelationshipByID(id, store.Relationship{Kind: store.RelDeletes, By: e.PubKey, Reason: e.Content})
			}
			affected[id] = true
		}
		for _, addr := range aTagAddrs(e) {
			_ = p.store.AddRelationshipByAddr(addr, store.Relationship{Kind: store.RelDeletes, By: e.PubKey, Reason: e.Content})
		}
	case 9735:
		amount := zapAmount(e)
		for _, id := range eTagIDs(e) {
			_ = p.store.AddRelationshipByID(id, store.Relationship{Kind: store.RelZaps, By: e.PubKey, Amount: amount})
			affected[id] = true
		}
	case 1985:
		for _, id := range eTagIDs(e) {
			_ = p.store.AddRelationshipByID(id, store.Relationship{Kind: store.RelLabels, By: e.PubKey, Reason: labelNamespace(e)})
			affected[id] = true
		}
	case 1984:
		for _, id := range eTagIDs(e) {
			_ = p.store.AddRelationshipByID(id, store.Relationship{Kind: store.RelReports, By: e.PubKey, Reason: e.Content})
			affected[id] = true
		}
	case 1040:
		for _, id := range eTagIDs(e) {
			_ = p.store.AddRelationshipByID(id, store.Relationship{Kind: store.RelTimestamps, By: e.PubKey})
			affected[id] = true
		}
	default:
		if e.Kind >= 65000 && e.Kind < 66000 {
			for _, id := range eTagIDs(e) {
				_ = p.store.AddRelationshipByID(id, store.Relationship{Kind: store.RelSuppliesJobResult, By: e.PubKey})
				affected[id] = true
			}
		}
	}

	out := make([]string, 0, len(affected))
	for id := range affected {
		out = append(out, id)
	}
	return out
}

func eTagIDs(e *nostr.Event) []string {
	var ids []string
	for _, t := range e.Tags {
		if len(t) >= 2 && t[0] == "e" {
			ids = append(ids, t[1])
		}
	}
	return ids
}

func aTagAddrs(e *nostr.Event) []string {
	var addrs []string
	for _, t := range e.Tags {
		if len(t) >= 2 && t[0] == "a" {
			addrs = append(addrs, t[1])
		}
	}
	return addrs
}

func dTag(e *nostr.Event) string {
	for _, t := range e.Tags {
		if len(t) >= 2 && t[0] == "d" {
			return t[1]
		}
	}
	return ""
}

func labelNamespace(e *nostr.Event) string {
	for _, t := range e.Tags {
		if len(t) >= 2 && t[0] == "L" {
			return t[1]
		}
	}
	return ""
}

func zapAmount(e *nostr.Event) int64 {
	for _, t := range e.Tags {
		if len(t) >= 2 && t[0] == "amount" {
			if v, err := strconv.ParseInt(t[1], 10, 64); err == nil {
				return v
			}
		}
	}
	return 0
}

// Addr renders a replaceable event's address as "kind:pubkey:dtag".
func Addr(kind int, pubkey, dtag string) string {
	return fmt.Sprintf("%d:%s:%s", kind, pubkey, dtag)
}

// deletionApplies reports whether e has been deleted by a recorded Deletes
// edge, either a by-id edge naming e.ID directly or a by-address edge
// naming e's address (for replaceable/addressable kinds). A deleter only
// counts if DeleteAuthorAllowed accepts it.
func (p *Pipeline) deletionApplies(e *nostr.Event) (bool, error) {
	byID, err := p.store.RelationshipsByID(e.ID)
	if err != nil {
		return false, err
	}
	for _, r := range byID {
		if r.Kind == store.RelDeletes && p.opts.DeleteAuthorAllowed(e.PubKey, r.By) {
			return true, nil
		}
	}

	if !store.IsReplaceable(e.Kind) {
		return false, nil
	}
	addr := Addr(e.Kind, e.PubKey, dTag(e))
	byAddr, err := p.store.RelationshipsByAddr(addr)
	if err != nil {
		return false, err
	}
	for _, r := range byAddr {
		if r.Kind == store.RelDeletes && p.opts.DeleteAuthorAllowed(e.PubKey, r.By) {
			return true, nil
		}
	}
	return false, nil
}
