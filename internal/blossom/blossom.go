// Package blossom manages the kind-10063 Blossom server list: parsing it
// out of a received event and building the kind-24242 per-upload auth
// event a Blossom server expects in its Authorization header. Fetching
// and uploading blobs over HTTP is out of scope.
package blossom

import (
	"fmt"
	"time"

	"github.com/nbd-wtf/go-nostr"

	"github.com/pinpox/nitrousd/internal/errs"
)

// Signer is the subset of internal/signer an auth event needs.
type Signer interface {
	SignEvent(e *nostr.Event) error
	PublicKey() (string, bool)
}

// ParseServerList extracts the ordered "server" tag values from a kind-10063
// UserServerList event.
func ParseServerList(e *nostr.Event) ([]string, error) {
	if e.Kind != 10063 {
		return nil, errs.Newf(errs.KindWrongEventKind, "blossom server list: wrong kind %d", e.Kind)
	}
	var servers []string
	for _, t := range e.Tags {
		if len(t) >= 2 && t[0] == "server" {
			servers = append(servers, t[1])
		}
	}
	return servers, nil
}

// BuildAuthEvent signs a kind-24242 Blossom upload-authorization event for
// the blob identified by sha256Hex, valid for validFor.
func BuildAuthEvent(sign Signer, sha256Hex string, validFor time.Duration) (*nostr.Event, error) {
	e := &nostr.Event{
		Kind:      24242,
		CreatedAt: nostr.Now(),
		Tags: nostr.Tags{
			{"t", "upload"},
			{"x", sha256Hex},
			{"expiration", fmt.Sprintf("%d", time.Now().Add(validFor).Unix())},
		},
	}
	if pk, ok := sign.PublicKey(); ok {
		e.PubKey = pk
	}
	if err := sign.SignEvent(e); err != nil {
		return nil, err
	}
	return e, nil
}
