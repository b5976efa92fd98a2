package overlord

import (
	"context"

	"github.com/pinpox/nitrousd/internal/person"
)

// sendDM sends a direct message: NIP-17 giftwrap when the recipient is
// known to have relays of their own to deliver to, NIP-04 legacy encryption
// otherwise. Both copies are written locally before dispatch so the
// sender's own DM feed shows the message immediately.
func (o *Overlord) sendDM(ctx context.Context, recipient, content string) error {
	theirRelays, err := o.store.PersonRelaysFor(recipient)
	if err != nil {
		return err
	}
	giftwrapCapable := len(theirRelays) > 0

	dm, err := o.build.DirectMessageTo(ctx, recipient, content, giftwrapCapable)
	if err != nil {
		return err
	}

	theirURLs := relayEdgeURLs(theirRelays)
	if len(theirURLs) == 0 {
		theirURLs = o.cfg.Relays
	}
	ourURLs := o.outputRelaysFor(publicKeyOrEmpty(o.sign))

	if dm.ToUs != nil {
		if _, err := o.store.WriteIfMissing(dm.ToUs); err != nil {
			return err
		}
		o.postToRelays(ctx, dm.ToUs, ourURLs)
	}
	if _, err := o.store.WriteIfMissing(dm.ToThem); err != nil {
		return err
	}
	o.postToRelays(ctx, dm.ToThem, theirURLs)
	return nil
}

func relayEdgeURLs(edges []*person.RelayEdge) []string {
	out := make([]string, 0, len(edges))
	for _, e := range edges {
		out = append(out, e.RelayURL)
	}
	return out
}
