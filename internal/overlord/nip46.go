package overlord

import (
	"context"
	"fmt"

	"github.com/nbd-wtf/go-nostr"

	"github.com/pinpox/nitrousd/internal/comms"
	"github.com/pinpox/nitrousd/internal/nostrconnect"
	"github.com/pinpox/nitrousd/internal/relay"
	"github.com/pinpox/nitrousd/internal/store"
)

// connectRemoteSigner starts a NIP-46 pairing with remotePubkey over relays:
// a fresh local connection keypair is minted, a "connect" request is built
// and posted, and a subscription for the signer's replies is opened on the
// same relays, tagged to the new connection pubkey.
func (o *Overlord) connectRemoteSigner(ctx context.Context, remotePubkey string, relays []string, secret string) error {
	local := nostr.GeneratePrivateKey()
	client, err := nostrconnect.NewClient(local, remotePubkey)
	if err != nil {
		return err
	}

	if err := o.store.PutNip46Server(&store.Nip46Server{
		ClientPubkey: client.PublicKey(),
		RemotePubkey: remotePubkey,
		Relays:       relays,
		Secret:       secret,
	}); err != nil {
		return err
	}
	o.nip46.Store(client.PublicKey(), client)

	params := []string{remotePubkey}
	if secret != "" {
		params = append(params, secret)
	}
	req, err := client.BuildRequestEvent(nostrconnect.Request{
		ID:                 fmt.Sprintf("connect-%d", o.nextID()),
		RemoteSignerPubkey: remotePubkey,
		Method:             "connect",
		Params:             params,
	})
	if err != nil {
		return err
	}

	o.pending.Store(client.PublicKey(), &comms.PendingItem{
		Kind:         comms.PendingNip46Request,
		Nip46Pubkey:  remotePubkey,
		Nip46Command: "connect",
	})

	// engageMinion's own connect/reuse path always sends the job down as a
	// MinionSubscribe (harmless no-op for jobs without a FilterSet, real
	// subscribe for this one), the same pattern dispatchPost relies on.
	sub := comms.FilterSet{Kind: comms.FSNip46, Pubkeys: []string{client.PublicKey()}}
	for _, url := range relays {
		subJob := comms.RelayJob{ID: o.nextID(), Reason: comms.ReasonNostrConnect, FilterSet: &sub, RelayURL: url}
		if err := o.engageMinion(ctx, url, subJob); err != nil {
			continue
		}
		h, ok := o.connected.Load(relay.CanonicalizeURL(url))
		if !ok {
			continue
		}
		postJob := comms.RelayJob{ID: o.nextID(), Reason: comms.ReasonPostEvent, Event: req, RelayURL: url}
		o.sendToMinion(h, comms.ToMinionMessage{Target: h.url, Kind: comms.MinionPostEvent, JobID: postJob.ID, Job: &postJob, Event: req})
	}
	return nil
}

// handleNostrConnectEvent is the pipeline.Options.NostrConnect callback: it
// tries every live Client (there's normally exactly one in flight) and
// drops the event silently if none can decrypt it, the same tolerance the
// giftwrap unwrap path uses for envelopes addressed to someone else.
func (o *Overlord) handleNostrConnectEvent(e *nostr.Event) {
	o.nip46.Range(func(localPubkey string, client *nostrconnect.Client) bool {
		if !taggedTo(e, localPubkey) {
			return true
		}
		resp, err := client.ParseResponseEvent(e)
		if err != nil {
			return true
		}
		o.pending.Delete(localPubkey)
		if resp.Error != "" {
			o.nip46.Delete(localPubkey)
		}
		return false
	})
}

func taggedTo(e *nostr.Event, pubkey string) bool {
	for _, t := range e.Tags {
		if len(t) >= 2 && t[0] == "p" && t[1] == pubkey {
			return true
		}
	}
	return false
}
