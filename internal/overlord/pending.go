package overlord

import (
	"context"
	"time"

	"github.com/pinpox/nitrousd/internal/comms"
	"github.com/pinpox/nitrousd/internal/relay"
)

// approveConnect answers a PendingRelayConnectionRequest: persist
// allow_connect if permanent, then engage every job that was parked
// waiting on this decision.
func (o *Overlord) approveConnect(ctx context.Context, url string, permanent bool) error {
	url = relay.CanonicalizeURL(url)
	item, ok := o.pending.LoadAndDelete(url)
	if !ok || item.Kind != comms.PendingRelayConnectionRequest {
		return nil
	}
	if permanent {
		r, err := o.store.GetRelay(url)
		if err != nil {
			return err
		}
		r.AllowConnect = relay.Allowed
		if err := o.store.PutRelay(r); err != nil {
			return err
		}
	}
	for _, j := range item.Jobs {
		_ = o.engageMinion(ctx, url, j)
	}
	return nil
}

// declineConnect answers a PendingRelayConnectionRequest negatively,
// discarding its parked jobs.
func (o *Overlord) declineConnect(url string, permanent bool) error {
	url = relay.CanonicalizeURL(url)
	item, ok := o.pending.LoadAndDelete(url)
	if !ok || item.Kind != comms.PendingRelayConnectionRequest {
		return nil
	}
	if permanent {
		r, err := o.store.GetRelay(url)
		if err != nil {
			return err
		}
		r.AllowConnect = relay.Denied
		return o.store.PutRelay(r)
	}
	return nil
}

// approveAuth answers a NIP-42 AUTH pending item: forward the approval
// into the relay's minion so it can send the AUTH event, and persist
// allow_auth if permanent.
func (o *Overlord) approveAuth(url string, permanent bool) error {
	url = relay.CanonicalizeURL(url)
	o.pending.Delete(url)
	if permanent {
		r, err := o.store.GetRelay(url)
		if err != nil {
			return err
		}
		r.AllowAuth = relay.Allowed
		if err := o.store.PutRelay(r); err != nil {
			return err
		}
	}
	if h, ok := o.connected.Load(url); ok {
		o.sendToMinion(h, comms.ToMinionMessage{Target: url, Kind: comms.MinionAuthApproved, Permanent: permanent})
	}
	return nil
}

// declineAuth mirrors approveAuth for the negative answer.
func (o *Overlord) declineAuth(url string, permanent bool) error {
	url = relay.CanonicalizeURL(url)
	o.pending.Delete(url)
	if permanent {
		r, err := o.store.GetRelay(url)
		if err != nil {
			return err
		}
		r.AllowAuth = relay.Denied
		if err := o.store.PutRelay(r); err != nil {
			return err
		}
	}
	if h, ok := o.connected.Load(url); ok {
		o.sendToMinion(h, comms.ToMinionMessage{Target: url, Kind: comms.MinionAuthDeclined, Permanent: permanent})
	}
	return nil
}

func (o *Overlord) now() time.Time { return time.Now() }
