package overlord

import (
	"context"
	"math/rand"
	"time"

	"github.com/pinpox/nitrousd/internal/comms"
)

// baseExclusion is the minion-reaping table, keyed by the exit label
// exitReasonLabel produces. A zero duration means no exclusion.
func baseExclusion(label string) time.Duration {
	switch label {
	case "shutdown", "completed":
		return 0
	case "completed_with_failures":
		return 120 * time.Second
	case "ws_close", "disconnected":
		return 120 * time.Second
	case "rejected": // HTTP 4000 handshake rejection
		return 10 * time.Minute
	case "timeout":
		return 60 * time.Second
	case "http_server_error": // HTTP 5xx on dial
		return 10 * time.Minute
	case "http_client_error": // HTTP 4xx (other than 4000) on dial
		return 120 * time.Second
	case "http_redirect": // HTTP 3xx on dial
		return 120 * time.Second
	case "lost_overlord":
		return 15 * time.Second
	default:
		return 120 * time.Second
	}
}

func benign(label string) bool {
	return label == "shutdown" || label == "completed"
}

// randomizeExclusion spreads e into [e/2, e) so reconnect attempts across
// many relays don't all land on the same wall-clock second.
func randomizeExclusion(rnd *rand.Rand, e time.Duration) time.Duration {
	if e <= 0 {
		return 0
	}
	half := e / 2
	jitter := time.Duration(rnd.Int63n(int64(e - half)))
	return half + jitter
}

// reap is called once per OpMinionJobComplete: it applies the exclusion
// policy, updates the relay record, drops the handle, feeds the picker's
// feedback path, and reschedules any persistent jobs that were still
// outstanding.
func (o *Overlord) reap(ctx context.Context, url string, exitLabel string) {
	h, ok := o.connected.LoadAndDelete(url)
	if !ok {
		return
	}
	o.picker.RelayDisconnected(url)

	r, err := o.store.GetRelay(url)
	if err != nil {
		return
	}

	excl := baseExclusion(exitLabel)
	if !benign(exitLabel) {
		r.FailureCount++
	}
	if excl > 0 {
		r.AvoidUntil = time.Now().Add(randomizeExclusion(o.rnd, excl))
	}
	_ = o.store.PutRelay(r)

	var persistent []comms.RelayJob
	for _, j := range h.jobs {
		if j.Reason.Persistent() {
			persistent = append(persistent, j)
		}
	}
	if len(persistent) == 0 {
		return
	}
	if excl <= 0 {
		o.reengage(ctx, url, persistent)
		return
	}
	jobs := persistent
	time.AfterFunc(excl, func() {
		o.toOverlord <- comms.ToOverlordMessage{Kind: comms.OpReengageMinion, RelayURL: url, Jobs: jobs}
	})
}

// reengage re-spawns a minion for url with the given jobs, the self-sent
// ReengageMinion path.
func (o *Overlord) reengage(ctx context.Context, url string, jobs []comms.RelayJob) {
	for _, j := range jobs {
		_ = o.engageMinion(ctx, url, j)
	}
}
