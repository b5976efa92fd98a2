// Package overlord is the singleton supervisor that turns UI/CLI commands
// into minion work, drives the relay picker, reaps exited minions under
// the exclusion policy, and owns posting and approval flows. Its run loop
// centers on a from_minions select, generalized beyond a bare
// "all"/"shutdown"/"settings_changed" dispatch into the full command set
// below.
package overlord

import (
	"context"
	"log"
	"math/rand"
	"time"

	"github.com/nbd-wtf/go-nostr"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/pinpox/nitrousd/internal/comms"
	"github.com/pinpox/nitrousd/internal/config"
	"github.com/pinpox/nitrousd/internal/errs"
	"github.com/pinpox/nitrousd/internal/feed"
	"github.com/pinpox/nitrousd/internal/minion"
	"github.com/pinpox/nitrousd/internal/nostrconnect"
	"github.com/pinpox/nitrousd/internal/pipeline"
	"github.com/pinpox/nitrousd/internal/postbuilder"
	"github.com/pinpox/nitrousd/internal/relay"
	"github.com/pinpox/nitrousd/internal/relaypicker"
	"github.com/pinpox/nitrousd/internal/runstate"
	"github.com/pinpox/nitrousd/internal/seeker"
	"github.com/pinpox/nitrousd/internal/signer"
	"github.com/pinpox/nitrousd/internal/store"
)

// minionHandle is what the overlord tracks per connected relay.
type minionHandle struct {
	url      string
	cancel   context.CancelFunc
	inbox    chan comms.ToMinionMessage
	jobs     map[uint64]comms.RelayJob
}

// Overlord is the process-wide supervisor. One per running daemon.
type Overlord struct {
	cfg   config.Config
	store *store.Store
	pipe  *pipeline.Pipeline
	seek  *seeker.Seeker
	picker *relaypicker.Picker
	feed  *feed.Feed
	build *postbuilder.Builder
	sign  *signer.Signer

	runstate *runstate.Watch

	toOverlord chan comms.ToOverlordMessage

	connected *xsync.MapOf[string, *minionHandle]
	pending   *xsync.MapOf[string, *comms.PendingItem]
	nip46     *xsync.MapOf[string, *nostrconnect.Client]

	nextJobID    uint64
	delayedPosts map[string]*nostr.Event
	releaseCh    chan string
	followed     map[string]bool

	rnd *rand.Rand
}

// Deps bundles everything the overlord is constructed from, so New stays a
// single call site wiring every collaborator package together.
type Deps struct {
	Config config.Config
	Store  *store.Store
	Signer *signer.Signer
}

// New wires a fresh Overlord: the pipeline, seeker, relay picker and feed
// all get built here so the overlord can satisfy their Dispatcher
// interfaces on itself.
func New(d Deps) *Overlord {
	o := &Overlord{
		cfg:          d.Config,
		store:        d.Store,
		sign:         d.Signer,
		runstate:     runstate.NewWatch(),
		toOverlord:   make(chan comms.ToOverlordMessage, 1024),
		connected:    xsync.NewMapOf[string, *minionHandle](),
		pending:      xsync.NewMapOf[string, *comms.PendingItem](),
		nip46:        xsync.NewMapOf[string, *nostrconnect.Client](),
		delayedPosts: make(map[string]*nostr.Event),
		releaseCh:    make(chan string, 256),
		followed:     make(map[string]bool),
		rnd:          rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	o.picker = relaypicker.New(d.Config.NumRelaysPerPerson, d.Config.MaxPubkeysPerRelay)
	o.seek = seeker.New(o, personRelaysAdapter{d.Store})
	cache := store.NewGlobalCache(24 * time.Hour)
	o.pipe = pipeline.New(d.Store, cache, o.seek, o, pipeline.Options{
		FutureAllowance: d.Config.FutureAllowance(),
		MyPubkey:        publicKeyOrEmpty(d.Signer),
		NostrConnect:    o.handleNostrConnectEvent,
	})
	o.build = postbuilder.New(d.Store, d.Signer, postbuilder.Options{
		ClientTag: true,
		PowTarget: d.Config.PowTarget,
	})
	o.feed = feed.New(feed.Source{
		Store:           d.Store,
		FollowedPubkeys: o.followedPubkeys,
		MyPubkey:        publicKeyOrEmpty(d.Signer),
		FollowedWindow:  7 * 24 * time.Hour,
		InboxWindow:     7 * 24 * time.Hour,
		PersonWindow:    30 * 24 * time.Hour,
	}, d.Config.FeedRecomputeInterval())
	return o
}

func publicKeyOrEmpty(s *signer.Signer) string {
	if s == nil {
		return ""
	}
	pk, _ := s.PublicKey()
	return pk
}

// Inbox returns the channel UI/CLI code sends ToOverlordMessage on.
func (o *Overlord) Inbox() chan<- comms.ToOverlordMessage { return o.toOverlord }

// Invalidations exposes the pipeline's re-render signal to the UI layer.
func (o *Overlord) Invalidations() <-chan string { return o.pipe.Invalidations() }

// Feed exposes the current feed to the UI layer.
func (o *Overlord) Feed() *feed.Feed { return o.feed }

// Run drives the process-wide RunState machine and the overlord's select
// loop until ctx is cancelled or a Shutdown command arrives, mirroring
// run()/run_inner()'s structure: load state, enter the loop, always send a
// final Shutdown broadcast on the way out.
func (o *Overlord) Run(ctx context.Context) {
	defer o.shutdownMinions()

	if o.cfg.Offline {
		o.runstate.Set(runstate.Offline)
	} else {
		o.runstate.Set(runstate.Online)
	}

	ticker := time.NewTicker(o.cfg.OverlordTick())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			o.runstate.Set(runstate.ShuttingDown)
			return
		case msg := <-o.toOverlord:
			if msg.Kind == comms.OpShutdown {
				o.runstate.Set(runstate.ShuttingDown)
				return
			}
			if err := o.handle(ctx, msg); err != nil {
				log.Printf("overlord: %v", err)
			}
		case id := <-o.releaseCh:
			o.releasePost(ctx, id)
		case <-ticker.C:
			o.tick(ctx)
		}
	}
}

// tick runs the periodic housekeeping the configured overlord cadence
// drives: feed recompute, seeker expiry, and (while Online) re-running
// the relay picker.
func (o *Overlord) tick(ctx context.Context) {
	o.feed.MaybeRecomputePeriodic()
	o.seek.Expire()
	if o.runstate.Borrow() == runstate.Online {
		o.drivePicker(ctx)
	}
}

func (o *Overlord) shutdownMinions() {
	o.toMinionsBroadcast(comms.ToMinionMessage{Target: comms.BroadcastAll, Kind: comms.MinionShutdown})
	deadline := time.After(o.cfg.ShutdownJoinTimeout())
	done := make(chan struct{})
	go func() {
		for {
			if o.connectedCount() == 0 {
				close(done)
				return
			}
			time.Sleep(50 * time.Millisecond)
		}
	}()
	select {
	case <-done:
	case <-deadline:
	}
}

func (o *Overlord) connectedCount() int {
	n := 0
	o.connected.Range(func(_ string, _ *minionHandle) bool { n++; return true })
	return n
}

func (o *Overlord) followedPubkeys() []string {
	out := make([]string, 0, len(o.followed))
	for pk := range o.followed {
		out = append(out, pk)
	}
	return out
}

// personRelaysAdapter adapts *store.Store to seeker.PersonRelays without
// pulling the whole store API into the seeker package's import surface.
type personRelaysAdapter struct{ st *store.Store }

func (a personRelaysAdapter) BestOutboxRelays(pubkey string, n int) ([]string, error) {
	return a.st.BestOutboxRelays(pubkey, n)
}

// engageMinion starts (or reuses) the minion task for url and dispatches
// job to it. If relay_connection_requires_approval gates the connection,
// the job is parked in Pending and EngagePending is returned instead.
func (o *Overlord) engageMinion(ctx context.Context, url string, job comms.RelayJob) error {
	url = relay.CanonicalizeURL(url)

	if h, ok := o.connected.Load(url); ok {
		h.jobs[job.ID] = job
		o.sendToMinion(h, comms.ToMinionMessage{Target: url, Kind: comms.MinionSubscribe, JobID: job.ID, Job: &job})
		return nil
	}

	r, err := o.store.GetRelay(url)
	if err != nil {
		return err
	}
	if !r.Usable(time.Now()) {
		return errs.Newf(errs.KindEngageDisallowed, "relay %s is excluded or disabled", url)
	}

	if o.cfg.RelayConnectionRequiresApprovalFlag && r.AllowConnect == relay.Unset {
		o.pending.Store(url, &comms.PendingItem{Kind: comms.PendingRelayConnectionRequest, RelayURL: url, Jobs: []comms.RelayJob{job}})
		return errs.New(errs.KindEngagePending, url)
	}

	mctx, cancel := context.WithCancel(ctx)
	inbox := make(chan comms.ToMinionMessage, 64)
	h := &minionHandle{url: url, cancel: cancel, inbox: inbox, jobs: map[uint64]comms.RelayJob{job.ID: job}}
	o.connected.Store(url, h)

	m, err := minion.New(url, o.minionOptions(), o.store, o.pipe, o.sign, o.runstate, o.toOverlord, inbox)
	if err != nil {
		cancel()
		o.connected.Delete(url)
		return err
	}

	go func() {
		reason, runErr := m.Run(mctx, []comms.ToMinionMessage{{Target: url, Kind: comms.MinionSubscribe, JobID: job.ID, Job: &job}})
		label := exitReasonLabel(reason, runErr)
		o.toOverlord <- comms.ToOverlordMessage{
			Kind:     comms.OpMinionJobComplete,
			RelayURL: url,
			Success:  reason.Benign() && runErr == nil,
			Reason:   label,
		}
	}()

	return nil
}

// exitReasonLabel collapses a minion's (ExitReason, error) pair into the
// string bucket reap()'s exclusion table switches on. errs.KindOf
// distinguishes the HTTP-4000 handshake rejection, real dial timeouts, and
// the HTTP 3xx/4xx/5xx dial-response cases that otherwise all share
// ExitGotDisconnected.
func exitReasonLabel(r minion.ExitReason, err error) string {
	switch r {
	case minion.ExitGotShutdownMessage:
		return "shutdown"
	case minion.ExitSubscriptionsCompletedSuccessfully:
		return "completed"
	case minion.ExitSubscriptionsCompletedWithFailures:
		return "completed_with_failures"
	case minion.ExitGotWSClose:
		return "ws_close"
	case minion.ExitGotDisconnected:
		switch errs.KindOf(err) {
		case errs.KindRelayRejectedUs:
			return "rejected"
		case errs.KindTimeout:
			return "timeout"
		case errs.KindHTTPServerError:
			return "http_server_error"
		case errs.KindHTTPClientError:
			return "http_client_error"
		case errs.KindHTTPRedirect:
			return "http_redirect"
		}
		return "disconnected"
	case minion.ExitLostOverlord:
		return "lost_overlord"
	default:
		return "unknown"
	}
}

func (o *Overlord) minionOptions() minion.Options {
	return minion.Options{
		MaxMessageSize:    int64(o.cfg.MaxMessageSize),
		PingFrequency:     o.cfg.PingFrequency(),
		TaskTick:          o.cfg.TaskTick(),
		ConnectTimeout:    o.cfg.WebsocketConnectTimeout(),
		Nip11FetchTimeout: o.cfg.Nip11FetchTimeout(),
		IdleTimeout:       o.cfg.MinionIdleTimeout(),
		SetUserAgent:      o.cfg.SetUserAgent,
		UserAgent:         "nitrousd/1",
	}
}

func (o *Overlord) sendToMinion(h *minionHandle, msg comms.ToMinionMessage) {
	select {
	case h.inbox <- msg:
	default:
		log.Printf("overlord: minion %s inbox full, dropping %v", h.url, msg.Kind)
	}
}

// toMinionsBroadcast fans a message out to every connected minion.
func (o *Overlord) toMinionsBroadcast(msg comms.ToMinionMessage) {
	o.connected.Range(func(_ string, h *minionHandle) bool {
		o.sendToMinion(h, msg)
		return true
	})
}

func (o *Overlord) nextID() uint64 {
	o.nextJobID++
	return o.nextJobID
}
