// Package minion implements a single-relay WebSocket worker that
// multiplexes subscriptions, posts events, and translates overlord commands
// to wire messages and wire messages back to overlord events.
package minion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/nbd-wtf/go-nostr"

	"github.com/pinpox/nitrousd/internal/comms"
	"github.com/pinpox/nitrousd/internal/errs"
	"github.com/pinpox/nitrousd/internal/relay"
	"github.com/pinpox/nitrousd/internal/runstate"
	"github.com/pinpox/nitrousd/internal/store"
)

// ExitReason classifies why a minion's Run loop returned, so the overlord
// can decide whether and how long to exclude the relay before re-engaging.
type ExitReason int

const (
	ExitUnknown ExitReason = iota
	ExitGotDisconnected
	ExitGotShutdownMessage
	ExitGotWSClose
	ExitLostOverlord
	ExitSubscriptionsCompletedSuccessfully
	ExitSubscriptionsCompletedWithFailures
)

// Benign reports whether this exit reason reflects a clean, voluntary stop
// rather than a failure worth counting against the relay.
func (r ExitReason) Benign() bool {
	return r == ExitGotShutdownMessage || r == ExitSubscriptionsCompletedSuccessfully
}

type authState int

const (
	authNone authState = iota
	authWaiting
	authAuthenticated
	authFailed
)

// EventPipeline is the subset of internal/pipeline the minion drives for
// every inbound EVENT frame.
type EventPipeline interface {
	ProcessNewEvent(e *nostr.Event, seenOn, subscription string, verify, processEvenIfDuplicate bool) error
}

// Signer lets the minion produce a NIP-42 AUTH event without depending on
// the key-management package directly.
type Signer interface {
	SignEvent(e *nostr.Event) error
	PublicKey() (string, bool)
}

// Options configures a Minion.
type Options struct {
	MaxMessageSize         int64
	PingFrequency          time.Duration
	TaskTick               time.Duration
	ConnectTimeout         time.Duration
	Nip11FetchTimeout      time.Duration
	IdleTimeout            time.Duration
	SetUserAgent           bool
	UserAgent              string
}

// Minion owns one relay's WebSocket for the lifetime of its jobs.
type Minion struct {
	url     string
	opts    Options
	store   *store.Store
	pipe    EventPipeline
	signer  Signer
	runstate *runstate.Watch

	toOverlord chan<- comms.ToOverlordMessage
	inbox      <-chan comms.ToMinionMessage

	conn *websocket.Conn

	mu              sync.Mutex
	dbrelay         *relay.Relay
	subs            map[string]subscription // handle -> subscription
	nextTempID      int
	postingJobs     map[uint64][]string // job id -> outstanding event ids
	postingIDs      map[string]uint64   // event id -> job id
	soughtEvents    map[string]*seekState
	authChallenge   string
	auth            authState
	authWaitingID   string
	failedSubs      map[string]bool
	waitingForAuth  map[string]time.Time
	rateLimited     []string
	emptySince      time.Time
	exiting         *ExitReason
}

type subscription struct {
	id      string
	jobID   uint64
	filters []nostr.Filter
}

type seekState struct {
	jobIDs []uint64
	asked  bool
}

// New constructs a Minion for url. The caller is expected to have verified
// the process is Online before spawning this.
func New(url string, opts Options, st *store.Store, pipe EventPipeline, signer Signer, rs *runstate.Watch,
	toOverlord chan<- comms.ToOverlordMessage, inbox <-chan comms.ToMinionMessage) (*Minion, error) {
	if rs.Borrow() != runstate.Online {
		return nil, errs.New(errs.KindOffline, "cannot start a minion while offline")
	}
	dbrelay, err := st.GetRelay(url)
	if err != nil {
		return nil, err
	}
	return &Minion{
		url: url, opts: opts, store: st, pipe: pipe, signer: signer, runstate: rs,
		toOverlord: toOverlord, inbox: inbox,
		dbrelay:        dbrelay,
		subs:           make(map[string]subscription),
		postingJobs:    make(map[uint64][]string),
		postingIDs:     make(map[string]uint64),
		soughtEvents:   make(map[string]*seekState),
		failedSubs:     make(map[string]bool),
		waitingForAuth: make(map[string]time.Time),
	}, nil
}

// Run connects to the relay, handles the initial messages, then loops until
// shutdown, disconnection, or subscription completion.
func (m *Minion) Run(ctx context.Context, initial []comms.ToMinionMessage) (ExitReason, error) {
	if err := m.maybeFetchNip11(ctx); err != nil {
		return ExitUnknown, err
	}

	if err := m.connect(ctx); err != nil {
		if errs.KindOf(err) == errs.KindRelayRejectedUs {
			m.bumpFailureCount()
		}
		return ExitGotDisconnected, err
	}
	defer m.conn.Close(websocket.StatusNormalClosure, "")

	m.bumpSuccessCount(true)

	for _, msg := range initial {
		if err := m.handleOverlordMessage(ctx, msg); err != nil {
			return ExitUnknown, err
		}
	}

	incoming := make(chan wsFrame, 32)
	readCtx, cancelRead := context.WithCancel(ctx)
	defer cancelRead()
	go m.readLoop(readCtx, incoming)

	pingTicker := time.NewTicker(m.opts.PingFrequency)
	defer pingTicker.Stop()
	taskTicker := time.NewTicker(m.opts.TaskTick)
	defer taskTicker.Stop()

	runstateCh := m.runstate.Subscribe()
	defer m.runstate.Unsubscribe(runstateCh)

	for m.exiting == nil {
		select {
		case s := <-runstateCh:
			if s == runstate.ShuttingDown || s == runstate.Offline {
				m.setExit(ExitGotShutdownMessage)
			}

		case <-pingTicker.C:
			pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
			_ = m.conn.Ping(pctx)
			cancel()

		case <-taskTicker.C:
			if err := m.getEvents(ctx); err != nil {
				return ExitUnknown, err
			}
			if err := m.trySubscribeWaiting(ctx); err != nil {
				return ExitUnknown, err
			}

		case msg, ok := <-m.inbox:
			if !ok {
				m.setExit(ExitLostOverlord)
				continue
			}
			if msg.Target == m.url || msg.Target == comms.BroadcastAll {
				if err := m.handleOverlordMessage(ctx, msg); err != nil {
					return ExitUnknown, err
				}
			}

		case frame, ok := <-incoming:
			if !ok {
				m.setExit(ExitGotDisconnected)
				continue
			}
			if frame.err != nil {
				if websocket.CloseStatus(frame.err) != -1 {
					m.setExit(ExitGotWSClose)
				} else {
					m.setExit(ExitGotDisconnected)
				}
				continue
			}
			m.handleFrame(frame.data)
		}

		m.checkIdle()
	}

	reason := *m.exiting
	return reason, nil
}

type wsFrame struct {
	data []byte
	err  error
}

func (m *Minion) readLoop(ctx context.Context, out chan<- wsFrame) {
	defer close(out)
	for {
		_, data, err := m.conn.Read(ctx)
		if err != nil {
			select {
			case out <- wsFrame{err: err}:
			case <-ctx.Done():
			}
			return
		}
		select {
		case out <- wsFrame{data: data}:
		case <-ctx.Done():
			return
		}
	}
}

func (m *Minion) setExit(r ExitReason) {
	if m.exiting == nil {
		m.exiting = &r
	}
}

func (m *Minion) checkIdle() {
	m.mu.Lock()
	empty := len(m.subs) == 0 && len(m.waitingForAuth) == 0 && len(m.postingJobs) == 0
	m.mu.Unlock()
	if !empty {
		m.emptySince = time.Time{}
		return
	}
	if m.emptySince.IsZero() {
		m.emptySince = time.Now()
		return
	}
	if time.Since(m.emptySince) > m.opts.IdleTimeout {
		m.mu.Lock()
		failed := len(m.failedSubs) > 0
		m.mu.Unlock()
		if failed {
			m.setExit(ExitSubscriptionsCompletedWithFailures)
		} else {
			m.setExit(ExitSubscriptionsCompletedSuccessfully)
		}
	}
}

// maybeFetchNip11 refreshes the relay's NIP-11 document if the last fetch
// was more than an hour ago.
func (m *Minion) maybeFetchNip11(ctx context.Context) error {
	if !m.dbrelay.LastAttemptNip11.IsZero() && time.Since(m.dbrelay.LastAttemptNip11) < time.Hour {
		return nil
	}

	httpURL := strings.Replace(strings.Replace(m.url, "wss://", "https://", 1), "ws://", "http://", 1)

	fctx, cancel := context.WithTimeout(ctx, m.opts.Nip11FetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(fctx, http.MethodGet, httpURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/nostr+json")
	if m.opts.SetUserAgent {
		req.Header.Set("User-Agent", m.opts.UserAgent)
	}

	m.dbrelay.LastAttemptNip11 = time.Now()

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		_ = m.store.PutRelay(m.dbrelay)
		return nil // NIP-11 is best-effort; connection proceeds regardless
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err == nil && resp.StatusCode < 500 {
		var info relay.Info
		if json.Unmarshal(body, &info) == nil {
			m.dbrelay.NIP11 = &info
		}
	}

	return m.store.PutRelay(m.dbrelay)
}

func (m *Minion) connect(ctx context.Context) error {
	cctx, cancel := context.WithTimeout(ctx, m.opts.ConnectTimeout)
	defer cancel()

	header := http.Header{}
	if m.opts.SetUserAgent {
		header.Set("User-Agent", m.opts.UserAgent)
	}
	if m.url == "wss://relay.snort.social" || m.url == "wss://relay-pub.deschooling.us" {
		header.Set("Origin", m.url)
	}

	conn, resp, err := websocket.Dial(cctx, m.url, &websocket.DialOptions{HTTPHeader: header})
	if resp != nil {
		switch {
		case resp.StatusCode == 4000:
			return errs.NewWithCode(errs.KindRelayRejectedUs, resp.StatusCode, m.url)
		case resp.StatusCode >= 500:
			return errs.NewWithCode(errs.KindHTTPServerError, resp.StatusCode, m.url)
		case resp.StatusCode >= 400:
			return errs.NewWithCode(errs.KindHTTPClientError, resp.StatusCode, m.url)
		case resp.StatusCode >= 300:
			return errs.NewWithCode(errs.KindHTTPRedirect, resp.StatusCode, m.url)
		}
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return errs.Wrap(errs.KindTimeout, err)
		}
		return errs.Wrap(errs.KindDisconnected, err)
	}
	conn.SetReadLimit(m.opts.MaxMessageSize)
	m.conn = conn
	return nil
}

func (m *Minion) bumpSuccessCount(alsoLastConnected bool) {
	m.dbrelay.SuccessCount++
	if alsoLastConnected {
		m.dbrelay.LastConnectedAt = time.Now()
	}
	_ = m.store.PutRelay(m.dbrelay)
}

func (m *Minion) bumpFailureCount() {
	m.dbrelay.FailureCount++
	_ = m.store.PutRelay(m.dbrelay)
}

func (m *Minion) sendText(ctx context.Context, wire string) error {
	wctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return m.conn.Write(wctx, websocket.MessageText, []byte(wire))
}

// handleOverlordMessage dispatches a command received from the overlord.
func (m *Minion) handleOverlordMessage(ctx context.Context, msg comms.ToMinionMessage) error {
	switch msg.Kind {
	case comms.MinionShutdown:
		m.setExit(ExitGotShutdownMessage)

	case comms.MinionAuthApproved:
		m.dbrelay.AllowAuth = relay.Allowed
		_ = m.store.PutRelay(m.dbrelay)
		return m.authenticate(ctx)

	case comms.MinionAuthDeclined:
		m.dbrelay.AllowAuth = relay.Denied
		_ = m.store.PutRelay(m.dbrelay)

	case comms.MinionFetchEvent:
		m.mu.Lock()
		ss, ok := m.soughtEvents[msg.EventID]
		if !ok {
			ss = &seekState{}
			m.soughtEvents[msg.EventID] = ss
		}
		ss.jobIDs = append(ss.jobIDs, msg.JobID)
		m.mu.Unlock()

	case comms.MinionFetchNAddr:
		return m.getNAddr(ctx, msg.JobID, msg.NAddrKind, msg.NAddrAuthor, msg.NAddrDTag)

	case comms.MinionPostEvent:
		if msg.Job == nil || msg.Job.Event == nil {
			return nil
		}
		return m.postEvents(ctx, msg.JobID, []*nostr.Event{msg.Job.Event})

	case comms.MinionAdvertiseRelayList:
		events := make([]*nostr.Event, 0, 2)
		if msg.Event != nil {
			events = append(events, msg.Event)
		}
		if msg.DMEvent != nil {
			events = append(events, msg.DMEvent)
		}
		return m.postEvents(ctx, msg.JobID, events)

	case comms.MinionSubscribe:
		if msg.Job == nil || msg.Job.FilterSet == nil {
			return nil
		}
		fs := *msg.Job.FilterSet
		handle := fs.Handle()

		m.mu.Lock()
		_, exists := m.subs[handle]
		m.mu.Unlock()

		if !exists || fs.CanHaveDuplicates() {
			spamsafe := m.dbrelay.Usage.Has(relay.SpamSafe)
			filters := fs.Filters(spamsafe)
			if len(filters) > 0 {
				return m.subscribe(ctx, filters, handle, msg.JobID)
			}
		}

	case comms.MinionUnsubscribe:
		if msg.Job == nil || msg.Job.FilterSet == nil {
			return nil
		}
		return m.unsubscribe(ctx, msg.Job.FilterSet.Handle())

	case comms.MinionUnsubscribeReplies:
		_ = m.unsubscribe(ctx, "replies")
		return m.unsubscribe(ctx, "root_replies")
	}
	return nil
}

func (m *Minion) postEvents(ctx context.Context, jobID uint64, events []*nostr.Event) error {
	ids := make([]string, 0, len(events))
	for _, e := range events {
		ids = append(ids, e.ID)
	}
	m.mu.Lock()
	m.postingJobs[jobID] = ids
	for _, e := range events {
		m.postingIDs[e.ID] = jobID
	}
	m.mu.Unlock()

	for _, e := range events {
		wire, err := json.Marshal([]any{"EVENT", e})
		if err != nil {
			return err
		}
		if err := m.sendText(ctx, string(wire)); err != nil {
			return err
		}
	}
	return nil
}

func (m *Minion) getEvents(ctx context.Context) error {
	m.mu.Lock()
	var ids []string
	for id, ss := range m.soughtEvents {
		if !ss.asked {
			ids = append(ids, id)
			ss.asked = true
		}
	}
	m.mu.Unlock()

	if len(ids) == 0 {
		return nil
	}

	filter := nostr.Filter{IDs: ids}
	handle := fmt.Sprintf("temp_events_%d", m.nextTempID)
	m.nextTempID++
	return m.subscribe(ctx, []nostr.Filter{filter}, handle, ^uint64(0))
}

func (m *Minion) getNAddr(ctx context.Context, jobID uint64, kind int, author, dtag string) error {
	handle := fmt.Sprintf("temp_naddr_%d", m.nextTempID)
	m.nextTempID++
	filter := nostr.Filter{Authors: []string{author}, Kinds: []int{kind}, Tags: nostr.TagMap{"d": {dtag}}}
	return m.subscribe(ctx, []nostr.Filter{filter}, handle, jobID)
}

func (m *Minion) trySubscribeWaiting(ctx context.Context) error {
	if m.auth == authAuthenticated {
		m.mu.Lock()
		waiting := m.waitingForAuth
		m.waitingForAuth = make(map[string]time.Time)
		m.mu.Unlock()

		now := time.Now()
		for handle, when := range waiting {
			if now.Sub(when) < time.Second {
				m.mu.Lock()
				m.waitingForAuth[handle] = when
				m.mu.Unlock()
				continue
			}
			if err := m.sendSubscription(ctx, handle); err != nil {
				return err
			}
		}
	}

	m.mu.Lock()
	retry := m.rateLimited
	m.rateLimited = nil
	m.mu.Unlock()
	for _, handle := range retry {
		if err := m.sendSubscription(ctx, handle); err != nil {
			return err
		}
	}
	return nil
}

func (m *Minion) subscribe(ctx context.Context, filters []nostr.Filter, handle string, jobID uint64) error {
	m.emptySince = time.Time{}

	if len(filters) == 0 {
		return nil
	}

	m.mu.Lock()
	if m.failedSubs[handle] {
		m.mu.Unlock()
		return nil
	}
	sub, exists := m.subs[handle]
	var oldJobID uint64
	if exists {
		m.dbrelay.LastGeneralEoseAt = time.Now()
		oldJobID = sub.jobID
		sub.filters = filters
		sub.jobID = jobID
		m.subs[handle] = sub
	} else {
		sub = subscription{id: handle, jobID: jobID, filters: filters}
		m.subs[handle] = sub
	}
	waitingForAuth := m.auth == authWaiting
	if waitingForAuth {
		m.waitingForAuth[handle] = time.Now()
	}
	m.mu.Unlock()

	_ = m.store.PutRelay(m.dbrelay)

	if exists {
		m.toOverlord <- comms.ToOverlordMessage{Kind: comms.OpMinionJobUpdated, RelayURL: m.url, OldJob: &comms.RelayJob{ID: oldJobID}, NewJob: &comms.RelayJob{ID: jobID}}
	}

	if waitingForAuth {
		return nil
	}

	return m.sendSubscription(ctx, handle)
}

func (m *Minion) sendSubscription(ctx context.Context, handle string) error {
	m.mu.Lock()
	sub, ok := m.subs[handle]
	m.mu.Unlock()
	if !ok {
		return nil
	}
	req := []any{"REQ", handle}
	for _, f := range sub.filters {
		req = append(req, f)
	}
	wire, err := json.Marshal(req)
	if err != nil {
		return err
	}
	return m.sendText(ctx, string(wire))
}

func (m *Minion) unsubscribe(ctx context.Context, handle string) error {
	m.mu.Lock()
	sub, ok := m.subs[handle]
	if ok {
		delete(m.subs, handle)
	}
	m.mu.Unlock()
	if !ok {
		return nil
	}

	wire, err := json.Marshal([]any{"CLOSE", handle})
	if err != nil {
		return err
	}
	if err := m.sendText(ctx, string(wire)); err != nil {
		return err
	}

	m.toOverlord <- comms.ToOverlordMessage{Kind: comms.OpMinionJobComplete, RelayURL: m.url, JobID: sub.jobID, Success: true}
	return nil
}

func (m *Minion) authenticate(ctx context.Context) error {
	if m.auth == authAuthenticated || m.auth == authWaiting || m.auth == authFailed {
		return nil
	}
	pubkey, ok := m.signer.PublicKey()
	if !ok {
		return errs.New(errs.KindNoPrivateKeyForAuth, m.url)
	}
	e := &nostr.Event{
		PubKey:    pubkey,
		CreatedAt: nostr.Now(),
		Kind:      22242,
		Tags:      nostr.Tags{{"relay", m.url}, {"challenge", m.authChallenge}},
		Content:   "",
	}
	if err := m.signer.SignEvent(e); err != nil {
		return err
	}
	wire, err := json.Marshal([]any{"AUTH", e})
	if err != nil {
		return err
	}
	if err := m.sendText(ctx, string(wire)); err != nil {
		return err
	}
	m.auth = authWaiting
	m.authWaitingID = e.ID
	return nil
}

// handleFrame parses one incoming text message and dispatches it.
func (m *Minion) handleFrame(data []byte) {
	var generic []json.RawMessage
	if err := json.Unmarshal(data, &generic); err != nil || len(generic) == 0 {
		return
	}
	var label string
	if err := json.Unmarshal(generic[0], &label); err != nil {
		return
	}

	switch label {
	case "EVENT":
		if len(generic) < 3 {
			return
		}
		var subID string
		_ = json.Unmarshal(generic[1], &subID)
		var e nostr.Event
		if err := json.Unmarshal(generic[2], &e); err != nil {
			return
		}
		_ = m.pipe.ProcessNewEvent(&e, m.url, subID, true, false)

	case "EOSE":
		if len(generic) < 2 {
			return
		}
		var subID string
		_ = json.Unmarshal(generic[1], &subID)
		m.dbrelay.LastGeneralEoseAt = time.Now()
		_ = m.store.PutRelay(m.dbrelay)

	case "OK":
		if len(generic) < 3 {
			return
		}
		var id string
		var ok bool
		_ = json.Unmarshal(generic[1], &id)
		_ = json.Unmarshal(generic[2], &ok)
		var reason string
		if len(generic) >= 4 {
			_ = json.Unmarshal(generic[3], &reason)
		}
		m.handleOK(id, ok, reason)

	case "NOTICE":
		var notice string
		if len(generic) >= 2 {
			_ = json.Unmarshal(generic[1], &notice)
		}
		log.Printf("minion %s: NOTICE %s", m.url, notice)

	case "AUTH":
		if len(generic) < 2 {
			return
		}
		var challenge string
		_ = json.Unmarshal(generic[1], &challenge)
		m.authChallenge = challenge
		switch m.dbrelay.AllowAuth {
		case relay.Allowed:
			_ = m.authenticate(context.Background())
		case relay.Denied:
			// stay silent; the relay will reject writes requiring auth.
		default:
			m.toOverlord <- comms.ToOverlordMessage{Kind: comms.OpAuthChallenge, RelayURL: m.url}
		}

	case "CLOSED":
		if len(generic) < 2 {
			return
		}
		var subID string
		_ = json.Unmarshal(generic[1], &subID)
		var reason string
		if len(generic) >= 3 {
			_ = json.Unmarshal(generic[2], &reason)
		}
		m.handleClosed(subID, reason)
	}
}

func (m *Minion) handleOK(id string, ok bool, reason string) {
	if id == m.authWaitingID {
		if ok {
			m.auth = authAuthenticated
		} else {
			m.auth = authFailed
			m.failWaitingForAuth(reason)
		}
		return
	}

	m.mu.Lock()
	jobID, exists := m.postingIDs[id]
	if exists {
		delete(m.postingIDs, id)
		remaining := m.postingJobs[jobID]
		for i, rid := range remaining {
			if rid == id {
				remaining = append(remaining[:i], remaining[i+1:]...)
				break
			}
		}
		if len(remaining) == 0 {
			delete(m.postingJobs, jobID)
		} else {
			m.postingJobs[jobID] = remaining
		}
	}
	m.mu.Unlock()

	if !exists {
		return
	}
	if len(m.postingJobs[jobID]) == 0 {
		m.toOverlord <- comms.ToOverlordMessage{Kind: comms.OpMinionJobComplete, RelayURL: m.url, JobID: jobID, Success: ok, Reason: reason}
	}
}

// failWaitingForAuth drains every subscription parked behind the AUTH
// handshake after that handshake comes back rejected, so they don't sit
// forever waiting for an auth_state that will never reach Authenticated.
func (m *Minion) failWaitingForAuth(reason string) {
	if reason == "" {
		reason = "auth failed"
	}

	m.mu.Lock()
	waiting := m.waitingForAuth
	m.waitingForAuth = make(map[string]time.Time)
	var completed []comms.RelayJob
	for handle := range waiting {
		m.failedSubs[handle] = true
		if sub, ok := m.subs[handle]; ok {
			delete(m.subs, handle)
			completed = append(completed, comms.RelayJob{ID: sub.jobID})
		}
	}
	m.mu.Unlock()

	for _, job := range completed {
		m.toOverlord <- comms.ToOverlordMessage{Kind: comms.OpMinionJobComplete, RelayURL: m.url, JobID: job.ID, Success: false, Reason: reason}
	}
}

func (m *Minion) handleClosed(subID, reason string) {
	if strings.Contains(strings.ToLower(reason), "rate-limited") || strings.Contains(strings.ToLower(reason), "rate limited") {
		m.mu.Lock()
		m.rateLimited = append(m.rateLimited, subID)
		m.mu.Unlock()
		return
	}

	m.mu.Lock()
	sub, ok := m.subs[subID]
	if ok {
		delete(m.subs, subID)
	}
	m.failedSubs[subID] = true
	m.mu.Unlock()

	if ok {
		m.toOverlord <- comms.ToOverlordMessage{Kind: comms.OpMinionJobComplete, RelayURL: m.url, JobID: sub.jobID, Success: false, Reason: reason}
	}
}
