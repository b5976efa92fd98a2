package minion

import (
	"testing"
	"time"

	"github.com/pinpox/nitrousd/internal/comms"
)

// Run, connect, and the wire-framing methods all require a live WebSocket
// relay and are exercised by integration testing rather than here; this
// covers the pure classification logic a unit test can usefully pin down.
func TestExitReasonBenign(t *testing.T) {
	cases := []struct {
		reason ExitReason
		want   bool
	}{
		{ExitUnknown, false},
		{ExitGotDisconnected, false},
		{ExitGotShutdownMessage, true},
		{ExitGotWSClose, false},
		{ExitLostOverlord, false},
		{ExitSubscriptionsCompletedSuccessfully, true},
		{ExitSubscriptionsCompletedWithFailures, false},
	}
	for _, c := range cases {
		if got := c.reason.Benign(); got != c.want {
			t.Errorf("ExitReason(%d).Benign() = %v, want %v", c.reason, got, c.want)
		}
	}
}

func TestFailWaitingForAuthDrainsAndReportsFailure(t *testing.T) {
	toOverlord := make(chan comms.ToOverlordMessage, 4)
	m := &Minion{
		url:            "wss://relay.example",
		toOverlord:     toOverlord,
		subs:           map[string]subscription{"h1": {id: "h1", jobID: 7}},
		waitingForAuth: map[string]time.Time{"h1": time.Now()},
		failedSubs:     map[string]bool{},
	}

	m.failWaitingForAuth("auth-declined")

	if len(m.waitingForAuth) != 0 {
		t.Error("expected waitingForAuth drained")
	}
	if !m.failedSubs["h1"] {
		t.Error("expected the drained handle marked failed")
	}
	if _, ok := m.subs["h1"]; ok {
		t.Error("expected the drained handle removed from subs")
	}
	select {
	case msg := <-toOverlord:
		if msg.Kind != comms.OpMinionJobComplete || msg.JobID != 7 || msg.Success || msg.Reason != "auth-declined" {
			t.Errorf("unexpected completion message: %+v", msg)
		}
	default:
		t.Fatal("expected a job-complete failure message for the drained handle")
	}
}

func TestFailWaitingForAuthDefaultsReason(t *testing.T) {
	toOverlord := make(chan comms.ToOverlordMessage, 4)
	m := &Minion{
		url:            "wss://relay.example",
		toOverlord:     toOverlord,
		subs:           map[string]subscription{"h1": {id: "h1", jobID: 1}},
		waitingForAuth: map[string]time.Time{"h1": time.Now()},
		failedSubs:     map[string]bool{},
	}

	m.failWaitingForAuth("")

	msg := <-toOverlord
	if msg.Reason == "" {
		t.Error("expected a non-empty default reason when none was given")
	}
}

func TestCheckIdleAfterAuthFailureExitsWithFailures(t *testing.T) {
	m := &Minion{
		url:            "wss://relay.example",
		toOverlord:     make(chan comms.ToOverlordMessage, 4),
		subs:           map[string]subscription{"h1": {id: "h1", jobID: 1}},
		waitingForAuth: map[string]time.Time{"h1": time.Now()},
		failedSubs:     map[string]bool{},
		postingJobs:    map[uint64][]string{},
	}

	m.failWaitingForAuth("auth-declined")
	m.checkIdle()
	m.checkIdle()

	if m.exiting == nil || *m.exiting != ExitSubscriptionsCompletedWithFailures {
		t.Errorf("expected an idle exit with failures once waitingForAuth drains, got %v", m.exiting)
	}
}
