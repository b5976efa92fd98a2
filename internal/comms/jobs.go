package comms

import "github.com/nbd-wtf/go-nostr"

// JobReason is why a relay job exists.
type JobReason int

const (
	ReasonFollow JobReason = iota
	ReasonFetchInbox
	ReasonFetchMetadata
	ReasonFetchEvent
	ReasonFetchAugments
	ReasonPostEvent
	ReasonPostLike
	ReasonPostContacts
	ReasonPostMetadata
	ReasonAdvertising
	ReasonDiscovery
	ReasonGiftwraps
	ReasonCounting
	ReasonReadThread
	ReasonNostrConnect
	ReasonSearch
	ReasonSubscribePerson
	ReasonSubscribeGlobal
	ReasonConfig
)

// Persistent reports whether this job reason should survive a minion
// restart via ReengageMinion (subscriptions) as opposed to one-shot jobs
// (posting a single event).
func (r JobReason) Persistent() bool {
	switch r {
	case ReasonPostEvent, ReasonPostLike, ReasonPostContacts, ReasonPostMetadata,
		ReasonFetchEvent, ReasonAdvertising:
		return false
	default:
		return true
	}
}

// RelayJob pairs a reason with either a FilterSet (subscriptions) or an
// outgoing event (posts).
type RelayJob struct {
	ID     uint64
	Reason JobReason

	FilterSet *FilterSet
	Event     *nostr.Event

	RelayURL string
}

// Handle returns the subscription handle for subscription-shaped jobs, or
// "" for post jobs (which have no handle).
func (j RelayJob) Handle() string {
	if j.FilterSet == nil {
		return ""
	}
	return j.FilterSet.Handle()
}
