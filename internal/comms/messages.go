package comms

import "github.com/nbd-wtf/go-nostr"

// ToOverlordKind enumerates every public operation the Overlord accepts.
type ToOverlordKind int

const (
	OpAddRelay ToOverlordKind = iota
	OpDropRelay
	OpRankRelay
	OpHideOrShowRelay
	OpUpdateRelay
	OpAdvertiseRelayList
	OpPushPersonList
	OpPushMetadata
	OpPushBlossomServers
	OpPost
	OpPostAgain
	OpPostCancel
	OpRepost
	OpReact
	OpDeletePost
	OpFetchEvent
	OpFetchNAddr
	OpSetFeed
	OpSetThreadFeed
	OpLoadMoreCurrentFeed
	OpAuthApproved
	OpAuthDeclined
	OpConnectApproved
	OpConnectDeclined
	OpUnlockKey
	OpGeneratePrivateKey
	OpImportPriv
	OpImportPub
	OpDeletePriv
	OpDeletePub
	OpChangePassphrase
	OpMinionJobComplete
	OpMinionJobUpdated
	OpReengageMinion
	OpAuthChallenge
	OpSendDM
	OpConnectRemoteSigner
	OpBookmarkAdd
	OpBookmarkRemove
	OpShutdown
)

// ToOverlordMessage is the tagged sum type every inbound Overlord command
// is carried in. Only the fields relevant to Kind are populated.
type ToOverlordMessage struct {
	Kind ToOverlordKind

	RelayURL    string
	NewRelayURL string
	Rank        int
	Hidden      bool

	PersonListSlot int

	Metadata string // raw kind-0 JSON

	Content      string
	Tags         nostr.Tags
	InReplyTo    string
	Annotation   string
	DMChannel    string
	DMRecipient  string

	Nip46RemotePubkey string
	Nip46Relays       []string
	Nip46Secret       string
	Event        *nostr.Event
	EventID      string
	ReactPubkey  string
	ReactChar    string

	Relays []string // FetchEvent hints

	NAddr string

	FeedKindName string
	ThreadID     string
	ThreadAuthor string
	ReferencedBy string

	Permanent bool
	Password  string
	PrivHex   string
	PubHex    string
	NewPassword string

	JobID   uint64
	OldJob  *RelayJob
	NewJob  *RelayJob
	Jobs    []RelayJob

	Success bool   // MinionJobComplete: false surfaces as a job failure
	Reason  string

	Private bool // BookmarkAdd: keep the reference out of the public tags
}

// ToMinionKind enumerates commands the Overlord (or the UI via the
// Overlord) sends down to a specific minion, or to all minions via the
// broadcast target "all".
type ToMinionKind int

const (
	MinionSubscribe ToMinionKind = iota
	MinionUnsubscribe
	MinionUnsubscribeReplies
	MinionPostEvent
	MinionAdvertiseRelayList
	MinionFetchEvent
	MinionFetchNAddr
	MinionAuthApproved
	MinionAuthDeclined
	MinionShutdown
)

// BroadcastAll is the special target reaching every minion.
const BroadcastAll = "all"

// ToMinionMessage is broadcast on the to_minions channel; every minion
// checks Target against its own relay URL (or BroadcastAll).
type ToMinionMessage struct {
	Target string
	Kind   ToMinionKind
	JobID  uint64

	Job *RelayJob

	Event      *nostr.Event
	DMEvent    *nostr.Event // paired event for MinionAdvertiseRelayList
	EventID    string       // MinionFetchEvent
	EventHints []string     // MinionFetchEvent

	NAddrKind   int    // MinionFetchNAddr
	NAddrAuthor string
	NAddrDTag   string

	Permanent bool
}
