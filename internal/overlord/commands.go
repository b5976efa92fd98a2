package overlord

import (
	"context"

	"github.com/pinpox/nitrousd/internal/comms"
	"github.com/pinpox/nitrousd/internal/errs"
	"github.com/pinpox/nitrousd/internal/feed"
	"github.com/pinpox/nitrousd/internal/relay"
	"github.com/pinpox/nitrousd/internal/signer"
)

// handle dispatches one inbound ToOverlordMessage. It is the single place
// every public operation funnels through.
func (o *Overlord) handle(ctx context.Context, msg comms.ToOverlordMessage) error {
	switch msg.Kind {

	case comms.OpAddRelay:
		return o.store.PutRelay(&relay.Relay{URL: relay.CanonicalizeURL(msg.RelayURL), Rank: 3})

	case comms.OpDropRelay:
		url := relay.CanonicalizeURL(msg.RelayURL)
		if h, ok := o.connected.LoadAndDelete(url); ok {
			h.cancel()
		}
		r, err := o.store.GetRelay(url)
		if err != nil {
			return err
		}
		r.Rank = 0
		return o.store.PutRelay(r)

	case comms.OpRankRelay:
		r, err := o.store.GetRelay(relay.CanonicalizeURL(msg.RelayURL))
		if err != nil {
			return err
		}
		r.Rank = msg.Rank
		return o.store.PutRelay(r)

	case comms.OpHideOrShowRelay:
		r, err := o.store.GetRelay(relay.CanonicalizeURL(msg.RelayURL))
		if err != nil {
			return err
		}
		r.Hidden = msg.Hidden
		return o.store.PutRelay(r)

	case comms.OpUpdateRelay:
		old := relay.CanonicalizeURL(msg.RelayURL)
		fresh := relay.CanonicalizeURL(msg.NewRelayURL)
		r, err := o.store.GetRelay(old)
		if err != nil {
			return err
		}
		r.URL = fresh
		if h, ok := o.connected.LoadAndDelete(old); ok {
			h.cancel()
		}
		return o.store.PutRelay(r)

	case comms.OpAdvertiseRelayList:
		return o.advertiseRelayList(ctx)

	case comms.OpPushPersonList:
		return o.pushPersonList(ctx, msg.PersonListSlot)

	case comms.OpPushMetadata:
		e, err := o.build.Metadata(msg.Metadata)
		if err != nil {
			return err
		}
		return o.post(ctx, e)

	case comms.OpPushBlossomServers:
		e, err := o.build.BlossomServerList(msg.Relays)
		if err != nil {
			return err
		}
		return o.post(ctx, e)

	case comms.OpPost:
		e, err := o.build.TextNote(msg.Content, msg.Tags, msg.InReplyTo, "", "")
		if err != nil {
			return err
		}
		return o.post(ctx, e)

	case comms.OpPostAgain:
		if msg.Event == nil {
			return errs.New(errs.KindEmpty, "PostAgain requires an event")
		}
		return o.post(ctx, msg.Event)

	case comms.OpPostCancel:
		o.postCancel()
		return nil

	case comms.OpRepost:
		target, err := o.store.GetEvent(msg.EventID)
		if err != nil {
			return err
		}
		e, err := o.build.Repost(target, "")
		if err != nil {
			return err
		}
		return o.post(ctx, e)

	case comms.OpReact:
		e, err := o.build.React(msg.EventID, msg.ReactPubkey, msg.ReactChar)
		if err != nil {
			return err
		}
		return o.post(ctx, e)

	case comms.OpDeletePost:
		e, err := o.build.Delete([]string{msg.EventID}, nil, msg.Reason)
		if err != nil {
			return err
		}
		return o.post(ctx, e)

	case comms.OpFetchEvent:
		o.DispatchFetchEvent(msg.EventID, msg.Relays)
		return nil

	case comms.OpFetchNAddr:
		o.DispatchFetchNAddr(msg.NAddr)
		return nil

	case comms.OpSetFeed:
		o.feed.SetSelector(feed.Selector{Kind: feedKindFromName(msg.FeedKindName), PersonPubkey: msg.ReferencedBy})
		return nil

	case comms.OpSetThreadFeed:
		o.feed.SetSelector(feed.Selector{Kind: feed.KThread, ThreadID: msg.ThreadID, ThreadReferencedBy: msg.ReferencedBy, ThreadAuthor: msg.ThreadAuthor})
		return nil

	case comms.OpLoadMoreCurrentFeed:
		o.feed.Recompute()
		return nil

	case comms.OpAuthApproved:
		return o.approveAuth(msg.RelayURL, msg.Permanent)
	case comms.OpAuthDeclined:
		return o.declineAuth(msg.RelayURL, msg.Permanent)
	case comms.OpConnectApproved:
		return o.approveConnect(ctx, msg.RelayURL, msg.Permanent)
	case comms.OpConnectDeclined:
		return o.declineConnect(msg.RelayURL, msg.Permanent)

	case comms.OpUnlockKey:
		// Decrypting an at-rest passphrase-protected key is an external
		// key-store collaborator's job; this reloads from the configured
		// private_key_file/NOSTR_PRIVATE_KEY once that collaborator has
		// made the raw key available.
		s, err := signer.Load(o.cfg.PrivateKeyFile)
		if err != nil {
			return err
		}
		o.sign = s
		return nil

	case comms.OpGeneratePrivateKey:
		s, _, err := signer.Generate()
		if err != nil {
			return err
		}
		o.sign = s
		return nil

	case comms.OpImportPriv:
		s, err := signer.FromSecretKey(msg.PrivHex)
		if err != nil {
			return err
		}
		o.sign = s
		return nil

	case comms.OpImportPub:
		// A public-key-only identity cannot sign. Nothing is recorded and
		// o.sign is left unchanged.
		return nil

	case comms.OpDeletePriv:
		if o.sign != nil {
			o.sign.Clear()
		}
		return nil

	case comms.OpDeletePub:
		return nil

	case comms.OpChangePassphrase:
		return nil

	case comms.OpMinionJobComplete:
		o.reap(ctx, relay.CanonicalizeURL(msg.RelayURL), msg.Reason)
		return nil

	case comms.OpMinionJobUpdated:
		return nil

	case comms.OpReengageMinion:
		o.reengage(ctx, relay.CanonicalizeURL(msg.RelayURL), msg.Jobs)
		return nil

	case comms.OpAuthChallenge:
		return nil

	case comms.OpSendDM:
		return o.sendDM(ctx, msg.DMRecipient, msg.Content)

	case comms.OpConnectRemoteSigner:
		return o.connectRemoteSigner(ctx, msg.Nip46RemotePubkey, msg.Nip46Relays, msg.Nip46Secret)

	case comms.OpBookmarkAdd:
		return o.bookmarkAdd(ctx, msg.EventID, msg.Private)

	case comms.OpBookmarkRemove:
		return o.bookmarkRemove(ctx, msg.EventID)

	default:
		return nil
	}
}

func feedKindFromName(name string) feed.Kind {
	switch name {
	case "inbox":
		return feed.KInbox
	case "person":
		return feed.KPerson
	case "dm_chat":
		return feed.KDmChat
	case "global":
		return feed.KGlobal
	case "bookmarks":
		return feed.KBookmarks
	case "list":
		return feed.KList
	default:
		return feed.KFollowed
	}
}
