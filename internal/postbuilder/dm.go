package postbuilder

import (
	"context"

	"github.com/nbd-wtf/go-nostr"
	"github.com/nbd-wtf/go-nostr/keyer"
	"github.com/nbd-wtf/go-nostr/nip04"
	"github.com/nbd-wtf/go-nostr/nip17"

	"github.com/pinpox/nitrousd/internal/errs"
)

// DirectMessage is a prepared DM send. For a NIP-17 giftwrap, ToUs and ToThem
// are two distinct kind-1059 wraps of the same rumor (one for the sender's
// own inbox relays, one for the recipient's); ToThem alone is set for the
// NIP-04 legacy fallback.
type DirectMessage struct {
	ToUs   *nostr.Event
	ToThem *nostr.Event
	Legacy bool
}

// DirectMessageTo builds a DM addressed to recipientPubkey. giftwrapCapable
// tells it whether the recipient is known (via their published kind-10050
// DM relay list) to support NIP-17; the caller determines this from its own
// relay-usage records rather than this function re-querying relays live,
// since the overlord already keeps that answer cached.
func (b *Builder) DirectMessageTo(ctx context.Context, recipientPubkey, content string, giftwrapCapable bool) (*DirectMessage, error) {
	if giftwrapCapable {
		return b.directMessageNip17(ctx, recipientPubkey, content)
	}
	return b.directMessageNip04(recipientPubkey, content)
}

func (b *Builder) directMessageNip17(ctx context.Context, recipientPubkey, content string) (*DirectMessage, error) {
	sk, err := b.sign.SecretKey()
	if err != nil {
		return nil, err
	}
	kr, err := keyer.NewPlainKeySigner(sk)
	if err != nil {
		return nil, errs.Wrap(errs.KindCrypto, err)
	}
	toUs, toThem, err := nip17.PrepareMessage(ctx, content, nil, kr, recipientPubkey, nil)
	if err != nil {
		return nil, errs.WrapMessage(errs.KindCrypto, "prepare giftwrapped DM", err)
	}
	return &DirectMessage{ToUs: &toUs, ToThem: &toThem}, nil
}

// directMessageNip04 builds the legacy kind-4 encrypted DM: one event,
// published to both parties' relays, decryptable by either side from the
// shared secret alone.
func (b *Builder) directMessageNip04(recipientPubkey, content string) (*DirectMessage, error) {
	sk, err := b.sign.SecretKey()
	if err != nil {
		return nil, err
	}
	ss, err := nip04.ComputeSharedSecret(recipientPubkey, sk)
	if err != nil {
		return nil, errs.WrapMessage(errs.KindCrypto, "compute shared secret", err)
	}
	ciphertext, err := nip04.Encrypt(content, ss)
	if err != nil {
		return nil, errs.WrapMessage(errs.KindCrypto, "encrypt DM", err)
	}
	e := &nostr.Event{Kind: 4, Content: ciphertext, Tags: nostr.Tags{{"p", recipientPubkey}}}
	signed, err := b.finish(e)
	if err != nil {
		return nil, err
	}
	return &DirectMessage{ToThem: signed, Legacy: true}, nil
}
