// Package nostrconnect implements the client side of NIP-46 (Nostr
// Connect): building and parsing the NIP-04-encrypted kind-24133 JSON-RPC
// envelope a remote signer exchanges with this app, so the user's real key
// can live in a phone or hardware signer instead of on this machine.
package nostrconnect

import (
	"encoding/json"

	"github.com/nbd-wtf/go-nostr"
	"github.com/nbd-wtf/go-nostr/nip04"

	"github.com/pinpox/nitrousd/internal/errs"
)

// Request is one JSON-RPC request in the NIP-46 protocol: "connect",
// "sign_event", "get_public_key", "ping", "nip04_encrypt", and so on.
type Request struct {
	ID                 string
	RemoteSignerPubkey string
	Method             string
	Params             []string
}

// wireRequest is the envelope's plaintext JSON shape.
type wireRequest struct {
	ID     string   `json:"id"`
	Method string   `json:"method"`
	Params []string `json:"params"`
}

// Response is the remote signer's reply to one Request.
type Response struct {
	ID     string
	Result string
	Error  string
}

type wireResponse struct {
	ID     string `json:"id"`
	Result string `json:"result"`
	Error  string `json:"error,omitempty"`
}

// Client holds the local connection keypair used to talk to one remote
// signer. The connection key is distinct from the user's own identity key:
// it only ever signs/decrypts kind-24133 envelopes.
type Client struct {
	localSecretKey string
	localPublicKey string
	remoteSigner   string
}

// NewClient builds a Client bound to one remote signer pubkey, using
// localSecretKey (hex) as the connection's own keypair.
func NewClient(localSecretKey, remoteSignerPubkey string) (*Client, error) {
	pk, err := nostr.GetPublicKey(localSecretKey)
	if err != nil {
		return nil, errs.WrapMessage(errs.KindCrypto, "derive nostrconnect connection pubkey", err)
	}
	return &Client{localSecretKey: localSecretKey, localPublicKey: pk, remoteSigner: remoteSignerPubkey}, nil
}

// BuildRequestEvent encrypts req and signs the resulting kind-24133 event
// addressed to the remote signer.
func (c *Client) BuildRequestEvent(req Request) (*nostr.Event, error) {
	wire := wireRequest{ID: req.ID, Method: req.Method, Params: req.Params}
	plain, err := json.Marshal(wire)
	if err != nil {
		return nil, errs.Wrap(errs.KindJSON, err)
	}
	ss, err := nip04.ComputeSharedSecret(c.remoteSigner, c.localSecretKey)
	if err != nil {
		return nil, errs.WrapMessage(errs.KindCrypto, "compute nostrconnect shared secret", err)
	}
	ciphertext, err := nip04.Encrypt(string(plain), ss)
	if err != nil {
		return nil, errs.WrapMessage(errs.KindCrypto, "encrypt nostrconnect request", err)
	}
	e := &nostr.Event{
		Kind:    24133,
		Content: ciphertext,
		Tags:    nostr.Tags{{"p", c.remoteSigner}},
	}
	if err := e.Sign(c.localSecretKey); err != nil {
		return nil, errs.Wrap(errs.KindCrypto, err)
	}
	return e, nil
}

// ParseResponseEvent decrypts and validates a kind-24133 event as this
// Client's remote signer's reply. It rejects events from any other author,
// since that would otherwise let an unrelated relay participant inject
// forged signer responses.
func (c *Client) ParseResponseEvent(e *nostr.Event) (*Response, error) {
	if e.Kind != 24133 {
		return nil, errs.Newf(errs.KindWrongEventKind, "nostrconnect response: wrong kind %d", e.Kind)
	}
	if e.PubKey != c.remoteSigner {
		return nil, errs.Newf(errs.KindWrongEventKind, "nostrconnect response: unexpected author %s", e.PubKey)
	}
	ss, err := nip04.ComputeSharedSecret(c.remoteSigner, c.localSecretKey)
	if err != nil {
		return nil, errs.WrapMessage(errs.KindCrypto, "compute nostrconnect shared secret", err)
	}
	plain, err := nip04.Decrypt(e.Content, ss)
	if err != nil {
		return nil, errs.WrapMessage(errs.KindCrypto, "decrypt nostrconnect response", err)
	}
	var wire wireResponse
	if err := json.Unmarshal([]byte(plain), &wire); err != nil {
		return nil, errs.Wrap(errs.KindJSON, err)
	}
	return &Response{ID: wire.ID, Result: wire.Result, Error: wire.Error}, nil
}

// PublicKey returns the local connection key's public key, the value
// published in the nostrconnect:// / bunker:// handshake URI's pubkey slot.
func (c *Client) PublicKey() string { return c.localPublicKey }
