// Package signer is the core's thin boundary onto a local private key: it
// loads the key from disk or env, signs events with it, and zeroizes it on
// Clear so a secret key does not linger in memory after use.
package signer

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/nbd-wtf/go-nostr"
	"github.com/nbd-wtf/go-nostr/nip19"

	"github.com/pinpox/nitrousd/internal/errs"
)

// Signer holds one unlocked private key in memory and signs events with
// it. Zero value is locked (no key loaded).
type Signer struct {
	mu sync.RWMutex
	sk []byte // raw hex bytes, zeroized on Clear
	pk string
}

// New returns a locked Signer.
func New() *Signer { return &Signer{} }

// Load reads a private key from path (expanding a leading ~/) or, absent a
// path, from the NOSTR_PRIVATE_KEY environment variable, exactly the
// teacher's loadKeys resolution order. nsec-encoded keys are decoded.
func Load(path string) (*Signer, error) {
	var raw string
	if path != "" {
		if strings.HasPrefix(path, "~/") {
			if home, err := os.UserHomeDir(); err == nil {
				path = filepath.Join(home, path[2:])
			}
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errs.WrapMessage(errs.KindIO, "read private_key_file", err)
		}
		raw = strings.TrimSpace(string(data))
	}
	if raw == "" {
		raw = os.Getenv("NOSTR_PRIVATE_KEY")
	}
	if raw == "" {
		return nil, errs.New(errs.KindNoPrivateKey, "set private_key_file or NOSTR_PRIVATE_KEY")
	}

	sk := raw
	if strings.HasPrefix(raw, "nsec") {
		prefix, val, err := nip19.Decode(raw)
		if err != nil {
			return nil, errs.WrapMessage(errs.KindCrypto, "decode nsec", err)
		}
		if prefix != "nsec" {
			return nil, errs.Newf(errs.KindCrypto, "expected nsec prefix, got %s", prefix)
		}
		sk = val.(string)
	}

	s := New()
	if err := s.unlock(sk); err != nil {
		return nil, err
	}
	return s, nil
}

// Generate mints a fresh key and unlocks the Signer with it.
func Generate() (*Signer, string, error) {
	sk := nostr.GeneratePrivateKey()
	s := New()
	if err := s.unlock(sk); err != nil {
		return nil, "", err
	}
	nsec, err := nip19.EncodePrivateKey(sk)
	if err != nil {
		return nil, "", errs.Wrap(errs.KindCrypto, err)
	}
	return s, nsec, nil
}

// FromSecretKey unlocks a Signer directly from a raw hex or nsec-encoded
// secret key, the path ImportPriv and UnlockKey take once the key material
// itself (rather than a file/env reference) is already in hand.
func FromSecretKey(raw string) (*Signer, error) {
	sk := raw
	if strings.HasPrefix(raw, "nsec") {
		prefix, val, err := nip19.Decode(raw)
		if err != nil {
			return nil, errs.WrapMessage(errs.KindCrypto, "decode nsec", err)
		}
		if prefix != "nsec" {
			return nil, errs.Newf(errs.KindCrypto, "expected nsec prefix, got %s", prefix)
		}
		sk = val.(string)
	}
	s := New()
	if err := s.unlock(sk); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Signer) unlock(sk string) error {
	pk, err := nostr.GetPublicKey(sk)
	if err != nil {
		return errs.WrapMessage(errs.KindCrypto, "derive public key", err)
	}
	s.mu.Lock()
	s.sk = []byte(sk)
	s.pk = pk
	s.mu.Unlock()
	return nil
}

// SignEvent signs e in place with the loaded key.
func (s *Signer) SignEvent(e *nostr.Event) error {
	s.mu.RLock()
	sk := string(s.sk)
	s.mu.RUnlock()
	if sk == "" {
		return errs.New(errs.KindNoPrivateKey, "signer is locked")
	}
	if err := e.Sign(sk); err != nil {
		return errs.Wrap(errs.KindCrypto, err)
	}
	return nil
}

// withKey runs fn with the unlocked secret key, failing with
// KindNoPrivateKey while the signer is locked.
func (s *Signer) withKey(fn func(sk string) (string, error)) (string, error) {
	s.mu.RLock()
	sk := string(s.sk)
	s.mu.RUnlock()
	if sk == "" {
		return "", errs.New(errs.KindNoPrivateKey, "signer is locked")
	}
	return fn(sk)
}

// SecretKey exposes the raw hex key to callers that need it directly
// (nip04/nip17 helpers take a secret key string, not an interface). Callers
// must not retain the returned string past their immediate use.
func (s *Signer) SecretKey() (string, error) {
	return s.withKey(func(sk string) (string, error) { return sk, nil })
}

// PublicKey returns the loaded key's pubkey, or ok=false if locked.
func (s *Signer) PublicKey() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pk, s.pk != ""
}

// Clear zeroizes the in-memory secret key so it does not linger in the
// process's memory after use.
func (s *Signer) Clear() {
	s.mu.Lock()
	for i := range s.sk {
		s.sk[i] = 0
	}
	s.sk = nil
	s.pk = ""
	s.mu.Unlock()
}
