package postbuilder

import (
	"encoding/hex"
	"runtime"
	"strconv"

	"github.com/klauspost/cpuid/v2"
	"github.com/nbd-wtf/go-nostr"

	"github.com/pinpox/nitrousd/internal/errs"
)

// MineEvent repeatedly re-signs e with an incrementing "nonce" tag until the
// resulting id has at least targetBits leading zero bits (NIP-13
// proof-of-work), reporting the best bit count found so far on progress and
// stopping early if cancel fires. Re-signing (rather than reimplementing
// NIP-01's canonical serialization by hand) guarantees the mined id matches
// exactly what the relay will see.
//
// cpuid.CPU.LogicalCores sizes the batch of attempts tried between progress
// reports and cancellation checks, so mining on a wide core stays responsive
// without paying a channel-send per hash attempt.
func MineEvent(sign Signer, e *nostr.Event, targetBits int, progress chan<- int, cancel <-chan struct{}) error {
	batch := cpuid.CPU.LogicalCores * 256
	if batch <= 0 {
		batch = runtime.NumCPU() * 256
	}
	if batch <= 0 {
		batch = 1024
	}

	base := e.Tags
	best := 0
	for nonce := uint64(0); ; nonce++ {
		if nonce%uint64(batch) == 0 {
			select {
			case <-cancel:
				return errs.New(errs.KindTimeout, "proof-of-work mining cancelled")
			default:
			}
			if progress != nil {
				select {
				case progress <- best:
				default:
				}
			}
		}

		e.Tags = append(append(nostr.Tags{}, base...), nostr.Tag{"nonce", strconv.FormatUint(nonce, 10), strconv.Itoa(targetBits)})
		if err := sign.SignEvent(e); err != nil {
			return err
		}
		bits, err := leadingZeroBits(e.ID)
		if err != nil {
			return err
		}
		if bits > best {
			best = bits
		}
		if bits >= targetBits {
			return nil
		}
	}
}

func leadingZeroBits(idHex string) (int, error) {
	raw, err := hex.DecodeString(idHex)
	if err != nil {
		return 0, errs.Wrap(errs.KindCrypto, err)
	}
	bits := 0
	for _, b := range raw {
		if b == 0 {
			bits += 8
			continue
		}
		for mask := byte(0x80); mask > 0; mask >>= 1 {
			if b&mask != 0 {
				return bits, nil
			}
			bits++
		}
		return bits, nil
	}
	return bits, nil
}

