package errs

import (
	"errors"
	"testing"
)

func TestNewCapturesKindAndMessage(t *testing.T) {
	err := New(KindNoPrivateKey, "locked")
	if KindOf(err) != KindNoPrivateKey {
		t.Errorf("KindOf = %v, want KindNoPrivateKey", KindOf(err))
	}
	if err.Error() == "" {
		t.Error("expected a non-empty error string")
	}
}

func TestWrapNilReturnsNil(t *testing.T) {
	if err := Wrap(KindIO, nil); err != nil {
		t.Errorf("Wrap(kind, nil) = %v, want nil", err)
	}
	if err := WrapMessage(KindIO, "msg", nil); err != nil {
		t.Errorf("WrapMessage(kind, msg, nil) = %v, want nil", err)
	}
}

func TestWrapPreservesCauseAndUnwraps(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(KindStorage, cause)
	wrapped, ok := err.(*Error)
	if !ok {
		t.Fatalf("expected *Error, got %T", err)
	}
	if !errors.Is(wrapped, cause) && errors.Unwrap(wrapped) != cause {
		t.Errorf("expected Unwrap to recover the original cause")
	}
}

func TestErrorIsMatchesByKindOnly(t *testing.T) {
	a := New(KindTimeout, "first")
	b := New(KindTimeout, "second")
	c := New(KindIO, "third")
	if !errors.Is(a, b) {
		t.Error("expected errors of the same Kind to match via errors.Is")
	}
	if errors.Is(a, c) {
		t.Error("expected errors of different Kinds not to match")
	}
}

func TestKindOfNonPackageError(t *testing.T) {
	if got := KindOf(errors.New("plain")); got != KindUnknown {
		t.Errorf("KindOf(plain error) = %v, want KindUnknown", got)
	}
	if got := KindOf(nil); got != KindUnknown {
		t.Errorf("KindOf(nil) = %v, want KindUnknown", got)
	}
}

func TestNewWithCodeCarriesCode(t *testing.T) {
	err := NewWithCode(KindHTTPServerError, 503, "relay.example")
	if CodeOf(err) != 503 {
		t.Errorf("CodeOf = %d, want 503", CodeOf(err))
	}
	if KindOf(err) != KindHTTPServerError {
		t.Errorf("KindOf = %v, want KindHTTPServerError", KindOf(err))
	}
}

func TestCodeOfNonPackageError(t *testing.T) {
	if got := CodeOf(errors.New("plain")); got != 0 {
		t.Errorf("CodeOf(plain error) = %d, want 0", got)
	}
}

func TestKindStringUnknownFallback(t *testing.T) {
	var weird Kind = 9999
	if weird.String() != "Unknown" {
		t.Errorf("String() for an out-of-range Kind = %q, want Unknown", weird.String())
	}
}
