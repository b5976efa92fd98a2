// Package errs defines the error values used across nitrousd. Every error
// carries a Kind and the call site that raised it, mirroring the
// kind+location pairing the upstream gossip client uses internally.
package errs

import (
	"fmt"
	"runtime"
)

// Kind classifies an error independent of its message, so callers can switch
// on it without string matching.
type Kind int

const (
	KindUnknown Kind = iota
	KindBadNostrConnectString
	KindDisconnected
	KindEngageDisallowed
	KindEngagePending
	KindEventNotFound
	KindEmpty
	KindMaxRelaysReached
	KindNoPrivateKey
	KindNoPrivateKeyForAuth
	KindNoRelay
	KindListAllocationFailed
	KindListIsWellKnown
	KindNostrConnectNotSetup
	KindOffline
	KindRelayRejectedUs
	KindTimeout
	KindUnsupportedRelayUsage
	KindUrlHasNoHostname
	KindUsersCantUseNip17
	KindWrongEventKind
	KindDuplicate
	KindVerifyFailed
	KindStorage
	KindIO
	KindJSON
	KindWebsocket
	KindURLParse
	KindCrypto
	KindHTTPRedirect
	KindHTTPClientError
	KindHTTPServerError
)

var kindNames = map[Kind]string{
	KindUnknown:               "Unknown",
	KindBadNostrConnectString: "BadNostrConnectString",
	KindDisconnected:          "Disconnected",
	KindEngageDisallowed:      "EngageDisallowed",
	KindEngagePending:         "EngagePending",
	KindEventNotFound:         "EventNotFound",
	KindEmpty:                 "Empty",
	KindMaxRelaysReached:      "MaxRelaysReached",
	KindNoPrivateKey:          "NoPrivateKey",
	KindNoPrivateKeyForAuth:   "NoPrivateKeyForAuth",
	KindNoRelay:               "NoRelay",
	KindListAllocationFailed:  "ListAllocationFailed",
	KindListIsWellKnown:       "ListIsWellKnown",
	KindNostrConnectNotSetup:  "NostrConnectNotSetup",
	KindOffline:               "Offline",
	KindRelayRejectedUs:       "RelayRejectedUs",
	KindTimeout:               "Timeout",
	KindUnsupportedRelayUsage: "UnsupportedRelayUsage",
	KindUrlHasNoHostname:      "UrlHasNoHostname",
	KindUsersCantUseNip17:     "UsersCantUseNip17",
	KindWrongEventKind:        "WrongEventKind",
	KindDuplicate:             "Duplicate",
	KindVerifyFailed:          "VerifyFailed",
	KindStorage:               "Storage",
	KindIO:                    "IO",
	KindJSON:                  "JSON",
	KindWebsocket:             "Websocket",
	KindURLParse:              "URLParse",
	KindCrypto:                "Crypto",
	KindHTTPRedirect:          "HTTPRedirect",
	KindHTTPClientError:       "HTTPClientError",
	KindHTTPServerError:       "HTTPServerError",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "Unknown"
}

// Error is the first-class error value used throughout nitrousd: a kind,
// a message, the location it was raised at, and an optional wrapped cause.
type Error struct {
	Kind     Kind
	Message  string
	Code     int // HTTP status code, when the error arose from a handshake response
	File     string
	Line     int
	Function string
	Cause    error
}

func (e *Error) Error() string {
	loc := fmt.Sprintf("%s:%d", e.File, e.Line)
	if e.Message == "" {
		if e.Cause != nil {
			return fmt.Sprintf("%s at %s: %v", e.Kind, loc, e.Cause)
		}
		return fmt.Sprintf("%s at %s", e.Kind, loc)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s at %s: %s: %v", e.Kind, loc, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s at %s: %s", e.Kind, loc, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

func (e *Error) Is(target error) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	return te.Kind == e.Kind
}

func caller(skip int) (file string, line int, fn string) {
	pc, file, line, ok := runtime.Caller(skip + 1)
	if !ok {
		return "unknown", 0, "unknown"
	}
	if f := runtime.FuncForPC(pc); f != nil {
		fn = f.Name()
	}
	return file, line, fn
}

// New builds an Error of the given kind, capturing the caller's location.
func New(kind Kind, message string) error {
	file, line, fn := caller(1)
	return &Error{Kind: kind, Message: message, File: file, Line: line, Function: fn}
}

// Newf is New with fmt-style formatting.
func Newf(kind Kind, format string, args ...any) error {
	file, line, fn := caller(1)
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), File: file, Line: line, Function: fn}
}

// NewWithCode is New plus an HTTP status code, for dial failures that
// carry a response the caller wants the exclusion policy to see.
func NewWithCode(kind Kind, code int, message string) error {
	file, line, fn := caller(1)
	return &Error{Kind: kind, Message: message, Code: code, File: file, Line: line, Function: fn}
}

// Wrap attaches a kind and location to a lower-layer error (IO, JSON, WS,
// URL parse, crypto, ...).
func Wrap(kind Kind, cause error) error {
	if cause == nil {
		return nil
	}
	file, line, fn := caller(1)
	return &Error{Kind: kind, File: file, Line: line, Function: fn, Cause: cause}
}

// WrapMessage is Wrap with an additional message.
func WrapMessage(kind Kind, message string, cause error) error {
	if cause == nil {
		return nil
	}
	file, line, fn := caller(1)
	return &Error{Kind: kind, Message: message, File: file, Line: line, Function: fn, Cause: cause}
}

// KindOf extracts the Kind from an error, or KindUnknown if it isn't one of
// ours.
func KindOf(err error) Kind {
	var e *Error
	if err == nil {
		return KindUnknown
	}
	if ae, ok := err.(*Error); ok {
		return ae.Kind
	}
	_ = e
	return KindUnknown
}

// CodeOf extracts the HTTP status code from an error built with
// NewWithCode, or 0 if it wasn't one of ours or carries none.
func CodeOf(err error) int {
	if ae, ok := err.(*Error); ok {
		return ae.Code
	}
	return 0
}
