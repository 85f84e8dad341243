package nwc

import (
	"errors"
	"fmt"
)

// Sentinel errors for outcomes that carry no extra data.
var (
	// ErrTimeout is returned when an RPC's deadline passes without a
	// matching response from the wallet service.
	ErrTimeout = errors.New("request timed out")

	// ErrShutdown is returned to callers whose requests were pending when
	// Shutdown was called, and by operations started afterwards.
	ErrShutdown = errors.New("client is shut down")

	// ErrDuplicateEventID indicates two pending requests were registered
	// under the same event id. This is a bug in the caller, not the relay.
	ErrDuplicateEventID = errors.New("duplicate request event id")

	// ErrMalformedResponse is returned when a decrypted response carries
	// neither a result nor an error, or both.
	ErrMalformedResponse = errors.New("malformed wallet service response")

	// ErrUnexpectedResultType is returned when result_type does not match
	// the requested method.
	ErrUnexpectedResultType = errors.New("unexpected result_type in response")
)

// PairingURLError reports an invalid nostr+walletconnect:// pairing URL.
type PairingURLError struct {
	Reason string
}

func (e *PairingURLError) Error() string {
	return fmt.Sprintf("invalid pairing url: %s", e.Reason)
}

// ServiceError is a NIP-47 error object returned by the wallet service.
type ServiceError struct {
	Code    string
	Message string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("wallet service error %s: %s", e.Code, e.Message)
}

// RelayRejectedError is returned when the relay refuses our EVENT publish
// with ["OK", <id>, false, <message>].
type RelayRejectedError struct {
	Message string
}

func (e *RelayRejectedError) Error() string {
	return fmt.Sprintf("relay rejected event: %s", e.Message)
}

// SubscriptionClosedError is returned when the relay closes the response
// subscription before the service answered.
type SubscriptionClosedError struct {
	Reason string
}

func (e *SubscriptionClosedError) Error() string {
	return fmt.Sprintf("subscription closed by relay: %s", e.Reason)
}

// UnsupportedError is returned when the wallet service does not advertise
// the method an operation needs.
type UnsupportedError struct {
	Method string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("wallet service does not support %s", e.Method)
}
