package model

import "errors"

// EventState is the per-event pipeline state.
type EventState string

const (
	StateSeen         EventState = "seen"
	StateAnalyzed     EventState = "analyzed"
	StateDenied       EventState = "denied"
	StateSelecting    EventState = "selecting"
	StateSelected     EventState = "selected"
	StateValidating   EventState = "validating"
	StateValidated    EventState = "validated"
	StateTransferring EventState = "transferring"
	StateTransferred  EventState = "transferred"
	StateFailed       EventState = "failed"
)

// Terminal reports whether no further transition is possible.
func (s EventState) Terminal() bool {
	switch s {
	case StateDenied, StateTransferred, StateFailed:
		return true
	}
	return false
}

// Pipeline error taxonomy. Every terminal failure maps onto exactly
// one of these sentinels so callers can use errors.Is.
var (
	ErrFeedUnavailable       = errors.New("feed unavailable")
	ErrOracleInvalidResponse = errors.New("oracle response invalid")
	ErrOracleTimeout         = errors.New("oracle timeout")
	ErrNoEligibleRecipient   = errors.New("no eligible recipient")
	ErrAddressValidation     = errors.New("address validation failed")
	ErrCapExceeded           = errors.New("transfer cap exceeded")
	ErrTransferTransport     = errors.New("transfer transport error")
	ErrAlreadyTerminal       = errors.New("event already in terminal state")
	ErrEventInFlight         = errors.New("event already being processed")
	ErrUnknownEvent          = errors.New("unknown event")
)
