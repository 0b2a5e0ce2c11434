// Package errors defines the marketplace error taxonomy. Every rejected
// operation surfaces an *Error carrying a Kind for classification and a
// stable Code that RPC clients can match on.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind classifies why an operation was rejected.
type Kind uint8

const (
	KindInternal Kind = iota
	KindValidation
	KindAuthorization
	KindState
	KindResolution
	KindNotFound
	KindFunds
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthorization:
		return "authorization"
	case KindState:
		return "state"
	case KindResolution:
		return "resolution"
	case KindNotFound:
		return "not_found"
	case KindFunds:
		return "funds"
	default:
		return "internal"
	}
}

// Error is a rejected operation. Two errors are the same when their codes
// match, so errors.Is works against the sentinels below even after Withf.
type Error struct {
	Kind    Kind
	Code    string
	Message string
}

// New constructs an error.
func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.Code + ": " + e.Message
}

// Is matches any *Error with the same code.
func (e *Error) Is(target error) bool {
	var other *Error
	if !stderrors.As(target, &other) || other == nil || e == nil {
		return false
	}
	return e.Code == other.Code
}

// Withf returns a copy of e with detail appended to the message.
func (e *Error) Withf(format string, args ...any) *Error {
	return &Error{Kind: e.Kind, Code: e.Code, Message: e.Message + ": " + fmt.Sprintf(format, args...)}
}

// KindOf reports the kind of the first *Error in err's chain. Errors outside
// the taxonomy are internal.
func KindOf(err error) Kind {
	var target *Error
	if stderrors.As(err, &target) && target != nil {
		return target.Kind
	}
	return KindInternal
}

// CodeOf returns the stable code for err, or "internal".
func CodeOf(err error) string {
	var target *Error
	if stderrors.As(err, &target) && target != nil {
		return target.Code
	}
	return "internal"
}

// Is and As re-export the standard helpers so callers need a single import.
func Is(err, target error) bool { return stderrors.Is(err, target) }

func As(err error, target any) bool { return stderrors.As(err, target) }

// Validation.
var (
	ErrUsernameTooLong          = New(KindValidation, "username_too_long", "username too long")
	ErrUsernameEmpty            = New(KindValidation, "username_empty", "username must not be empty")
	ErrInvalidRole              = New(KindValidation, "invalid_role", "invalid user type")
	ErrListingIDInvalid         = New(KindValidation, "invalid_listing_id", "listing id must be 1-32 bytes")
	ErrTitleTooLong             = New(KindValidation, "title_too_long", "title too long")
	ErrDescriptionTooLong       = New(KindValidation, "description_too_long", "description too long")
	ErrCategoryTooLong          = New(KindValidation, "category_too_long", "category too long")
	ErrInvalidPrice             = New(KindValidation, "invalid_price", "price must be positive")
	ErrInvalidTier              = New(KindValidation, "invalid_tier", "unknown package tier")
	ErrTierUnavailable          = New(KindValidation, "tier_unavailable", "package tier not offered by listing")
	ErrListingInactive          = New(KindValidation, "listing_inactive", "listing is not active")
	ErrOrderIDInvalid           = New(KindValidation, "invalid_order_id", "order id must be 1-32 bytes")
	ErrReasonTooLong            = New(KindValidation, "reason_too_long", "reason too long")
	ErrNotesTooLong             = New(KindValidation, "notes_too_long", "admin notes too long")
	ErrInvalidClientPercentage  = New(KindValidation, "invalid_client_percentage", "client percentage must be between 0 and 100")
	ErrInvalidFeeRate           = New(KindValidation, "invalid_fee_rate", "fee rate exceeds 10000 basis points")
	ErrInvalidPayload           = New(KindValidation, "invalid_payload", "malformed transaction payload")
	ErrInvalidSignature         = New(KindValidation, "invalid_signature", "transaction signature invalid")
	ErrInvalidChainID           = New(KindValidation, "invalid_chain_id", "transaction chain id mismatch")
	ErrUnsupportedTransaction   = New(KindValidation, "unsupported_transaction", "unsupported transaction type")
	ErrInvalidReferrer          = New(KindValidation, "invalid_referrer", "referrer must differ from client and freelancer")
	ErrInvalidEscrowParticipant = New(KindValidation, "invalid_participant", "client and freelancer must differ")
)

// Authorization.
var (
	ErrUnauthorized    = New(KindAuthorization, "unauthorized", "unauthorized")
	ErrNotFreelancer   = New(KindAuthorization, "not_freelancer", "not a freelancer account")
	ErrNotEscrowClient = New(KindAuthorization, "not_authorized", "caller is not the escrow client")
	ErrNotArbitrator   = New(KindAuthorization, "not_arbitrator", "caller is not an arbitrator")
	ErrNotListingOwner = New(KindAuthorization, "not_listing_owner", "caller does not own the listing")
)

// State.
var (
	ErrInvalidStatusTransition = New(KindState, "invalid_status_transition", "invalid status transition")
	ErrInvalidEscrowStatus     = New(KindState, "invalid_escrow_status", "invalid escrow status")
	ErrAlreadyInDispute        = New(KindState, "already_in_dispute", "escrow already in dispute")
	ErrDisputeAlreadyExists    = New(KindState, "dispute_already_exists", "dispute already exists")
	ErrDisputeNotOpen          = New(KindState, "dispute_not_open", "dispute not open")
	ErrProfileExists           = New(KindState, "profile_exists", "identity already registered")
	ErrUsernameTaken           = New(KindState, "username_taken", "username already taken")
	ErrListingExists           = New(KindState, "listing_exists", "listing already exists")
	ErrEscrowExists            = New(KindState, "escrow_exists", "escrow already exists for order")
	ErrInvalidNonce            = New(KindState, "invalid_nonce", "transaction nonce mismatch")
	ErrModulePaused            = New(KindState, "module_paused", "module paused")
)

// Resolution.
var (
	ErrInvalidResolution = New(KindResolution, "invalid_resolution", "invalid dispute resolution")
)

// Not found.
var (
	ErrProfileNotFound = New(KindNotFound, "profile_not_found", "profile not found")
	ErrListingNotFound = New(KindNotFound, "listing_not_found", "listing not found")
	ErrEscrowNotFound  = New(KindNotFound, "escrow_not_found", "escrow not found")
	ErrDisputeNotFound = New(KindNotFound, "dispute_not_found", "dispute not found")
)

// Funds.
var (
	ErrInsufficientFunds = New(KindFunds, "insufficient_funds", "insufficient funds")
	ErrAmountOverflow    = New(KindFunds, "amount_overflow", "amount overflows u64")
)

// Internal.
var (
	ErrDistributionMismatch = New(KindInternal, "distribution_mismatch", "payouts do not account for the full deposit")
	ErrUndeclaredKey        = New(KindInternal, "undeclared_key", "write to a record outside the declared set")
)
