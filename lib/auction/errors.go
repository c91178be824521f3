package auction

import "errors"

// Engine error sentinels. Operations wrap these with context via %w so
// callers can classify a failure with ErrorClassOf.
var (
	// ErrAuctionNotFound indicates the requested auction was not found.
	ErrAuctionNotFound = errors.New("auction not found")
	// ErrCommitmentNotFound indicates no live commitment exists for the bidder.
	ErrCommitmentNotFound = errors.New("commitment not found")

	// ErrAuctionNotActive indicates the operation requires an active auction.
	ErrAuctionNotActive = errors.New("auction not active")
	// ErrAuctionNotInReveal indicates the operation requires the reveal window.
	ErrAuctionNotInReveal = errors.New("auction not in reveal window")
	// ErrAuctionFinalized indicates the auction already settled or was canceled.
	ErrAuctionFinalized = errors.New("auction already finalized")
	// ErrSettlementNotDue indicates settlement conditions are not met yet.
	ErrSettlementNotDue = errors.New("settlement not due")

	// ErrCommitmentMismatch indicates a reveal whose recomputed commitment does
	// not equal the stored commit hash.
	ErrCommitmentMismatch = errors.New("commitment mismatch")
	// ErrInvalidProof indicates a whitelist proof that fails verification.
	ErrInvalidProof = errors.New("invalid eligibility proof")

	// ErrNotAMember indicates a proof was requested for an address outside
	// the whitelist.
	ErrNotAMember = errors.New("address is not a whitelist member")
	// ErrNotEligible indicates the bidder does not satisfy the auction's
	// eligibility rule.
	ErrNotEligible = errors.New("bidder not eligible")
	// ErrBidTooLow indicates a Dutch bid below the current clearing price.
	ErrBidTooLow = errors.New("bid below current price")
	// ErrDepositTooLow indicates a commitment deposit below the minimum.
	ErrDepositTooLow = errors.New("deposit below minimum")
	// ErrInvalidAmount indicates a malformed or out-of-range amount.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrInvalidInput indicates malformed non-amount input, such as an empty
	// listing id or an auction created with a preset status.
	ErrInvalidInput = errors.New("invalid input")
	// ErrWrongKind indicates an operation applied to the wrong auction kind.
	ErrWrongKind = errors.New("operation not valid for auction kind")

	// ErrEntropyUnavailable indicates the platform RNG could not be sourced.
	// Fatal for the call; there is never a weak fallback.
	ErrEntropyUnavailable = errors.New("entropy source unavailable")
	// ErrPersistenceUnavailable indicates the datastore rejected a read or write.
	ErrPersistenceUnavailable = errors.New("persistence unavailable")
)

// ErrorClass groups engine failures by how callers should react.
type ErrorClass int

const (
	// ClassUnknown is an unclassified internal failure.
	ClassUnknown ErrorClass = iota
	// ClassValidation is malformed or out-of-range input; never retried.
	ClassValidation
	// ClassState is an operation illegal for the current auction status; the
	// caller should re-read state.
	ClassState
	// ClassIntegrity is a commitment or proof failure; rejected and logged as
	// a potential adversarial attempt, never retried.
	ClassIntegrity
	// ClassResource is a persistence or entropy failure; the caller may retry
	// the whole operation later.
	ClassResource
	// ClassNotFound is a missing auction or commitment.
	ClassNotFound
)

var classStrings = map[ErrorClass]string{
	ClassUnknown:    "unknown",
	ClassValidation: "validation",
	ClassState:      "state",
	ClassIntegrity:  "integrity",
	ClassResource:   "resource",
	ClassNotFound:   "not_found",
}

// String returns a string-encoded error class.
func (c ErrorClass) String() string {
	if s, exists := classStrings[c]; exists {
		return s
	}
	return "invalid"
}

// ErrorClassOf classifies an engine error by unwrapping to a known sentinel.
func ErrorClassOf(err error) ErrorClass {
	switch {
	case err == nil:
		return ClassUnknown
	case errors.Is(err, ErrAuctionNotFound), errors.Is(err, ErrCommitmentNotFound):
		return ClassNotFound
	case errors.Is(err, ErrAuctionNotActive), errors.Is(err, ErrAuctionNotInReveal),
		errors.Is(err, ErrAuctionFinalized), errors.Is(err, ErrSettlementNotDue):
		return ClassState
	case errors.Is(err, ErrCommitmentMismatch), errors.Is(err, ErrInvalidProof):
		return ClassIntegrity
	case errors.Is(err, ErrEntropyUnavailable), errors.Is(err, ErrPersistenceUnavailable):
		return ClassResource
	case errors.Is(err, ErrNotAMember), errors.Is(err, ErrNotEligible),
		errors.Is(err, ErrBidTooLow), errors.Is(err, ErrDepositTooLow),
		errors.Is(err, ErrInvalidAmount), errors.Is(err, ErrInvalidInput),
		errors.Is(err, ErrWrongKind):
		return ClassValidation
	default:
		return ClassUnknown
	}
}
