package pool

import "errors"

// Validation failures: malformed parameters, rejected before any state change.
var (
	ErrInvalidParams     = errors.New("pool: invalid parameters")
	ErrParticipantBounds = errors.New("pool: participant capacity below minimum")
	ErrPercentOutOfRange = errors.New("pool: percentage out of range")
	ErrLengthMismatch    = errors.New("pool: parallel array lengths differ")
)

// Lifecycle failures: the operation was attempted in the wrong state.
var (
	ErrPoolNotFound      = errors.New("pool: not found")
	ErrPoolNotOpen       = errors.New("pool: not open for registration")
	ErrPoolNotStarted    = errors.New("pool: not started")
	ErrPoolFinalized     = errors.New("pool: already finalized")
	ErrPoolInactive      = errors.New("pool: inactive")
	ErrPoolFull          = errors.New("pool: participant capacity reached")
	ErrAlreadyRegistered = errors.New("pool: caller already registered")
	ErrNotRegistered     = errors.New("pool: caller not registered")
	ErrDeadlinePassed    = errors.New("pool: registration deadline passed")
	ErrNotYetAbandoned   = errors.New("pool: abandonment window not elapsed")
	ErrAlreadyStarted    = errors.New("pool: already started")

	// ErrNotEnoughParticipants rejects a start on a pool with fewer than two
	// registered participants.
	ErrNotEnoughParticipants = errors.New("pool: not enough participants to start")
)

// Authorization failures.
var (
	ErrSignatureInvalid = errors.New("pool: signature invalid")
	ErrUnauthorized     = errors.New("pool: signer is not the authority")
	ErrNotAdmin         = errors.New("pool: caller is not an admin")
	ErrNotOwner         = errors.New("pool: caller is not the owner")
	ErrNotCreator       = errors.New("pool: caller is not the pool creator")
)

// Funds failures: the value accounting would be violated.
var (
	ErrWrongEntryFee             = errors.New("pool: sent value does not match entry fee")
	ErrInsufficientBalance       = errors.New("pool: insufficient balance")
	ErrDistributionExceedsEscrow = errors.New("pool: distribution exceeds escrowed funds")
	ErrNoClaimableRefund         = errors.New("pool: no claimable refund")
	ErrNoPlatformFees            = errors.New("pool: no platform fees accrued")
)

// Transfer failures: an external value transfer could not be applied. Inside
// the batched payout paths of settlement and cancellation the failure is
// converted into a claimable credit; everywhere else it is fatal.
var ErrTransferFailed = errors.New("pool: value transfer failed")
