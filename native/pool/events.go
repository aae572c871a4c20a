package pool

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"arenapool/core/types"
)

const (
	EventTypePoolCreated     = "pool.created"
	EventTypePoolRegistered  = "pool.registered"
	EventTypePoolUnregister  = "pool.unregistered"
	EventTypePoolStarted     = "pool.started"
	EventTypePoolSettled     = "pool.settled"
	EventTypePoolCancelled   = "pool.cancelled"
	EventTypeAbandonedRefund = "pool.abandoned_refund"
	EventTypeRefundClaimed   = "pool.refund_claimed"
	EventTypeIncentiveFunded = "pool.incentive_funded"
	EventTypePoolSwept       = "pool.swept"
	EventTypeFeesWithdrawn   = "pool.fees_withdrawn"
)

// NewCreatedEvent returns the canonical payload for a newly created pool.
func NewCreatedEvent(p *Pool) *types.Event {
	evt := newPoolEvent(EventTypePoolCreated, p)
	if p != nil {
		evt.Attributes["entryFee"] = formatAmount(p.EntryFee)
		evt.Attributes["maxParticipants"] = strconv.FormatUint(uint64(p.MaxParticipants), 10)
		evt.Attributes["registrationDeadline"] = strconv.FormatInt(p.RegistrationDeadline, 10)
		evt.Attributes["feePercent"] = strconv.FormatUint(uint64(p.FeePercent), 10)
		evt.Attributes["nftRewardPercent"] = strconv.FormatUint(uint64(p.NFTRewardPercent), 10)
	}
	return evt
}

// NewRegisteredEvent is emitted when a participant escrows their entry fee.
func NewRegisteredEvent(p *Pool, participant [20]byte) *types.Event {
	evt := newPoolEvent(EventTypePoolRegistered, p)
	evt.Attributes["participant"] = hex.EncodeToString(participant[:])
	return evt
}

// NewUnregisteredEvent is emitted when a participant self-withdraws before the
// registration deadline.
func NewUnregisteredEvent(p *Pool, participant [20]byte) *types.Event {
	evt := newPoolEvent(EventTypePoolUnregister, p)
	evt.Attributes["participant"] = hex.EncodeToString(participant[:])
	return evt
}

// NewStartedEvent is emitted on the Open -> Started transition.
func NewStartedEvent(p *Pool) *types.Event {
	evt := newPoolEvent(EventTypePoolStarted, p)
	if p != nil {
		evt.Attributes["startedAt"] = strconv.FormatInt(p.StartedAt, 10)
	}
	return evt
}

// NewSettledEvent carries the settlement totals for off-platform indexing.
func NewSettledEvent(p *Pool, distributed, collaboratorShare, fee, credited *big.Int) *types.Event {
	evt := newPoolEvent(EventTypePoolSettled, p)
	evt.Attributes["distributed"] = formatAmount(distributed)
	evt.Attributes["collaboratorShare"] = formatAmount(collaboratorShare)
	evt.Attributes["fee"] = formatAmount(fee)
	evt.Attributes["credited"] = formatAmount(credited)
	return evt
}

// NewCancelledEvent carries the refund totals of an admin cancellation.
func NewCancelledEvent(p *Pool, refunded, credited *big.Int) *types.Event {
	evt := newPoolEvent(EventTypePoolCancelled, p)
	evt.Attributes["refunded"] = formatAmount(refunded)
	evt.Attributes["credited"] = formatAmount(credited)
	return evt
}

// NewAbandonedRefundEvent is emitted when a participant self-refunds from a
// pool past the abandonment window.
func NewAbandonedRefundEvent(p *Pool, participant [20]byte) *types.Event {
	evt := newPoolEvent(EventTypeAbandonedRefund, p)
	evt.Attributes["participant"] = hex.EncodeToString(participant[:])
	if p != nil {
		evt.Attributes["amount"] = formatAmount(p.EntryFee)
	}
	return evt
}

// NewRefundClaimedEvent is emitted when a pending credit is withdrawn.
func NewRefundClaimedEvent(poolID uint64, claimant [20]byte, amount *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeRefundClaimed,
		Attributes: map[string]string{
			"id":       strconv.FormatUint(poolID, 10),
			"claimant": hex.EncodeToString(claimant[:]),
			"amount":   formatAmount(amount),
		},
	}
}

// NewIncentiveFundedEvent is emitted when the creator tops up the incentive
// balance.
func NewIncentiveFundedEvent(p *Pool, amount *big.Int) *types.Event {
	evt := newPoolEvent(EventTypeIncentiveFunded, p)
	evt.Attributes["amount"] = formatAmount(amount)
	return evt
}

// NewSweptEvent is emitted when the sweeper reclaims a stale pool's escrow.
func NewSweptEvent(p *Pool, amount *big.Int) *types.Event {
	evt := newPoolEvent(EventTypePoolSwept, p)
	evt.Attributes["amount"] = formatAmount(amount)
	return evt
}

// NewFeesWithdrawnEvent is emitted when the owner drains the fee accumulator.
func NewFeesWithdrawnEvent(owner [20]byte, amount *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeFeesWithdrawn,
		Attributes: map[string]string{
			"owner":  hex.EncodeToString(owner[:]),
			"amount": formatAmount(amount),
		},
	}
}

func newPoolEvent(eventType string, p *Pool) *types.Event {
	attrs := make(map[string]string)
	evt := &types.Event{Type: eventType, Attributes: attrs}
	if p == nil {
		return evt
	}
	attrs["id"] = strconv.FormatUint(p.ID, 10)
	attrs["creator"] = hex.EncodeToString(p.Creator[:])
	attrs["prizePool"] = formatAmount(p.PrizePool)
	attrs["incentivePool"] = formatAmount(p.IncentivePool)
	attrs["status"] = p.Status().String()
	return evt
}

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
