package pool

import (
	"fmt"
	"math/big"
)

// PoolStatus is the derived lifecycle state of a pool. Finalized and Cancelled
// are terminal; abandonment is a timeout-derived eligibility, not a status.
type PoolStatus uint8

const (
	PoolOpen PoolStatus = iota
	PoolStarted
	PoolFinalized
	PoolCancelled
)

func (s PoolStatus) String() string {
	switch s {
	case PoolOpen:
		return "open"
	case PoolStarted:
		return "started"
	case PoolFinalized:
		return "finalized"
	case PoolCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Pool captures one room/tournament instance and its escrowed funds. PrizePool
// always equals the sum of entry fees attributed to currently registered
// participants; IncentivePool holds creator-funded external rewards.
type Pool struct {
	ID                   uint64
	Creator              [20]byte
	EntryFee             *big.Int
	MaxParticipants      uint32
	PrizePool            *big.Int
	IncentivePool        *big.Int
	CreatedAt            int64
	RegistrationDeadline int64
	StartTime            int64
	StartedAt            int64
	FeePercent           uint8
	NFTRewardPercent     uint8
	Active               bool
	Finalized            bool
	Participants         [][20]byte
}

// Status derives the lifecycle state from the stored flags.
func (p *Pool) Status() PoolStatus {
	switch {
	case p == nil:
		return PoolCancelled
	case p.Finalized:
		return PoolFinalized
	case !p.Active:
		return PoolCancelled
	case p.StartedAt != 0:
		return PoolStarted
	default:
		return PoolOpen
	}
}

// Clone returns a deep copy so callers can safely mutate the copy without
// affecting the stored instance.
func (p *Pool) Clone() *Pool {
	if p == nil {
		return nil
	}
	clone := *p
	clone.EntryFee = cloneBigInt(p.EntryFee)
	clone.PrizePool = cloneBigInt(p.PrizePool)
	clone.IncentivePool = cloneBigInt(p.IncentivePool)
	if p.Participants != nil {
		clone.Participants = make([][20]byte, len(p.Participants))
		copy(clone.Participants, p.Participants)
	}
	return &clone
}

// IsRegistered reports whether the identity is currently a participant.
func (p *Pool) IsRegistered(addr [20]byte) bool {
	if p == nil {
		return false
	}
	for _, participant := range p.Participants {
		if participant == addr {
			return true
		}
	}
	return false
}

// removeParticipant drops the identity using an order-independent swap with the
// last element. It reports whether the identity was present.
func (p *Pool) removeParticipant(addr [20]byte) bool {
	for i, participant := range p.Participants {
		if participant == addr {
			last := len(p.Participants) - 1
			p.Participants[i] = p.Participants[last]
			p.Participants = p.Participants[:last]
			return true
		}
	}
	return false
}

// SanitizePool validates and normalises the supplied pool record, returning a
// cloned instance with non-nil balance fields. The original is not mutated.
func SanitizePool(p *Pool) (*Pool, error) {
	if p == nil {
		return nil, fmt.Errorf("nil pool")
	}
	clone := p.Clone()
	if clone.EntryFee.Sign() <= 0 {
		return nil, fmt.Errorf("pool entry fee must be positive")
	}
	if clone.PrizePool.Sign() < 0 || clone.IncentivePool.Sign() < 0 {
		return nil, fmt.Errorf("pool balances must be non-negative")
	}
	if clone.MaxParticipants < minParticipants {
		return nil, fmt.Errorf("pool capacity below minimum: %d", clone.MaxParticipants)
	}
	if clone.FeePercent > 100 {
		return nil, fmt.Errorf("pool fee percent out of range: %d", clone.FeePercent)
	}
	if clone.NFTRewardPercent > 100 {
		return nil, fmt.Errorf("pool nft reward percent out of range: %d", clone.NFTRewardPercent)
	}
	if uint32(len(clone.Participants)) > clone.MaxParticipants {
		return nil, fmt.Errorf("pool participant list exceeds capacity")
	}
	return clone, nil
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
