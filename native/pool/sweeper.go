package pool

import (
	"fmt"
	"math/big"
)

// ReclaimStale sweeps the remaining escrow of abandoned pools into the
// platform fee accumulator. Pools are scanned in increasing id order from the
// stored reclamation pointer; creation-time ordering makes staleness monotonic
// along the id axis, so the scan stops at the first non-stale pool. The
// pointer advances over every stale pool examined, whether or not anything was
// reclaimed, so repeated calls make bounded progress and never reprocess a
// pool. Swept pools issue no per-participant refund: past the staleness window
// the escrow is forfeited to the operator.
func (e *Engine) ReclaimStale(caller [20]byte, limit int) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return 0, errNilState
	}
	if !e.isAdmin(caller) {
		return 0, ErrNotAdmin
	}
	if limit <= 0 {
		return 0, fmt.Errorf("%w: reclaim limit must be positive", ErrInvalidParams)
	}
	pointer, err := e.state.ReclaimPointer()
	if err != nil {
		return 0, err
	}
	lastID, err := e.state.PoolLastID()
	if err != nil {
		return 0, err
	}
	cutoff := e.now() - e.staleWindow

	reclaimed := 0
	examined := pointer
	for id := pointer + 1; id <= lastID && int(id-pointer) <= limit; id++ {
		p, ok := e.state.PoolGet(id)
		if !ok {
			return reclaimed, ErrPoolNotFound
		}
		if p.CreatedAt > cutoff {
			break
		}
		examined = id
		if !p.Active || p.Finalized || len(p.Participants) == 0 {
			continue
		}
		swept := new(big.Int).Add(p.PrizePool, p.IncentivePool)
		if swept.Sign() > 0 {
			accrued, err := e.state.PlatformFees()
			if err != nil {
				return reclaimed, err
			}
			if err := e.state.SetPlatformFees(new(big.Int).Add(cloneBigInt(accrued), swept)); err != nil {
				return reclaimed, err
			}
		}
		p.Active = false
		p.PrizePool = big.NewInt(0)
		p.IncentivePool = big.NewInt(0)
		p.Participants = nil
		if err := e.storePool(p); err != nil {
			return reclaimed, err
		}
		e.emit(NewSweptEvent(p, swept))
		reclaimed++
	}
	if examined != pointer {
		if err := e.state.SetReclaimPointer(examined); err != nil {
			return reclaimed, err
		}
	}
	return reclaimed, nil
}
