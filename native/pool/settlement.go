package pool

import (
	"errors"
	"fmt"
	"math/big"
)

// DistributeFinalRewards settles a started pool: it skims the platform fee,
// pays the winners, and forwards the collaborator share to the reward-custody
// service. The accounting bound is checked before any value moves; recipient
// payouts are partial-failure tolerant while the collaborator leg is fatal.
func (e *Engine) DistributeFinalRewards(caller [20]byte, poolID uint64, recipients [][20]byte, amounts []*big.Int, collabIDs []uint64, collabAmounts []*big.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ensureVaultConfigured(); err != nil {
		return err
	}
	if !e.isAdmin(caller) {
		return ErrNotAdmin
	}
	p, err := e.loadPool(poolID)
	if err != nil {
		return err
	}
	switch p.Status() {
	case PoolFinalized:
		return ErrPoolFinalized
	case PoolCancelled:
		return ErrPoolInactive
	case PoolOpen:
		return ErrPoolNotStarted
	}
	if len(recipients) != len(amounts) || len(collabIDs) != len(collabAmounts) {
		return ErrLengthMismatch
	}
	distributed := big.NewInt(0)
	for i, amount := range amounts {
		if amount == nil || amount.Sign() < 0 {
			return fmt.Errorf("%w: recipient amount must be non-negative", ErrInvalidParams)
		}
		if !p.IsRegistered(recipients[i]) {
			return ErrNotRegistered
		}
		distributed = new(big.Int).Add(distributed, amount)
	}
	collabShare := big.NewInt(0)
	for _, amount := range collabAmounts {
		if amount == nil || amount.Sign() < 0 {
			return fmt.Errorf("%w: collaborator amount must be non-negative", ErrInvalidParams)
		}
		collabShare = new(big.Int).Add(collabShare, amount)
	}

	// Fee skim is computed exactly once, before any transfer.
	fee := new(big.Int).Mul(p.PrizePool, big.NewInt(int64(p.FeePercent)))
	fee.Div(fee, big.NewInt(100))

	escrowed := new(big.Int).Add(p.PrizePool, p.IncentivePool)
	total := new(big.Int).Add(distributed, collabShare)
	total.Add(total, fee)
	if total.Cmp(escrowed) > 0 {
		return ErrDistributionExceedsEscrow
	}

	// Collaborator leg first: it is the only fatal transfer, so nothing else
	// has been applied if it aborts.
	if collabShare.Sign() > 0 {
		if e.distributor == nil || e.rewardCustody == ([20]byte{}) {
			return errNilDistributor
		}
		if err := e.transferValue(e.vault, e.rewardCustody, collabShare); err != nil {
			return err
		}
		if err := e.distributor.DistributeRewards(collabIDs, collabAmounts); err != nil {
			if undo := e.transferValue(e.rewardCustody, e.vault, collabShare); undo != nil {
				return fmt.Errorf("pool: reward custody distribution failed (%v) and share could not be returned: %w", err, undo)
			}
			return fmt.Errorf("pool: reward custody distribution: %w", err)
		}
	}

	if fee.Sign() > 0 {
		accrued, err := e.state.PlatformFees()
		if err != nil {
			return err
		}
		if err := e.state.SetPlatformFees(new(big.Int).Add(cloneBigInt(accrued), fee)); err != nil {
			return err
		}
	}

	// Finalization is committed before the tolerant payout loop so a recipient
	// cannot re-enter settlement on this pool.
	p.Finalized = true
	if err := e.storePool(p); err != nil {
		return err
	}

	credited := big.NewInt(0)
	for i, recipient := range recipients {
		amount := amounts[i]
		if amount.Sign() == 0 {
			continue
		}
		if err := e.transferValue(e.vault, recipient, amount); err != nil {
			// A broken or hostile recipient must not block the batch: record
			// the amount as a pull-payable credit and keep going. The
			// tolerance covers only a rejected recipient credit; a failed
			// vault write is fatal or the recipient would be paid twice.
			if !errors.Is(err, errRecipientRejected) {
				return err
			}
			if err := e.creditRefund(poolID, recipient, amount); err != nil {
				return err
			}
			credited = new(big.Int).Add(credited, amount)
		}
	}

	e.emit(NewSettledEvent(p, distributed, collabShare, fee, credited))
	return nil
}

// Cancel deactivates a pool and returns every registered participant's entry
// fee plus the creator's incentive balance, crediting the refund ledger when a
// push transfer fails so nobody is silently dropped.
func (e *Engine) Cancel(caller [20]byte, poolID uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ensureVaultConfigured(); err != nil {
		return err
	}
	if !e.isAdmin(caller) {
		return ErrNotAdmin
	}
	p, err := e.loadPool(poolID)
	if err != nil {
		return err
	}
	if p.Finalized {
		return ErrPoolFinalized
	}
	if !p.Active {
		return ErrPoolInactive
	}

	participants := make([][20]byte, len(p.Participants))
	copy(participants, p.Participants)
	entryFee := cloneBigInt(p.EntryFee)
	incentive := cloneBigInt(p.IncentivePool)

	// Eligibility state is committed before any transfer is attempted.
	p.Active = false
	p.PrizePool = big.NewInt(0)
	p.IncentivePool = big.NewInt(0)
	p.Participants = nil
	if err := e.storePool(p); err != nil {
		return err
	}

	refunded := big.NewInt(0)
	credited := big.NewInt(0)
	for _, participant := range participants {
		if err := e.transferValue(e.vault, participant, entryFee); err != nil {
			if !errors.Is(err, errRecipientRejected) {
				return err
			}
			if err := e.creditRefund(poolID, participant, entryFee); err != nil {
				return err
			}
			credited = new(big.Int).Add(credited, entryFee)
			continue
		}
		refunded = new(big.Int).Add(refunded, entryFee)
	}
	if incentive.Sign() > 0 {
		if err := e.transferValue(e.vault, p.Creator, incentive); err != nil {
			if !errors.Is(err, errRecipientRejected) {
				return err
			}
			if err := e.creditRefund(poolID, p.Creator, incentive); err != nil {
				return err
			}
			credited = new(big.Int).Add(credited, incentive)
		} else {
			refunded = new(big.Int).Add(refunded, incentive)
		}
	}

	e.emit(NewCancelledEvent(p, refunded, credited))
	return nil
}

// ClaimRefund withdraws the caller's pending credit for a pool. The credit is
// zeroed before the transfer is attempted; if the transfer then fails the
// credit is restored and the call aborts.
func (e *Engine) ClaimRefund(caller [20]byte, poolID uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ensureVaultConfigured(); err != nil {
		return err
	}
	if e.state == nil {
		return errNilState
	}
	credit, err := e.state.RefundCredit(poolID, caller)
	if err != nil {
		return err
	}
	amount := cloneBigInt(credit)
	if amount.Sign() == 0 {
		return ErrNoClaimableRefund
	}
	if err := e.state.SetRefundCredit(poolID, caller, big.NewInt(0)); err != nil {
		return err
	}
	if err := e.transferValue(e.vault, caller, amount); err != nil {
		if restore := e.state.SetRefundCredit(poolID, caller, amount); restore != nil {
			return fmt.Errorf("pool: refund transfer failed (%v) and credit could not be restored: %w", err, restore)
		}
		return err
	}
	e.emit(NewRefundClaimedEvent(poolID, caller, amount))
	return nil
}

// WithdrawPlatformFees transfers the accrued platform fee balance to the
// owner and resets the accumulator. A failed transfer restores the balance.
func (e *Engine) WithdrawPlatformFees(caller [20]byte) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ensureVaultConfigured(); err != nil {
		return nil, err
	}
	if e.owner == ([20]byte{}) || caller != e.owner {
		return nil, ErrNotOwner
	}
	accrued, err := e.state.PlatformFees()
	if err != nil {
		return nil, err
	}
	amount := cloneBigInt(accrued)
	if amount.Sign() == 0 {
		return nil, ErrNoPlatformFees
	}
	if err := e.state.SetPlatformFees(big.NewInt(0)); err != nil {
		return nil, err
	}
	if err := e.transferValue(e.vault, e.owner, amount); err != nil {
		if restore := e.state.SetPlatformFees(amount); restore != nil {
			return nil, fmt.Errorf("pool: fee withdrawal failed (%v) and accumulator could not be restored: %w", err, restore)
		}
		return nil, err
	}
	e.emit(NewFeesWithdrawnEvent(e.owner, amount))
	return amount, nil
}

func (e *Engine) creditRefund(poolID uint64, addr [20]byte, amount *big.Int) error {
	existing, err := e.state.RefundCredit(poolID, addr)
	if err != nil {
		return err
	}
	return e.state.SetRefundCredit(poolID, addr, new(big.Int).Add(cloneBigInt(existing), amount))
}
