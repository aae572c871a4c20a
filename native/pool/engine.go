package pool

import (
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"arenapool/core/events"
	"arenapool/core/types"
)

const minParticipants = 2

// Default eligibility windows. Both are evaluated against stored timestamps at
// call time; there is no background timer.
const (
	DefaultAbandonWindow = int64(7 * 24 * 60 * 60)
	DefaultStaleWindow   = int64(30 * 24 * 60 * 60)
)

var (
	errNilState       = errors.New("pool engine: state not configured")
	errNilVault       = errors.New("pool engine: escrow vault not configured")
	errNilAuthority   = errors.New("pool engine: authority signer not configured")
	errNilDistributor = errors.New("pool engine: reward custody collaborator not configured")
)

// errRecipientRejected marks a transfer that failed on the recipient's side
// with the sender already restored. Only the batched payout paths of
// settlement and cancellation convert it into a refund credit; any other
// transfer failure means the escrow side could not be written and is fatal.
var errRecipientRejected = fmt.Errorf("%w: recipient rejected the credit", ErrTransferFailed)

type engineState interface {
	PoolPut(*Pool) error
	PoolGet(id uint64) (*Pool, bool)
	PoolLastID() (uint64, error)
	SetPoolLastID(id uint64) error
	GetAccount(addr [20]byte) (*types.Account, error)
	PutAccount(addr [20]byte, account *types.Account) error
	RefundCredit(poolID uint64, addr [20]byte) (*big.Int, error)
	SetRefundCredit(poolID uint64, addr [20]byte, amount *big.Int) error
	PlatformFees() (*big.Int, error)
	SetPlatformFees(amount *big.Int) error
	ReclaimPointer() (uint64, error)
	SetReclaimPointer(id uint64) error
}

// RewardDistributor is the narrow interface required of the reward-custody
// collaborator. The engine pushes the bulk collaborator share first and then
// invokes DistributeRewards with the per-unit breakdown; it never consults the
// collaborator's internal bookkeeping.
type RewardDistributor interface {
	DistributeRewards(ids []uint64, amounts []*big.Int) error
}

type poolEvent struct {
	evt *types.Event
}

func (e poolEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e poolEvent) Event() *types.Event { return e.evt }

// Engine wires the pooled-stake lifecycle logic with external state, the
// authority signer and the reward-custody collaborator. Every public operation
// runs under a single mutex so state mutations and the value transfers they
// gate cannot interleave.
type Engine struct {
	mu            sync.Mutex
	state         engineState
	emitter       events.Emitter
	authority     [20]byte
	admin         [20]byte
	owner         [20]byte
	vault         [20]byte
	rewardCustody [20]byte
	distributor   RewardDistributor
	nowFn         func() int64
	abandonWindow int64
	staleWindow   int64
}

// NewEngine creates a pool engine with a no-op emitter and default eligibility
// windows. Callers configure the collaborators via the Set helpers.
func NewEngine() *Engine {
	return &Engine{
		emitter:       events.NoopEmitter{},
		nowFn:         func() int64 { return time.Now().Unix() },
		abandonWindow: DefaultAbandonWindow,
		staleWindow:   DefaultStaleWindow,
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetAuthority configures the signer whose approvals gate signed actions.
func (e *Engine) SetAuthority(addr [20]byte) { e.authority = addr }

// SetAdmin configures the administrator allowed to create, settle, cancel and
// reclaim pools.
func (e *Engine) SetAdmin(addr [20]byte) { e.admin = addr }

// SetOwner configures the platform owner entitled to accrued fees. The owner
// is implicitly an admin.
func (e *Engine) SetOwner(addr [20]byte) { e.owner = addr }

// SetVault configures the module account that holds all escrowed value.
func (e *Engine) SetVault(addr [20]byte) { e.vault = addr }

// SetRewardCustody configures the reward-custody collaborator: the address the
// bulk share is pushed to and the distributor invoked afterwards.
func (e *Engine) SetRewardCustody(addr [20]byte, distributor RewardDistributor) {
	e.rewardCustody = addr
	e.distributor = distributor
}

// SetNowFunc overrides the time source used by the engine. Primarily intended
// for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetWindows overrides the abandonment and staleness windows, in seconds.
// Non-positive values keep the current setting.
func (e *Engine) SetWindows(abandon, stale int64) {
	if abandon > 0 {
		e.abandonWindow = abandon
	}
	if stale > 0 {
		e.staleWindow = stale
	}
}

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(poolEvent{evt: event})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) isAdmin(caller [20]byte) bool {
	if caller == ([20]byte{}) {
		return false
	}
	return caller == e.admin || caller == e.owner
}

func (e *Engine) loadPool(id uint64) (*Pool, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	p, ok := e.state.PoolGet(id)
	if !ok {
		return nil, ErrPoolNotFound
	}
	return p, nil
}

func (e *Engine) storePool(p *Pool) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	return e.state.PoolPut(p)
}

func (e *Engine) loadAccount(addr [20]byte) (*types.Account, error) {
	acc, err := e.state.GetAccount(addr)
	if err != nil {
		return nil, err
	}
	return types.EnsureAccount(acc), nil
}

// transferValue moves value between accounts. The sender debit is persisted
// first so a failed escrow write aborts with nothing applied; a rejected
// recipient credit restores the sender and surfaces as errRecipientRejected,
// which the tolerant payout loops divert to the refund ledger.
func (e *Engine) transferValue(from, to [20]byte, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	amt := cloneBigInt(amount)
	if amt.Sign() < 0 {
		return fmt.Errorf("%w: negative amount", ErrInvalidParams)
	}
	if amt.Sign() == 0 || from == to {
		return nil
	}
	fromAcc, err := e.loadAccount(from)
	if err != nil {
		return err
	}
	toAcc, err := e.loadAccount(to)
	if err != nil {
		return err
	}
	if fromAcc.Balance.Cmp(amt) < 0 {
		return ErrInsufficientBalance
	}
	fromAcc.Balance = new(big.Int).Sub(fromAcc.Balance, amt)
	if err := e.state.PutAccount(from, fromAcc); err != nil {
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	toAcc.Balance = new(big.Int).Add(toAcc.Balance, amt)
	if err := e.state.PutAccount(to, toAcc); err != nil {
		fromAcc.Balance = new(big.Int).Add(fromAcc.Balance, amt)
		if restoreErr := e.state.PutAccount(from, fromAcc); restoreErr != nil {
			return fmt.Errorf("%w: credit rejected (%v) and sender could not be restored: %v", ErrTransferFailed, err, restoreErr)
		}
		return fmt.Errorf("%w: %v", errRecipientRejected, err)
	}
	return nil
}

func (e *Engine) ensureVaultConfigured() error {
	if e == nil || e.vault == ([20]byte{}) {
		return errNilVault
	}
	return nil
}

// CreatePool registers a new wagering pool definition. Admin only.
func (e *Engine) CreatePool(caller [20]byte, entryFee *big.Int, maxParticipants uint32, registrationDeadline, startTime int64, feePercent, nftRewardPercent uint8) (*Pool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return nil, errNilState
	}
	if !e.isAdmin(caller) {
		return nil, ErrNotAdmin
	}
	fee := cloneBigInt(entryFee)
	if fee.Sign() <= 0 {
		return nil, fmt.Errorf("%w: entry fee must be positive", ErrInvalidParams)
	}
	if maxParticipants < minParticipants {
		return nil, ErrParticipantBounds
	}
	now := e.now()
	if registrationDeadline <= now {
		return nil, fmt.Errorf("%w: registration deadline not in the future", ErrInvalidParams)
	}
	if startTime != 0 && startTime <= registrationDeadline {
		return nil, fmt.Errorf("%w: start time must follow the registration deadline", ErrInvalidParams)
	}
	if feePercent > 100 || nftRewardPercent > 100 {
		return nil, ErrPercentOutOfRange
	}
	lastID, err := e.state.PoolLastID()
	if err != nil {
		return nil, err
	}
	id := lastID + 1
	p := &Pool{
		ID:                   id,
		Creator:              caller,
		EntryFee:             fee,
		MaxParticipants:      maxParticipants,
		PrizePool:            big.NewInt(0),
		IncentivePool:        big.NewInt(0),
		CreatedAt:            now,
		RegistrationDeadline: registrationDeadline,
		StartTime:            startTime,
		FeePercent:           feePercent,
		NFTRewardPercent:     nftRewardPercent,
		Active:               true,
	}
	if err := e.state.SetPoolLastID(id); err != nil {
		return nil, err
	}
	if err := e.storePool(p); err != nil {
		return nil, err
	}
	e.emit(NewCreatedEvent(p))
	return p.Clone(), nil
}

// Register escrows the caller's entry fee and adds them to the participant
// list. The sent value must equal the entry fee exactly, and the action must be
// pre-approved by the authority for the caller's current nonce.
func (e *Engine) Register(caller [20]byte, poolID uint64, sent *big.Int, signature []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ensureVaultConfigured(); err != nil {
		return err
	}
	p, err := e.loadPool(poolID)
	if err != nil {
		return err
	}
	if err := e.requireOpen(p); err != nil {
		return err
	}
	if e.now() >= p.RegistrationDeadline {
		return ErrDeadlinePassed
	}
	if uint32(len(p.Participants)) >= p.MaxParticipants {
		return ErrPoolFull
	}
	if p.IsRegistered(caller) {
		return ErrAlreadyRegistered
	}
	if sent == nil || sent.Cmp(p.EntryFee) != 0 {
		return ErrWrongEntryFee
	}
	acc, err := e.loadAccount(caller)
	if err != nil {
		return err
	}
	if err := e.verifyApproval(ActionRegister, caller, poolID, acc.SignerNonce, signature); err != nil {
		return err
	}
	if acc.Balance.Cmp(p.EntryFee) < 0 {
		return ErrInsufficientBalance
	}
	acc.Balance = new(big.Int).Sub(acc.Balance, p.EntryFee)
	acc.SignerNonce++
	if err := e.state.PutAccount(caller, acc); err != nil {
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	vaultAcc, err := e.loadAccount(e.vault)
	if err != nil {
		return err
	}
	vaultAcc.Balance = new(big.Int).Add(vaultAcc.Balance, p.EntryFee)
	if err := e.state.PutAccount(e.vault, vaultAcc); err != nil {
		// Undo the debit and the nonce so the approval stays usable.
		acc.Balance = new(big.Int).Add(acc.Balance, p.EntryFee)
		acc.SignerNonce--
		if restoreErr := e.state.PutAccount(caller, acc); restoreErr != nil {
			return fmt.Errorf("%w: escrow rejected (%v) and caller could not be restored: %v", ErrTransferFailed, err, restoreErr)
		}
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	p.Participants = append(p.Participants, caller)
	p.PrizePool = new(big.Int).Add(p.PrizePool, p.EntryFee)
	if err := e.storePool(p); err != nil {
		return err
	}
	e.emit(NewRegisteredEvent(p, caller))
	return nil
}

// Unregister removes the caller before the registration deadline and refunds
// the entry fee synchronously. A failed refund aborts the whole operation: the
// caller controls this self-service path, so there is no claimable fallback.
func (e *Engine) Unregister(caller [20]byte, poolID uint64, signature []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ensureVaultConfigured(); err != nil {
		return err
	}
	p, err := e.loadPool(poolID)
	if err != nil {
		return err
	}
	if err := e.requireOpen(p); err != nil {
		return err
	}
	if e.now() >= p.RegistrationDeadline {
		return ErrDeadlinePassed
	}
	if !p.IsRegistered(caller) {
		return ErrNotRegistered
	}
	acc, err := e.loadAccount(caller)
	if err != nil {
		return err
	}
	if err := e.verifyApproval(ActionUnregister, caller, poolID, acc.SignerNonce, signature); err != nil {
		return err
	}
	vaultAcc, err := e.loadAccount(e.vault)
	if err != nil {
		return err
	}
	if vaultAcc.Balance.Cmp(p.EntryFee) < 0 {
		return fmt.Errorf("%w: escrow vault underfunded", ErrTransferFailed)
	}
	// Vault debit first: if the escrow write fails nothing has been applied
	// and the approval stays usable.
	vaultAcc.Balance = new(big.Int).Sub(vaultAcc.Balance, p.EntryFee)
	if err := e.state.PutAccount(e.vault, vaultAcc); err != nil {
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	acc.Balance = new(big.Int).Add(acc.Balance, p.EntryFee)
	acc.SignerNonce++
	if err := e.state.PutAccount(caller, acc); err != nil {
		vaultAcc.Balance = new(big.Int).Add(vaultAcc.Balance, p.EntryFee)
		if restoreErr := e.state.PutAccount(e.vault, vaultAcc); restoreErr != nil {
			return fmt.Errorf("%w: refund rejected (%v) and vault could not be restored: %v", ErrTransferFailed, err, restoreErr)
		}
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	p.removeParticipant(caller)
	p.PrizePool = new(big.Int).Sub(p.PrizePool, p.EntryFee)
	if err := e.storePool(p); err != nil {
		return err
	}
	e.emit(NewUnregisteredEvent(p, caller))
	return nil
}

// Start transitions an open pool with at least two participants into the
// Started state. The transition is authority-approved and happens at most once.
func (e *Engine) Start(caller [20]byte, poolID uint64, signature []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return errNilState
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
	case PoolStarted:
		return ErrAlreadyStarted
	}
	if len(p.Participants) < minParticipants {
		return ErrNotEnoughParticipants
	}
	acc, err := e.loadAccount(caller)
	if err != nil {
		return err
	}
	if err := e.verifyApproval(ActionStart, caller, poolID, acc.SignerNonce, signature); err != nil {
		return err
	}
	acc.SignerNonce++
	if err := e.state.PutAccount(caller, acc); err != nil {
		return err
	}
	p.StartedAt = e.now()
	if err := e.storePool(p); err != nil {
		return err
	}
	e.emit(NewStartedEvent(p))
	return nil
}

// ClaimAbandonedRefund lets a registered participant self-refund once the
// abandonment window has elapsed on an unfinalized pool. No signature is
// required: this path protects participants against an authority that never
// settles.
func (e *Engine) ClaimAbandonedRefund(caller [20]byte, poolID uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ensureVaultConfigured(); err != nil {
		return err
	}
	p, err := e.loadPool(poolID)
	if err != nil {
		return err
	}
	if p.Finalized {
		return ErrPoolFinalized
	}
	base := p.RegistrationDeadline
	if p.StartTime != 0 {
		base = p.StartTime
	}
	if e.now() < base+e.abandonWindow {
		return ErrNotYetAbandoned
	}
	if !p.IsRegistered(caller) {
		return ErrNotRegistered
	}
	vaultAcc, err := e.loadAccount(e.vault)
	if err != nil {
		return err
	}
	if vaultAcc.Balance.Cmp(p.EntryFee) < 0 {
		return fmt.Errorf("%w: escrow vault underfunded", ErrTransferFailed)
	}
	acc, err := e.loadAccount(caller)
	if err != nil {
		return err
	}
	vaultAcc.Balance = new(big.Int).Sub(vaultAcc.Balance, p.EntryFee)
	if err := e.state.PutAccount(e.vault, vaultAcc); err != nil {
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	acc.Balance = new(big.Int).Add(acc.Balance, p.EntryFee)
	if err := e.state.PutAccount(caller, acc); err != nil {
		vaultAcc.Balance = new(big.Int).Add(vaultAcc.Balance, p.EntryFee)
		if restoreErr := e.state.PutAccount(e.vault, vaultAcc); restoreErr != nil {
			return fmt.Errorf("%w: refund rejected (%v) and vault could not be restored: %v", ErrTransferFailed, err, restoreErr)
		}
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	p.removeParticipant(caller)
	p.PrizePool = new(big.Int).Sub(p.PrizePool, p.EntryFee)
	if err := e.storePool(p); err != nil {
		return err
	}
	e.emit(NewAbandonedRefundEvent(p, caller))
	return nil
}

// FundIncentive deposits creator-supplied external rewards into the pool's
// incentive balance. Valid until the pool is finalized or cancelled.
func (e *Engine) FundIncentive(caller [20]byte, poolID uint64, amount *big.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ensureVaultConfigured(); err != nil {
		return err
	}
	p, err := e.loadPool(poolID)
	if err != nil {
		return err
	}
	if caller != p.Creator {
		return ErrNotCreator
	}
	if p.Finalized {
		return ErrPoolFinalized
	}
	if !p.Active {
		return ErrPoolInactive
	}
	amt := cloneBigInt(amount)
	if amt.Sign() <= 0 {
		return fmt.Errorf("%w: incentive must be positive", ErrInvalidParams)
	}
	if err := e.transferValue(caller, e.vault, amt); err != nil {
		return err
	}
	p.IncentivePool = new(big.Int).Add(p.IncentivePool, amt)
	if err := e.storePool(p); err != nil {
		return err
	}
	e.emit(NewIncentiveFundedEvent(p, amt))
	return nil
}

func (e *Engine) requireOpen(p *Pool) error {
	switch p.Status() {
	case PoolFinalized:
		return ErrPoolFinalized
	case PoolCancelled:
		return ErrPoolInactive
	case PoolStarted:
		return ErrPoolNotOpen
	}
	return nil
}

// --- Read accessors ---

// GetPool returns a copy of the stored pool record.
func (e *Engine) GetPool(poolID uint64) (*Pool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, err := e.loadPool(poolID)
	if err != nil {
		return nil, err
	}
	return p.Clone(), nil
}

// Participants returns the ordered participant list for a pool.
func (e *Engine) Participants(poolID uint64) ([][20]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, err := e.loadPool(poolID)
	if err != nil {
		return nil, err
	}
	out := make([][20]byte, len(p.Participants))
	copy(out, p.Participants)
	return out, nil
}

// SignerNonce returns the identity's current replay-protection counter.
func (e *Engine) SignerNonce(addr [20]byte) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return 0, errNilState
	}
	acc, err := e.loadAccount(addr)
	if err != nil {
		return 0, err
	}
	return acc.SignerNonce, nil
}

// Balance returns the identity's spendable value.
func (e *Engine) Balance(addr [20]byte) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return nil, errNilState
	}
	acc, err := e.loadAccount(addr)
	if err != nil {
		return nil, err
	}
	return cloneBigInt(acc.Balance), nil
}

// ClaimableRefund returns the pending pull-payable credit for (pool, identity).
func (e *Engine) ClaimableRefund(poolID uint64, addr [20]byte) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return nil, errNilState
	}
	credit, err := e.state.RefundCredit(poolID, addr)
	if err != nil {
		return nil, err
	}
	return cloneBigInt(credit), nil
}

// PlatformFees returns the accrued, withdrawable platform fee balance.
func (e *Engine) PlatformFees() (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return nil, errNilState
	}
	fees, err := e.state.PlatformFees()
	if err != nil {
		return nil, err
	}
	return cloneBigInt(fees), nil
}

// PoolCount returns the number of pools ever created.
func (e *Engine) PoolCount() (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return 0, errNilState
	}
	return e.state.PoolLastID()
}

// ReclaimPointer returns the last pool id processed by the sweeper.
func (e *Engine) ReclaimPointer() (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return 0, errNilState
	}
	return e.state.ReclaimPointer()
}
