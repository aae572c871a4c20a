package state

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"arenapool/core/types"
	"arenapool/native/pool"
	"arenapool/storage"
)

var (
	poolRecordPrefix   = []byte("pool:record:")
	poolLastIDKey      = []byte("pool:last-id")
	accountPrefix      = []byte("acct:")
	refundCreditPrefix = []byte("refund:")
	platformFeesKey    = []byte("fees:accrued")
	reclaimPointerKey  = []byte("reclaim:pointer")
)

// Manager persists engine state in a key-value store. All values are JSON
// encoded; counters are stored big-endian so they remain order-preserving.
type Manager struct {
	mu sync.RWMutex
	db storage.Database
}

// NewManager wraps the supplied database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

type storedPool struct {
	ID                   uint64   `json:"id"`
	Creator              string   `json:"creator"`
	EntryFee             string   `json:"entryFee"`
	MaxParticipants      uint32   `json:"maxParticipants"`
	PrizePool            string   `json:"prizePool"`
	IncentivePool        string   `json:"incentivePool"`
	CreatedAt            int64    `json:"createdAt"`
	RegistrationDeadline int64    `json:"registrationDeadline"`
	StartTime            int64    `json:"startTime"`
	StartedAt            int64    `json:"startedAt"`
	FeePercent           uint8    `json:"feePercent"`
	NFTRewardPercent     uint8    `json:"nftRewardPercent"`
	Active               bool     `json:"active"`
	Finalized            bool     `json:"finalized"`
	Participants         []string `json:"participants"`
}

func poolKey(id uint64) []byte {
	buf := make([]byte, len(poolRecordPrefix)+8)
	copy(buf, poolRecordPrefix)
	binary.BigEndian.PutUint64(buf[len(poolRecordPrefix):], id)
	return buf
}

func accountKey(addr [20]byte) []byte {
	return append(append([]byte(nil), accountPrefix...), addr[:]...)
}

func refundKey(poolID uint64, addr [20]byte) []byte {
	buf := make([]byte, len(refundCreditPrefix)+8+len(addr))
	copy(buf, refundCreditPrefix)
	binary.BigEndian.PutUint64(buf[len(refundCreditPrefix):], poolID)
	copy(buf[len(refundCreditPrefix)+8:], addr[:])
	return buf
}

// PoolPut validates and persists the pool record.
func (m *Manager) PoolPut(p *pool.Pool) error {
	sanitized, err := pool.SanitizePool(p)
	if err != nil {
		return err
	}
	stored := storedPool{
		ID:                   sanitized.ID,
		Creator:              hex.EncodeToString(sanitized.Creator[:]),
		EntryFee:             sanitized.EntryFee.String(),
		MaxParticipants:      sanitized.MaxParticipants,
		PrizePool:            sanitized.PrizePool.String(),
		IncentivePool:        sanitized.IncentivePool.String(),
		CreatedAt:            sanitized.CreatedAt,
		RegistrationDeadline: sanitized.RegistrationDeadline,
		StartTime:            sanitized.StartTime,
		StartedAt:            sanitized.StartedAt,
		FeePercent:           sanitized.FeePercent,
		NFTRewardPercent:     sanitized.NFTRewardPercent,
		Active:               sanitized.Active,
		Finalized:            sanitized.Finalized,
		Participants:         make([]string, 0, len(sanitized.Participants)),
	}
	for _, participant := range sanitized.Participants {
		stored.Participants = append(stored.Participants, hex.EncodeToString(participant[:]))
	}
	raw, err := json.Marshal(stored)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.db.Put(poolKey(sanitized.ID), raw)
}

// PoolGet loads a pool record by id.
func (m *Manager) PoolGet(id uint64) (*pool.Pool, bool) {
	m.mu.RLock()
	raw, err := m.db.Get(poolKey(id))
	m.mu.RUnlock()
	if err != nil {
		return nil, false
	}
	var stored storedPool
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, false
	}
	creator, err := decodeAddr(stored.Creator)
	if err != nil {
		return nil, false
	}
	p := &pool.Pool{
		ID:                   stored.ID,
		Creator:              creator,
		EntryFee:             parseAmount(stored.EntryFee),
		MaxParticipants:      stored.MaxParticipants,
		PrizePool:            parseAmount(stored.PrizePool),
		IncentivePool:        parseAmount(stored.IncentivePool),
		CreatedAt:            stored.CreatedAt,
		RegistrationDeadline: stored.RegistrationDeadline,
		StartTime:            stored.StartTime,
		StartedAt:            stored.StartedAt,
		FeePercent:           stored.FeePercent,
		NFTRewardPercent:     stored.NFTRewardPercent,
		Active:               stored.Active,
		Finalized:            stored.Finalized,
	}
	for _, encoded := range stored.Participants {
		addr, err := decodeAddr(encoded)
		if err != nil {
			return nil, false
		}
		p.Participants = append(p.Participants, addr)
	}
	return p, true
}

// PoolLastID returns the id of the most recently created pool, zero when none
// exist yet.
func (m *Manager) PoolLastID() (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.counter(poolLastIDKey)
}

// SetPoolLastID persists the pool id allocator.
func (m *Manager) SetPoolLastID(id uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.setCounter(poolLastIDKey, id)
}

// GetAccount loads the identity record, returning nil when absent.
func (m *Manager) GetAccount(addr [20]byte) (*types.Account, error) {
	m.mu.RLock()
	raw, err := m.db.Get(accountKey(addr))
	m.mu.RUnlock()
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var stored struct {
		SignerNonce uint64 `json:"signerNonce"`
		Balance     string `json:"balance"`
	}
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, err
	}
	return &types.Account{
		SignerNonce: stored.SignerNonce,
		Balance:     parseAmount(stored.Balance),
	}, nil
}

// PutAccount persists the identity record.
func (m *Manager) PutAccount(addr [20]byte, account *types.Account) error {
	account = types.EnsureAccount(account)
	if account.Balance.Sign() < 0 {
		return fmt.Errorf("state: account balance must be non-negative")
	}
	raw, err := json.Marshal(struct {
		SignerNonce uint64 `json:"signerNonce"`
		Balance     string `json:"balance"`
	}{SignerNonce: account.SignerNonce, Balance: account.Balance.String()})
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.db.Put(accountKey(addr), raw)
}

// RefundCredit returns the pending pull-payable credit for (pool, identity).
func (m *Manager) RefundCredit(poolID uint64, addr [20]byte) (*big.Int, error) {
	m.mu.RLock()
	raw, err := m.db.Get(refundKey(poolID, addr))
	m.mu.RUnlock()
	if errors.Is(err, storage.ErrKeyNotFound) {
		return big.NewInt(0), nil
	}
	if err != nil {
		return nil, err
	}
	return parseAmount(string(raw)), nil
}

// SetRefundCredit stores the pending credit for (pool, identity).
func (m *Manager) SetRefundCredit(poolID uint64, addr [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("state: refund credit must be non-negative")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.db.Put(refundKey(poolID, addr), []byte(amount.String()))
}

// PlatformFees returns the accrued platform fee balance.
func (m *Manager) PlatformFees() (*big.Int, error) {
	m.mu.RLock()
	raw, err := m.db.Get(platformFeesKey)
	m.mu.RUnlock()
	if errors.Is(err, storage.ErrKeyNotFound) {
		return big.NewInt(0), nil
	}
	if err != nil {
		return nil, err
	}
	return parseAmount(string(raw)), nil
}

// SetPlatformFees stores the accrued platform fee balance.
func (m *Manager) SetPlatformFees(amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("state: platform fees must be non-negative")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.db.Put(platformFeesKey, []byte(amount.String()))
}

// ReclaimPointer returns the last pool id processed by the sweeper.
func (m *Manager) ReclaimPointer() (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.counter(reclaimPointerKey)
}

// SetReclaimPointer persists the sweeper progress marker. The pointer never
// moves backward.
func (m *Manager) SetReclaimPointer(id uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, err := m.counter(reclaimPointerKey)
	if err != nil {
		return err
	}
	if id < current {
		return fmt.Errorf("state: reclaim pointer cannot decrease (%d < %d)", id, current)
	}
	return m.setCounter(reclaimPointerKey, id)
}

func (m *Manager) counter(key []byte) (uint64, error) {
	raw, err := m.db.Get(key)
	if errors.Is(err, storage.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if len(raw) != 8 {
		return 0, fmt.Errorf("state: malformed counter at %q", key)
	}
	return binary.BigEndian.Uint64(raw), nil
}

func (m *Manager) setCounter(key []byte, value uint64) error {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, value)
	return m.db.Put(key, buf)
}

func parseAmount(raw string) *big.Int {
	v, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return big.NewInt(0)
	}
	return v
}

func decodeAddr(encoded string) ([20]byte, error) {
	var out [20]byte
	raw, err := hex.DecodeString(encoded)
	if err != nil {
		return out, err
	}
	if len(raw) != 20 {
		return out, fmt.Errorf("state: address must be 20 bytes, got %d", len(raw))
	}
	copy(out[:], raw)
	return out, nil
}
