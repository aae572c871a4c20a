package state

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"arenapool/core/types"
	"arenapool/native/pool"
	"arenapool/storage"
)

func addr(fill byte) [20]byte {
	var out [20]byte
	for i := range out {
		out[i] = fill
	}
	return out
}

func TestPoolRoundTrip(t *testing.T) {
	m := NewManager(storage.NewMemDB())

	_, ok := m.PoolGet(1)
	require.False(t, ok, "missing pool must not resolve")

	record := &pool.Pool{
		ID:                   1,
		Creator:              addr(0x01),
		EntryFee:             big.NewInt(50),
		MaxParticipants:      4,
		PrizePool:            big.NewInt(100),
		IncentivePool:        big.NewInt(25),
		CreatedAt:            1_000_000,
		RegistrationDeadline: 1_003_600,
		StartTime:            1_007_200,
		StartedAt:            1_005_000,
		FeePercent:           10,
		NFTRewardPercent:     5,
		Active:               true,
		Participants:         [][20]byte{addr(0xA1), addr(0xB1)},
	}
	require.NoError(t, m.PoolPut(record))

	loaded, ok := m.PoolGet(1)
	require.True(t, ok)
	require.Equal(t, record.ID, loaded.ID)
	require.Equal(t, record.Creator, loaded.Creator)
	require.Zero(t, record.EntryFee.Cmp(loaded.EntryFee))
	require.Zero(t, record.PrizePool.Cmp(loaded.PrizePool))
	require.Zero(t, record.IncentivePool.Cmp(loaded.IncentivePool))
	require.Equal(t, record.Participants, loaded.Participants)
	require.Equal(t, pool.PoolStarted, loaded.Status())

	// Loaded records are snapshots: mutating one does not leak into storage.
	loaded.PrizePool.SetInt64(0)
	again, ok := m.PoolGet(1)
	require.True(t, ok)
	require.Zero(t, again.PrizePool.Cmp(big.NewInt(100)))
}

func TestPoolPutRejectsInvalidRecords(t *testing.T) {
	m := NewManager(storage.NewMemDB())
	require.Error(t, m.PoolPut(nil))
	require.Error(t, m.PoolPut(&pool.Pool{ID: 1, EntryFee: big.NewInt(0), MaxParticipants: 4}))
	require.Error(t, m.PoolPut(&pool.Pool{ID: 1, EntryFee: big.NewInt(10), MaxParticipants: 1}))
	require.Error(t, m.PoolPut(&pool.Pool{ID: 1, EntryFee: big.NewInt(10), MaxParticipants: 4, FeePercent: 101}))
}

func TestAccountRoundTrip(t *testing.T) {
	m := NewManager(storage.NewMemDB())
	identity := addr(0xA1)

	missing, err := m.GetAccount(identity)
	require.NoError(t, err)
	require.Nil(t, missing, "missing account resolves to nil")

	require.NoError(t, m.PutAccount(identity, &types.Account{SignerNonce: 3, Balance: big.NewInt(75)}))
	loaded, err := m.GetAccount(identity)
	require.NoError(t, err)
	require.EqualValues(t, 3, loaded.SignerNonce)
	require.Zero(t, loaded.Balance.Cmp(big.NewInt(75)))

	require.Error(t, m.PutAccount(identity, &types.Account{Balance: big.NewInt(-1)}))
}

func TestRefundCreditDefaultsToZero(t *testing.T) {
	m := NewManager(storage.NewMemDB())
	identity := addr(0xB1)

	credit, err := m.RefundCredit(7, identity)
	require.NoError(t, err)
	require.Zero(t, credit.Sign())

	require.NoError(t, m.SetRefundCredit(7, identity, big.NewInt(40)))
	credit, err = m.RefundCredit(7, identity)
	require.NoError(t, err)
	require.Zero(t, credit.Cmp(big.NewInt(40)))

	// Credits are scoped per pool.
	other, err := m.RefundCredit(8, identity)
	require.NoError(t, err)
	require.Zero(t, other.Sign())

	require.Error(t, m.SetRefundCredit(7, identity, big.NewInt(-1)))
}

func TestPlatformFeesRoundTrip(t *testing.T) {
	m := NewManager(storage.NewMemDB())

	fees, err := m.PlatformFees()
	require.NoError(t, err)
	require.Zero(t, fees.Sign())

	require.NoError(t, m.SetPlatformFees(big.NewInt(123)))
	fees, err = m.PlatformFees()
	require.NoError(t, err)
	require.Zero(t, fees.Cmp(big.NewInt(123)))

	require.Error(t, m.SetPlatformFees(big.NewInt(-5)))
}

func TestCountersPersist(t *testing.T) {
	m := NewManager(storage.NewMemDB())

	last, err := m.PoolLastID()
	require.NoError(t, err)
	require.Zero(t, last)

	require.NoError(t, m.SetPoolLastID(9))
	last, err = m.PoolLastID()
	require.NoError(t, err)
	require.EqualValues(t, 9, last)
}

func TestReclaimPointerIsMonotonic(t *testing.T) {
	m := NewManager(storage.NewMemDB())

	require.NoError(t, m.SetReclaimPointer(5))
	require.NoError(t, m.SetReclaimPointer(5))
	require.Error(t, m.SetReclaimPointer(4), "pointer must not move backward")

	pointer, err := m.ReclaimPointer()
	require.NoError(t, err)
	require.EqualValues(t, 5, pointer)
}
