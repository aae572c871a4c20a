package pool

import (
	"errors"
	"math/big"
	"testing"
)

// populate registers two funded participants so the pool carries escrow.
func populate(t *testing.T, env *testEnv, poolID uint64, seed byte) {
	t.Helper()
	for i := byte(0); i < 2; i++ {
		addr := newTestAddress(seed + i)
		env.state.fund(addr, 100)
		env.register(t, addr, poolID, 50)
	}
}

func TestReclaimStaleSweepsAbandonedEscrow(t *testing.T) {
	env := newTestEnv(t)
	env.engine.SetWindows(0, 1000)

	stale := env.createPool(t, 50, 4, 10)
	populate(t, env, stale.ID, 0xA0)
	empty := env.createPool(t, 50, 4, 10)

	env.now += 500
	fresh := env.createPool(t, 50, 4, 10)
	populate(t, env, fresh.ID, 0xB0)

	// Past the staleness window for the first two pools only.
	env.now += 700

	reclaimed, err := env.engine.ReclaimStale(env.admin, 10)
	if err != nil {
		t.Fatalf("reclaim: %v", err)
	}
	if reclaimed != 1 {
		t.Fatalf("expected 1 pool reclaimed, got %d", reclaimed)
	}
	pointer, _ := env.engine.ReclaimPointer()
	if pointer != empty.ID {
		t.Fatalf("expected pointer to advance over the empty pool to %d, got %d", empty.ID, pointer)
	}
	fees, _ := env.engine.PlatformFees()
	if fees.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("expected forfeited escrow of 100, got %s", fees)
	}
	swept, _ := env.state.PoolGet(stale.ID)
	if swept.Status() != PoolCancelled || len(swept.Participants) != 0 || swept.PrizePool.Sign() != 0 {
		t.Fatalf("expected swept pool to be cleared and inactive")
	}
	untouched, _ := env.state.PoolGet(fresh.ID)
	if untouched.Status() != PoolOpen || untouched.PrizePool.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("expected fresh pool untouched")
	}

	// The fresh pool is still inside its window: the scan stops in front of it
	// and the pointer does not move.
	reclaimed, err = env.engine.ReclaimStale(env.admin, 10)
	if err != nil {
		t.Fatalf("reclaim: %v", err)
	}
	if reclaimed != 0 {
		t.Fatalf("expected nothing reclaimed, got %d", reclaimed)
	}
	if pointer, _ = env.engine.ReclaimPointer(); pointer != empty.ID {
		t.Fatalf("expected pointer unchanged at %d, got %d", empty.ID, pointer)
	}

	// Once the fresh pool ages past the window it is swept, and a swept pool is
	// never revisited.
	env.now += 1000
	reclaimed, err = env.engine.ReclaimStale(env.admin, 10)
	if err != nil {
		t.Fatalf("reclaim: %v", err)
	}
	if reclaimed != 1 {
		t.Fatalf("expected the aged pool reclaimed, got %d", reclaimed)
	}
	if pointer, _ = env.engine.ReclaimPointer(); pointer != fresh.ID {
		t.Fatalf("expected pointer at %d, got %d", fresh.ID, pointer)
	}
	reclaimed, err = env.engine.ReclaimStale(env.admin, 10)
	if err != nil || reclaimed != 0 {
		t.Fatalf("expected idle sweep, got reclaimed=%d err=%v", reclaimed, err)
	}
	fees, _ = env.engine.PlatformFees()
	if fees.Cmp(big.NewInt(200)) != 0 {
		t.Fatalf("expected total forfeited escrow of 200, got %s", fees)
	}
}

func TestReclaimStaleHonorsLimit(t *testing.T) {
	env := newTestEnv(t)
	env.engine.SetWindows(0, 100)
	for i := byte(0); i < 3; i++ {
		p := env.createPool(t, 50, 4, 0)
		populate(t, env, p.ID, 0xA0+2*i)
	}
	env.now += 200

	reclaimed, err := env.engine.ReclaimStale(env.admin, 1)
	if err != nil {
		t.Fatalf("reclaim: %v", err)
	}
	if reclaimed != 1 {
		t.Fatalf("expected one pool per call, got %d", reclaimed)
	}
	pointer, _ := env.engine.ReclaimPointer()
	if pointer != 1 {
		t.Fatalf("expected pointer 1 after limited sweep, got %d", pointer)
	}

	// Two more calls drain the backlog.
	for i := 0; i < 2; i++ {
		if reclaimed, err = env.engine.ReclaimStale(env.admin, 1); err != nil || reclaimed != 1 {
			t.Fatalf("expected steady progress, got reclaimed=%d err=%v", reclaimed, err)
		}
	}
	if pointer, _ = env.engine.ReclaimPointer(); pointer != 3 {
		t.Fatalf("expected pointer 3, got %d", pointer)
	}
}

func TestReclaimStaleSkipsSettledPools(t *testing.T) {
	env := newTestEnv(t)
	env.engine.SetWindows(0, 100)
	p, alice, bob := startedPool(t, env)
	err := env.engine.DistributeFinalRewards(env.admin, p.ID,
		[][20]byte{alice, bob}, []*big.Int{big.NewInt(50), big.NewInt(40)}, nil, nil)
	if err != nil {
		t.Fatalf("distribute: %v", err)
	}
	env.now += 200

	reclaimed, err := env.engine.ReclaimStale(env.admin, 10)
	if err != nil {
		t.Fatalf("reclaim: %v", err)
	}
	if reclaimed != 0 {
		t.Fatalf("settled pools must not be reclaimed, got %d", reclaimed)
	}
	pointer, _ := env.engine.ReclaimPointer()
	if pointer != p.ID {
		t.Fatalf("expected pointer to advance over the settled pool, got %d", pointer)
	}
}

func TestReclaimStaleValidation(t *testing.T) {
	env := newTestEnv(t)
	outsider := newTestAddress(0x99)
	if _, err := env.engine.ReclaimStale(outsider, 10); !errors.Is(err, ErrNotAdmin) {
		t.Fatalf("expected ErrNotAdmin, got %v", err)
	}
	if _, err := env.engine.ReclaimStale(env.admin, 0); !errors.Is(err, ErrInvalidParams) {
		t.Fatalf("expected ErrInvalidParams for zero limit, got %v", err)
	}
}
