package rpc

import (
	"bytes"
	"crypto/ecdsa"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"arenapool/core/types"
	"arenapool/crypto"
	"arenapool/native/pool"
	"arenapool/state"
	"arenapool/storage"
)

const testToken = "test-rpc-token"

type rpcFixture struct {
	server    *Server
	manager   *state.Manager
	authority *ecdsa.PrivateKey
	admin     [20]byte
	now       int64
}

func fixedAddress(fill byte) [20]byte {
	var out [20]byte
	for i := range out {
		out[i] = fill
	}
	return out
}

func bech(addr [20]byte) string {
	return crypto.NewAddress(addr[:]).String()
}

func newRPCFixture(t *testing.T) *rpcFixture {
	t.Helper()
	t.Setenv(authTokenEnv, testToken)

	key, err := ethcrypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate authority key: %v", err)
	}
	var authorityAddr [20]byte
	copy(authorityAddr[:], ethcrypto.PubkeyToAddress(key.PublicKey).Bytes())

	fx := &rpcFixture{
		manager:   state.NewManager(storage.NewMemDB()),
		authority: key,
		admin:     fixedAddress(0x01),
		now:       1_000_000,
	}
	engine := pool.NewEngine()
	engine.SetState(fx.manager)
	engine.SetAuthority(authorityAddr)
	engine.SetAdmin(fx.admin)
	engine.SetOwner(fixedAddress(0x02))
	engine.SetVault(fixedAddress(0xEE))
	engine.SetNowFunc(func() int64 { return fx.now })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	fx.server = NewServer(engine, logger)
	return fx
}

type testResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *RPCError       `json:"error"`
}

func (fx *rpcFixture) call(t *testing.T, method string, params interface{}, token string) (int, *testResponse) {
	t.Helper()
	payload := map[string]interface{}{
		"jsonrpc": jsonRPCVersion,
		"id":      1,
		"method":  method,
	}
	if params != nil {
		payload["params"] = []interface{}{params}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	fx.server.handle(rec, req)

	var resp testResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v (%s)", err, rec.Body.String())
	}
	return rec.Code, &resp
}

func (fx *rpcFixture) createPool(t *testing.T) uint64 {
	t.Helper()
	status, resp := fx.call(t, "pool_create", createParams{
		Caller:               bech(fx.admin),
		EntryFee:             "50",
		MaxParticipants:      4,
		RegistrationDeadline: fx.now + 3600,
		FeePercent:           10,
	}, testToken)
	if status != http.StatusOK || resp.Error != nil {
		t.Fatalf("create pool failed: status=%d err=%+v", status, resp.Error)
	}
	var created poolJSON
	if err := json.Unmarshal(resp.Result, &created); err != nil {
		t.Fatalf("decode created pool: %v", err)
	}
	return created.ID
}

func TestHandleRejectsNonPost(t *testing.T) {
	fx := newRPCFixture(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	fx.server.handle(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestAdminMethodsRequireBearerToken(t *testing.T) {
	fx := newRPCFixture(t)
	params := createParams{
		Caller:               bech(fx.admin),
		EntryFee:             "50",
		MaxParticipants:      4,
		RegistrationDeadline: fx.now + 3600,
	}

	status, resp := fx.call(t, "pool_create", params, "")
	if status != http.StatusUnauthorized || resp.Error == nil || resp.Error.Code != codeUnauthorized {
		t.Fatalf("expected unauthorized without token, got status=%d err=%+v", status, resp.Error)
	}
	status, resp = fx.call(t, "pool_create", params, "wrong-token")
	if status != http.StatusUnauthorized || resp.Error == nil {
		t.Fatalf("expected unauthorized with wrong token, got status=%d err=%+v", status, resp.Error)
	}
}

func TestCreateAndGetPool(t *testing.T) {
	fx := newRPCFixture(t)
	id := fx.createPool(t)

	status, resp := fx.call(t, "pool_get", poolIDParams{PoolID: id}, "")
	if status != http.StatusOK || resp.Error != nil {
		t.Fatalf("get pool failed: status=%d err=%+v", status, resp.Error)
	}
	var got poolJSON
	if err := json.Unmarshal(resp.Result, &got); err != nil {
		t.Fatalf("decode pool: %v", err)
	}
	if got.Status != "open" || got.EntryFee != "50" || got.Creator != bech(fx.admin) {
		t.Fatalf("unexpected pool payload: %+v", got)
	}

	status, resp = fx.call(t, "pool_get", poolIDParams{PoolID: id + 9}, "")
	if status != http.StatusNotFound || resp.Error == nil || resp.Error.Code != codeNotFound {
		t.Fatalf("expected not-found mapping, got status=%d err=%+v", status, resp.Error)
	}
}

func TestRegisterOverRPC(t *testing.T) {
	fx := newRPCFixture(t)
	id := fx.createPool(t)

	player := fixedAddress(0xA1)
	if err := fx.manager.PutAccount(player, &types.Account{Balance: big.NewInt(100)}); err != nil {
		t.Fatalf("fund player: %v", err)
	}
	sig, err := pool.SignApproval(fx.authority, pool.ActionRegister, player, id, 0)
	if err != nil {
		t.Fatalf("sign approval: %v", err)
	}

	status, resp := fx.call(t, "pool_register", signedActionParams{
		Caller:    bech(player),
		PoolID:    id,
		Amount:    "50",
		Signature: "0x" + hex.EncodeToString(sig),
	}, "")
	if status != http.StatusOK || resp.Error != nil {
		t.Fatalf("register failed: status=%d err=%+v", status, resp.Error)
	}

	status, resp = fx.call(t, "pool_nonce", addressParams{Address: bech(player)}, "")
	if status != http.StatusOK || resp.Error != nil {
		t.Fatalf("nonce query failed: status=%d err=%+v", status, resp.Error)
	}
	var nonce map[string]uint64
	if err := json.Unmarshal(resp.Result, &nonce); err != nil {
		t.Fatalf("decode nonce: %v", err)
	}
	if nonce["nonce"] != 1 {
		t.Fatalf("expected nonce 1 after registration, got %d", nonce["nonce"])
	}

	status, resp = fx.call(t, "pool_balance", addressParams{Address: bech(player)}, "")
	if status != http.StatusOK || resp.Error != nil {
		t.Fatalf("balance query failed: status=%d err=%+v", status, resp.Error)
	}
	var balance map[string]string
	if err := json.Unmarshal(resp.Result, &balance); err != nil {
		t.Fatalf("decode balance: %v", err)
	}
	if balance["balance"] != "50" {
		t.Fatalf("expected balance 50 after escrow, got %s", balance["balance"])
	}

	// Replaying the request trips the duplicate-registration check.
	status, resp = fx.call(t, "pool_register", signedActionParams{
		Caller:    bech(player),
		PoolID:    id,
		Amount:    "50",
		Signature: hex.EncodeToString(sig),
	}, "")
	if status != http.StatusConflict || resp.Error == nil || resp.Error.Code != codeState {
		t.Fatalf("expected invalid_state for duplicate registration, got status=%d err=%+v", status, resp.Error)
	}
}

func TestMethodAndParamErrors(t *testing.T) {
	fx := newRPCFixture(t)

	status, resp := fx.call(t, "pool_frobnicate", poolIDParams{PoolID: 1}, "")
	if status != http.StatusNotFound || resp.Error == nil || resp.Error.Code != codeMethodNotFound {
		t.Fatalf("expected method_not_found, got status=%d err=%+v", status, resp.Error)
	}

	status, resp = fx.call(t, "pool_get", nil, "")
	if status != http.StatusBadRequest || resp.Error == nil || resp.Error.Code != codeInvalidParams {
		t.Fatalf("expected invalid_params without parameter object, got status=%d err=%+v", status, resp.Error)
	}

	status, resp = fx.call(t, "pool_balance", addressParams{Address: "not-an-address"}, "")
	if status != http.StatusBadRequest || resp.Error == nil || resp.Error.Code != codeInvalidParams {
		t.Fatalf("expected invalid_params for malformed address, got status=%d err=%+v", status, resp.Error)
	}
}

func TestVersionMismatchRejected(t *testing.T) {
	fx := newRPCFixture(t)
	body := []byte(`{"jsonrpc":"1.0","id":1,"method":"pool_get","params":[{"poolId":1}]}`)
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	fx.server.handle(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for jsonrpc 1.0, got %d", rec.Code)
	}
}
