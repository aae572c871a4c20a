package main

import (
	"encoding/json"
	"flag"
	"log/slog"
	"math/big"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"

	"arenapool/observability/logging"
)

// rewardvaultd is a reference implementation of the reward-custody
// collaborator: it accepts bulk distributions from the pool engine and keeps
// per-unit reward balances in memory. Production deployments replace it with
// the real custody service; the wire contract is the only coupling.

type vault struct {
	mu       sync.Mutex
	balances map[uint64]*big.Int
	logger   *slog.Logger
}

type distributeRequest struct {
	IDs     []uint64 `json:"ids"`
	Amounts []string `json:"amounts"`
}

func (v *vault) handleDistribute(w http.ResponseWriter, r *http.Request) {
	var req distributeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed payload", http.StatusBadRequest)
		return
	}
	if len(req.IDs) != len(req.Amounts) {
		http.Error(w, "ids and amounts must be parallel", http.StatusBadRequest)
		return
	}
	amounts := make([]*big.Int, 0, len(req.Amounts))
	for _, raw := range req.Amounts {
		amount, ok := new(big.Int).SetString(strings.TrimSpace(raw), 10)
		if !ok || amount.Sign() < 0 {
			http.Error(w, "amounts must be non-negative decimal strings", http.StatusBadRequest)
			return
		}
		amounts = append(amounts, amount)
	}
	v.mu.Lock()
	for i, id := range req.IDs {
		current, ok := v.balances[id]
		if !ok {
			current = big.NewInt(0)
		}
		v.balances[id] = new(big.Int).Add(current, amounts[i])
	}
	v.mu.Unlock()
	v.logger.Info("rewards distributed", slog.Int("units", len(req.IDs)))
	w.WriteHeader(http.StatusOK)
}

func (v *vault) handleBalance(w http.ResponseWriter, r *http.Request) {
	idParam := chi.URLParam(r, "id")
	id, ok := new(big.Int).SetString(idParam, 10)
	if !ok || !id.IsUint64() {
		http.Error(w, "invalid unit id", http.StatusBadRequest)
		return
	}
	v.mu.Lock()
	balance, found := v.balances[id.Uint64()]
	v.mu.Unlock()
	if !found {
		balance = big.NewInt(0)
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"balance": balance.String()})
}

func main() {
	listen := flag.String("listen", ":8650", "Listen address for the reward vault service")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("ARENAPOOL_ENV"))
	logger := logging.Setup("rewardvaultd", env)

	v := &vault{balances: make(map[uint64]*big.Int), logger: logger}

	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Post("/v1/rewards/distribute", v.handleDistribute)
	r.Get("/v1/rewards/{id}/balance", v.handleBalance)

	logger.Info("starting reward vault service", slog.String("addr", *listen))
	if err := http.ListenAndServe(*listen, r); err != nil {
		logger.Error("reward vault service stopped", slog.Any("error", err))
		os.Exit(1)
	}
}
