package main

import (
	"flag"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"arenapool/config"
	"arenapool/core/events"
	"arenapool/crypto"
	"arenapool/integrations/rewardvault"
	"arenapool/native/pool"
	"arenapool/observability/logging"
	"arenapool/rpc"
	"arenapool/state"
	"arenapool/storage"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("ARENAPOOL_ENV"))
	logger := logging.Setup("arenapoold", env)

	cfg, err := config.Load(*configFile)
	if err != nil {
		logger.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		logger.Error("failed to open database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	engine, err := buildEngine(cfg, logger, db)
	if err != nil {
		logger.Error("failed to wire engine", slog.Any("error", err))
		os.Exit(1)
	}

	go serveMetrics(cfg.MetricsAddress, logger)

	server := rpc.NewServer(engine, logger)
	if err := server.Start(cfg.RPCAddress); err != nil {
		logger.Error("rpc server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func buildEngine(cfg *config.Config, logger *slog.Logger, db storage.Database) (*pool.Engine, error) {
	manager := state.NewManager(db)

	authority, err := crypto.DecodeAddress(cfg.AuthorityAddress)
	if err != nil {
		return nil, err
	}
	admin, err := crypto.DecodeAddress(cfg.AdminAddress)
	if err != nil {
		return nil, err
	}
	owner, err := crypto.DecodeAddress(cfg.OwnerAddress)
	if err != nil {
		return nil, err
	}
	vault, err := crypto.DecodeAddress(cfg.VaultAddress)
	if err != nil {
		return nil, err
	}

	engine := pool.NewEngine()
	engine.SetState(manager)
	engine.SetAuthority(authority.Raw())
	engine.SetAdmin(admin.Raw())
	engine.SetOwner(owner.Raw())
	engine.SetVault(vault.Raw())
	engine.SetWindows(cfg.AbandonWindowSeconds, cfg.StaleWindowSeconds)
	engine.SetEmitter(events.LogEmitter{Logger: logger})

	if strings.TrimSpace(cfg.RewardVaultAddress) != "" {
		custody, err := crypto.DecodeAddress(cfg.RewardVaultAddress)
		if err != nil {
			return nil, err
		}
		engine.SetRewardCustody(custody.Raw(), rewardvault.NewClient(cfg.RewardVaultEndpoint))
		logger.Info("reward custody collaborator configured",
			slog.String("address", cfg.RewardVaultAddress),
			slog.String("endpoint", cfg.RewardVaultEndpoint))
	}

	return engine, nil
}

func serveMetrics(addr string, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	logger.Info("starting metrics endpoint", slog.String("addr", addr))
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("metrics endpoint stopped", slog.Any("error", err))
	}
}
