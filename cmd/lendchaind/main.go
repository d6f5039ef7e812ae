package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"lendchain/config"
	"lendchain/core/events"
	"lendchain/core/genesis"
	"lendchain/core/state"
	"lendchain/crypto"
	"lendchain/gateway"
	"lendchain/gateway/middleware"
	"lendchain/gateway/routes"
	nativecommon "lendchain/native/common"
	"lendchain/native/lending"
	"lendchain/native/lendpool"
	"lendchain/native/nft"
	"lendchain/native/token"
	"lendchain/observability/logging"
	"lendchain/observability/metrics"
	"lendchain/observability/otel"
	"lendchain/rpc"
	"lendchain/services/lendindexd/indexer"
	"lendchain/storage"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	genesisFlag := flag.String("genesis", "", "Path to a genesis YAML file (overrides config GenesisFile)")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.Setup(logging.Options{
		Service:     "lendchaind",
		Environment: cfg.Environment,
		File:        cfg.LogFile,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Telemetry {
		shutdown, err := otel.Init(ctx, otel.Config{
			ServiceName: "lendchaind",
			Environment: cfg.Environment,
			Endpoint:    cfg.TelemetryEndpoint,
			Insecure:    true,
			Metrics:     true,
			Traces:      true,
		})
		if err != nil {
			logger.Error("failed to initialise telemetry", "err", err)
			os.Exit(1)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				logger.Warn("telemetry shutdown failed", "err", err)
			}
		}()
	}

	db, err := openDatabase(cfg)
	if err != nil {
		logger.Error("failed to open database", "backend", cfg.Backend, "err", err)
		os.Exit(1)
	}
	defer db.Close()

	manager := state.NewManager(db)
	recorder := events.NewRecorder()

	ledger := token.NewLedger()
	ledger.SetState(manager)
	registry := nft.NewRegistry()
	registry.SetState(manager)

	moduleAddr, err := resolveAddress(cfg.ModuleAddress, "lendchain/module/lending")
	if err != nil {
		logger.Error("invalid module address", "err", err)
		os.Exit(1)
	}
	poolAddr, err := resolveAddress(cfg.PoolAddress, "lendchain/module/lendpool")
	if err != nil {
		logger.Error("invalid pool address", "err", err)
		os.Exit(1)
	}

	pauses := nativecommon.StaticPauses(cfg.Pauses())

	poolEngine := lendpool.NewEngine(poolAddr)
	poolEngine.SetState(manager)
	poolEngine.SetLedger(ledger)
	poolEngine.SetEmitter(recorder)
	poolEngine.SetPauses(pauses)

	lendingEngine := lending.NewEngine(moduleAddr)
	lendingEngine.SetState(manager)
	lendingEngine.SetLedger(ledger)
	lendingEngine.SetRegistry(registry)
	lendingEngine.SetEmitter(recorder)
	lendingEngine.SetPauses(pauses)

	if operator := strings.TrimSpace(cfg.PoolOperator); operator != "" {
		operatorAddr, err := crypto.DecodeAddress(operator)
		if err != nil {
			logger.Error("invalid pool operator address", "err", err)
			os.Exit(1)
		}
		lendingEngine.SetPoolFunding(poolAddr, operatorAddr, poolEngine)
	}

	if err := applyGenesisOnce(cfg, *genesisFlag, manager, ledger, registry, logger); err != nil {
		logger.Error("failed to apply genesis", "err", err)
		os.Exit(1)
	}

	indexDB, err := indexer.Open(cfg.IndexerDriver, cfg.IndexerDSN)
	if err != nil {
		logger.Error("failed to open event index", "err", err)
		os.Exit(1)
	}
	idx, err := indexer.New(indexDB, recorder, logger)
	if err != nil {
		logger.Error("failed to initialise event index", "err", err)
		os.Exit(1)
	}
	go func() {
		if err := idx.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("event indexer stopped", "err", err)
		}
	}()

	go metrics.WatchLending(ctx, recorder, lendingEngine, poolEngine)

	rpcServer := rpc.NewServer(lendingEngine, poolEngine, logger)
	go func() {
		if err := rpcServer.Start(cfg.RPCAddress); err != nil {
			logger.Error("rpc server stopped", "err", err)
			stop()
		}
	}()

	gatewayServer := gateway.NewServer(cfg.GatewayAddress, routes.Config{
		Lending:  lendingEngine,
		Pool:     poolEngine,
		Recorder: recorder,
		Authenticator: middleware.NewAuthenticator(middleware.AuthConfig{
			Enabled:    strings.TrimSpace(cfg.GatewayJWTSecret) != "",
			HMACSecret: cfg.GatewayJWTSecret,
		}, logger),
		Observability: middleware.NewObservability(middleware.ObservabilityConfig{
			ServiceName: "lendchain-gateway",
			LogRequests: true,
			Enabled:     true,
		}, logger),
	}, logger)
	go func() {
		if err := gatewayServer.Start(); err != nil {
			logger.Error("gateway stopped", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := rpcServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("rpc shutdown failed", "err", err)
	}
	if err := gatewayServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("gateway shutdown failed", "err", err)
	}
}

func openDatabase(cfg *config.Config) (storage.Database, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "memory":
		return storage.NewMemDB(), nil
	case "bolt":
		return storage.NewBoltDB(cfg.DataDir)
	default:
		return storage.NewLevelDB(cfg.DataDir)
	}
}

// resolveAddress decodes a configured bech32 address, or derives a stable
// module-owned address from the tag when none is configured. Derived addresses
// have no known private key.
func resolveAddress(configured, tag string) (crypto.Address, error) {
	if trimmed := strings.TrimSpace(configured); trimmed != "" {
		return crypto.DecodeAddress(trimmed)
	}
	digest := ethcrypto.Keccak256([]byte(tag))
	return crypto.NewAddress(crypto.LendPrefix, digest[12:]), nil
}

// applyGenesisOnce loads and applies the genesis allocation on first boot. The
// applied marker in state keeps restarts from double-minting.
func applyGenesisOnce(cfg *config.Config, override string, manager *state.Manager, ledger *token.Ledger, registry *nft.Registry, logger *slog.Logger) error {
	path := strings.TrimSpace(override)
	if path == "" {
		path = strings.TrimSpace(cfg.GenesisFile)
	}
	if path == "" {
		return nil
	}
	applied, err := manager.GenesisApplied()
	if err != nil {
		return err
	}
	if applied {
		logger.Info("genesis already applied, skipping", "path", path)
		return nil
	}
	gen, err := genesis.Load(path)
	if err != nil {
		return err
	}
	if err := gen.Apply(ledger, registry); err != nil {
		return err
	}
	if err := manager.SetGenesisApplied(); err != nil {
		return err
	}
	logger.Info("genesis applied", "path", path, "accounts", len(gen.Accounts), "nfts", len(gen.NFTs))
	return nil
}
