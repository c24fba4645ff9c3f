package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"creditmanager/config"
	"creditmanager/core/state"
	"creditmanager/native/credit"
	nativeparams "creditmanager/native/params"
	"creditmanager/observability/logging"
	"creditmanager/rpc"
	"creditmanager/services/devstack"
	"creditmanager/storage"
)

const authTokenEnv = "CREDIT_RPC_TOKEN"

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.Setup("creditd", cfg.Environment, cfg.LogFile)

	db, err := storage.Open(cfg.DBBackend, filepath.Join(cfg.DataDir, "credit.db"))
	if err != nil {
		logger.Error("failed to open database", "backend", cfg.DBBackend, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	registry := nativeparams.NewRegistry()
	if strings.TrimSpace(cfg.ParamsFile) != "" {
		registry, err = nativeparams.LoadFile(cfg.ParamsFile)
		if err != nil {
			logger.Error("failed to load params", "path", cfg.ParamsFile, "error", err)
			os.Exit(1)
		}
	}

	bank := devstack.NewBank()
	redBank := devstack.NewRedBank(bank, "red-bank", cfg.ManagerAddress)

	engine := credit.NewEngine(credit.EngineConfig{
		Bank:             bank,
		AccountNFT:       devstack.NewNFT(),
		RedBank:          redBank,
		Oracle:           devstack.NewOracle(registry),
		Params:           registry,
		Address:          cfg.ManagerAddress,
		Owner:            cfg.OwnerAddress,
		RewardsCollector: cfg.RewardsCollector,
	})
	engine.SetState(state.NewManager(db))
	engine.SetPauses(registry)
	engine.SetLogger(logger)
	engine.SetBlockTime(uint64(time.Now().Unix()))

	server := rpc.NewServer(rpc.ServerConfig{
		Engine:            engine,
		Registry:          registry,
		Logger:            logger,
		AuthToken:         os.Getenv(authTokenEnv),
		MaxRequestsPerMin: cfg.MaxRequestsPerMin,
		QuotaEpochSeconds: cfg.QuotaEpochSeconds,
	})

	httpServer := &http.Server{Addr: cfg.RPCAddress, Handler: server.Router()}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("credit daemon starting",
			"rpc", cfg.RPCAddress,
			"backend", cfg.DBBackend,
			"manager", cfg.ManagerAddress,
		)
		errCh <- httpServer.ListenAndServe()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("rpc server stopped", "error", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown failed", "error", err)
		}
	}
}
