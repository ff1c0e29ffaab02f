// Command validator is the merged bootstrap binary: it loads configuration,
// connects the store, builds the routing-contract registry and one RPC pool
// per configured chain, then starts a scanner Worker per chain behind a
// Supervisor, a Signer, a Dispatcher, and a Notifier — the single-process
// equivalent of the teacher's separate cmd/listener and cmd/relayer
// binaries, merged because this validator's scanner and signer share the
// same RPC pools and store connection.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/chainbridge-validator/core/internal/config"
	"github.com/chainbridge-validator/core/internal/dispatcher"
	"github.com/chainbridge-validator/core/internal/notifier"
	"github.com/chainbridge-validator/core/internal/registry"
	"github.com/chainbridge-validator/core/internal/rpcpool"
	"github.com/chainbridge-validator/core/internal/scanner"
	"github.com/chainbridge-validator/core/internal/signer"
	"github.com/chainbridge-validator/core/internal/store"
	"github.com/chainbridge-validator/core/internal/types"
)

func main() {
	configPath := flag.String("config", "", "path to the validator config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := setupLogger(cfg.Environment)
	logger.Info().Str("environment", cfg.Environment).Str("validator", cfg.ValidatorName).Msg("starting chainbridge validator")

	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("validator exited with error")
	}
}

func setupLogger(environment string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339
	if environment == string(types.EnvironmentDevelopment) || environment == string(types.EnvironmentTestnet) {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func run(cfg *config.Config, logger zerolog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := store.Open(&cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	rows, err := st.ListRoutingContracts(ctx)
	if err != nil {
		return fmt.Errorf("load routing contracts: %w", err)
	}
	reg, err := registry.New(rows)
	if err != nil {
		return fmt.Errorf("build registry: %w", err)
	}

	privateKey, err := crypto.HexToECDSA(cfg.Crypto.PrivateKeyHex)
	if err != nil {
		return fmt.Errorf("parse validator private key: %w", err)
	}

	sixDecimal := signer.NewSixDecimalChains(cfg.SixDecimalChainIDs)

	n := notifier.New(cfg.Notifier.WebhookURL, cfg.Notifier.QueueCapacity, cfg.Notifier.Workers, logger)
	n.Start(ctx)
	defer n.Stop()

	pools := make(map[string]*rpcpool.Pool)
	for _, chain := range cfg.EnabledChains() {
		pool, err := rpcpool.NewPool(chain.Name, chain.RPCEndpoints, logger)
		if err != nil {
			return fmt.Errorf("build RPC pool for chain %q: %w", chain.Name, err)
		}
		defer pool.Close()
		pools[chain.Name] = pool
	}

	sgn := signer.New(cfg.ValidatorName, privateKey, st, reg, pools, sixDecimal, n, logger)

	workers := make(map[string]*scanner.Worker)
	scannerCfg := scanner.Config{
		BlockRange:            cfg.Scanner.BlockRange,
		MinConfirmationBlocks: cfg.Scanner.MinConfirmationBlocks,
		FastTimeout:           cfg.Scanner.FastTimeoutDuration(),
		SlowTimeout:           cfg.Scanner.SlowTimeoutDuration(),
		RestartBackoff:        cfg.Scanner.RestartBackoffDuration(),
	}

	for _, chain := range cfg.EnabledChains() {
		contract, err := reg.ByChainName(chain.Name)
		if err != nil {
			return fmt.Errorf("no routing contract catalogued for chain %q: %w", chain.Name, err)
		}
		chainScannerCfg := scannerCfg
		if chain.BlockRange > 0 {
			chainScannerCfg.BlockRange = chain.BlockRange
		}
		if chain.ConfirmationBlocks > 0 {
			chainScannerCfg.MinConfirmationBlocks = chain.ConfirmationBlocks
		}
		worker, err := scanner.NewWorker(ctx, chain.Name, pools[chain.Name], contract, st, sgn, n, chainScannerCfg, chain.StartBlock, logger)
		if err != nil {
			return fmt.Errorf("build scanner worker for chain %q: %w", chain.Name, err)
		}
		workers[chain.Name] = worker
	}
	supervisor := scanner.NewSupervisor(workers, logger)

	disp := dispatcher.New(cfg.ValidatorName, st, reg, pools, n, dispatcher.Config{
		RelayerURL:   cfg.Relayer.URL,
		Password:     cfg.Relayer.Password,
		Workers:      cfg.Relayer.Workers,
		TickInterval: cfg.Relayer.TickIntervalDuration(),
	}, logger)

	metricsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Monitoring.MetricsPort),
		Handler: promhttp.Handler(),
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("metrics server stopped unexpectedly")
		}
	}()

	go supervisor.Run(ctx)
	go disp.Run(ctx)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	case <-ctx.Done():
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("metrics server shutdown error")
	}

	logger.Info().Msg("validator shut down cleanly")
	return nil
}
