// nftrollup - NFT ledger rollup node
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/colorfulnotion/nftrollup/actionlog"
	"github.com/colorfulnotion/nftrollup/anchor"
	"github.com/colorfulnotion/nftrollup/config"
	"github.com/colorfulnotion/nftrollup/indexer"
	log "github.com/colorfulnotion/nftrollup/log"
	"github.com/colorfulnotion/nftrollup/node"
	"github.com/colorfulnotion/nftrollup/prover"
	"github.com/colorfulnotion/nftrollup/rollup"
	"github.com/colorfulnotion/nftrollup/rpc"
	"github.com/colorfulnotion/nftrollup/storage"
	"github.com/colorfulnotion/nftrollup/telemetry"
	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildTime = "unknown"
)

// stack is one wired node: anchor, indexer and pipeline over a shared store.
type stack struct {
	params   rollup.Params
	store    *storage.PersistenceStore
	ledger   *anchor.Ledger
	indexer  *indexer.Indexer
	pipeline *node.Pipeline
}

func openStack(cfg config.Config) (*stack, error) {
	p, err := rollup.NewParams(cfg)
	if err != nil {
		return nil, err
	}
	store, err := storage.NewPersistenceStore(cfg.DataPath)
	if err != nil {
		return nil, fmt.Errorf("open store %q: %w", cfg.DataPath, err)
	}
	alog, err := actionlog.Open(store, cfg.MaxActionsPerCall)
	if err != nil {
		store.Close()
		return nil, err
	}
	pr := prover.NewReplayProver(p, []byte(cfg.ProverKey))
	ledger, err := anchor.Open(p, alog, pr, store)
	if err != nil {
		store.Close()
		return nil, err
	}
	ix, err := indexer.Open(p, store, cfg.AssetCacheSize)
	if err != nil {
		store.Close()
		return nil, err
	}
	return &stack{
		params:   p,
		store:    store,
		ledger:   ledger,
		indexer:  ix,
		pipeline: node.NewPipeline(p, cfg, ledger, ix, pr),
	}, nil
}

func (s *stack) Close() {
	s.indexer.Close()
	s.store.Close()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	var rootCmd = &cobra.Command{
		Use:   "nftrollup",
		Short: "NFT ledger rollup node",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			log.InitLogger(cfg.LogLevel)
			log.EnableModules(cfg.LogModules)
			return cfg.Validate()
		},
	}
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.SilenceUsage = true

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (trace, debug, info, warn, error)")
	pf.StringVar(&cfg.LogModules, "debug", cfg.LogModules, "Comma separated modules with debug logging, or all")
	pf.StringVarP(&cfg.DataPath, "data-path", "d", cfg.DataPath, "Data directory, empty keeps everything in memory")
	pf.IntVar(&cfg.TreeHeight, "height", cfg.TreeHeight, "Ledger tree height")
	pf.Uint64Var(&cfg.Supply, "supply", cfg.Supply, "Maximum number of minted assets")
	pf.IntVar(&cfg.BatchSize, "batch-size", cfg.BatchSize, "Actions per proven batch")
	pf.IntVar(&cfg.MaxActionsPerCall, "max-actions", cfg.MaxActionsPerCall, "Actions pulled from the log per rollup")
	pf.StringVar(&cfg.HashScheme, "hash", cfg.HashScheme, "Tree hash scheme (blake2b, keccak256, mimc)")
	pf.StringVar(&cfg.MergeStrategy, "merge", cfg.MergeStrategy, "Proof merge strategy (fold, tree)")
	pf.IntVar(&cfg.ProveConcurrency, "prove-concurrency", cfg.ProveConcurrency, "Batches proven in parallel")
	pf.DurationVar(&cfg.ProveTimeout, "prove-timeout", cfg.ProveTimeout, "Timeout for one batch proof")

	var (
		mints     int
		transfers int
	)
	var demoCmd = &cobra.Command{
		Use:   "demo",
		Short: "Mint, roll up, transfer and roll up again, checking the indexer each time",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDemo(cmd.Context(), cfg, mints, transfers)
		},
	}
	demoCmd.Flags().IntVar(&mints, "mints", 10, "Assets to mint")
	demoCmd.Flags().IntVar(&transfers, "transfers", 5, "Assets to transfer after the first rollup")

	var serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the rollup loop and the RPC server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), cfg)
		},
	}
	serveCmd.Flags().IntVar(&cfg.RPCPort, "rpc-port", cfg.RPCPort, "RPC server port")
	serveCmd.Flags().DurationVar(&cfg.SyncInterval, "interval", cfg.SyncInterval, "Time between rollups")
	serveCmd.Flags().StringVar(&cfg.OTelEndpoint, "otel-endpoint", cfg.OTelEndpoint, "OTLP/HTTP trace endpoint")

	var configCmd = &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(cfg.String())
		},
	}

	var versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("nftrollup %s (commit %s, built %s)\n", Version, Commit, BuildTime)
		},
	}

	rootCmd.AddCommand(demoCmd, serveCmd, configCmd, versionCmd)
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func runServe(ctx context.Context, cfg config.Config) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.OTelEndpoint, "nftrollup", Version)
	if err != nil {
		fmt.Printf("Warning: Failed to initialize tracing: %v\n", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		shutdownTracing(sctx)
	}()

	s, err := openStack(cfg)
	if err != nil {
		return err
	}
	defer s.Close()
	fmt.Printf("✓ Ledger anchored at %s\n", s.ledger.State())

	states, unsubscribe := s.ledger.Subscribe()
	defer unsubscribe()
	hub := rpc.NewHub(ctx)
	hub.Run(states)
	server := rpc.NewNFTHTTPServer(rpc.NewNFTRPCHandler(s.ledger, s.indexer, s.pipeline), hub)
	if err := server.Start(cfg.RPCPort); err != nil {
		return err
	}
	fmt.Printf("✓ RPC server on http://localhost:%d (metrics /metrics, feed /ws)\n", cfg.RPCPort)

	runner := node.NewRunner(s.pipeline, cfg.SyncInterval)
	runner.OnReport = func(r *node.Report) {
		log.Info(log.NodeMonitoring, "rollup", "actions", r.Actions, "batches", r.Batches, "state", r.Committed.String())
	}
	runner.Start(ctx)
	fmt.Printf("✓ Rolling up every %s\n", cfg.SyncInterval)

	<-ctx.Done()
	fmt.Printf("\nShutting down nftrollup...\n")
	runner.Stop()
	sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(sctx)
}
