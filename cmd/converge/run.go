package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/convergeframework/converge/pkg/config"
	"github.com/convergeframework/converge/pkg/coordination"
	"github.com/convergeframework/converge/pkg/discovery"
	"github.com/convergeframework/converge/pkg/identity"
	"github.com/convergeframework/converge/pkg/log"
	"github.com/convergeframework/converge/pkg/metrics"
	"github.com/convergeframework/converge/pkg/reconciler"
	"github.com/convergeframework/converge/pkg/runtime"
	"github.com/convergeframework/converge/pkg/store"
	"github.com/convergeframework/converge/pkg/transport"
	"github.com/convergeframework/converge/pkg/types"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one or more agents",
	Long: `Run one or more agent runtimes in this process.

Configuration comes from CONVERGE_* environment variables overlaid by an
optional YAML file. With agents > 1 the runtimes share task and pool
managers; with a pool_id every agent joins that pool on startup.`,
	RunE: runAgents,
}

func init() {
	runCmd.Flags().StringP("config", "c", os.Getenv("CONVERGE_CONFIG"), "Config file path (YAML)")
	runCmd.Flags().BoolP("verbose", "v", false, "Enable verbose logging")
}

func runAgents(cmd *cobra.Command, args []string) error {
	// Optional .env bootstrap before the environment is read.
	godotenv.Load()

	configPath, _ := cmd.Flags().GetString("config")
	verbose, _ := cmd.Flags().GetBool("verbose")

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	level := log.InfoLevel
	if verbose {
		level = log.DebugLevel
	}
	log.Init(log.Config{Level: level, JSONOutput: cfg.LogFormat == "json"})

	ctx := context.Background()

	var discoverySvc *discovery.Service
	if cfg.DiscoveryStore != "" {
		discoveryStore, err := openDiscoveryStore(cfg.DiscoveryStore)
		if err != nil {
			return err
		}
		defer discoveryStore.Close()

		discoverySvc, err = discovery.NewService(ctx, discoveryStore)
		if err != nil {
			return fmt.Errorf("failed to start discovery service: %w", err)
		}
	}

	var taskManager *coordination.TaskManager
	var poolManager *coordination.PoolManager
	var claimSweeper *reconciler.Reconciler
	if cfg.Agents > 1 || cfg.PoolID != "" {
		taskManager = coordination.NewTaskManager(store.NewMemoryStore())
		poolManager = coordination.NewPoolManager(store.NewMemoryStore())
		if cfg.PoolID != "" {
			if _, err := poolManager.CreatePool(ctx, types.PoolSpec{ID: cfg.PoolID}); err != nil {
				return fmt.Errorf("failed to create pool %s: %w", cfg.PoolID, err)
			}
		}
		claimSweeper = reconciler.NewReconciler(taskManager, 0)
		claimSweeper.Start()
	}

	var collectors []*metrics.Collector
	runtimes := make([]*runtime.Runtime, 0, cfg.Agents)
	for i := 0; i < cfg.Agents; i++ {
		id, err := identity.Generate()
		if err != nil {
			return fmt.Errorf("failed to generate identity: %w", err)
		}
		agent := runtime.NewBaseAgent(id, nil, nil)

		var col *metrics.Collector
		if cfg.MetricsAddr != "" {
			col = metrics.NewCollector(agent.ID())
			collectors = append(collectors, col)
		}

		rt, err := runtime.NewRuntime(agent, runtime.Options{
			Transport: buildTransport(cfg, agent.ID(), i),
			Tasks:     taskManager,
			Pools:     poolManager,
			Discovery: discoverySvc,
			Metrics:   col,
		})
		if err != nil {
			return err
		}
		runtimes = append(runtimes, rt)

		if cfg.PoolID != "" {
			if _, err := poolManager.JoinPool(ctx, agent.ID(), cfg.PoolID); err != nil {
				return fmt.Errorf("failed to join pool %s: %w", cfg.PoolID, err)
			}
		}
	}

	var metricsServer *metrics.Server
	if cfg.MetricsAddr != "" {
		metricsServer = metrics.NewServer(cfg.MetricsAddr, collectors...)
		if err := metricsServer.Start(); err != nil {
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
		fmt.Printf("✓ Metrics listening on %s\n", metricsServer.Addr())
	}

	started := make([]*runtime.Runtime, 0, len(runtimes))
	for _, rt := range runtimes {
		if err := rt.Start(ctx); err != nil {
			stopAll(started, claimSweeper, metricsServer)
			return fmt.Errorf("failed to start runtime: %w", err)
		}
		started = append(started, rt)
	}

	fmt.Printf("✓ %d agent(s) running on %s transport. Press Ctrl+C to stop.\n",
		len(runtimes), cfg.Transport)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	fmt.Println("\nShutting down...")
	stopAll(started, claimSweeper, metricsServer)
	fmt.Println("✓ Shutdown complete")
	return nil
}

func openDiscoveryStore(spec string) (store.Store, error) {
	if strings.EqualFold(spec, "memory") {
		return store.NewMemoryStore(), nil
	}
	bs, err := store.NewBoltStore(spec)
	if err != nil {
		return nil, fmt.Errorf("failed to open discovery store %s: %w", spec, err)
	}
	return bs, nil
}

func buildTransport(cfg *config.Config, agentID string, index int) transport.Transport {
	if cfg.Transport == "tcp" {
		port := cfg.Port
		if cfg.Agents > 1 {
			port += index
		}
		return transport.NewTCPTransport(cfg.Host, port, agentID)
	}
	return transport.NewLocalTransport(agentID)
}

func stopAll(runtimes []*runtime.Runtime, claimSweeper *reconciler.Reconciler, metricsServer *metrics.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, rt := range runtimes {
		if err := rt.Stop(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error stopping runtime: %v\n", err)
		}
	}
	if claimSweeper != nil {
		claimSweeper.Stop()
	}
	if metricsServer != nil {
		if err := metricsServer.Stop(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error stopping metrics server: %v\n", err)
		}
	}
}
