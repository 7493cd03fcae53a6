// Command coordinator runs the engine's single logical driver: it owns the
// canonical world store, partitions registered systems into stages every
// tick, runs the stage exchange protocol over NATS, and answers ad-hoc
// schema/query traffic against the most recent tick-boundary snapshot.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	appconfig "github.com/brightloom/ecsmesh/internal/config"
	comp "github.com/brightloom/ecsmesh/internal/component"
	"github.com/brightloom/ecsmesh/internal/logging"
	"github.com/brightloom/ecsmesh/internal/query"
	"github.com/brightloom/ecsmesh/internal/schedule"
	"github.com/brightloom/ecsmesh/internal/tick"
	"github.com/brightloom/ecsmesh/internal/transport"
	"github.com/brightloom/ecsmesh/internal/world"
)

var v = appconfig.New()

var rootCmd = &cobra.Command{
	Use:   "coordinator",
	Short: "runs the ECS engine's tick orchestrator and query/schema services",
	RunE:  run,
}

func init() {
	appconfig.BindFlags(v, rootCmd.PersistentFlags())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg := appconfig.Load(v)
	log := logging.New(cfg.LogLevel, cfg.LogJSON)
	coordLog := logging.Subsystem(log, "coordinator")

	tr, err := transport.Dial(cfg.NATSURL, logging.Subsystem(log, "transport"))
	if err != nil {
		coordLog.WithError(err).Error("failed to connect to NATS")
		return err
	}
	defer tr.Close()

	components := comp.NewRegistry()
	w := world.New(components)
	systems := schedule.NewRegistry()
	queryEngine := query.NewEngine(components)

	tickCfg := tick.Config{
		StageDeadline:    cfg.StageDeadline,
		SentinelDeadline: cfg.SentinelDeadline,
		TickAckDeadline:  cfg.TickAckDeadline,
		ShardRows:        cfg.ShardRows,
	}
	orch := tick.New(tr, w, components, systems, queryEngine, tickCfg, logging.Subsystem(log, "tick"))
	if err := orch.Start(); err != nil {
		coordLog.WithError(err).Error("failed to start tick orchestrator")
		return err
	}

	srv := newServices(tr, w, components, queryEngine, logging.Subsystem(log, "query"))
	if err := srv.start(); err != nil {
		coordLog.WithError(err).Error("failed to start query/schema services")
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	tickHz := cfg.TickHz
	if tickHz <= 0 {
		tickHz = 30
	}
	period := time.Second / time.Duration(tickHz)
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	coordLog.WithField("tick_hz", tickHz).Info("coordinator running")
	for {
		select {
		case <-ctx.Done():
			coordLog.Info("shutting down")
			return nil
		case <-ticker.C:
			orch.RunTick()
		}
	}
}
