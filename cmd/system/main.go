// Command system runs a single system process instance against the engine's
// bus: it registers a query, waits for each tick's shards, runs its step
// function, and publishes mutations back. The built-in step is a minimal
// Euler integrator (Position += Velocity * dt) standing in for whatever
// domain logic an operator wires into harness.New in its place.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/brightloom/ecsmesh/internal/codec"
	comp "github.com/brightloom/ecsmesh/internal/component"
	appconfig "github.com/brightloom/ecsmesh/internal/config"
	"github.com/brightloom/ecsmesh/internal/harness"
	"github.com/brightloom/ecsmesh/internal/logging"
	"github.com/brightloom/ecsmesh/internal/transport"
	"github.com/brightloom/ecsmesh/internal/wire"
)

var v = appconfig.New()

var systemName string

var rootCmd = &cobra.Command{
	Use:   "system",
	Short: "runs one system process instance (default: a Position/Velocity integrator)",
	RunE:  run,
}

func init() {
	appconfig.BindFlags(v, rootCmd.PersistentFlags())
	rootCmd.PersistentFlags().StringVar(&systemName, "name", "integrator", "logical system name this instance registers under")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var (
	positionType = comp.HashName("Position")
	velocityType = comp.HashName("Velocity")
)

type vec2 struct {
	X, Y float64
}

const dt = 1.0 / 30.0

func run(cmd *cobra.Command, args []string) error {
	cfg := appconfig.Load(v)
	log := logging.New(cfg.LogLevel, cfg.LogJSON)
	sysLog := logging.Subsystem(log, "harness")

	tr, err := transport.Dial(cfg.NATSURL, logging.Subsystem(log, "transport"))
	if err != nil {
		sysLog.WithError(err).Error("failed to connect to NATS")
		return err
	}
	defer tr.Close()

	desc := harness.Descriptor{
		Name:       systemName,
		InstanceID: uuid.NewString(),
		Reads:      []comp.TypeID{velocityType},
		Writes:     []comp.TypeID{positionType},
	}

	hcfg := harness.DefaultConfig()
	rt := harness.New(tr, desc, integrate, hcfg, sysLog)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	sysLog.WithField("instance", desc.InstanceID).Info("system instance running")
	return rt.Run(ctx)
}

func integrate(ctx context.Context, store *harness.LocalStore) ([]wire.EntitySpawnRequest, error) {
	for _, entity := range store.Entities() {
		posRaw, hasPos := store.Get(entity, positionType)
		velRaw, hasVel := store.Get(entity, velocityType)
		if !hasPos || !hasVel {
			continue
		}
		var pos, vel vec2
		if codec.Decode(posRaw, &pos) != nil {
			continue
		}
		if codec.Decode(velRaw, &vel) != nil {
			continue
		}
		pos.X += vel.X * dt
		pos.Y += vel.Y * dt
		encoded, err := codec.Encode(pos)
		if err != nil {
			continue
		}
		store.Set(entity, positionType, encoded)
	}
	return nil, nil
}
