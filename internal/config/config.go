// Package config loads the coordinator/system process configuration from
// environment variables (and command-line flags, when bound by cmd/), using
// github.com/spf13/viper the way the corpus pairs it with cobra: defaults
// registered first, flags bound on top, AutomaticEnv reading whatever the
// operator set last.
package config

import (
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the full set of knobs either entrypoint needs.
type Config struct {
	NATSURL string

	TickHz int

	StageDeadline    time.Duration
	SentinelDeadline time.Duration
	TickAckDeadline  time.Duration
	ShardRows        int

	LogLevel string
	LogJSON  bool
}

// Keys used both for viper defaults and for flag binding, so the two never
// drift out of sync.
const (
	keyNATSURL            = "nats_url"
	keyTickHz             = "engine_tick_hz"
	keyStageDeadlineMs    = "engine_stage_deadline_ms"
	keySentinelDeadlineMs = "engine_sentinel_deadline_ms"
	keyTickAckDeadlineMs  = "engine_tick_ack_deadline_ms"
	keyShardRows          = "engine_shard_rows"
	keyLogLevel           = "log_level"
	keyLogJSON            = "log_json"
)

// New returns a viper instance seeded with this engine's defaults and bound
// to AutomaticEnv, which looks each key up under its upper-cased name (so
// engine_stage_deadline_ms reads ENGINE_STAGE_DEADLINE_MS), with "." mapped
// to "_" for any dotted key.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault(keyNATSURL, "nats://localhost:4222")
	v.SetDefault(keyTickHz, 30)
	v.SetDefault(keyStageDeadlineMs, 5000)
	v.SetDefault(keySentinelDeadlineMs, 5000)
	v.SetDefault(keyTickAckDeadlineMs, 5000)
	v.SetDefault(keyShardRows, 256)
	v.SetDefault(keyLogLevel, "info")
	v.SetDefault(keyLogJSON, false)
	return v
}

// BindFlags registers this engine's persistent flags on fs and binds each
// one into v, so precedence ends up flag > env > default, the order the
// corpus's own cobra+viper entrypoints use.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) {
	fs.String("nats-url", "", "NATS server URL")
	fs.Int("tick-hz", 0, "simulation tick rate in Hz")
	fs.Int("stage-deadline-ms", 0, "per-stage exchange deadline in milliseconds")
	fs.Int("sentinel-deadline-ms", 0, "DataDone/ChangesDone wait deadline in milliseconds")
	fs.Int("tick-ack-deadline-ms", 0, "TickAck wait deadline in milliseconds")
	fs.Int("shard-rows", 0, "maximum rows per ComponentShard message")
	fs.String("log-level", "", "log level (debug, info, warn, error)")
	fs.Bool("log-json", false, "emit JSON-formatted logs instead of text")

	v.BindPFlag(keyNATSURL, fs.Lookup("nats-url"))
	v.BindPFlag(keyTickHz, fs.Lookup("tick-hz"))
	v.BindPFlag(keyStageDeadlineMs, fs.Lookup("stage-deadline-ms"))
	v.BindPFlag(keySentinelDeadlineMs, fs.Lookup("sentinel-deadline-ms"))
	v.BindPFlag(keyTickAckDeadlineMs, fs.Lookup("tick-ack-deadline-ms"))
	v.BindPFlag(keyShardRows, fs.Lookup("shard-rows"))
	v.BindPFlag(keyLogLevel, fs.Lookup("log-level"))
	v.BindPFlag(keyLogJSON, fs.Lookup("log-json"))
}

// Load reads every bound key out of v into a Config.
func Load(v *viper.Viper) Config {
	return Config{
		NATSURL:          v.GetString(keyNATSURL),
		TickHz:           v.GetInt(keyTickHz),
		StageDeadline:    time.Duration(v.GetInt(keyStageDeadlineMs)) * time.Millisecond,
		SentinelDeadline: time.Duration(v.GetInt(keySentinelDeadlineMs)) * time.Millisecond,
		TickAckDeadline:  time.Duration(v.GetInt(keyTickAckDeadlineMs)) * time.Millisecond,
		ShardRows:        v.GetInt(keyShardRows),
		LogLevel:         v.GetString(keyLogLevel),
		LogJSON:          v.GetBool(keyLogJSON),
	}
}
