package tick

import "time"

// Config bounds the orchestrator's per-tick deadlines and shard sizing.
// Values come from internal/config, which reads them from the environment.
type Config struct {
	// StageDeadline bounds how long a stage exchange waits for ChangesDone
	// from every registered instance before dropping stragglers. A system
	// whose instances registered a stage deadline uses the largest of those
	// instead.
	StageDeadline time.Duration
	// SentinelDeadline is the fallback drain deadline applied when a stage
	// has no more specific deadline configured; defaults to 5s.
	SentinelDeadline time.Duration
	// TickAckDeadline bounds how long the orchestrator waits for TickAck
	// once ChangesDone has been observed.
	TickAckDeadline time.Duration
	// ShardRows bounds the row count packed into one ComponentShard message.
	ShardRows int
}

// DefaultConfig matches the documented defaults: a 5 second sentinel-drain
// deadline and moderate shard sizing.
func DefaultConfig() Config {
	return Config{
		StageDeadline:    5 * time.Second,
		SentinelDeadline: 5 * time.Second,
		TickAckDeadline:  5 * time.Second,
		ShardRows:        256,
	}
}
