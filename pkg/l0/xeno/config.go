package xeno

import "time"

// Config tunes a Session. Zero fields take the defaults.
type Config struct {
	// Name prefixes log lines of the session.
	Name string `yaml:"name"`
	// Identity is sent to the peer in SelfDescribe.
	Identity string `yaml:"identity"`

	MaxParseFailures int           `yaml:"max_parse_failures"`
	MaxAckFailures   int           `yaml:"max_ack_failures"`
	SyncPeriod       time.Duration `yaml:"sync_period"`
	SyncRetries      int           `yaml:"sync_retries"`
	AckTimeout       time.Duration `yaml:"ack_timeout"`
	MaxRetries       int           `yaml:"max_retries"`
	PoolSize         int           `yaml:"pool_size"`
	QueueCapacity    int           `yaml:"queue_capacity"`
	MaxFrameLength   int           `yaml:"max_frame_length"`
}

// Defaults.
const (
	DefaultMaxParseFailures = 3
	DefaultMaxAckFailures   = 3
	DefaultSyncPeriod       = 30 * time.Millisecond
	DefaultSyncRetries      = 24
	DefaultAckTimeout       = 500 * time.Millisecond
	DefaultMaxRetries       = 3
	DefaultPoolSize         = 8
	DefaultQueueCapacity    = 32
	DefaultMaxFrameLength   = 4096
)

// DefaultConfig returns a Config with all defaults filled.
func DefaultConfig() Config {
	return Config{}.withDefaults()
}

func (c Config) withDefaults() Config {
	if c.Name == "" {
		c.Name = "xeno"
	}
	if c.MaxParseFailures <= 0 {
		c.MaxParseFailures = DefaultMaxParseFailures
	}
	if c.MaxAckFailures <= 0 {
		c.MaxAckFailures = DefaultMaxAckFailures
	}
	if c.SyncPeriod <= 0 {
		c.SyncPeriod = DefaultSyncPeriod
	}
	if c.SyncRetries <= 0 {
		c.SyncRetries = DefaultSyncRetries
	}
	if c.AckTimeout <= 0 {
		c.AckTimeout = DefaultAckTimeout
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	} else if c.MaxRetries == 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.PoolSize <= 0 {
		c.PoolSize = DefaultPoolSize
	}
	if c.QueueCapacity <= 0 {
		c.QueueCapacity = DefaultQueueCapacity
	}
	if c.MaxFrameLength <= 0 || c.MaxFrameLength > MaxFrameLength {
		c.MaxFrameLength = DefaultMaxFrameLength
	}
	return c
}
