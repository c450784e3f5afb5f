package config

import (
	"time"

	"github.com/kbukum/podflow/validation"
)

// Pod defaults.
const (
	DefaultPartitionSize     = 512
	DefaultLockTimeout       = 1000 * time.Millisecond
	DefaultSlowCallThreshold = 100 * time.Millisecond
	DefaultBuckets           = 4
	DefaultSampleRate        = 44100.0
)

// PodConfig tunes pod buffering and call handling.
type PodConfig struct {
	// PartitionSize is the number of elements in one batch.
	PartitionSize int `yaml:"partition_size" mapstructure:"partition_size" validate:"gte=1"`
	// LockTimeout bounds the wait for a consumer's lock in IteratorNext.
	LockTimeout time.Duration `yaml:"lock_timeout" mapstructure:"lock_timeout" validate:"gt=0"`
	// SlowCallThreshold is the dispatch time above which a call is logged.
	SlowCallThreshold time.Duration `yaml:"slow_call_threshold" mapstructure:"slow_call_threshold" validate:"gte=0"`
	// DefaultBuckets is how many batches a proxy asks for per iteratorNext.
	DefaultBuckets int `yaml:"default_buckets" mapstructure:"default_buckets" validate:"gte=1"`
	// SampleRate is passed to iteratorStart when the caller gives none.
	SampleRate float64 `yaml:"sample_rate" mapstructure:"sample_rate" validate:"gt=0"`
}

// DefaultPodConfig returns a config with every default applied.
func DefaultPodConfig() PodConfig {
	var c PodConfig
	c.ApplyDefaults()
	return c
}

// ApplyDefaults fills zero fields.
func (c *PodConfig) ApplyDefaults() {
	if c.PartitionSize == 0 {
		c.PartitionSize = DefaultPartitionSize
	}
	if c.LockTimeout == 0 {
		c.LockTimeout = DefaultLockTimeout
	}
	if c.SlowCallThreshold == 0 {
		c.SlowCallThreshold = DefaultSlowCallThreshold
	}
	if c.DefaultBuckets == 0 {
		c.DefaultBuckets = DefaultBuckets
	}
	if c.SampleRate == 0 {
		c.SampleRate = DefaultSampleRate
	}
}

// Validate checks field ranges.
func (c *PodConfig) Validate() error {
	return validation.Validate(c)
}
