package cache

import "time"

// Config controls query cache behavior.
type Config struct {
	// MaxEntries bounds the number of cached results before LRU eviction.
	MaxEntries int `mapstructure:"max_entries"`
	// TTL is how long an entry stays valid after being stored.
	TTL time.Duration `mapstructure:"ttl"`
	// MaxCachedRows is the largest result (in rows) worth caching. Bigger
	// results are returned but never stored.
	MaxCachedRows int `mapstructure:"max_cached_rows"`
}

// DefaultConfig returns the default cache configuration.
func DefaultConfig() Config {
	return Config{
		MaxEntries:    1000,
		TTL:           5 * time.Minute,
		MaxCachedRows: 1000,
	}
}

// Validate fills zero fields with defaults.
func (c *Config) Validate() {
	def := DefaultConfig()
	if c.MaxEntries <= 0 {
		c.MaxEntries = def.MaxEntries
	}
	if c.TTL <= 0 {
		c.TTL = def.TTL
	}
	if c.MaxCachedRows <= 0 {
		c.MaxCachedRows = def.MaxCachedRows
	}
}
