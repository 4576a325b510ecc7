package cache

import (
	"github.com/spf13/viper"
)

// ConfigFromViper reads the cache.* keys.
func ConfigFromViper() Config {
	return Config{
		Path:     viper.GetString("cache.path"),
		InMemory: viper.GetBool("cache.in_memory"),
		TTL:      viper.GetDuration("cache.ttl"),
		LRUSize:  viper.GetInt("cache.lru_size"),
	}
}
