package util

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// ReadConfig loads config.{yaml,json,toml} from configDir. A missing file is not an error:
// defaults and TRAFFICSHED_* environment variables still apply.
func ReadConfig(configDir string) error {
	SetConfigDefaults()

	viper.SetConfigName("config")
	viper.AddConfigPath(configDir)
	viper.SetEnvPrefix("trafficshed")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	err := viper.ReadInConfig()
	if err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("fatal error config file: %w", err)
	}
	return nil
}

func SetConfigDefaults() {
	viper.SetDefault("oracle.url", "http://router.project-osrm.org")
	viper.SetDefault("oracle.profile", "driving")
	viper.SetDefault("oracle.direction", "to")
	viper.SetDefault("oracle.rate", 10.0)
	viper.SetDefault("oracle.burst", 5)
	viper.SetDefault("oracle.timeout", "30s")
	viper.SetDefault("oracle.table_chunk_size", 100)

	viper.SetDefault("cache.path", "./data/cache")
	viper.SetDefault("cache.in_memory", false)
	viper.SetDefault("cache.ttl", "168h")
	viper.SetDefault("cache.lru_size", 1<<14)

	viper.SetDefault("search.max_depth", 3)

	viper.SetDefault("fallback.batch_size", 25)
	viper.SetDefault("fallback.workers", 5)
	viper.SetDefault("fallback.min_iter", 5)
	viper.SetDefault("fallback.max_iter", 100)
	viper.SetDefault("fallback.max_bridge_steps", 500)
	viper.SetDefault("fallback.seed", 42)

	viper.SetDefault("propagation.length_unit", 50.0)

	viper.SetDefault("api.port", 6060)
	viper.SetDefault("api.timeout", "1000s")
	viper.SetDefault("api.rate_limit", false)
	viper.SetDefault("api.rate", 2.0)
	viper.SetDefault("api.burst", 4)
}
