package oracle

import (
	"github.com/spf13/viper"
)

// ConfigFromViper reads the oracle.* keys. the fallback worker count also bounds concurrent table chunks.
func ConfigFromViper() (OSRMConfig, error) {
	direction, err := ParseDirection(viper.GetString("oracle.direction"))
	if err != nil {
		return OSRMConfig{}, err
	}
	return OSRMConfig{
		URL:            viper.GetString("oracle.url"),
		Profile:        viper.GetString("oracle.profile"),
		Direction:      direction,
		Rate:           viper.GetFloat64("oracle.rate"),
		Burst:          viper.GetInt("oracle.burst"),
		Timeout:        viper.GetDuration("oracle.timeout"),
		TableChunkSize: viper.GetInt("oracle.table_chunk_size"),
		Workers:        viper.GetInt("fallback.workers"),
	}, nil
}
