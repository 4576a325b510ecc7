package cache

import (
	"testing"

	"github.com/lintang-b-s/trafficshed/pkg/util"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestConfigFromViper(t *testing.T) {
	viper.Reset()
	defer viper.Reset()
	util.SetConfigDefaults()
	assert.Equal(t, DefaultConfig(), ConfigFromViper())

	viper.Set("cache.in_memory", true)
	assert.True(t, ConfigFromViper().InMemory)
}
