package oracle

import (
	"testing"
	"time"

	"github.com/lintang-b-s/trafficshed/pkg/util"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigFromViper(t *testing.T) {
	viper.Reset()
	defer viper.Reset()
	util.SetConfigDefaults()

	cfg, err := ConfigFromViper()
	require.NoError(t, err)
	assert.Equal(t, DefaultOSRMConfig(), cfg)

	viper.Set("oracle.direction", "from")
	viper.Set("oracle.timeout", "5s")
	cfg, err = ConfigFromViper()
	require.NoError(t, err)
	assert.Equal(t, FROM, cfg.Direction)
	assert.Equal(t, 5*time.Second, cfg.Timeout)

	viper.Set("oracle.direction", "sideways")
	_, err = ConfigFromViper()
	assert.Error(t, err)
}
