package http

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lintang-b-s/trafficshed/pkg/engine"
	http_server "github.com/lintang-b-s/trafficshed/pkg/http/server"
	"github.com/lintang-b-s/trafficshed/pkg/util"
	"github.com/paulmach/orb/geojson"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type noopService struct{}

func (noopService) Trafficshed(ctx context.Context, lat, lon float64) (*engine.Result, *geojson.FeatureCollection, error) {
	return nil, nil, errors.New("not used")
}

func TestConfigFromViper(t *testing.T) {
	viper.Reset()
	defer viper.Reset()
	util.SetConfigDefaults()

	cfg := ConfigFromViper()
	assert.Equal(t, 6060, cfg.Port)
	assert.Equal(t, 1000*time.Second, cfg.Timeout)
	assert.False(t, cfg.RateLimit)
	assert.Equal(t, 4, cfg.Burst)
}

func TestServerStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := NewServer(zap.NewNop()).Use(ctx, http_server.Config{Port: 0, Timeout: time.Second}, noopService{})
	cancel()

	assert.ErrorIs(t, s.Wait(), context.Canceled)
}
