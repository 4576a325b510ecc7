package http

import (
	"context"

	http_router "github.com/lintang-b-s/trafficshed/pkg/http/router"
	"github.com/lintang-b-s/trafficshed/pkg/http/router/controllers"
	http_server "github.com/lintang-b-s/trafficshed/pkg/http/server"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type Server struct {
	Log *zap.Logger
	g   *errgroup.Group
}

func NewServer(log *zap.Logger) *Server {
	return &Server{Log: log}
}

// ConfigFromViper reads the api.* keys.
func ConfigFromViper() http_server.Config {
	return http_server.Config{
		Port:      viper.GetInt("api.port"),
		Timeout:   viper.GetDuration("api.timeout"),
		RateLimit: viper.GetBool("api.rate_limit"),
		Rate:      viper.GetFloat64("api.rate"),
		Burst:     viper.GetInt("api.burst"),
	}
}

// Use starts the API in the background; Wait returns its error once ctx is cancelled.
func (s *Server) Use(
	ctx context.Context,
	config http_server.Config,
	trafficService controllers.TrafficService,
) *Server {
	api := http_router.NewAPI(s.Log)

	s.g = &errgroup.Group{}
	s.g.Go(func() error {
		return api.Run(ctx, config, trafficService)
	})
	return s
}

func (s *Server) Wait() error {
	if s.g == nil {
		return nil
	}
	return s.g.Wait()
}
