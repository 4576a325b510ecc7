package router

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/justinas/alice"
	"github.com/lintang-b-s/trafficshed/pkg/http/router/controllers"
	router_helper "github.com/lintang-b-s/trafficshed/pkg/http/router/routerhelper"
	http_server "github.com/lintang-b-s/trafficshed/pkg/http/server"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type API struct {
	log     *zap.Logger
	limiter *rate.Limiter
}

func NewAPI(log *zap.Logger) *API {
	return &API{log: log}
}

// Handler builds the router and its middleware chain. with RateLimit set every request
// shares one token bucket of config.Rate requests per second.
func (api *API) Handler(config http_server.Config, trafficService controllers.TrafficService) http.Handler {
	router := httprouter.New()

	corsHandler := cors.New(cors.Options{ //nolint:gocritic // ignore
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link", "X-Run-Id"},
		AllowCredentials: true,
		MaxAge:           300, //nolint:mnd // ignore
	})

	router.Handler(http.MethodGet, "/metrics", promhttp.Handler())

	group := router_helper.NewRouteGroup(router, "/api")
	controllers.New(trafficService, api.log).Routes(group)

	mwChain := []alice.Constructor{corsHandler.Handler, api.recoverPanic, RealIP, Heartbeat("healthz"), Logger(api.log)}
	if config.RateLimit {
		api.limiter = rate.NewLimiter(rate.Limit(config.Rate), config.Burst)
		mwChain = append(mwChain, api.limit)
	}
	return alice.New(mwChain...).Then(router)
}

func (api *API) Run(
	ctx context.Context,
	config http_server.Config,
	trafficService controllers.TrafficService,
) error {
	api.log.Info("Run httprouter API")

	srv := http_server.New(ctx, api.Handler(config, trafficService), config)
	api.log.Info(fmt.Sprintf("API run on port %d", config.Port))

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		api.log.Info("HTTP server stopped", zap.Error(err))
		return err
	case <-ctx.Done():
		api.log.Info("Context canceled, shutting down server")
		_ = srv.Shutdown(context.Background())
		return ctx.Err()
	}
}
