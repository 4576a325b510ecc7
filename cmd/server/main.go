package main

import (
	"context"
	"flag"

	"github.com/lintang-b-s/trafficshed/pkg/cache"
	"github.com/lintang-b-s/trafficshed/pkg/engine"
	"github.com/lintang-b-s/trafficshed/pkg/http"
	http_server "github.com/lintang-b-s/trafficshed/pkg/http/server"
	"github.com/lintang-b-s/trafficshed/pkg/http/usecases"
	"github.com/lintang-b-s/trafficshed/pkg/logger"
	"github.com/lintang-b-s/trafficshed/pkg/oracle"
	"github.com/lintang-b-s/trafficshed/pkg/osmparser"
	"github.com/lintang-b-s/trafficshed/pkg/util"
	"go.uber.org/zap"
)

var (
	configDir = flag.String("config", ".", "directory holding config.yaml")
	mapFile   = flag.String("map", "./data/map.osm.pbf", "openstreetmap extract (.osm.pbf, .osm or .osm.bz2)")
	maxRuns   = flag.Int64("max_runs", 2, "pipeline runs allowed at the same time")
)

func main() {
	flag.Parse()
	logger, err := logger.New()
	if err != nil {
		panic(err)
	}
	if err := util.ReadConfig(*configDir); err != nil {
		panic(err)
	}

	ctx, cleanup, err := NewContext()
	if err != nil {
		panic(err)
	}

	graph, err := osmparser.NewOSMParser(logger).Parse(ctx, *mapFile)
	if err != nil {
		panic(err)
	}

	store, err := cache.Open(cache.ConfigFromViper(), logger)
	if err != nil {
		panic(err)
	}

	osrmCfg, err := oracle.ConfigFromViper()
	if err != nil {
		panic(err)
	}
	osrm := oracle.NewOSRM(osrmCfg, logger)
	eng := engine.NewEngine(graph,
		cache.NewMatrix(osrm, store, osrm.Profile(), osrmCfg.Direction, logger),
		cache.NewRouter(osrm, store, osrm.Profile(), logger),
		engine.ConfigFromViper(), logger)

	trafficService := usecases.NewTrafficService(logger, eng, *maxRuns)
	api := http.NewServer(logger).Use(ctx, http.ConfigFromViper(), trafficService)

	signal := http_server.GracefulShutdown()
	logger.Info("trafficshed server stopping", zap.String("signal", signal.String()))

	cleanup()
	if err := api.Wait(); err != nil && err != context.Canceled {
		logger.Error("server stopped with error", zap.Error(err))
	}
	if err := store.Close(); err != nil {
		logger.Error("closing cache", zap.Error(err))
	}
}

func NewContext() (context.Context, func(), error) {
	ctx, cancel := context.WithCancel(context.Background())
	cb := func() {
		cancel()
	}

	return ctx, cb, nil
}
