package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/lintang-b-s/trafficshed/pkg/cache"
	"github.com/lintang-b-s/trafficshed/pkg/engine"
	"github.com/lintang-b-s/trafficshed/pkg/logger"
	"github.com/lintang-b-s/trafficshed/pkg/oracle"
	"github.com/lintang-b-s/trafficshed/pkg/osmparser"
	"github.com/lintang-b-s/trafficshed/pkg/render"
	"github.com/lintang-b-s/trafficshed/pkg/util"
	"go.uber.org/zap"
)

var (
	configDir   = flag.String("config", ".", "directory holding config.yaml")
	mapFile     = flag.String("map", "./data/map.osm.pbf", "openstreetmap extract (.osm.pbf, .osm or .osm.bz2)")
	lat         = flag.Float64("lat", 0, "destination latitude")
	lon         = flag.Float64("lon", 0, "destination longitude")
	destination = flag.Int64("node", 0, "destination osm node id, overrides lat/lon")
	noFallback  = flag.Bool("no_fallback", false, "skip the routing oracle fallback")
	geojsonOut  = flag.String("out", "./data/trafficshed.geojson", "geojson output")
	tableOut    = flag.String("table", "", "optional bzip2 edge table output")
)

func main() {
	flag.Parse()
	logger, err := logger.New()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	if err := run(logger); err != nil {
		logger.Fatal("trafficshed failed", zap.Error(err))
	}
}

func run(logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := util.ReadConfig(*configDir); err != nil {
		return err
	}

	graph, err := osmparser.NewOSMParser(logger).Parse(ctx, *mapFile)
	if err != nil {
		return err
	}

	store, err := cache.Open(cache.ConfigFromViper(), logger)
	if err != nil {
		return err
	}
	defer store.Close()

	osrmCfg, err := oracle.ConfigFromViper()
	if err != nil {
		return err
	}
	osrm := oracle.NewOSRM(osrmCfg, logger)
	matrix := cache.NewMatrix(osrm, store, osrm.Profile(), osrmCfg.Direction, logger)
	var router oracle.Router
	if !*noFallback {
		router = cache.NewRouter(osrm, store, osrm.Profile(), logger)
	}

	eng := engine.NewEngine(graph, matrix, router, engine.ConfigFromViper(), logger)

	var res *engine.Result
	if *destination != 0 {
		res, err = eng.Run(ctx, *destination)
	} else {
		res, err = eng.RunAt(ctx, *lat, *lon)
	}
	if err != nil {
		return err
	}

	out, err := os.Create(*geojsonOut)
	if err != nil {
		return err
	}
	defer out.Close()
	if err := render.WriteGeoJSON(out, res.Table); err != nil {
		return err
	}

	if *tableOut != "" {
		if err := res.Table.WriteEdgeTable(*tableOut); err != nil {
			return err
		}
	}

	logger.Sugar().Infof("trafficshed towards node %d written to %s (run %s, %v)",
		res.Destination, *geojsonOut, res.RunID, res.Duration)
	return nil
}
