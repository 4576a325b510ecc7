package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/lintang-b-s/trafficshed/pkg"
	"github.com/lintang-b-s/trafficshed/pkg/geo"
	"github.com/lintang-b-s/trafficshed/pkg/metrics"
	"github.com/lintang-b-s/trafficshed/pkg/util"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

type OSRMConfig struct {
	URL            string
	Profile        string
	Direction      Direction
	Rate           float64 // requests per second, <= 0 disables limiting
	Burst          int
	Timeout        time.Duration
	TableChunkSize int
	Workers        int
}

func DefaultOSRMConfig() OSRMConfig {
	return OSRMConfig{
		URL:            "http://router.project-osrm.org",
		Profile:        "driving",
		Direction:      TOWARDS,
		Rate:           10,
		Burst:          5,
		Timeout:        30 * time.Second,
		TableChunkSize: pkg.DEFAULT_TABLE_CHUNK_SIZE,
		Workers:        pkg.DEFAULT_FALLBACK_WORKERS,
	}
}

// OSRM talks to the route & table services of an OSRM http server.
type OSRM struct {
	cfg     OSRMConfig
	client  *http.Client
	limiter *rate.Limiter
	log     *zap.Logger
}

func NewOSRM(cfg OSRMConfig, log *zap.Logger) *OSRM {
	if cfg.TableChunkSize <= 0 {
		cfg.TableChunkSize = pkg.DEFAULT_TABLE_CHUNK_SIZE
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.Rate > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.Rate), max(cfg.Burst, 1))
	}
	return &OSRM{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: limiter,
		log:     log,
	}
}

func (o *OSRM) Profile() string {
	return o.cfg.Profile
}

type osrmRouteResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Routes  []struct {
		Duration float64 `json:"duration"`
		Legs     []struct {
			Annotation struct {
				Nodes []int64 `json:"nodes"`
			} `json:"annotation"`
		} `json:"legs"`
	} `json:"routes"`
}

type osrmTableResponse struct {
	Code      string       `json:"code"`
	Message   string       `json:"message"`
	Durations [][]*float64 `json:"durations"`
}

func formatCoordinate(c geo.Coordinate) string {
	return fmt.Sprintf("%f,%f", c.Lon, c.Lat)
}

// Route. GET /route/v1/{profile}/{from};{to}?steps=true&annotations=true, node ids of the first leg.
func (o *OSRM) Route(ctx context.Context, from, to geo.Coordinate) (rt Route, err error) {
	start := time.Now()
	defer func() { metrics.ObserveOracleQuery("route", start, err) }()

	query := fmt.Sprintf("%s/route/v1/%s/%s;%s?steps=true&annotations=true",
		strings.TrimRight(o.cfg.URL, "/"), url.PathEscape(o.cfg.Profile), formatCoordinate(from), formatCoordinate(to))

	var resp osrmRouteResponse
	if err = o.get(ctx, query, &resp); err != nil {
		return Route{}, err
	}

	if resp.Code != "Ok" || len(resp.Routes) == 0 || len(resp.Routes[0].Legs) == 0 {
		return Route{}, util.WrapErrorf(nil, ErrNoRoute, "no route from %s to %s: %s %s",
			formatCoordinate(from), formatCoordinate(to), resp.Code, resp.Message)
	}

	return Route{
		Nodes:    resp.Routes[0].Legs[0].Annotation.Nodes,
		Duration: resp.Routes[0].Duration,
	}, nil
}

// TransitTimes. the table service is limited in number of coordinates, so origins are sent in chunks,
// each chunk prefixed with the destination at index 0.
func (o *OSRM) TransitTimes(ctx context.Context, dest geo.Coordinate, origins []geo.Coordinate) ([]float64, error) {
	times := make([]float64, len(origins))
	chunks := util.Chunks(origins, o.cfg.TableChunkSize)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.Workers)

	offset := 0
	for _, chunk := range chunks {
		chunk, chunkOffset := chunk, offset
		offset += len(chunk)
		if len(chunk) == 0 {
			continue
		}

		g.Go(func() error {
			durations, err := o.table(gctx, dest, chunk)
			if err != nil {
				return err
			}
			copy(times[chunkOffset:], durations)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return times, nil
}

func (o *OSRM) table(ctx context.Context, dest geo.Coordinate, chunk []geo.Coordinate) (durations []float64, err error) {
	start := time.Now()
	defer func() { metrics.ObserveOracleQuery("table", start, err) }()

	coords := make([]string, 0, len(chunk)+1)
	coords = append(coords, formatCoordinate(dest))
	for _, c := range chunk {
		coords = append(coords, formatCoordinate(c))
	}

	param := "destinations"
	if o.cfg.Direction == FROM {
		param = "sources"
	}
	query := fmt.Sprintf("%s/table/v1/%s/%s?%s=0",
		strings.TrimRight(o.cfg.URL, "/"), url.PathEscape(o.cfg.Profile), strings.Join(coords, ";"), param)

	var resp osrmTableResponse
	if err = o.get(ctx, query, &resp); err != nil {
		return nil, err
	}
	if resp.Code != "Ok" {
		return nil, util.WrapErrorf(nil, ErrUnexpectedStatus, "table service: %s %s", resp.Code, resp.Message)
	}

	durations = make([]float64, len(chunk))
	for i := range chunk {
		var d *float64
		if o.cfg.Direction == FROM {
			// durations are nested differently when the destination is the source
			if len(resp.Durations) != 1 || len(resp.Durations[0]) != len(chunk)+1 {
				return nil, util.WrapErrorf(nil, ErrMalformedReply, "table service returned %d rows", len(resp.Durations))
			}
			d = resp.Durations[0][i+1]
		} else {
			if len(resp.Durations) != len(chunk)+1 || len(resp.Durations[i+1]) == 0 {
				return nil, util.WrapErrorf(nil, ErrMalformedReply, "table service returned %d rows", len(resp.Durations))
			}
			d = resp.Durations[i+1][0]
		}

		if d == nil {
			durations[i] = math.NaN()
		} else {
			durations[i] = *d
		}
	}
	return durations, nil
}

func (o *OSRM) get(ctx context.Context, query string, out any) error {
	if err := o.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, query, nil)
	if err != nil {
		return err
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return fmt.Errorf("osrm request %s: %w", query, err)
	}
	defer resp.Body.Close()

	// osrm answers NoRoute & friends with a 400 and a json body
	if resp.StatusCode >= http.StatusInternalServerError {
		return util.WrapErrorf(nil, ErrUnexpectedStatus, "osrm request %s: status %d", query, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return util.WrapErrorf(err, ErrMalformedReply, "osrm request %s: status %d", query, resp.StatusCode)
	}

	if o.log != nil {
		o.log.Debug("osrm request", zap.String("query", query), zap.Int("status", resp.StatusCode))
	}
	return nil
}
