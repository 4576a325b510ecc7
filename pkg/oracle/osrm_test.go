package oracle

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/lintang-b-s/trafficshed/pkg/geo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestOSRM(t *testing.T, handler http.HandlerFunc, modify func(cfg *OSRMConfig)) *OSRM {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := DefaultOSRMConfig()
	cfg.URL = srv.URL
	cfg.Rate = 0
	cfg.TableChunkSize = 2
	if modify != nil {
		modify(&cfg)
	}
	return NewOSRM(cfg, zap.NewNop())
}

func TestOSRMRoute(t *testing.T) {
	var gotPath, gotQuery string
	o := newTestOSRM(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		fmt.Fprint(w, `{"code":"Ok","routes":[{"duration":42.5,"legs":[{"annotation":{"nodes":[10,11,12]}}]}]}`)
	}, nil)

	rt, err := o.Route(context.Background(), geo.NewCoordinate(-7.76, 110.37), geo.NewCoordinate(-7.77, 110.38))
	require.NoError(t, err)

	assert.Equal(t, "/route/v1/driving/110.370000,-7.760000;110.380000,-7.770000", gotPath)
	assert.Equal(t, "steps=true&annotations=true", gotQuery)
	assert.Equal(t, []int64{10, 11, 12}, rt.Nodes)
	assert.Equal(t, 42.5, rt.Duration)
}

func TestOSRMRouteFailures(t *testing.T) {
	testCases := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{name: "no route", status: http.StatusBadRequest, body: `{"code":"NoRoute","message":"Impossible route"}`, wantErr: ErrNoRoute},
		{name: "empty routes", status: http.StatusOK, body: `{"code":"Ok","routes":[]}`, wantErr: ErrNoRoute},
		{name: "garbage", status: http.StatusOK, body: `<html>`, wantErr: ErrMalformedReply},
		{name: "server error", status: http.StatusBadGateway, body: ``, wantErr: ErrUnexpectedStatus},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			o := newTestOSRM(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}, nil)

			_, err := o.Route(context.Background(), geo.NewCoordinate(0, 0), geo.NewCoordinate(0, 1))
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

// tableHandler answers with duration = 10 * lon of each coordinate, null for the origin at lon 99.
func tableHandler(t *testing.T, mu *sync.Mutex, queries *[]string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		*queries = append(*queries, r.URL.RawQuery)
		mu.Unlock()

		coords := strings.Split(strings.TrimPrefix(r.URL.Path, "/table/v1/driving/"), ";")
		n := len(coords)
		values := make([]string, n)
		for i := range coords {
			if strings.HasPrefix(coords[i], "99.") {
				values[i] = "null"
				continue
			}
			var lon, lat float64
			_, err := fmt.Sscanf(coords[i], "%f,%f", &lon, &lat)
			assert.NoError(t, err)
			values[i] = fmt.Sprintf("%f", lon*10)
		}

		if r.URL.Query().Get("sources") == "0" {
			fmt.Fprintf(w, `{"code":"Ok","durations":[[%s]]}`, strings.Join(values, ","))
			return
		}
		rows := make([]string, n)
		for i := range rows {
			rows[i] = "[" + values[i] + "]"
		}
		fmt.Fprintf(w, `{"code":"Ok","durations":[%s]}`, strings.Join(rows, ","))
	}
}

func TestOSRMTransitTimes(t *testing.T) {
	origins := []geo.Coordinate{
		geo.NewCoordinate(0, 1),
		geo.NewCoordinate(0, 2),
		geo.NewCoordinate(0, 99),
		geo.NewCoordinate(0, 4),
		geo.NewCoordinate(0, 5),
	}

	for _, dir := range []Direction{TOWARDS, FROM} {
		t.Run(string(dir), func(t *testing.T) {
			var mu sync.Mutex
			queries := []string{}
			o := newTestOSRM(t, tableHandler(t, &mu, &queries), func(cfg *OSRMConfig) {
				cfg.Direction = dir
			})

			times, err := o.TransitTimes(context.Background(), geo.NewCoordinate(0, 0), origins)
			require.NoError(t, err)
			require.Len(t, times, len(origins))

			assert.InDelta(t, 10.0, times[0], 1e-6)
			assert.InDelta(t, 20.0, times[1], 1e-6)
			assert.True(t, math.IsNaN(times[2]))
			assert.InDelta(t, 40.0, times[3], 1e-6)
			assert.InDelta(t, 50.0, times[4], 1e-6)

			assert.Len(t, queries, 3)
			param := "destinations=0"
			if dir == FROM {
				param = "sources=0"
			}
			for _, q := range queries {
				assert.Equal(t, param, q)
			}
		})
	}
}

func TestOSRMTransitTimesError(t *testing.T) {
	o := newTestOSRM(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"code":"InvalidQuery","message":"bad"}`)
	}, nil)

	_, err := o.TransitTimes(context.Background(), geo.NewCoordinate(0, 0), []geo.Coordinate{geo.NewCoordinate(0, 1)})
	assert.True(t, errors.Is(err, ErrUnexpectedStatus))
}

func TestParseDirection(t *testing.T) {
	d, err := ParseDirection("from")
	require.NoError(t, err)
	assert.Equal(t, FROM, d)

	d, err = ParseDirection("")
	require.NoError(t, err)
	assert.Equal(t, TOWARDS, d)

	_, err = ParseDirection("sideways")
	assert.Error(t, err)
}
