package cache

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"

	"github.com/lintang-b-s/trafficshed/pkg/geo"
	"github.com/lintang-b-s/trafficshed/pkg/oracle"
	"github.com/lintang-b-s/trafficshed/pkg/util"
	"go.uber.org/zap"
)

func coordKey(c geo.Coordinate) string {
	return fmt.Sprintf("%f,%f", c.Lon, c.Lat)
}

// Router caches successful route answers of the wrapped router. Failures are never cached.
type Router struct {
	next    oracle.Router
	store   *Store
	profile string
	log     *zap.Logger
}

func NewRouter(next oracle.Router, store *Store, profile string, log *zap.Logger) *Router {
	return &Router{next: next, store: store, profile: profile, log: log}
}

func (r *Router) Route(ctx context.Context, from, to geo.Coordinate) (oracle.Route, error) {
	key := fmt.Sprintf("route:%s:%s;%s", r.profile, coordKey(from), coordKey(to))

	if val, ok, err := r.store.Get(key); err != nil {
		r.log.Warn("route cache lookup failed", zap.String("key", key), zap.Error(err))
	} else if ok {
		var rt oracle.Route
		if err := json.Unmarshal(val, &rt); err == nil {
			return rt, nil
		}
	}

	rt, err := r.next.Route(ctx, from, to)
	if err != nil {
		return oracle.Route{}, err
	}

	val, err := json.Marshal(rt)
	if err == nil {
		err = r.store.Set(key, val)
	}
	if err != nil {
		r.log.Warn("route cache store failed", zap.String("key", key), zap.Error(err))
	}
	return rt, nil
}

// Matrix caches travel times per (destination, origin) pair so a rerun only asks the wrapped matrix
// for the origins it has not seen.
type Matrix struct {
	next      oracle.TravelTimeMatrix
	store     *Store
	profile   string
	direction oracle.Direction
	log       *zap.Logger
}

func NewMatrix(next oracle.TravelTimeMatrix, store *Store, profile string, direction oracle.Direction,
	log *zap.Logger) *Matrix {
	return &Matrix{next: next, store: store, profile: profile, direction: direction, log: log}
}

func (m *Matrix) key(dest, origin geo.Coordinate) string {
	return fmt.Sprintf("table:%s:%s:%s:%s", m.profile, m.direction, coordKey(dest), coordKey(origin))
}

func (m *Matrix) TransitTimes(ctx context.Context, dest geo.Coordinate, origins []geo.Coordinate) ([]float64, error) {
	times := make([]float64, len(origins))
	missing := make([]int, 0)

	for i, origin := range origins {
		val, ok, err := m.store.Get(m.key(dest, origin))
		if err != nil || !ok || len(val) != 8 {
			missing = append(missing, i)
			continue
		}
		times[i] = math.Float64frombits(binary.LittleEndian.Uint64(val))
	}

	if len(missing) == 0 {
		return times, nil
	}

	query := make([]geo.Coordinate, len(missing))
	for j, i := range missing {
		query[j] = origins[i]
	}
	fetched, err := m.next.TransitTimes(ctx, dest, query)
	if err != nil {
		return nil, err
	}
	if len(fetched) != len(query) {
		return nil, util.WrapErrorf(nil, oracle.ErrMalformedReply, "asked for %d transit times, got %d",
			len(query), len(fetched))
	}

	buf := make([]byte, 8)
	for j, i := range missing {
		times[i] = fetched[j]
		binary.LittleEndian.PutUint64(buf, math.Float64bits(fetched[j]))
		if err := m.store.Set(m.key(dest, origins[i]), append([]byte(nil), buf...)); err != nil {
			m.log.Warn("table cache store failed", zap.Error(err))
		}
	}

	m.log.Debug("transit times", zap.Int("cached", len(origins)-len(missing)), zap.Int("fetched", len(missing)))
	return times, nil
}
