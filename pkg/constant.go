package pkg

// next hop sentinels stored in Edge.NextHop
const (
	UNRESOLVED int64 = 0
	SINK       int64 = -1
)

const (
	DEFAULT_SEARCH_MAX_DEPTH        = 3
	DEFAULT_FALLBACK_BATCH_SIZE     = 25
	DEFAULT_FALLBACK_WORKERS        = 5
	DEFAULT_FALLBACK_MIN_ITER       = 5
	DEFAULT_FALLBACK_MAX_ITER       = 100
	DEFAULT_FALLBACK_BRIDGE_STEPS   = 500
	DEFAULT_PROPAGATION_LENGTH_UNIT = 50.0 // meter per extra car
	DEFAULT_TABLE_CHUNK_SIZE        = 100  // osrm table service limit
	DEFAULT_CACHE_TTL_HOURS         = 24 * 7
)

// road classes that should not carry through traffic unless a route explicitly uses them.
var IgnoredRoadClassPatterns = []string{
	"footway",
	"service",
	"path",
	"driveway",
}
