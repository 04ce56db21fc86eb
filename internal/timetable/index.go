package timetable

import (
	"log/slog"
	"sync"
	"time"

	"csaplanner.dev/internal/logging"
)

// Index is the lazily built, process-wide connection array. It is safe for
// concurrent use: the first caller of Connections builds it, later callers
// share the read-only result.
type Index struct {
	rides  map[StopID][]Ride
	groups map[StopID]GroupID
	logger *slog.Logger

	once  sync.Once
	conns []Connection
	stats BuildStats
}

// NewIndex prepares an index over the given rides. Nothing is built until
// Connections is first called.
func NewIndex(ridesByStop map[StopID][]Ride, stopToGroup map[StopID]GroupID, logger *slog.Logger) *Index {
	return &Index{
		rides:  ridesByStop,
		groups: stopToGroup,
		logger: logger,
	}
}

// Connections returns the sorted connection array. Callers must not modify it.
func (idx *Index) Connections() []Connection {
	idx.once.Do(idx.build)
	return idx.conns
}

// Stats returns the build statistics, building the index if needed.
func (idx *Index) Stats() BuildStats {
	idx.once.Do(idx.build)
	return idx.stats
}

func (idx *Index) build() {
	start := time.Now()
	idx.conns, idx.stats = BuildConnections(idx.rides, idx.groups)

	if idx.stats.DroppedRides > 0 {
		logging.LogWarning(idx.logger, "rides dropped: origin stop has no group",
			slog.Int("dropped_rides", idx.stats.DroppedRides),
			slog.Int("ungrouped_stops", len(idx.stats.UngroupedStops)),
			slog.String("component", "timetable"))
	}

	logging.LogOperation(idx.logger, "connection_index_built",
		slog.Int("connections", idx.stats.Connections),
		slog.Duration("duration", time.Since(start)),
		slog.String("component", "timetable"))

	// the source maps are no longer needed once flattened
	idx.rides = nil
	idx.groups = nil
}
