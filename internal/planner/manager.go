// Package planner wires the timetable index, transfer graph, stop resolver,
// connection scan and scoring into the initialize and plan operations.
package planner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"csaplanner.dev/internal/csa"
	"csaplanner.dev/internal/legs"
	"csaplanner.dev/internal/logging"
	"csaplanner.dev/internal/nearby"
	"csaplanner.dev/internal/scoring"
	"csaplanner.dev/internal/timetable"
	"csaplanner.dev/internal/utils"
	"csaplanner.dev/transitdb"
)

// WalkOnlyKey is the route key of a direct walk.
const WalkOnlyKey = "walk"

// SnapshotSource provides the timetable content to build from.
type SnapshotSource interface {
	Load(ctx context.Context) (*transitdb.Snapshot, error)
}

// engine is everything built by Initialize. It is immutable once published.
type engine struct {
	network   *Network
	index     *timetable.Index
	scanner   *csa.Scanner
	resolver  *nearby.Resolver
	populator *legs.Populator
	builtAt   time.Time
	buildTime time.Duration
}

// Manager owns the built planner state. Queries are safe for concurrent use.
type Manager struct {
	config  Config
	source  SnapshotSource
	service nearby.DistanceService
	logger  *slog.Logger

	initMu sync.Mutex
	engine atomic.Pointer[engine]
}

// NewManager creates an uninitialized manager. service may be nil, in which
// case walk distances are geodesic only.
func NewManager(config Config, source SnapshotSource, service nearby.DistanceService, logger *slog.Logger) *Manager {
	return &Manager{config: config, source: source, service: service, logger: logger}
}

// Config returns the planner configuration.
func (m *Manager) Config() Config {
	return m.config
}

// Initialized reports whether Initialize has completed.
func (m *Manager) Initialized() bool {
	return m.engine.Load() != nil
}

// Initialize loads the snapshot and builds the indices. Concurrent callers
// wait for a single build; later calls return immediately. A failed build
// may be retried.
func (m *Manager) Initialize(ctx context.Context) error {
	if m.Initialized() {
		return nil
	}

	m.initMu.Lock()
	defer m.initMu.Unlock()
	if m.Initialized() {
		return nil
	}

	start := time.Now()
	snapshot, err := m.source.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading snapshot: %w", err)
	}

	network, err := Preprocess(snapshot, m.config.transferOptions())
	if err != nil {
		return err
	}
	if network.Stats.SkippedRoutes > 0 || network.Stats.NegativeHops > 0 {
		logging.LogWarning(m.logger, "preprocessing skipped timetable rows",
			slog.Int("skipped_routes", network.Stats.SkippedRoutes),
			slog.Int("negative_hops", network.Stats.NegativeHops),
			slog.String("component", "planner"))
	}

	index := timetable.NewIndex(network.RidesByStop, network.StopToGroup, m.logger)
	conns := index.Connections()

	e := &engine{
		network:  network,
		index:    index,
		scanner:  csa.NewScanner(conns, network.Graph, m.config.scanParams()),
		resolver: nearby.NewResolver(network.Spatial, m.service, m.config.resolverOptions(), m.logger),
		populator: legs.NewPopulator(network.StopByID, network.Patterns, network.Geometry,
			m.config.WalkSpeed, m.config.IntraGroupMinutes),
		builtAt:   time.Now(),
		buildTime: time.Since(start),
	}
	m.engine.Store(e)

	logging.LogOperation(m.logger, "planner_initialized",
		slog.Int("stops", network.Stats.Stops),
		slog.Int("groups", network.Stats.Groups),
		slog.Int("rides", network.Stats.Rides),
		slog.Int("connections", len(conns)),
		slog.Int("transfer_edges", network.Stats.TransferEdges),
		slog.Duration("duration", e.buildTime),
		slog.String("component", "planner"))
	return nil
}

// Request is a journey query. Minutes are minutes after midnight and the
// departure range is [StartMinute, EndMinute).
type Request struct {
	OriginLat   float64
	OriginLon   float64
	DestLat     float64
	DestLon     float64
	StartMinute int
	EndMinute   int
	// SortByScore orders the result best first instead of by departure.
	SortByScore bool
}

// Validate checks coordinate and time ranges.
func (r Request) Validate() error {
	fields := utils.ValidateLocationParams(r.OriginLat, r.OriginLon, "lat1", "lon1")
	maps.Copy(fields, utils.ValidateLocationParams(r.DestLat, r.DestLon, "lat2", "lon2"))
	maps.Copy(fields, utils.ValidateTimeRange(r.StartMinute, r.EndMinute))
	if len(fields) > 0 {
		return &FieldError{Fields: fields}
	}
	return nil
}

// Itinerary is a selected route with its cost and display segments.
type Itinerary struct {
	Route     csa.Route
	Score     int
	Breakdown scoring.Breakdown
	Segments  []legs.Segment
}

// WalkOnly reports whether the itinerary uses no vehicle.
func (it *Itinerary) WalkOnly() bool {
	return len(it.Route.Legs) == 0
}

// DepartureMinute is when the traveller leaves the origin coordinates.
func (it *Itinerary) DepartureMinute() int {
	if it.WalkOnly() {
		return it.Route.Departure
	}
	return it.Route.Departure - it.Route.InitialWalk
}

// ArrivalMinute is when the traveller reaches the destination coordinates.
func (it *Itinerary) ArrivalMinute() int {
	if it.WalkOnly() {
		return it.Route.Arrival
	}
	return it.Route.Arrival + it.Route.FinalWalk
}

// Result is the outcome of a query.
type Result struct {
	Itineraries  []Itinerary
	Origins      int
	Destinations int
	Passes       int
	Candidates   int
}

// PlanJourney scans every (origin stop, window) pair of the request, pools
// the routes, then scores, deduplicates and expands them.
// Missing nearby stops are reported through ErrNoOriginStops and
// ErrNoDestinationStops unless a direct walk is possible.
func (m *Manager) PlanJourney(ctx context.Context, req Request) (*Result, error) {
	e := m.engine.Load()
	if e == nil {
		return nil, ErrNotInitialized
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	logger := m.logger
	start := time.Now()

	origin := utils.Coordinates{Lat: req.OriginLat, Lon: req.OriginLon}
	destination := utils.Coordinates{Lat: req.DestLat, Lon: req.DestLon}

	var origins, destinations []nearby.Candidate
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		origins = e.resolver.Resolve(gctx, origin.Lat, origin.Lon)
		return nil
	})
	g.Go(func() error {
		destinations = e.resolver.Resolve(gctx, destination.Lat, destination.Lon)
		return nil
	})
	_ = g.Wait()

	if m.config.MaxOrigins > 0 && len(origins) > m.config.MaxOrigins {
		origins = origins[:m.config.MaxOrigins]
	}

	walk, walkOK := m.walkOnly(req)
	result := &Result{Origins: len(origins), Destinations: len(destinations)}

	switch {
	case len(origins) == 0 && !walkOK:
		return nil, ErrNoOriginStops
	case len(destinations) == 0 && !walkOK:
		return nil, ErrNoDestinationStops
	}

	var routes []csa.Route
	if len(origins) > 0 && len(destinations) > 0 {
		var err error
		routes, result.Passes, err = m.scanAll(ctx, e, req, origins, destinations)
		if err != nil {
			logging.LogError(logger, "journey scan failed", err,
				slog.String("component", "planner"))
			return nil, err
		}
	}
	result.Candidates = len(routes)

	weights := m.config.Scoring
	selected := weights.FilterAndDeduplicate(weights.ScoreAll(routes))
	if walkOK {
		scored := scoring.Scored{Route: walk, Score: weights.Score(&walk)}
		if len(selected) == 0 || float64(scored.Score) <= float64(selected[0].Score)*weights.FilterFactor {
			selected = append(selected, scored)
		}
	}
	if !req.SortByScore {
		scoring.ByDeparture(selected)
	}

	result.Itineraries = make([]Itinerary, len(selected))
	for i, s := range selected {
		route := s.Route
		result.Itineraries[i] = Itinerary{
			Route:     route,
			Score:     s.Score,
			Breakdown: weights.Explain(&route),
			Segments:  e.populator.Segments(&route, origin, destination),
		}
	}

	logging.LogOperation(logger, "journey_planned",
		slog.Int("origins", result.Origins),
		slog.Int("destinations", result.Destinations),
		slog.Int("passes", result.Passes),
		slog.Int("candidates", result.Candidates),
		slog.Int("itineraries", len(result.Itineraries)),
		slog.Duration("duration", time.Since(start)),
		slog.String("component", "planner"))
	return result, nil
}

// walkOnly builds the direct walk when the destination is close enough.
func (m *Manager) walkOnly(req Request) (csa.Route, bool) {
	if !m.config.IncludeWalkOnly {
		return csa.Route{}, false
	}
	dist := utils.Haversine(req.OriginLat, req.OriginLon, req.DestLat, req.DestLon)
	if dist > m.config.MaxWalkMeters {
		return csa.Route{}, false
	}
	minutes := utils.WalkMinutes(dist, m.config.WalkSpeed)
	return csa.Route{
		InitialWalk:         minutes,
		InitialWalkDistance: dist,
		Departure:           req.StartMinute,
		Arrival:             req.StartMinute + minutes,
		Key:                 WalkOnlyKey,
		WindowStart:         req.StartMinute,
	}, true
}

// scanAll runs one pass per origin and window and pools their routes.
func (m *Manager) scanAll(ctx context.Context, e *engine, req Request, origins, destinations []nearby.Candidate) ([]csa.Route, int, error) {
	dests := make(map[timetable.StopID]csa.Endpoint, len(destinations))
	for _, d := range destinations {
		dests[d.StopID()] = csa.Endpoint{Stop: d.StopID(), WalkTime: d.WalkTime, WalkDistance: d.WalkDistance}
	}

	// window entry points are shared by all origins
	conns := e.scanner.Connections()
	var windows []csa.Pass
	idx := timetable.FindWindowStart(conns, req.StartMinute, 0)
	for t := req.StartMinute; t < req.EndMinute; t += m.config.WindowMinutes {
		idx = timetable.FindWindowStart(conns, t, idx)
		windows = append(windows, csa.Pass{WindowStart: t, StartIndex: idx})
	}

	passes := make([]csa.Pass, 0, len(origins)*len(windows))
	for _, o := range origins {
		for _, w := range windows {
			w.Origin = csa.Endpoint{Stop: o.StopID(), WalkTime: o.WalkTime, WalkDistance: o.WalkDistance}
			passes = append(passes, w)
		}
	}

	limit := m.config.MaxConcurrentPasses
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}

	results := make([][]csa.Route, len(passes))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, pass := range passes {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			routes, err := e.scanner.Scan(pass, dests).Routes()
			if err != nil {
				return fmt.Errorf("origin %d window %d: %w", pass.Origin.Stop, pass.WindowStart, err)
			}
			results[i] = routes
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, len(passes), err
	}

	var pooled []csa.Route
	for _, r := range results {
		pooled = append(pooled, r...)
	}
	return pooled, len(passes), nil
}

// Health describes the built state.
type Health struct {
	Initialized    bool
	Stops          int
	Groups         int
	Connections    int
	TransferEdges  int
	Patterns       int
	DroppedRides   int
	UngroupedStops int
	BuiltAt        time.Time
	BuildTime      time.Duration
}

// Health returns the index sizes, or a zero value before Initialize.
func (m *Manager) Health() Health {
	e := m.engine.Load()
	if e == nil {
		return Health{}
	}
	stats := e.index.Stats()
	return Health{
		Initialized:    true,
		Stops:          e.network.Stats.Stops,
		Groups:         e.network.Stats.Groups,
		Connections:    stats.Connections,
		TransferEdges:  e.network.Stats.TransferEdges,
		Patterns:       len(e.network.Patterns),
		DroppedRides:   stats.DroppedRides,
		UngroupedStops: len(stats.UngroupedStops),
		BuiltAt:        e.builtAt,
		BuildTime:      e.buildTime,
	}
}

// Stop looks up a stop by id.
func (m *Manager) Stop(id timetable.StopID) (timetable.Stop, error) {
	e := m.engine.Load()
	if e == nil {
		return timetable.Stop{}, ErrNotInitialized
	}
	s, ok := e.network.StopByID[id]
	if !ok {
		return timetable.Stop{}, ErrStopNotFound
	}
	return s, nil
}

// StopsNear returns stops within the walk cap of a point, nearest first,
// using geodesic distances only.
func (m *Manager) StopsNear(lat, lon float64) ([]nearby.Candidate, error) {
	e := m.engine.Load()
	if e == nil {
		return nil, ErrNotInitialized
	}
	return e.resolver.Geodesic(lat, lon), nil
}

// IsInternal reports whether err signals a broken planner invariant rather
// than a problem with the request.
func IsInternal(err error) bool {
	return errors.Is(err, csa.ErrBrokenChain)
}

// Inspect exposes the built network and connection array for diagnostics.
// Callers must not modify either.
func (m *Manager) Inspect() (*Network, []timetable.Connection, error) {
	e := m.engine.Load()
	if e == nil {
		return nil, nil, ErrNotInitialized
	}
	return e.network, e.scanner.Connections(), nil
}
