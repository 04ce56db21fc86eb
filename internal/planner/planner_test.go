package planner

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"csaplanner.dev/internal/legs"
	"csaplanner.dev/internal/logging"
	"csaplanner.dev/internal/timetable"
	"csaplanner.dev/transitdb"
)

type snapshotSource struct {
	snapshot *transitdb.Snapshot
	err      error
	loads    atomic.Int32
}

func (s *snapshotSource) Load(ctx context.Context) (*transitdb.Snapshot, error) {
	s.loads.Add(1)
	time.Sleep(5 * time.Millisecond)
	return s.snapshot, s.err
}

func groupID(id int64) *int64 {
	return &id
}

// twoStopLine is a bus every 30 minutes between two stops about 500 m apart.
func twoStopLine() *transitdb.Snapshot {
	s := &transitdb.Snapshot{
		StopGroups: []transitdb.StopGroup{{ID: 1, Name: "North"}, {ID: 2, Name: "South"}},
		Stops: []transitdb.Stop{
			{ID: 1, SourceID: "N", GroupID: groupID(1), Lat: 52.0, Lon: 21.0},
			{ID: 2, SourceID: "S", GroupID: groupID(2), Lat: 52.0045, Lon: 21.0},
		},
		LineTypes:       []transitdb.LineType{{ID: 4, NameSingular: "bus", NamePlural: "buses"}},
		Lines:           []transitdb.Line{{ID: 1, Name: "10", LineTypeID: 4}},
		Routes:          []transitdb.Route{{ID: 1, LineID: 1}},
		DepartureRoutes: []transitdb.DepartureRoute{{ID: 1, RouteID: 1, Signature: "South", Color: "#ff0000"}},
		FullRoutes: []transitdb.FullRouteStop{
			{ID: 1, RouteID: 1, StopID: 1, StopNumber: 1},
			{ID: 2, RouteID: 1, StopID: 2, StopNumber: 2, TravelTime: 10},
		},
	}
	for t := 480; t <= 690; t += 30 {
		s.Timetables = append(s.Timetables, transitdb.Timetable{DepartureRouteID: 1, DepartureTime: t})
	}
	return s
}

// sameGroup has two platforms of one group and a bus leaving to a far stop.
func sameGroup() *transitdb.Snapshot {
	return &transitdb.Snapshot{
		StopGroups: []transitdb.StopGroup{{ID: 1, Name: "Square"}, {ID: 2, Name: "Depot"}},
		Stops: []transitdb.Stop{
			{ID: 1, GroupID: groupID(1), Lat: 52.0, Lon: 21.0},
			{ID: 2, GroupID: groupID(1), Lat: 52.0, Lon: 21.0004},
			{ID: 3, GroupID: groupID(2), Lat: 52.03, Lon: 21.0},
		},
		LineTypes:       []transitdb.LineType{{ID: 4, NameSingular: "bus", NamePlural: "buses"}},
		Lines:           []transitdb.Line{{ID: 1, Name: "7", LineTypeID: 4}},
		Routes:          []transitdb.Route{{ID: 1, LineID: 1}},
		DepartureRoutes: []transitdb.DepartureRoute{{ID: 1, RouteID: 1}},
		FullRoutes: []transitdb.FullRouteStop{
			{ID: 1, RouteID: 1, StopID: 1, StopNumber: 1},
			{ID: 2, RouteID: 1, StopID: 3, StopNumber: 2, TravelTime: 8},
		},
		Timetables: []transitdb.Timetable{{DepartureRouteID: 1, DepartureTime: 485}},
	}
}

func newManager(t *testing.T, s *transitdb.Snapshot, mutate func(*Config)) *Manager {
	t.Helper()
	cfg := DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	m := NewManager(cfg, &snapshotSource{snapshot: s}, nil, logging.NewStructuredLogger(io.Discard, slog.LevelInfo))
	require.NoError(t, m.Initialize(context.Background()))
	return m
}

func TestPlanJourneyHeadway(t *testing.T) {
	m := newManager(t, twoStopLine(), nil)

	res, err := m.PlanJourney(context.Background(), Request{
		OriginLat: 52.0, OriginLon: 21.0,
		DestLat: 52.0045, DestLon: 21.0,
		StartMinute: 480, EndMinute: 600,
	})
	require.NoError(t, err)
	require.Len(t, res.Itineraries, 5)

	for i, it := range res.Itineraries {
		assert.Equal(t, 480+30*i, it.Route.Departure)
		assert.Equal(t, 490+30*i, it.Route.Arrival)
		assert.Equal(t, 0, it.Route.Transfers)
		assert.Equal(t, 10, it.Score)
		assert.False(t, it.WalkOnly())
		require.Len(t, it.Segments, 1)
		assert.Equal(t, legs.Transit, it.Segments[0].Kind)
	}
	assert.Equal(t, "10-480-1", res.Itineraries[0].Route.Key)
	assert.Equal(t, 2, res.Origins)
	assert.Equal(t, 2, res.Destinations)
	assert.Equal(t, 2*12, res.Passes)
}

func TestPlanJourneySortByScore(t *testing.T) {
	m := newManager(t, twoStopLine(), nil)

	res, err := m.PlanJourney(context.Background(), Request{
		OriginLat: 52.0, OriginLon: 21.0,
		DestLat: 52.0045, DestLon: 21.0,
		StartMinute: 480, EndMinute: 540,
		SortByScore: true,
	})
	require.NoError(t, err)
	require.NotEmpty(t, res.Itineraries)
	for i := 1; i < len(res.Itineraries); i++ {
		assert.LessOrEqual(t, res.Itineraries[i-1].Score, res.Itineraries[i].Score)
	}
}

func TestPlanJourneySameGroup(t *testing.T) {
	req := Request{
		OriginLat: 52.0, OriginLon: 21.0,
		DestLat: 52.0, DestLon: 21.0004,
		StartMinute: 480, EndMinute: 520,
	}

	t.Run("direct walk", func(t *testing.T) {
		m := newManager(t, sameGroup(), nil)
		res, err := m.PlanJourney(context.Background(), req)
		require.NoError(t, err)
		require.Len(t, res.Itineraries, 1)

		it := res.Itineraries[0]
		assert.True(t, it.WalkOnly())
		assert.Equal(t, WalkOnlyKey, it.Route.Key)
		assert.Equal(t, 0, it.Route.Transfers)
		assert.Empty(t, it.Route.Legs)
		assert.Equal(t, 480, it.DepartureMinute())
		assert.Equal(t, 481, it.ArrivalMinute())
		require.Len(t, it.Segments, 1)
		assert.Equal(t, legs.Walk, it.Segments[0].Kind)
	})

	t.Run("no route without walking", func(t *testing.T) {
		m := newManager(t, sameGroup(), func(c *Config) { c.IncludeWalkOnly = false })
		res, err := m.PlanJourney(context.Background(), req)
		require.NoError(t, err)
		assert.Empty(t, res.Itineraries)
		assert.Zero(t, res.Candidates)
	})
}

func TestPlanJourneyErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("not initialized", func(t *testing.T) {
		m := NewManager(DefaultConfig(), &snapshotSource{snapshot: twoStopLine()}, nil, nil)
		_, err := m.PlanJourney(ctx, Request{StartMinute: 0, EndMinute: 10})
		assert.ErrorIs(t, err, ErrNotInitialized)
		assert.False(t, m.Health().Initialized)
	})

	m := newManager(t, twoStopLine(), nil)

	t.Run("invalid fields", func(t *testing.T) {
		_, err := m.PlanJourney(ctx, Request{OriginLat: 95, OriginLon: 21, DestLat: 52, DestLon: 21, StartMinute: 600, EndMinute: 500})
		require.ErrorIs(t, err, ErrInvalidRequest)

		var fe *FieldError
		require.True(t, errors.As(err, &fe))
		assert.Contains(t, fe.Fields, "lat1")
		assert.Contains(t, fe.Fields, "endTime")
	})

	t.Run("no origin stops", func(t *testing.T) {
		_, err := m.PlanJourney(ctx, Request{OriginLat: 53, OriginLon: 21, DestLat: 52.0045, DestLon: 21, StartMinute: 480, EndMinute: 500})
		assert.ErrorIs(t, err, ErrNoOriginStops)
	})

	t.Run("no destination stops", func(t *testing.T) {
		_, err := m.PlanJourney(ctx, Request{OriginLat: 52, OriginLon: 21, DestLat: 53, DestLon: 21, StartMinute: 480, EndMinute: 500})
		assert.ErrorIs(t, err, ErrNoDestinationStops)
	})
}

func TestInitializeOnce(t *testing.T) {
	src := &snapshotSource{snapshot: twoStopLine()}
	m := NewManager(DefaultConfig(), src, nil, nil)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, m.Initialize(context.Background()))
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), src.loads.Load())
	h := m.Health()
	assert.True(t, h.Initialized)
	assert.Equal(t, 2, h.Stops)
	assert.Equal(t, 8, h.Connections)
}

func TestInitializeRetriesAfterFailure(t *testing.T) {
	src := &snapshotSource{err: errors.New("database is locked")}
	m := NewManager(DefaultConfig(), src, nil, nil)

	require.Error(t, m.Initialize(context.Background()))
	assert.False(t, m.Initialized())

	src.err = nil
	src.snapshot = twoStopLine()
	require.NoError(t, m.Initialize(context.Background()))
	assert.True(t, m.Initialized())
	assert.Equal(t, int32(2), src.loads.Load())
}

func TestStopLookups(t *testing.T) {
	m := newManager(t, twoStopLine(), nil)

	s, err := m.Stop(2)
	require.NoError(t, err)
	assert.Equal(t, "South", s.DisplayName())

	_, err = m.Stop(99)
	assert.ErrorIs(t, err, ErrStopNotFound)

	near, err := m.StopsNear(52.0, 21.0)
	require.NoError(t, err)
	require.Len(t, near, 2)
	assert.Equal(t, timetable.StopID(1), near[0].StopID())
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()

	t.Run("defaults", func(t *testing.T) {
		cfg, err := LoadConfig("")
		require.NoError(t, err)
		assert.Equal(t, DefaultConfig(), cfg)
	})

	t.Run("overrides", func(t *testing.T) {
		path := filepath.Join(dir, "planner.yml")
		body := "max_transfers: 2\ndistance_timeout: 1500ms\nscoring:\n  transfer_penalty: 20\n"
		require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

		cfg, err := LoadConfig(path)
		require.NoError(t, err)
		assert.Equal(t, 2, cfg.MaxTransfers)
		assert.Equal(t, 1500*time.Millisecond, cfg.DistanceTimeout)
		assert.Equal(t, 20.0, cfg.Scoring.TransferPenalty)
		assert.Equal(t, 2.5, cfg.Scoring.WalkReluctance)
		assert.Equal(t, 2, cfg.scanParams().MaxTransfers)
	})

	t.Run("invalid", func(t *testing.T) {
		path := filepath.Join(dir, "bad.yml")
		require.NoError(t, os.WriteFile(path, []byte("walk_speed: 0\n"), 0o600))

		_, err := LoadConfig(path)
		assert.Error(t, err)
	})

	t.Run("invalid nested weights", func(t *testing.T) {
		path := filepath.Join(dir, "bad-weights.yml")
		require.NoError(t, os.WriteFile(path, []byte("scoring:\n  filter_factor: 0.5\n"), 0o600))

		_, err := LoadConfig(path)
		assert.Error(t, err)
	})
}
