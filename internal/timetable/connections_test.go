package timetable

import (
	"bytes"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"csaplanner.dev/internal/logging"
)

func sampleRides() (map[StopID][]Ride, map[StopID]GroupID) {
	rides := map[StopID][]Ride{
		1: {
			{From: 1, To: 2, TravelTime: 4, RouteID: 10, Line: Line{Name: "A"},
				Departures: []Departure{{Time: 600, Key: "A-600-10"}, {Time: 540, Key: "A-540-10"}}},
		},
		2: {
			{From: 2, To: 3, TravelTime: 6, RouteID: 10, Line: Line{Name: "A"},
				Departures: []Departure{{Time: 604, Key: "A-600-10"}, {Time: 544, Key: "A-540-10"}}},
			{From: 2, To: 4, TravelTime: 3, RouteID: 20, Line: Line{Name: "B"},
				Departures: []Departure{{Time: 570, Key: "B-570-20"}}},
		},
		// stop 9 has no group mapping
		9: {
			{From: 9, To: 1, TravelTime: 2, RouteID: 30, Line: Line{Name: "C"},
				Departures: []Departure{{Time: 500, Key: "C-500-30"}}},
		},
	}
	groups := map[StopID]GroupID{1: 100, 2: 200, 3: 300, 4: 200}
	return rides, groups
}

func TestBuildConnections(t *testing.T) {
	rides, groups := sampleRides()
	conns, stats := BuildConnections(rides, groups)

	t.Run("one connection per grouped departure", func(t *testing.T) {
		assert.Len(t, conns, 5)
		assert.Equal(t, 5, stats.Connections)
	})

	t.Run("sorted ascending by departure", func(t *testing.T) {
		assert.True(t, IsSorted(conns))
		for i := 0; i+1 < len(conns); i++ {
			assert.LessOrEqual(t, conns[i].Departure, conns[i+1].Departure)
		}
	})

	t.Run("arrival is departure plus travel time", func(t *testing.T) {
		for _, c := range conns {
			switch c.Line.Name {
			case "A":
				if c.From == 1 {
					assert.Equal(t, 4, c.Duration())
				} else {
					assert.Equal(t, 6, c.Duration())
				}
			case "B":
				assert.Equal(t, 3, c.Duration())
			}
		}
	})

	t.Run("carries the origin group", func(t *testing.T) {
		assert.Equal(t, GroupID(100), conns[0].GroupID)
		assert.Equal(t, StopID(1), conns[0].From)
	})

	t.Run("ungrouped stops are reported not emitted", func(t *testing.T) {
		assert.Equal(t, 1, stats.DroppedRides)
		assert.Equal(t, []StopID{9}, stats.UngroupedStops)
		for _, c := range conns {
			assert.NotEqual(t, StopID(9), c.From)
		}
	})

	t.Run("deterministic across builds", func(t *testing.T) {
		again, _ := BuildConnections(rides, groups)
		assert.Equal(t, conns, again)
	})
}

func TestFindWindowStart(t *testing.T) {
	conns := []Connection{
		{Departure: 500}, {Departure: 510}, {Departure: 510}, {Departure: 530}, {Departure: 600},
	}

	tests := []struct {
		name   string
		target int
		from   int
		want   int
	}{
		{name: "before all", target: 400, from: 0, want: 0},
		{name: "exact match takes first equal", target: 510, from: 0, want: 1},
		{name: "between values", target: 520, from: 0, want: 3},
		{name: "after all", target: 700, from: 0, want: 5},
		{name: "search from suffix", target: 400, from: 3, want: 3},
		{name: "suffix with later target", target: 560, from: 2, want: 4},
		{name: "from beyond end", target: 0, from: 9, want: 5},
		{name: "negative from", target: 505, from: -3, want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FindWindowStart(conns, tt.target, tt.from))
		})
	}

	t.Run("empty slice", func(t *testing.T) {
		assert.Equal(t, 0, FindWindowStart(nil, 100, 0))
	})
}

func TestIndex(t *testing.T) {
	rides, groups := sampleRides()
	var buf bytes.Buffer
	logger := logging.NewStructuredLogger(&buf, slog.LevelInfo)
	idx := NewIndex(rides, groups, logger)

	t.Run("concurrent first use builds once", func(t *testing.T) {
		var wg sync.WaitGroup
		results := make([][]Connection, 8)
		for i := range results {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i] = idx.Connections()
			}(i)
		}
		wg.Wait()

		require.Len(t, results[0], 5)
		for _, r := range results[1:] {
			assert.Same(t, &results[0][0], &r[0])
		}
	})

	t.Run("warns about dropped rides", func(t *testing.T) {
		assert.Equal(t, 1, idx.Stats().DroppedRides)
		assert.Contains(t, buf.String(), `"level":"WARN"`)
		assert.Contains(t, buf.String(), `"dropped_rides":1`)
	})
}

func TestStopDisplayName(t *testing.T) {
	assert.Equal(t, "Rynek 1", Stop{ID: 1, Alias: "Rynek 1", GroupName: "Rynek"}.DisplayName())
	assert.Equal(t, "Rynek", Stop{ID: 1, GroupName: "Rynek"}.DisplayName())
	assert.Equal(t, "Stop 7", Stop{ID: 7}.DisplayName())
}

func TestPatternSpan(t *testing.T) {
	p := Pattern{Stops: []PatternStop{{Stop: 1}, {Stop: 2}, {Stop: 3}, {Stop: 1}, {Stop: 4}}}

	from, to, ok := p.Span(2, 4)
	require.True(t, ok)
	assert.Equal(t, 1, from)
	assert.Equal(t, 4, to)

	// circular pattern: the second visit of stop 1 is used
	from, to, ok = p.Span(3, 1)
	require.True(t, ok)
	assert.Equal(t, 2, from)
	assert.Equal(t, 3, to)

	_, _, ok = p.Span(4, 1)
	assert.False(t, ok)
}
