package transfers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"csaplanner.dev/internal/timetable"
	"csaplanner.dev/internal/utils"
)

func sampleStops() ([]timetable.Stop, map[timetable.GroupID][]timetable.StopID) {
	stops := []timetable.Stop{
		{ID: 1, GroupID: 10, Lat: 51.1000, Lon: 17.0000},
		{ID: 2, GroupID: 10, Lat: 51.1001, Lon: 17.0001},
		{ID: 3, GroupID: 20, Lat: 51.1040, Lon: 17.0000}, // ~445 m north
		{ID: 4, GroupID: 30, Lat: 51.1200, Lon: 17.0000}, // ~2.2 km north
	}
	groups := map[timetable.GroupID][]timetable.StopID{
		10: {1, 2},
		20: {3},
		30: {4},
	}
	return stops, groups
}

func TestSpatialIndex(t *testing.T) {
	stops, _ := sampleStops()
	idx := NewSpatialIndex(stops)
	assert.Equal(t, 4, idx.Len())

	near := idx.Nearby(51.1, 17.0, 600)
	ids := make([]timetable.StopID, 0, len(near))
	for _, s := range near {
		ids = append(ids, s.ID)
	}
	assert.ElementsMatch(t, []timetable.StopID{1, 2, 3}, ids)

	none := idx.InBounds(utils.CoordinateBounds{MinLat: 0, MaxLat: 1, MinLon: 0, MaxLon: 1})
	assert.Empty(t, none)

	var nilIdx *SpatialIndex
	assert.Empty(t, nilIdx.Nearby(51.1, 17.0, 100))
}

func TestBuild(t *testing.T) {
	stops, groups := sampleStops()
	opts := DefaultOptions()
	g := Build(stops, groups, NewSpatialIndex(stops), opts)

	t.Run("intra-group edges are bidirectional with fixed penalty", func(t *testing.T) {
		var found12, found21 bool
		for _, e := range g.Outgoing(1) {
			if e.To == 2 {
				found12 = true
				assert.Equal(t, IntraGroup, e.Kind)
				assert.Equal(t, opts.IntraGroupMinutes, e.Minutes)
			}
		}
		for _, e := range g.Outgoing(2) {
			if e.To == 1 {
				found21 = true
			}
		}
		assert.True(t, found12)
		assert.True(t, found21)
	})

	t.Run("inter-group edges are distance derived", func(t *testing.T) {
		var edge *Edge
		for _, e := range g.Outgoing(1) {
			if e.To == 3 {
				e := e
				edge = &e
			}
		}
		require.NotNil(t, edge)
		assert.Equal(t, InterGroup, edge.Kind)
		assert.InDelta(t, 445, edge.Distance, 5)
		assert.Equal(t, utils.WalkMinutes(edge.Distance, opts.WalkSpeed), edge.Minutes)
	})

	t.Run("walks beyond the cap are excluded", func(t *testing.T) {
		for _, e := range g.Outgoing(1) {
			assert.NotEqual(t, timetable.StopID(4), e.To)
		}
		assert.Empty(t, g.Outgoing(4))
	})

	t.Run("no self edges", func(t *testing.T) {
		for _, s := range stops {
			for _, e := range g.Outgoing(s.ID) {
				assert.NotEqual(t, s.ID, e.To)
			}
		}
	})

	t.Run("reverse index mirrors outgoing edges", func(t *testing.T) {
		total := 0
		for _, s := range stops {
			for _, e := range g.Incoming(s.ID) {
				assert.Equal(t, s.ID, e.To)
				assert.Contains(t, g.Outgoing(e.From), e)
				total++
			}
		}
		assert.Equal(t, g.Len(), total)
	})

	t.Run("outgoing edges are cheapest first", func(t *testing.T) {
		out := g.Outgoing(1)
		for i := 0; i+1 < len(out); i++ {
			assert.LessOrEqual(t, out[i].Minutes, out[i+1].Minutes)
		}
	})
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "intra-group", IntraGroup.String())
	assert.Equal(t, "inter-group", InterGroup.String())
}
