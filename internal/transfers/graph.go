// Package transfers builds the walking-transfer graph between stops.
package transfers

import (
	"cmp"
	"slices"

	"csaplanner.dev/internal/timetable"
	"csaplanner.dev/internal/utils"
)

// Kind distinguishes platform changes from walks between stop groups.
type Kind int

const (
	// IntraGroup is a platform change inside one stop group, fixed penalty.
	IntraGroup Kind = iota
	// InterGroup is a distance-derived walk between two stop groups.
	InterGroup
)

func (k Kind) String() string {
	if k == InterGroup {
		return "inter-group"
	}
	return "intra-group"
}

// Edge is a directed walking transfer.
type Edge struct {
	From     timetable.StopID
	To       timetable.StopID
	Minutes  int
	Distance float64
	Kind     Kind
}

// Options control how transfer edges are derived.
type Options struct {
	// IntraGroupMinutes is the platform-change penalty.
	IntraGroupMinutes int
	// MaxWalkMeters caps inter-group walks.
	MaxWalkMeters float64
	// SearchRadiusMeters bounds the spatial neighbour query.
	SearchRadiusMeters float64
	// WalkSpeed is in meters per minute.
	WalkSpeed float64
}

// DefaultOptions cap walks between groups at 1 km at 80 m/min, the same scale
// as the origin and destination walks, and charge 2 minutes for a platform change.
func DefaultOptions() Options {
	return Options{
		IntraGroupMinutes:  2,
		MaxWalkMeters:      1000,
		SearchRadiusMeters: 1000,
		WalkSpeed:          80,
	}
}

// Graph holds outgoing edges per stop and the reverse index grouped by destination.
// It is read-only after Build.
type Graph struct {
	outgoing map[timetable.StopID][]Edge
	incoming map[timetable.StopID][]Edge
	edges    int
}

// Build derives intra-group edges between every pair of distinct stops sharing a
// group and one-directional inter-group edges to spatial neighbours within the walk cap.
func Build(stops []timetable.Stop, stopsByGroup map[timetable.GroupID][]timetable.StopID, spatial *SpatialIndex, opts Options) *Graph {
	g := &Graph{
		outgoing: make(map[timetable.StopID][]Edge, len(stops)),
		incoming: make(map[timetable.StopID][]Edge, len(stops)),
	}

	for _, stop := range stops {
		for _, sibling := range stopsByGroup[stop.GroupID] {
			if sibling == stop.ID {
				continue
			}
			g.add(Edge{From: stop.ID, To: sibling, Minutes: opts.IntraGroupMinutes, Kind: IntraGroup})
		}

		radius := opts.SearchRadiusMeters
		if radius <= 0 {
			radius = opts.MaxWalkMeters
		}
		for _, neighbor := range spatial.Nearby(stop.Lat, stop.Lon, radius) {
			if neighbor.ID == stop.ID || neighbor.GroupID == stop.GroupID {
				continue
			}

			dist := utils.Haversine(stop.Lat, stop.Lon, neighbor.Lat, neighbor.Lon)
			if dist > opts.MaxWalkMeters {
				continue
			}

			g.add(Edge{
				From:     stop.ID,
				To:       neighbor.ID,
				Minutes:  utils.WalkMinutes(dist, opts.WalkSpeed),
				Distance: dist,
				Kind:     InterGroup,
			})
		}
	}

	byCost := func(a, b Edge) int {
		return cmp.Or(cmp.Compare(a.Minutes, b.Minutes), cmp.Compare(a.To, b.To), cmp.Compare(a.From, b.From))
	}
	for id := range g.outgoing {
		slices.SortFunc(g.outgoing[id], byCost)
	}
	for id := range g.incoming {
		slices.SortFunc(g.incoming[id], byCost)
	}

	return g
}

func (g *Graph) add(e Edge) {
	g.outgoing[e.From] = append(g.outgoing[e.From], e)
	g.incoming[e.To] = append(g.incoming[e.To], e)
	g.edges++
}

// Outgoing returns the edges leaving stop, cheapest first.
func (g *Graph) Outgoing(stop timetable.StopID) []Edge {
	if g == nil {
		return nil
	}
	return g.outgoing[stop]
}

// Incoming returns the edges arriving at stop, cheapest first.
func (g *Graph) Incoming(stop timetable.StopID) []Edge {
	if g == nil {
		return nil
	}
	return g.incoming[stop]
}

// Len returns the total number of edges.
func (g *Graph) Len() int {
	if g == nil {
		return 0
	}
	return g.edges
}
