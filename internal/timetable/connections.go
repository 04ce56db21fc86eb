package timetable

import (
	"cmp"
	"slices"
	"sort"
)

// BuildStats summarises what BuildConnections emitted and dropped.
type BuildStats struct {
	Connections int
	// DroppedRides counts rides whose origin stop has no group mapping.
	DroppedRides int
	// UngroupedStops lists the stops responsible for DroppedRides, ascending.
	UngroupedStops []StopID
}

// BuildConnections emits one Connection per ride departure for every ride whose
// origin stop belongs to a known group, sorted ascending by departure.
// Rides from ungrouped stops are dropped and reported in the stats.
func BuildConnections(ridesByStop map[StopID][]Ride, stopToGroup map[StopID]GroupID) ([]Connection, BuildStats) {
	var stats BuildStats
	total := 0
	for _, rides := range ridesByStop {
		for _, ride := range rides {
			total += len(ride.Departures)
		}
	}

	conns := make([]Connection, 0, total)
	for from, rides := range ridesByStop {
		groupID, ok := stopToGroup[from]
		if !ok {
			if len(rides) > 0 {
				stats.DroppedRides += len(rides)
				stats.UngroupedStops = append(stats.UngroupedStops, from)
			}
			continue
		}

		for _, ride := range rides {
			for _, dep := range ride.Departures {
				conns = append(conns, Connection{
					From:      from,
					To:        ride.To,
					Departure: dep.Time,
					Arrival:   dep.Time + ride.TravelTime,
					RouteID:   ride.RouteID,
					Direction: ride.Direction,
					Key:       dep.Key,
					GroupID:   groupID,
					Line:      ride.Line,
				})
			}
		}
	}

	// Map iteration order is random; the secondary keys keep the order reproducible.
	slices.SortFunc(conns, func(a, b Connection) int {
		return cmp.Or(
			cmp.Compare(a.Departure, b.Departure),
			cmp.Compare(a.Arrival, b.Arrival),
			cmp.Compare(a.From, b.From),
			cmp.Compare(a.To, b.To),
			cmp.Compare(a.Key, b.Key),
		)
	})
	slices.Sort(stats.UngroupedStops)

	stats.Connections = len(conns)
	return conns, stats
}

// FindWindowStart returns the index of the first connection at or after
// searchFrom whose departure is >= targetTime, or len(conns) when none is.
func FindWindowStart(conns []Connection, targetTime, searchFrom int) int {
	if searchFrom < 0 {
		searchFrom = 0
	}
	if searchFrom >= len(conns) {
		return len(conns)
	}

	suffix := conns[searchFrom:]
	return searchFrom + sort.Search(len(suffix), func(i int) bool {
		return suffix[i].Departure >= targetTime
	})
}

// IsSorted reports whether conns is ascending by departure.
func IsSorted(conns []Connection) bool {
	return slices.IsSortedFunc(conns, func(a, b Connection) int {
		return cmp.Compare(a.Departure, b.Departure)
	})
}
