package planner

import (
	"cmp"
	"fmt"
	"slices"

	"csaplanner.dev/internal/legs"
	"csaplanner.dev/internal/timetable"
	"csaplanner.dev/internal/transfers"
	"csaplanner.dev/transitdb"
)

const defaultLineColor = "#000000"

// Network is the read-only, preprocessed view of a snapshot.
type Network struct {
	// Stops is ordered by id.
	Stops        []timetable.Stop
	StopByID     map[timetable.StopID]timetable.Stop
	StopToGroup  map[timetable.StopID]timetable.GroupID
	StopsByGroup map[timetable.GroupID][]timetable.StopID
	RidesByStop  map[timetable.StopID][]timetable.Ride
	Patterns     map[int64]*timetable.Pattern
	Geometry     map[int64][]legs.GeometryPoint

	Spatial *transfers.SpatialIndex
	Graph   *transfers.Graph

	Stats PreprocessStats
}

// PreprocessStats count what preprocessing produced and skipped.
type PreprocessStats struct {
	Stops           int
	Groups          int
	Rides           int
	DepartureRoutes int
	// SkippedRoutes have no route or line row.
	SkippedRoutes int
	// NegativeHops are consecutive stops whose offsets go backwards.
	NegativeHops  int
	TransferEdges int
}

// Preprocess derives rides, patterns, stop lookups and the transfer graph
// from a store snapshot.
func Preprocess(s *transitdb.Snapshot, opts transfers.Options) (*Network, error) {
	if s == nil {
		return nil, fmt.Errorf("preprocess: nil snapshot")
	}

	n := &Network{
		StopByID:     make(map[timetable.StopID]timetable.Stop, len(s.Stops)),
		StopToGroup:  make(map[timetable.StopID]timetable.GroupID, len(s.Stops)),
		StopsByGroup: make(map[timetable.GroupID][]timetable.StopID, len(s.StopGroups)),
		RidesByStop:  make(map[timetable.StopID][]timetable.Ride),
		Patterns:     make(map[int64]*timetable.Pattern, len(s.DepartureRoutes)),
		Geometry:     make(map[int64][]legs.GeometryPoint),
	}

	groupNames := make(map[int64]string, len(s.StopGroups))
	for _, g := range s.StopGroups {
		groupNames[g.ID] = g.Name
	}

	for _, row := range s.Stops {
		stop := timetable.Stop{
			ID:     timetable.StopID(row.ID),
			Lat:    row.Lat,
			Lon:    row.Lon,
			Code:   row.Code,
			Alias:  row.Alias,
			Street: row.Street,
		}
		if row.GroupID != nil {
			stop.GroupID = timetable.GroupID(*row.GroupID)
			stop.GroupName = groupNames[*row.GroupID]
			n.StopToGroup[stop.ID] = stop.GroupID
			n.StopsByGroup[stop.GroupID] = append(n.StopsByGroup[stop.GroupID], stop.ID)
		}
		n.Stops = append(n.Stops, stop)
		n.StopByID[stop.ID] = stop
	}
	slices.SortFunc(n.Stops, func(a, b timetable.Stop) int { return cmp.Compare(a.ID, b.ID) })
	for g := range n.StopsByGroup {
		slices.Sort(n.StopsByGroup[g])
	}

	n.buildRides(s)

	for _, p := range s.Geometry {
		n.Geometry[p.DepartureRouteID] = append(n.Geometry[p.DepartureRouteID], legs.GeometryPoint{
			StopNumber: p.StopNumber,
			Lat:        p.Lat,
			Lon:        p.Lon,
		})
	}

	n.Spatial = transfers.NewSpatialIndex(n.Stops)
	n.Graph = transfers.Build(n.Stops, n.StopsByGroup, n.Spatial, opts)

	n.Stats.Stops = len(n.Stops)
	n.Stats.Groups = len(n.StopsByGroup)
	n.Stats.TransferEdges = n.Graph.Len()
	return n, nil
}

func (n *Network) buildRides(s *transitdb.Snapshot) {
	lines := make(map[int64]transitdb.Line, len(s.Lines))
	for _, l := range s.Lines {
		lines[l.ID] = l
	}
	lineTypes := make(map[int64]transitdb.LineType, len(s.LineTypes))
	for _, lt := range s.LineTypes {
		lineTypes[lt.ID] = lt
	}
	routes := make(map[int64]transitdb.Route, len(s.Routes))
	for _, r := range s.Routes {
		routes[r.ID] = r
	}

	bases := make(map[int64][]int)
	for _, t := range s.Timetables {
		bases[t.DepartureRouteID] = append(bases[t.DepartureRouteID], t.DepartureTime)
	}
	additional := make(map[int64]map[int]bool)
	for _, a := range s.AdditionalStops {
		if additional[a.DepartureRouteID] == nil {
			additional[a.DepartureRouteID] = make(map[int]bool)
		}
		additional[a.DepartureRouteID][a.StopNumber] = true
	}
	fullRoutes := make(map[int64][]transitdb.FullRouteStop)
	for _, fr := range s.FullRoutes {
		fullRoutes[fr.RouteID] = append(fullRoutes[fr.RouteID], fr)
	}

	for _, dep := range s.DepartureRoutes {
		route, ok := routes[dep.RouteID]
		if !ok {
			n.Stats.SkippedRoutes++
			continue
		}
		line, ok := lines[route.LineID]
		if !ok {
			n.Stats.SkippedRoutes++
			continue
		}
		n.Stats.DepartureRoutes++

		color := dep.Color
		if color == "" {
			color = defaultLineColor
		}
		meta := timetable.Line{
			Name:      line.Name,
			Type:      lineTypes[line.LineTypeID].NameSingular,
			Color:     color,
			Signature: dep.Signature,
			IsNight:   route.IsNight,
		}

		stops := slices.Clone(fullRoutes[dep.RouteID])
		slices.SortFunc(stops, func(a, b transitdb.FullRouteStop) int { return cmp.Compare(a.StopNumber, b.StopNumber) })

		pattern := &timetable.Pattern{ID: dep.ID, Line: meta}
		offset := 0
		for _, fr := range stops {
			if fr.IsOptional && !additional[dep.ID][fr.StopNumber] {
				continue
			}
			if len(pattern.Stops) > 0 {
				offset += fr.TravelTime
			}
			pattern.Stops = append(pattern.Stops, timetable.PatternStop{
				Stop:   timetable.StopID(fr.StopID),
				Number: fr.StopNumber,
				Offset: offset,
			})
		}
		n.Patterns[dep.ID] = pattern
		if len(pattern.Stops) < 2 {
			continue
		}

		direction := pattern.Stops[len(pattern.Stops)-1].Stop
		times := bases[dep.ID]
		for i := 0; i < len(pattern.Stops)-1; i++ {
			from, to := pattern.Stops[i], pattern.Stops[i+1]
			travel := to.Offset - from.Offset
			if travel < 0 {
				n.Stats.NegativeHops++
				continue
			}

			departures := make([]timetable.Departure, 0, len(times))
			for _, base := range times {
				departures = append(departures, timetable.Departure{
					Time: base + from.Offset,
					Key:  TripKey(line.Name, base, dep.ID),
				})
			}
			n.RidesByStop[from.Stop] = append(n.RidesByStop[from.Stop], timetable.Ride{
				From:       from.Stop,
				To:         to.Stop,
				TravelTime: travel,
				RouteID:    dep.ID,
				Direction:  direction,
				Line:       meta,
				Departures: departures,
			})
			n.Stats.Rides++
		}
	}
}

// TripKey identifies one scheduled run of a departure route.
func TripKey(line string, base int, departureRouteID int64) string {
	return fmt.Sprintf("%s-%d-%d", line, base, departureRouteID)
}
