package csa

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"csaplanner.dev/internal/timetable"
)

// ErrBrokenChain means a journey references a predecessor the arena does not
// hold. It is a bookkeeping bug, never a user-facing condition.
var ErrBrokenChain = errors.New("csa: journey chain references a missing predecessor")

// KeySeparator joins leg keys into a route key.
const KeySeparator = "|"

// Leg is a maximal run of connections of one scheduled trip.
type Leg struct {
	From      timetable.StopID
	To        timetable.StopID
	Departure int
	Arrival   int
	RouteID   int64
	Direction timetable.StopID
	Key       string
	Line      timetable.Line
	Hops      int
}

// Route is a reconstructed itinerary between two resolved stops.
type Route struct {
	OriginStop      timetable.StopID
	DestinationStop timetable.StopID
	// InitialWalk covers the origin walk plus any transfers before the first leg.
	InitialWalk         int
	InitialWalkDistance float64
	// FinalWalk covers any transfers after the last leg plus the destination walk.
	FinalWalk         int
	FinalWalkDistance float64
	Legs              []Leg
	// Departure is the boarding minute of the first leg.
	Departure int
	// Arrival is the alighting minute of the last leg.
	Arrival     int
	Transfers   int
	Key         string
	WindowStart int
}

// LegKeys returns the trip key of every leg.
func (r *Route) LegKeys() []string {
	keys := make([]string, len(r.Legs))
	for i, l := range r.Legs {
		keys[i] = l.Key
	}
	return keys
}

// Routes reconstructs every frontier journey at every reached destination stop.
// Journeys without a vehicle leg produce no route.
func (pc *PassContext) Routes() ([]Route, error) {
	stops := make([]timetable.StopID, 0, len(pc.destinations))
	for stop := range pc.destinations {
		stops = append(stops, stop)
	}
	slices.Sort(stops)

	var routes []Route
	for _, stop := range stops {
		for _, id := range pc.arena.frontier[stop] {
			route, ok, err := pc.Reconstruct(id, pc.destinations[stop])
			if err != nil {
				return nil, err
			}
			if ok {
				routes = append(routes, route)
			}
		}
	}
	return routes, nil
}

// Reconstruct walks the chain of journey id back to its origin and collapses
// it into legs. ok is false when the chain never boards a vehicle.
func (pc *PassContext) Reconstruct(id int, destination Endpoint) (Route, bool, error) {
	var chain []*Journey
	for cur := id; cur != NoJourney; {
		j, ok := pc.arena.get(cur)
		if !ok {
			return Route{}, false, fmt.Errorf("%w: journey %d", ErrBrokenChain, cur)
		}
		// predecessors are always created first
		if j.Prev != NoJourney && j.Prev >= j.ID {
			return Route{}, false, fmt.Errorf("%w: journey %d points forward to %d", ErrBrokenChain, j.ID, j.Prev)
		}
		chain = append(chain, j)
		cur = j.Prev
	}
	slices.Reverse(chain)

	origin := chain[0]
	route := Route{
		OriginStop:          origin.Origin.Stop,
		DestinationStop:     chain[len(chain)-1].Stop,
		InitialWalk:         origin.Origin.WalkTime,
		InitialWalkDistance: origin.Origin.WalkDistance,
		FinalWalk:           destination.WalkTime,
		FinalWalkDistance:   destination.WalkDistance,
		WindowStart:         pc.pass.WindowStart,
	}

	conns := pc.scanner.conns
	var current *Leg
	for _, j := range chain[1:] {
		switch j.Kind {
		case EdgeRide:
			if j.Conn < 0 || j.Conn >= len(conns) {
				return Route{}, false, fmt.Errorf("%w: journey %d cites connection %d", ErrBrokenChain, j.ID, j.Conn)
			}
			c := &conns[j.Conn]
			if current != nil && current.Key == c.Key {
				current.To = c.To
				current.Arrival = c.Arrival
				current.Hops++
				continue
			}
			route.Legs = append(route.Legs, Leg{
				From:      c.From,
				To:        c.To,
				Departure: c.Departure,
				Arrival:   c.Arrival,
				RouteID:   c.RouteID,
				Direction: c.Direction,
				Key:       c.Key,
				Line:      c.Line,
				Hops:      1,
			})
			current = &route.Legs[len(route.Legs)-1]
		case EdgeTransfer:
			current = nil
			if len(route.Legs) == 0 {
				route.InitialWalk += j.Transfer.Minutes
				route.InitialWalkDistance += j.Transfer.Distance
			}
		}
	}

	if len(route.Legs) == 0 {
		return Route{}, false, nil
	}

	// transfers after the last leg belong to the final walk
	for i := len(chain) - 1; i > 0 && chain[i].Kind == EdgeTransfer; i-- {
		route.FinalWalk += chain[i].Transfer.Minutes
		route.FinalWalkDistance += chain[i].Transfer.Distance
	}

	route.Departure = route.Legs[0].Departure
	route.Arrival = route.Legs[len(route.Legs)-1].Arrival
	route.Transfers = len(route.Legs) - 1
	route.Key = strings.Join(route.LegKeys(), KeySeparator)
	return route, true, nil
}
