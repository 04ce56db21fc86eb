// Package csa implements the per-window Connection Scan over the sorted
// connection array, with Pareto frontiers on (arrival, transfers) and
// bounded transfer walks, and rebuilds routes from the journey arena.
package csa

import (
	"cmp"
	"slices"

	"csaplanner.dev/internal/timetable"
	"csaplanner.dev/internal/transfers"
)

// EdgeKind tells how a journey reached its stop.
type EdgeKind uint8

const (
	// EdgeNone marks an origin journey.
	EdgeNone EdgeKind = iota
	// EdgeRide marks a vehicle connection.
	EdgeRide
	// EdgeTransfer marks a walking transfer.
	EdgeTransfer
)

// NoJourney is the predecessor id of an origin journey.
const NoJourney = -1

// Endpoint is a resolved origin or destination stop with the walk between it
// and the query coordinates.
type Endpoint struct {
	Stop         timetable.StopID
	WalkTime     int
	WalkDistance float64
}

// Journey is an immutable arena record: the traveller is at Stop at Arrival
// having used Transfers vehicle changes.
type Journey struct {
	ID       int
	Stop     timetable.StopID
	Arrival  int
	PrevStop timetable.StopID
	// Prev is the arena id of the predecessor, NoJourney for an origin.
	Prev int
	Kind EdgeKind
	// Conn indexes the connection array when Kind is EdgeRide.
	Conn     int
	Transfer transfers.Edge
	// TripKey is the key of the vehicle the traveller is sitting in, empty while walking.
	TripKey string
	// Boarded is set once any vehicle has been used.
	Boarded   bool
	Transfers int
	// Departure is the first boarding minute, or the window start before boarding.
	Departure int
	Origin    Endpoint
}

// transfersAfter returns the transfer count of riding c after j.
func (j *Journey) transfersAfter(c *timetable.Connection) int {
	if j.Boarded && j.TripKey != c.Key {
		return j.Transfers + 1
	}
	return j.Transfers
}

// sameClass reports whether two journeys compete for a frontier slot. At
// destination stops walk-only journeys are kept apart from boarded ones so a
// short walk cannot crowd out every transit alternative.
func sameClass(a, b *Journey, atDestination bool) bool {
	return !atDestination || a.Boarded == b.Boarded
}

// covers reports whether a is at least as good as b on both criteria.
func covers(a, b *Journey) bool {
	return a.Arrival <= b.Arrival && a.Transfers <= b.Transfers
}

// dominates reports whether a is no worse than b and strictly better on one criterion.
func dominates(a, b *Journey) bool {
	return covers(a, b) && (a.Arrival < b.Arrival || a.Transfers < b.Transfers)
}

// FrontierOptions bound the per-stop frontier.
type FrontierOptions struct {
	Cap int
	// TransferPenalty is in minutes per transfer.
	TransferPenalty float64
	// WalkDistanceWeight converts origin walk meters to minutes.
	WalkDistanceWeight float64
}

func (o FrontierOptions) composite(j *Journey) float64 {
	return float64(j.Arrival) + float64(j.Transfers)*o.TransferPenalty + j.Origin.WalkDistance*o.WalkDistanceWeight
}

// arena owns every journey created in one pass plus the frontier map over it.
type arena struct {
	journeys []Journey
	frontier map[timetable.StopID][]int
	opts     FrontierOptions
}

func newArena(opts FrontierOptions) *arena {
	return &arena{
		frontier: make(map[timetable.StopID][]int),
		opts:     opts,
	}
}

func (a *arena) get(id int) (*Journey, bool) {
	if id < 0 || id >= len(a.journeys) {
		return nil, false
	}
	return &a.journeys[id], true
}

// admit inserts j into its stop's frontier if nothing there covers it, evicting
// members it dominates and trimming to the cap. A covered journey is not stored
// and yields NoJourney. One trimmed by the cap stays in the arena but reports false.
func (a *arena) admit(j Journey, atDestination bool) (int, bool) {
	members := a.frontier[j.Stop]
	for _, id := range members {
		m := &a.journeys[id]
		if sameClass(m, &j, atDestination) && covers(m, &j) {
			return NoJourney, false
		}
	}

	j.ID = a.record(j)
	added := &a.journeys[j.ID]

	kept := make([]int, 0, len(members)+1)
	for _, id := range members {
		m := &a.journeys[id]
		if sameClass(added, m, atDestination) && dominates(added, m) {
			continue
		}
		kept = append(kept, id)
	}
	kept = append(kept, j.ID)

	if a.opts.Cap > 0 && len(kept) > a.opts.Cap {
		slices.SortStableFunc(kept, func(x, y int) int {
			jx, jy := &a.journeys[x], &a.journeys[y]
			return cmp.Or(cmp.Compare(a.opts.composite(jx), a.opts.composite(jy)), cmp.Compare(x, y))
		})
		kept = kept[:a.opts.Cap]
		if !slices.Contains(kept, j.ID) {
			a.frontier[j.Stop] = kept
			return j.ID, false
		}
	}

	a.frontier[j.Stop] = kept
	return j.ID, true
}

// record appends j to the arena without entering it on any frontier.
func (a *arena) record(j Journey) int {
	j.ID = len(a.journeys)
	a.journeys = append(a.journeys, j)
	return j.ID
}

// members returns the journeys currently on a stop's frontier.
func (a *arena) members(stop timetable.StopID) []*Journey {
	ids := a.frontier[stop]
	out := make([]*Journey, len(ids))
	for i, id := range ids {
		out[i] = &a.journeys[id]
	}
	return out
}
