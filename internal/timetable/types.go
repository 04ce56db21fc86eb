// Package timetable flattens per-stop scheduled rides into one time-sorted
// array of connections and answers window entry-point lookups over it.
package timetable

import "fmt"

// StopID identifies a single stop (platform).
type StopID int64

// GroupID identifies a stop group, a cluster of physically co-located stops.
type GroupID int64

// Stop is an immutable stop record produced by preprocessing.
type Stop struct {
	ID        StopID
	GroupID   GroupID
	Lat       float64
	Lon       float64
	Code      string
	Alias     string
	Street    string
	GroupName string
}

// DisplayName prefers the alias, then the group name.
func (s Stop) DisplayName() string {
	if s.Alias != "" {
		return s.Alias
	}
	if s.GroupName != "" {
		return s.GroupName
	}
	return fmt.Sprintf("Stop %d", s.ID)
}

// Line carries the display metadata of the line a ride belongs to.
type Line struct {
	Name      string
	Type      string
	Color     string
	Signature string
	IsNight   bool
}

// Departure is one scheduled departure of a ride. Key identifies the
// scheduled trip instance and is shared by every ride of that trip.
type Departure struct {
	Time int
	Key  string
}

// Ride is a hop between two consecutive stops of a departure route,
// carrying every scheduled departure time of that hop.
type Ride struct {
	From       StopID
	To         StopID
	TravelTime int
	// RouteID is the departure route (stop pattern) the ride belongs to.
	RouteID    int64
	Direction  StopID
	Line       Line
	Departures []Departure
}

// Connection is one time-expanded edge: a vehicle leaving From at Departure
// and reaching To at Arrival. Times are minutes after midnight and may exceed
// 1440 for overnight runs.
type Connection struct {
	From      StopID
	To        StopID
	Departure int
	Arrival   int
	RouteID   int64
	Direction StopID
	// Key identifies the scheduled trip instance; connections of the same
	// physical vehicle run share a key.
	Key     string
	GroupID GroupID
	Line    Line
}

// Duration returns the in-vehicle time of the connection.
func (c Connection) Duration() int {
	return c.Arrival - c.Departure
}

// PatternStop is an active stop of a departure route with its offset from
// the route's start in minutes.
type PatternStop struct {
	Stop   StopID
	Number int
	Offset int
}

// Pattern is the static stop sequence of a departure route.
type Pattern struct {
	ID    int64
	Line  Line
	Stops []PatternStop
}

// Span returns the indexes of from and a later to in the pattern.
func (p *Pattern) Span(from, to StopID) (int, int, bool) {
	for i, s := range p.Stops {
		if s.Stop != from {
			continue
		}
		for k := i + 1; k < len(p.Stops); k++ {
			if p.Stops[k].Stop == to {
				return i, k, true
			}
		}
	}
	return 0, 0, false
}
