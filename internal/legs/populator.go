// Package legs expands selected routes into displayable segments: transit
// legs with their intermediate stops and geometry, and the walks around them.
package legs

import (
	"github.com/twpayne/go-polyline"

	"csaplanner.dev/internal/csa"
	"csaplanner.dev/internal/timetable"
	"csaplanner.dev/internal/utils"
)

// Kind of a segment.
type Kind string

const (
	Transit Kind = "transit"
	Walk    Kind = "walk"
)

// GeometryPoint is a path vertex tagged with the number of the pattern stop
// whose segment it belongs to.
type GeometryPoint struct {
	StopNumber int
	Lat        float64
	Lon        float64
}

// Place is a segment endpoint: a stop, or bare coordinates. Stop is nil for
// coordinates and for stops missing from the network.
type Place struct {
	StopID timetable.StopID
	Stop   *timetable.Stop
	Lat    float64
	Lon    float64
}

// StopTime is a pattern stop with its computed departure.
type StopTime struct {
	Stop   timetable.Stop
	Minute int
	Time   string
}

// Segment is one displayable piece of an itinerary.
type Segment struct {
	Kind      Kind
	From      Place
	To        Place
	Departure int
	Arrival   int
	Duration  int
	Distance  float64

	// transit only
	Line     timetable.Line
	Key      string
	RouteID  int64
	Stops    []StopTime
	Polyline string
	Path     [][2]float64
}

// Populator holds the static data used to expand routes. It is read-only and
// safe for concurrent use.
type Populator struct {
	stops             map[timetable.StopID]timetable.Stop
	patterns          map[int64]*timetable.Pattern
	geometry          map[int64][]GeometryPoint
	walkSpeed         float64
	intraGroupMinutes int
}

// NewPopulator creates a populator.
func NewPopulator(stops map[timetable.StopID]timetable.Stop, patterns map[int64]*timetable.Pattern,
	geometry map[int64][]GeometryPoint, walkSpeed float64, intraGroupMinutes int) *Populator {
	return &Populator{
		stops:             stops,
		patterns:          patterns,
		geometry:          geometry,
		walkSpeed:         walkSpeed,
		intraGroupMinutes: intraGroupMinutes,
	}
}

// Populate expands a transit leg. When the leg cannot be matched to its
// pattern the segment keeps only its endpoints.
func (p *Populator) Populate(leg csa.Leg) Segment {
	seg := Segment{
		Kind:      Transit,
		From:      p.place(leg.From),
		To:        p.place(leg.To),
		Departure: leg.Departure,
		Arrival:   leg.Arrival,
		Duration:  leg.Arrival - leg.Departure,
		Line:      leg.Line,
		Key:       leg.Key,
		RouteID:   leg.RouteID,
	}

	pattern, ok := p.patterns[leg.RouteID]
	if !ok {
		return seg
	}
	fromIdx, toIdx, ok := pattern.Span(leg.From, leg.To)
	if !ok {
		return seg
	}

	start := pattern.Stops[fromIdx]
	for _, ps := range pattern.Stops[fromIdx : toIdx+1] {
		minute := leg.Departure + ps.Offset - start.Offset
		seg.Stops = append(seg.Stops, StopTime{
			Stop:   p.stop(ps.Stop),
			Minute: minute,
			Time:   utils.FormatMinutes(minute),
		})
	}

	seg.Path = p.path(pattern.ID, start.Number, pattern.Stops[toIdx].Number)
	for i := 1; i < len(seg.Path); i++ {
		a, b := seg.Path[i-1], seg.Path[i]
		seg.Distance += utils.Haversine(a[0], a[1], b[0], b[1])
	}
	if len(seg.Path) > 0 {
		coords := make([][]float64, len(seg.Path))
		for i, pt := range seg.Path {
			coords[i] = []float64{pt[0], pt[1]}
		}
		seg.Polyline = string(polyline.EncodeCoords(coords))
	}
	return seg
}

// path returns the geometry from stop number from up to and including the
// first point of stop number to.
func (p *Populator) path(patternID int64, from, to int) [][2]float64 {
	var out [][2]float64
	for _, pt := range p.geometry[patternID] {
		if pt.StopNumber < from {
			continue
		}
		if pt.StopNumber >= to {
			out = append(out, [2]float64{pt.Lat, pt.Lon})
			break
		}
		out = append(out, [2]float64{pt.Lat, pt.Lon})
	}
	return out
}

// Segments expands a whole route, adding walks from the origin coordinates,
// between legs whose stops differ, and to the destination coordinates.
// A route without legs becomes a single walk.
func (p *Populator) Segments(r *csa.Route, origin, destination utils.Coordinates) []Segment {
	if len(r.Legs) == 0 {
		if r.InitialWalk+r.FinalWalk == 0 {
			return []Segment{}
		}
		return []Segment{{
			Kind:      Walk,
			From:      Place{Lat: origin.Lat, Lon: origin.Lon},
			To:        Place{Lat: destination.Lat, Lon: destination.Lon},
			Departure: r.Departure,
			Arrival:   r.Arrival,
			Duration:  r.InitialWalk + r.FinalWalk,
			Distance:  r.InitialWalkDistance + r.FinalWalkDistance,
		}}
	}

	var segs []Segment
	first := r.Legs[0]
	if r.InitialWalk > 0 {
		segs = append(segs, Segment{
			Kind:      Walk,
			From:      Place{Lat: origin.Lat, Lon: origin.Lon},
			To:        p.place(first.From),
			Departure: first.Departure - r.InitialWalk,
			Arrival:   first.Departure,
			Duration:  r.InitialWalk,
			Distance:  r.InitialWalkDistance,
		})
	}

	for i, leg := range r.Legs {
		if i > 0 {
			prev := r.Legs[i-1]
			if prev.To != leg.From {
				segs = append(segs, p.transferWalk(prev, leg))
			}
		}
		segs = append(segs, p.Populate(leg))
	}

	last := r.Legs[len(r.Legs)-1]
	if r.FinalWalk > 0 {
		segs = append(segs, Segment{
			Kind:      Walk,
			From:      p.place(last.To),
			To:        Place{Lat: destination.Lat, Lon: destination.Lon},
			Departure: last.Arrival,
			Arrival:   last.Arrival + r.FinalWalk,
			Duration:  r.FinalWalk,
			Distance:  r.FinalWalkDistance,
		})
	}
	return segs
}

func (p *Populator) transferWalk(prev, next csa.Leg) Segment {
	from, to := p.place(prev.To), p.place(next.From)
	seg := Segment{
		Kind:      Walk,
		From:      from,
		To:        to,
		Departure: prev.Arrival,
	}

	if from.Stop != nil && to.Stop != nil {
		seg.Distance = utils.Haversine(from.Lat, from.Lon, to.Lat, to.Lon)
		seg.Duration = utils.WalkMinutes(seg.Distance, p.walkSpeed)
		if from.Stop.GroupID == to.Stop.GroupID {
			seg.Duration = max(seg.Duration, p.intraGroupMinutes)
		}
	} else {
		seg.Duration = max(0, next.Departure-prev.Arrival)
		seg.Distance = float64(seg.Duration) * p.walkSpeed
	}
	seg.Arrival = seg.Departure + seg.Duration
	return seg
}

func (p *Populator) stop(id timetable.StopID) timetable.Stop {
	if s, ok := p.stops[id]; ok {
		return s
	}
	return timetable.Stop{ID: id}
}

func (p *Populator) place(id timetable.StopID) Place {
	s, ok := p.stops[id]
	if !ok {
		return Place{StopID: id}
	}
	return Place{StopID: id, Stop: &s, Lat: s.Lat, Lon: s.Lon}
}
