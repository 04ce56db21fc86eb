package models

import (
	"math"

	"csaplanner.dev/internal/legs"
	"csaplanner.dev/internal/planner"
	"csaplanner.dev/internal/utils"
)

// JourneyPlan is the body of a route query. A query that found no nearby
// stops has Success false and a human readable Error.
type JourneyPlan struct {
	Success bool        `json:"success"`
	Error   string      `json:"error,omitempty"`
	Routes  []Itinerary `json:"routes"`
}

type Itinerary struct {
	ID               int       `json:"id"`
	Departure        string    `json:"departure"`
	Arrival          string    `json:"arrival"`
	DepartureMinutes int       `json:"departureMinutes"`
	ArrivalMinutes   int       `json:"arrivalMinutes"`
	Duration         int       `json:"duration"`
	Transfers        int       `json:"transfers"`
	WeightedScore    int       `json:"weightedScore"`
	Key              string    `json:"key"`
	WalkOnly         bool      `json:"walkOnly"`
	Segments         []Segment `json:"segments"`
}

type Line struct {
	Name      string `json:"name"`
	Type      string `json:"type,omitempty"`
	Color     string `json:"color,omitempty"`
	Signature string `json:"signature,omitempty"`
	IsNight   bool   `json:"isNight"`
}

// Place is a segment endpoint. StopID is zero for free coordinates.
type Place struct {
	StopID int64   `json:"stopId,omitempty"`
	Name   string  `json:"name,omitempty"`
	Lat    float64 `json:"lat"`
	Lon    float64 `json:"lon"`
}

type StopTime struct {
	StopID  int64   `json:"stopId"`
	Name    string  `json:"name"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Minutes int     `json:"minutes"`
	Time    string  `json:"time"`
}

type Segment struct {
	Type             string       `json:"type"`
	From             Place        `json:"from"`
	To               Place        `json:"to"`
	Departure        string       `json:"departure"`
	Arrival          string       `json:"arrival"`
	DepartureMinutes int          `json:"departureMinutes"`
	ArrivalMinutes   int          `json:"arrivalMinutes"`
	Duration         int          `json:"duration"`
	Distance         int          `json:"distance"`
	Line             *Line        `json:"line,omitempty"`
	Key              string       `json:"key,omitempty"`
	Stops            []StopTime   `json:"stops,omitempty"`
	Polyline         string       `json:"polyline,omitempty"`
	Path             [][2]float64 `json:"path,omitempty"`
}

// NewItinerary formats a planned itinerary. ids start at 1.
func NewItinerary(id int, it planner.Itinerary) Itinerary {
	dep, arr := it.DepartureMinute(), it.ArrivalMinute()
	out := Itinerary{
		ID:               id,
		Departure:        utils.FormatMinutes(dep),
		Arrival:          utils.FormatMinutes(arr),
		DepartureMinutes: dep,
		ArrivalMinutes:   arr,
		Duration:         arr - dep,
		Transfers:        it.Route.Transfers,
		WeightedScore:    it.Score,
		Key:              it.Route.Key,
		WalkOnly:         it.WalkOnly(),
		Segments:         make([]Segment, len(it.Segments)),
	}
	for i, s := range it.Segments {
		out.Segments[i] = NewSegment(s)
	}
	return out
}

func NewSegment(s legs.Segment) Segment {
	seg := Segment{
		Type:             string(s.Kind),
		From:             newPlace(s.From),
		To:               newPlace(s.To),
		Departure:        utils.FormatMinutes(s.Departure),
		Arrival:          utils.FormatMinutes(s.Arrival),
		DepartureMinutes: s.Departure,
		ArrivalMinutes:   s.Arrival,
		Duration:         s.Duration,
		Distance:         int(math.Round(s.Distance)),
		Key:              s.Key,
		Polyline:         s.Polyline,
		Path:             s.Path,
	}
	if s.Kind == legs.Transit {
		seg.Line = &Line{
			Name:      s.Line.Name,
			Type:      s.Line.Type,
			Color:     s.Line.Color,
			Signature: s.Line.Signature,
			IsNight:   s.Line.IsNight,
		}
	}
	for _, st := range s.Stops {
		seg.Stops = append(seg.Stops, StopTime{
			StopID:  int64(st.Stop.ID),
			Name:    st.Stop.DisplayName(),
			Lat:     st.Stop.Lat,
			Lon:     st.Stop.Lon,
			Minutes: st.Minute,
			Time:    st.Time,
		})
	}
	return seg
}

func newPlace(p legs.Place) Place {
	place := Place{StopID: int64(p.StopID), Lat: p.Lat, Lon: p.Lon}
	if p.Stop != nil {
		place.Name = p.Stop.DisplayName()
	}
	return place
}
