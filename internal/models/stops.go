package models

import (
	"math"

	"csaplanner.dev/internal/nearby"
	"csaplanner.dev/internal/timetable"
)

type Stop struct {
	ID        int64   `json:"id"`
	Name      string  `json:"name"`
	Code      string  `json:"code,omitempty"`
	Street    string  `json:"street,omitempty"`
	GroupID   int64   `json:"groupId"`
	GroupName string  `json:"groupName,omitempty"`
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
}

func NewStop(s timetable.Stop) Stop {
	return Stop{
		ID:        int64(s.ID),
		Name:      s.DisplayName(),
		Code:      s.Code,
		Street:    s.Street,
		GroupID:   int64(s.GroupID),
		GroupName: s.GroupName,
		Lat:       s.Lat,
		Lon:       s.Lon,
	}
}

// NearbyStop is a stop with the walk to it from the queried point.
type NearbyStop struct {
	Stop
	WalkTime int `json:"walkTime"`
	Distance int `json:"distance"`
}

func NewNearbyStops(candidates []nearby.Candidate) []NearbyStop {
	out := make([]NearbyStop, len(candidates))
	for i, c := range candidates {
		out[i] = NearbyStop{
			Stop:     NewStop(c.Stop),
			WalkTime: c.WalkTime,
			Distance: int(math.Round(c.WalkDistance)),
		}
	}
	return out
}
