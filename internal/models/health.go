package models

import "csaplanner.dev/internal/planner"

type Health struct {
	Initialized    bool    `json:"initialized"`
	Stops          int     `json:"stops"`
	Groups         int     `json:"groups"`
	Connections    int     `json:"connections"`
	TransferEdges  int     `json:"transferEdges"`
	Patterns       int     `json:"patterns"`
	DroppedRides   int     `json:"droppedRides"`
	UngroupedStops int     `json:"ungroupedStops"`
	BuiltAt        int64   `json:"builtAt,omitempty"`
	BuildSeconds   float64 `json:"buildSeconds,omitempty"`
}

func NewHealth(h planner.Health) Health {
	out := Health{
		Initialized:    h.Initialized,
		Stops:          h.Stops,
		Groups:         h.Groups,
		Connections:    h.Connections,
		TransferEdges:  h.TransferEdges,
		Patterns:       h.Patterns,
		DroppedRides:   h.DroppedRides,
		UngroupedStops: h.UngroupedStops,
		BuildSeconds:   h.BuildTime.Seconds(),
	}
	if !h.BuiltAt.IsZero() {
		out.BuiltAt = h.BuiltAt.UnixMilli()
	}
	return out
}
