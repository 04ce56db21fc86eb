package transfers

import (
	"github.com/tidwall/rtree"

	"csaplanner.dev/internal/timetable"
	"csaplanner.dev/internal/utils"
)

// SpatialIndex is an R-tree over stop coordinates.
type SpatialIndex struct {
	tree  rtree.RTree
	count int
}

// NewSpatialIndex indexes every stop as a point [lat, lon].
func NewSpatialIndex(stops []timetable.Stop) *SpatialIndex {
	idx := &SpatialIndex{}
	for _, stop := range stops {
		point := [2]float64{stop.Lat, stop.Lon}
		idx.tree.Insert(point, point, stop)
		idx.count++
	}
	return idx
}

// Len returns the number of indexed stops.
func (idx *SpatialIndex) Len() int {
	if idx == nil {
		return 0
	}
	return idx.count
}

// InBounds returns the stops inside the bounding box.
func (idx *SpatialIndex) InBounds(bounds utils.CoordinateBounds) []timetable.Stop {
	if idx == nil {
		return nil
	}

	var results []timetable.Stop
	idx.tree.Search(
		[2]float64{bounds.MinLat, bounds.MinLon},
		[2]float64{bounds.MaxLat, bounds.MaxLon},
		func(min, max [2]float64, data interface{}) bool {
			if stop, ok := data.(timetable.Stop); ok {
				results = append(results, stop)
			}
			return true
		},
	)
	return results
}

// Nearby returns the stops inside the bounding box of a circle of radius
// meters around (lat, lon). Callers refine with an exact distance.
func (idx *SpatialIndex) Nearby(lat, lon, radius float64) []timetable.Stop {
	return idx.InBounds(utils.BoundsForRadius(lat, lon, radius))
}
