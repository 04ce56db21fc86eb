// Package scoring ranks candidate routes and collapses overlapping ones.
package scoring

import (
	"cmp"
	"math"
	"slices"

	"csaplanner.dev/internal/csa"
)

// Weights is the cost table. Minutes are the unit throughout.
type Weights struct {
	WalkReluctance      float64 `yaml:"walk_reluctance" validate:"gte=0"`
	WaitReluctance      float64 `yaml:"wait_reluctance" validate:"gte=0"`
	TransferPenalty     float64 `yaml:"transfer_penalty" validate:"gte=0"`
	RiskThreshold       float64 `yaml:"risk_threshold" validate:"gte=0"`
	RiskFactor          float64 `yaml:"risk_factor" validate:"gte=0"`
	MissedTransferSpike float64 `yaml:"missed_transfer_spike" validate:"gte=0"`
	WalkSoftThreshold   float64 `yaml:"walk_soft_threshold" validate:"gte=0"`
	WalkHardPenalty     float64 `yaml:"walk_hard_penalty" validate:"gte=0"`
	// FilterFactor drops routes scoring above best × FilterFactor.
	FilterFactor float64 `yaml:"filter_factor" validate:"gte=1"`
}

// DefaultWeights favour short walks and safe connections.
func DefaultWeights() Weights {
	return Weights{
		WalkReluctance:      2.5,
		WaitReluctance:      1.5,
		TransferPenalty:     15,
		RiskThreshold:       4,
		RiskFactor:          2,
		MissedTransferSpike: 100,
		WalkSoftThreshold:   5,
		WalkHardPenalty:     1.5,
		FilterFactor:        2,
	}
}

// Breakdown is the itemised cost of a route.
type Breakdown struct {
	RideTime     float64
	TransferWait float64
	Risk         float64
	Walk         float64
	WeightedWalk float64
	Transfers    int
}

// Explain itemises the cost of a route.
func (w Weights) Explain(r *csa.Route) Breakdown {
	legs := slices.Clone(r.Legs)
	slices.SortStableFunc(legs, func(a, b csa.Leg) int { return cmp.Compare(a.Departure, b.Departure) })

	var b Breakdown
	for i, leg := range legs {
		b.RideTime += float64(leg.Arrival - leg.Departure)
		if i == 0 {
			continue
		}

		gap := float64(leg.Departure - legs[i-1].Arrival)
		b.TransferWait += max(0, gap)
		if gap < w.RiskThreshold {
			short := w.RiskThreshold - gap
			b.Risk += short * short * w.RiskFactor
			if gap < 1 {
				b.Risk += w.MissedTransferSpike
			}
		}
	}

	b.Walk = float64(r.InitialWalk + r.FinalWalk)
	b.WeightedWalk = w.weightWalk(b.Walk)
	if len(legs) > 0 {
		b.Transfers = len(legs) - 1
	}
	return b
}

func (w Weights) weightWalk(walk float64) float64 {
	if walk <= w.WalkSoftThreshold {
		return walk * w.WalkReluctance
	}
	return w.WalkSoftThreshold*w.WalkReluctance + (walk-w.WalkSoftThreshold)*(w.WalkReluctance+w.WalkHardPenalty)
}

// Score returns the rounded cost of a route; lower is better. A route without
// legs scores on weighted walk alone.
func (w Weights) Score(r *csa.Route) int {
	b := w.Explain(r)
	total := b.RideTime + b.WeightedWalk + b.TransferWait*w.WaitReluctance +
		float64(b.Transfers)*w.TransferPenalty + b.Risk
	return int(math.Round(total))
}

// Scored pairs a route with its cost.
type Scored struct {
	Route csa.Route
	Score int
}

// ScoreAll scores every route.
func (w Weights) ScoreAll(routes []csa.Route) []Scored {
	out := make([]Scored, len(routes))
	for i := range routes {
		out[i] = Scored{Route: routes[i], Score: w.Score(&routes[i])}
	}
	return out
}

// FilterAndDeduplicate drops routes scoring above best × FilterFactor, then
// walks the rest best first, admitting a route only when its key, departure,
// arrival and every leg key are all unseen. The result is ordered by score.
func (w Weights) FilterAndDeduplicate(routes []Scored) []Scored {
	if len(routes) == 0 {
		return nil
	}

	sorted := slices.Clone(routes)
	slices.SortStableFunc(sorted, compareScored)

	limit := float64(sorted[0].Score) * w.FilterFactor
	seenKeys := make(map[string]struct{})
	seenDepartures := make(map[int]struct{})
	seenArrivals := make(map[int]struct{})
	seenLegs := make(map[string]struct{})

	var out []Scored
	for _, s := range sorted {
		if float64(s.Score) > limit {
			break
		}

		r := &s.Route
		if _, ok := seenKeys[r.Key]; ok {
			continue
		}
		if _, ok := seenDepartures[r.Departure]; ok {
			continue
		}
		if _, ok := seenArrivals[r.Arrival]; ok {
			continue
		}
		if slices.ContainsFunc(r.Legs, func(l csa.Leg) bool {
			_, ok := seenLegs[l.Key]
			return ok
		}) {
			continue
		}

		seenKeys[r.Key] = struct{}{}
		seenDepartures[r.Departure] = struct{}{}
		seenArrivals[r.Arrival] = struct{}{}
		for _, l := range r.Legs {
			seenLegs[l.Key] = struct{}{}
		}
		out = append(out, s)
	}
	return out
}

func compareScored(a, b Scored) int {
	return cmp.Or(
		cmp.Compare(a.Score, b.Score),
		cmp.Compare(a.Route.Departure, b.Route.Departure),
		cmp.Compare(a.Route.Arrival, b.Route.Arrival),
		cmp.Compare(a.Route.Key, b.Route.Key),
	)
}

// ByDeparture orders scored routes by departure, then score.
func ByDeparture(routes []Scored) {
	slices.SortStableFunc(routes, func(a, b Scored) int {
		return cmp.Or(cmp.Compare(a.Route.Departure, b.Route.Departure), cmp.Compare(a.Score, b.Score))
	})
}
