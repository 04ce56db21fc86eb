// Package nearby resolves free coordinates to candidate boarding or alighting stops.
package nearby

import (
	"cmp"
	"context"
	"log/slog"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"csaplanner.dev/internal/logging"
	"csaplanner.dev/internal/timetable"
	"csaplanner.dev/internal/transfers"
	"csaplanner.dev/internal/utils"
)

// Candidate is a stop reachable on foot from the query coordinates.
type Candidate struct {
	Stop         timetable.Stop
	WalkTime     int
	WalkDistance float64
	// Refined is true when WalkDistance came from the walking-distance service.
	Refined bool
}

// StopID is a shorthand for Candidate.Stop.ID.
func (c Candidate) StopID() timetable.StopID {
	return c.Stop.ID
}

// Options tune the resolver.
type Options struct {
	MaxWalkMeters float64
	WalkSpeed     float64
	// BatchSize bounds how many destinations go into one service request.
	BatchSize int
	// BatchTimeout bounds each service request.
	BatchTimeout time.Duration
	// MaxConcurrentBatches bounds in-flight service requests.
	MaxConcurrentBatches int
}

// DefaultOptions returns the resolver defaults: 12 minutes at 80 m/min.
func DefaultOptions() Options {
	return Options{
		MaxWalkMeters:        960,
		WalkSpeed:            80,
		BatchSize:            25,
		BatchTimeout:         3 * time.Second,
		MaxConcurrentBatches: 4,
	}
}

// Resolver finds stops near coordinates. The service is optional; without it
// only geodesic distances are used.
type Resolver struct {
	spatial *transfers.SpatialIndex
	service DistanceService
	opts    Options
	logger  *slog.Logger
}

// NewResolver creates a resolver over the spatial index.
func NewResolver(spatial *transfers.SpatialIndex, service DistanceService, opts Options, logger *slog.Logger) *Resolver {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultOptions().BatchSize
	}
	if opts.MaxConcurrentBatches <= 0 {
		opts.MaxConcurrentBatches = 1
	}
	return &Resolver{spatial: spatial, service: service, opts: opts, logger: logger}
}

// Resolve returns the stops within the walk cap of (lat, lon), nearest first.
// Service failures fall back to the geodesic estimate per stop; Resolve never
// fails because of them.
func (r *Resolver) Resolve(ctx context.Context, lat, lon float64) []Candidate {
	candidates := r.Geodesic(lat, lon)
	if len(candidates) == 0 || r.service == nil {
		return candidates
	}

	r.refine(ctx, Point{Lat: lat, Lon: lon}, candidates)
	sortCandidates(candidates)
	return candidates
}

// Geodesic is the first pass only: great-circle distances, nearest first.
func (r *Resolver) Geodesic(lat, lon float64) []Candidate {
	var candidates []Candidate
	for _, stop := range r.spatial.Nearby(lat, lon, r.opts.MaxWalkMeters) {
		dist := utils.Haversine(lat, lon, stop.Lat, stop.Lon)
		if dist > r.opts.MaxWalkMeters {
			continue
		}
		candidates = append(candidates, Candidate{
			Stop:         stop,
			WalkDistance: dist,
			WalkTime:     utils.WalkMinutes(dist, r.opts.WalkSpeed),
		})
	}

	sortCandidates(candidates)
	return candidates
}

func (r *Resolver) refine(ctx context.Context, origin Point, candidates []Candidate) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.MaxConcurrentBatches)

	for start := 0; start < len(candidates); start += r.opts.BatchSize {
		batch := candidates[start:min(start+r.opts.BatchSize, len(candidates))]
		batchNo := start / r.opts.BatchSize

		g.Go(func() error {
			bctx := gctx
			if r.opts.BatchTimeout > 0 {
				var cancel context.CancelFunc
				bctx, cancel = context.WithTimeout(gctx, r.opts.BatchTimeout)
				defer cancel()
			}

			points := make([]Point, len(batch))
			for i, c := range batch {
				points[i] = Point{Lat: c.Stop.Lat, Lon: c.Stop.Lon}
			}

			results, err := r.service.WalkingDistances(bctx, origin, points)
			if err != nil {
				logging.LogError(r.logger, "walking distance batch failed, using geodesic estimate", err,
					slog.Int("batch", batchNo),
					slog.Int("size", len(batch)),
					slog.String("component", "nearby"))
				return nil
			}

			// each goroutine owns a disjoint sub-slice
			for i := range batch {
				if i >= len(results) || !results[i].OK {
					continue
				}
				batch[i].WalkDistance = results[i].Meters
				batch[i].WalkTime = utils.WalkMinutes(results[i].Meters, r.opts.WalkSpeed)
				batch[i].Refined = true
			}
			return nil
		})
	}

	_ = g.Wait() // batches never return errors
}

func sortCandidates(c []Candidate) {
	slices.SortFunc(c, func(a, b Candidate) int {
		return cmp.Or(cmp.Compare(a.WalkDistance, b.WalkDistance), cmp.Compare(a.Stop.ID, b.Stop.ID))
	})
}
