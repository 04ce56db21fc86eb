package planner

import (
	"time"

	"csaplanner.dev/internal/appconf"
	"csaplanner.dev/internal/csa"
	"csaplanner.dev/internal/nearby"
	"csaplanner.dev/internal/scoring"
	"csaplanner.dev/internal/transfers"
)

// Config holds the planner tunables. Times are minutes unless noted.
type Config struct {
	// WalkSpeed is in meters per minute.
	WalkSpeed     float64 `yaml:"walk_speed" validate:"gt=0"`
	MaxWalkMeters float64 `yaml:"max_walk_meters" validate:"gt=0"`
	// MaxOrigins caps how many nearby stops are scanned from, nearest first. 0 scans all.
	MaxOrigins int `yaml:"max_origins" validate:"gte=0"`

	WindowMinutes      int `yaml:"window_minutes" validate:"gt=0"`
	WindowSpan         int `yaml:"window_span" validate:"gt=0"`
	Slack              int `yaml:"slack" validate:"gte=0"`
	MaxTransfers       int `yaml:"max_transfers" validate:"gte=0"`
	MaxDepth           int `yaml:"max_depth" validate:"gt=0"`
	MeaningfulTransfer int `yaml:"meaningful_transfer" validate:"gte=0"`

	FrontierCap             int     `yaml:"frontier_cap" validate:"gt=0"`
	FrontierTransferPenalty float64 `yaml:"frontier_transfer_penalty" validate:"gte=0"`
	FrontierWalkWeight      float64 `yaml:"frontier_walk_weight" validate:"gte=0"`

	IntraGroupMinutes       int     `yaml:"intra_group_minutes" validate:"gte=0"`
	InterGroupMaxWalkMeters float64 `yaml:"inter_group_max_walk_meters" validate:"gte=0"`
	SpatialRadiusMeters     float64 `yaml:"spatial_radius_meters" validate:"gte=0"`

	DistanceServiceURL        string        `yaml:"distance_service_url" validate:"omitempty,url"`
	DistanceBatchSize         int           `yaml:"distance_batch_size" validate:"gt=0,lte=25"`
	DistanceTimeout           time.Duration `yaml:"distance_timeout" validate:"gte=0"`
	DistanceRequestsPerSecond int           `yaml:"distance_requests_per_second" validate:"gte=0"`

	// MaxConcurrentPasses bounds parallel (origin, window) scans. 0 means one per CPU.
	MaxConcurrentPasses int `yaml:"max_concurrent_passes" validate:"gte=0"`
	// IncludeWalkOnly adds a direct walk when the destination is within MaxWalkMeters.
	IncludeWalkOnly bool `yaml:"include_walk_only"`

	Scoring scoring.Weights `yaml:"scoring"`
}

// DefaultConfig returns the planner defaults.
func DefaultConfig() Config {
	params := csa.DefaultParams()
	graph := transfers.DefaultOptions()
	resolver := nearby.DefaultOptions()

	return Config{
		WalkSpeed:     80,
		MaxWalkMeters: resolver.MaxWalkMeters,

		WindowMinutes:      10,
		WindowSpan:         params.WindowSpan,
		Slack:              params.Slack,
		MaxTransfers:       params.MaxTransfers,
		MaxDepth:           params.MaxDepth,
		MeaningfulTransfer: params.MeaningfulTransfer,

		FrontierCap:             params.Frontier.Cap,
		FrontierTransferPenalty: params.Frontier.TransferPenalty,
		FrontierWalkWeight:      params.Frontier.WalkDistanceWeight,

		IntraGroupMinutes:       graph.IntraGroupMinutes,
		InterGroupMaxWalkMeters: graph.MaxWalkMeters,
		SpatialRadiusMeters:     graph.SearchRadiusMeters,

		DistanceBatchSize: resolver.BatchSize,
		DistanceTimeout:   resolver.BatchTimeout,

		IncludeWalkOnly: true,
		Scoring:         scoring.DefaultWeights(),
	}
}

// LoadConfig reads a YAML file over the defaults. An empty or missing path
// yields the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if err := appconf.LoadYAML(path, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) scanParams() csa.Params {
	return csa.Params{
		MaxTransfers:       c.MaxTransfers,
		WindowSpan:         c.WindowSpan,
		Slack:              c.Slack,
		MaxDepth:           c.MaxDepth,
		MeaningfulTransfer: c.MeaningfulTransfer,
		Frontier: csa.FrontierOptions{
			Cap:                c.FrontierCap,
			TransferPenalty:    c.FrontierTransferPenalty,
			WalkDistanceWeight: c.FrontierWalkWeight,
		},
	}
}

func (c Config) transferOptions() transfers.Options {
	return transfers.Options{
		IntraGroupMinutes:  c.IntraGroupMinutes,
		MaxWalkMeters:      c.InterGroupMaxWalkMeters,
		SearchRadiusMeters: c.SpatialRadiusMeters,
		WalkSpeed:          c.WalkSpeed,
	}
}

func (c Config) resolverOptions() nearby.Options {
	return nearby.Options{
		MaxWalkMeters:        c.MaxWalkMeters,
		WalkSpeed:            c.WalkSpeed,
		BatchSize:            c.DistanceBatchSize,
		BatchTimeout:         c.DistanceTimeout,
		MaxConcurrentBatches: nearby.DefaultOptions().MaxConcurrentBatches,
	}
}
