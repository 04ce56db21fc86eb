package nearby

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"csaplanner.dev/internal/logging"
	"csaplanner.dev/internal/utils"
)

// Point is a WGS84 coordinate.
type Point = utils.Coordinates

// DistanceResult is the walking distance to one destination. OK is false when
// the service could not route to it.
type DistanceResult struct {
	Meters float64
	OK     bool
}

// DistanceService estimates walking distances from one origin to many destinations.
// Implementations return one result per destination, in order.
type DistanceService interface {
	WalkingDistances(ctx context.Context, origin Point, destinations []Point) ([]DistanceResult, error)
}

// DefaultDistanceMatrixURL is the Google Distance Matrix JSON endpoint.
const DefaultDistanceMatrixURL = "https://maps.googleapis.com/maps/api/distancematrix/json"

// ErrUnexpectedResponse is returned when the service answers with a shape we cannot use.
var ErrUnexpectedResponse = errors.New("unexpected distance matrix response")

// DistanceMatrixClient queries a Distance Matrix compatible HTTP API in walking mode.
type DistanceMatrixClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// NewDistanceMatrixClient creates a client. requestsPerSecond <= 0 disables pacing.
func NewDistanceMatrixClient(baseURL, apiKey string, requestsPerSecond int, logger *slog.Logger) *DistanceMatrixClient {
	if baseURL == "" {
		baseURL = DefaultDistanceMatrixURL
	}

	limit := rate.Inf
	burst := 1
	if requestsPerSecond > 0 {
		limit = rate.Limit(requestsPerSecond)
		burst = requestsPerSecond
	}

	return &DistanceMatrixClient{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		limiter:    rate.NewLimiter(limit, burst),
		logger:     logger,
	}
}

type distanceMatrixResponse struct {
	Status string `json:"status"`
	Rows   []struct {
		Elements []struct {
			Status   string `json:"status"`
			Distance struct {
				Value float64 `json:"value"`
			} `json:"distance"`
		} `json:"elements"`
	} `json:"rows"`
}

// WalkingDistances issues one request for the whole batch.
func (c *DistanceMatrixClient) WalkingDistances(ctx context.Context, origin Point, destinations []Point) ([]DistanceResult, error) {
	if len(destinations) == 0 {
		return nil, nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	dest := make([]string, len(destinations))
	for i, d := range destinations {
		dest[i] = formatPoint(d)
	}

	query := url.Values{}
	query.Set("origins", formatPoint(origin))
	query.Set("destinations", strings.Join(dest, "|"))
	query.Set("mode", "walking")
	query.Set("units", "metric")
	if c.apiKey != "" {
		query.Set("key", c.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("building distance request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("distance request: %w", err)
	}
	defer logging.SafeCloseWithLogging(resp.Body, c.logger, "distance_matrix_response")

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: HTTP %d", ErrUnexpectedResponse, resp.StatusCode)
	}

	var body distanceMatrixResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding distance response: %w", err)
	}
	if body.Status != "" && body.Status != "OK" {
		return nil, fmt.Errorf("%w: status %s", ErrUnexpectedResponse, body.Status)
	}
	if len(body.Rows) == 0 {
		return nil, fmt.Errorf("%w: no rows", ErrUnexpectedResponse)
	}

	elements := body.Rows[0].Elements
	results := make([]DistanceResult, len(destinations))
	for i := range results {
		if i < len(elements) && elements[i].Status == "OK" {
			results[i] = DistanceResult{Meters: elements[i].Distance.Value, OK: true}
		}
	}
	return results, nil
}

func formatPoint(p Point) string {
	return strconv.FormatFloat(p.Lat, 'f', 6, 64) + "," + strconv.FormatFloat(p.Lon, 'f', 6, 64)
}
