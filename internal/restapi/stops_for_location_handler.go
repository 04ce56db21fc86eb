package restapi

import (
	"errors"
	"net/http"

	"csaplanner.dev/internal/models"
	"csaplanner.dev/internal/planner"
	"csaplanner.dev/internal/utils"
)

const defaultMaxCount = 50

func (api *RestAPI) stopsForLocationHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	var fieldErrors map[string][]string
	lat, fieldErrors := utils.ParseFloatParam(query, "lat", fieldErrors)
	lon, fieldErrors := utils.ParseFloatParam(query, "lon", fieldErrors)
	maxCount, fieldErrors := utils.ParseIntParam(query, "maxCount", defaultMaxCount, fieldErrors)

	if !query.Has("lat") {
		fieldErrors["lat"] = append(fieldErrors["lat"], "lat is required")
	}
	if !query.Has("lon") {
		fieldErrors["lon"] = append(fieldErrors["lon"], "lon is required")
	}
	for k, v := range utils.ValidateLocationParams(lat, lon, "lat", "lon") {
		fieldErrors[k] = append(fieldErrors[k], v...)
	}
	if maxCount <= 0 {
		fieldErrors["maxCount"] = append(fieldErrors["maxCount"], "maxCount must be positive")
	}
	if len(fieldErrors) > 0 {
		api.validationErrorResponse(w, r, fieldErrors)
		return
	}

	candidates, err := api.Planner.StopsNear(lat, lon)
	if errors.Is(err, planner.ErrNotInitialized) {
		api.notInitializedResponse(w, r)
		return
	}
	if err != nil {
		api.serverErrorResponse(w, r, err)
		return
	}

	limitExceeded := len(candidates) > maxCount
	if limitExceeded {
		candidates = candidates[:maxCount]
	}
	api.sendResponse(w, r, models.NewListResponse(models.NewNearbyStops(candidates), limitExceeded))
}
