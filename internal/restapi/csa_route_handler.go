package restapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"csaplanner.dev/internal/appconf"
	"csaplanner.dev/internal/models"
	"csaplanner.dev/internal/planner"
)

const maxRouteBodyBytes = 1 << 16

// routeRequest is the body of POST /api/csa-route. Times are minutes after midnight.
type routeRequest struct {
	Lat1      *float64 `json:"lat1" validate:"required,latitude"`
	Lon1      *float64 `json:"lon1" validate:"required,longitude"`
	Lat2      *float64 `json:"lat2" validate:"required,latitude"`
	Lon2      *float64 `json:"lon2" validate:"required,longitude"`
	StartTime *int     `json:"startTime" validate:"required,min=0,max=1440"`
	EndTime   *int     `json:"endTime" validate:"required,min=0,max=1440"`
	Sort      string   `json:"sort" validate:"omitempty,oneof=departure score"`
}

func (api *RestAPI) csaRouteHandler(w http.ResponseWriter, r *http.Request) {
	var body routeRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRouteBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		api.validationErrorResponse(w, r, map[string][]string{"body": {"malformed JSON body"}})
		return
	}

	if err := appconf.Validator().Struct(body); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			api.validationErrorResponse(w, r, fieldErrorsOf(verrs))
			return
		}
		api.serverErrorResponse(w, r, err)
		return
	}

	req := planner.Request{
		OriginLat:   *body.Lat1,
		OriginLon:   *body.Lon1,
		DestLat:     *body.Lat2,
		DestLon:     *body.Lon2,
		StartMinute: *body.StartTime,
		EndMinute:   *body.EndTime,
		SortByScore: body.Sort == "score",
	}

	result, err := api.Planner.PlanJourney(r.Context(), req)
	var fieldErr *planner.FieldError
	switch {
	case err == nil:
	case errors.As(err, &fieldErr):
		api.validationErrorResponse(w, r, fieldErr.Fields)
		return
	case errors.Is(err, planner.ErrNotInitialized):
		api.notInitializedResponse(w, r)
		return
	case errors.Is(err, planner.ErrNoOriginStops):
		api.sendResponse(w, r, models.NewOKResponse(models.JourneyPlan{Error: "No stops found near origin coordinates", Routes: []models.Itinerary{}}))
		return
	case errors.Is(err, planner.ErrNoDestinationStops):
		api.sendResponse(w, r, models.NewOKResponse(models.JourneyPlan{Error: "No stops found near destination coordinates", Routes: []models.Itinerary{}}))
		return
	default:
		api.serverErrorResponse(w, r, err)
		return
	}

	plan := models.JourneyPlan{Success: true, Routes: make([]models.Itinerary, len(result.Itineraries))}
	for i, it := range result.Itineraries {
		plan.Routes[i] = models.NewItinerary(i+1, it)
	}
	api.sendResponse(w, r, models.NewOKResponse(plan))
}

// fieldErrorsOf keys validator errors by their JSON field name.
func fieldErrorsOf(verrs validator.ValidationErrors) map[string][]string {
	out := make(map[string][]string, len(verrs))
	for _, fe := range verrs {
		name := fe.Field()
		key := strings.ToLower(name[:1]) + name[1:]
		out[key] = append(out[key], fieldMessage(fe))
	}
	return out
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "latitude":
		return "latitude must be between -90 and 90"
	case "longitude":
		return "longitude must be between -180 and 180"
	case "min", "max":
		return "time must be between 0 and 1440"
	case "oneof":
		return "sort must be one of: " + fe.Param()
	default:
		return "invalid value"
	}
}
