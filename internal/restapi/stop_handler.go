package restapi

import (
	"errors"
	"net/http"
	"strconv"

	"csaplanner.dev/internal/models"
	"csaplanner.dev/internal/planner"
	"csaplanner.dev/internal/timetable"
	"csaplanner.dev/internal/utils"
)

func (api *RestAPI) stopHandler(w http.ResponseWriter, r *http.Request) {
	rawID := utils.ExtractIDFromParams(r, "id")
	if err := utils.ValidateStopID(rawID); err != nil {
		api.validationErrorResponse(w, r, map[string][]string{"id": {err.Error()}})
		return
	}

	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		api.validationErrorResponse(w, r, map[string][]string{"id": {"id out of range"}})
		return
	}

	stop, err := api.Planner.Stop(timetable.StopID(id))
	switch {
	case errors.Is(err, planner.ErrNotInitialized):
		api.notInitializedResponse(w, r)
		return
	case errors.Is(err, planner.ErrStopNotFound):
		api.sendNotFound(w, r)
		return
	case err != nil:
		api.serverErrorResponse(w, r, err)
		return
	}

	api.sendResponse(w, r, models.NewEntryResponse(models.NewStop(stop)))
}
