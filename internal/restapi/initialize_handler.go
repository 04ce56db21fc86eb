package restapi

import (
	"net/http"

	"csaplanner.dev/internal/models"
)

func (api *RestAPI) initializeHandler(w http.ResponseWriter, r *http.Request) {
	if err := api.Planner.Initialize(r.Context()); err != nil {
		api.serverErrorResponse(w, r, err)
		return
	}
	api.sendResponse(w, r, models.NewEntryResponse(models.NewHealth(api.Planner.Health())))
}
