package restapi

import (
	"net/http"

	"csaplanner.dev/internal/models"
)

func (api *RestAPI) healthHandler(w http.ResponseWriter, r *http.Request) {
	api.sendResponse(w, r, models.NewEntryResponse(models.NewHealth(api.Planner.Health())))
}
