package restapi

import (
	"net/http"

	"github.com/julienschmidt/httprouter"

	"csaplanner.dev/internal/appconf"
	"csaplanner.dev/internal/webui"
)

type handlerFunc func(w http.ResponseWriter, r *http.Request)

func validateAPIKey(api *RestAPI, finalHandler handlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if api.RequestHasInvalidAPIKey(r) {
			api.invalidAPIKeyResponse(w, r)
			return
		}
		finalHandler(w, r)
	})
}

// SetRoutes registers the API endpoints on router. Everything except the
// health check requires an API key and is rate limited per key.
func (api *RestAPI) SetRoutes(router *httprouter.Router) {
	protected := func(h handlerFunc) http.Handler {
		limited := validateAPIKey(api, h)
		if api.rateLimiter != nil {
			limited = api.rateLimiter(limited)
		}
		return limited
	}

	router.Handler(http.MethodPost, "/api/initialize", protected(api.initializeHandler))
	router.Handler(http.MethodPost, "/api/csa-route", protected(api.csaRouteHandler))
	router.Handler(http.MethodGet, "/api/stops/:id", protected(api.stopHandler))
	router.Handler(http.MethodGet, "/api/stops-for-location", protected(api.stopsForLocationHandler))
	router.HandlerFunc(http.MethodGet, "/api/health", api.healthHandler)

	if api.Config.Env != appconf.Production {
		ui := &webui.WebUI{Planner: api.Planner}
		ui.SetWebUIRoutes(router)
	}

	router.NotFound = http.HandlerFunc(api.sendNotFound)
	router.MethodNotAllowed = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		api.writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
	})
}

// Handler builds the complete middleware chain around the router.
func (api *RestAPI) Handler() http.Handler {
	router := httprouter.New()
	api.SetRoutes(router)

	var h http.Handler = router
	h = CompressionMiddleware(h)
	h = api.WithSecurityHeaders(h)
	h = NewRequestLoggingMiddleware(api.Logger)(h)
	return h
}
