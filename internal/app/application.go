package app

import (
	"log/slog"

	"csaplanner.dev/internal/appconf"
	"csaplanner.dev/internal/planner"
	"csaplanner.dev/transitdb"
)

// Application holds the dependencies for our HTTP handlers, helpers,
// and middleware.
type Application struct {
	Config  appconf.Config
	Logger  *slog.Logger
	Store   *transitdb.Client
	Planner *planner.Manager
}
