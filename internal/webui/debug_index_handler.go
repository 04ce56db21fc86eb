package webui

import (
	"embed"
	"html/template"
	"net/http"
	"strconv"

	"github.com/davecgh/go-spew/spew"

	"csaplanner.dev/internal/planner"
	"csaplanner.dev/internal/timetable"
)

//go:embed debug_index.html
var templateFS embed.FS

var debugTemplate = template.Must(template.ParseFS(templateFS, "debug_index.html"))

const maxDebugConnections = 50

type debugData struct {
	Title string
	Pre   string
}

// WebUI serves read-only dumps of the planner state.
type WebUI struct {
	Planner *planner.Manager
}

func writeDebugData(w http.ResponseWriter, title string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := debugTemplate.Execute(w, debugData{Title: title, Pre: spew.Sdump(data)}); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

type stopDump struct {
	Stop     timetable.Stop
	Rides    []timetable.Ride
	Outgoing any
	Incoming any
}

func (webUI *WebUI) debugIndexHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	dataType := query.Get("dataType")

	switch dataType {
	case "health":
		writeDebugData(w, "Planner - Health", webUI.Planner.Health())
		return
	case "config":
		writeDebugData(w, "Planner - Config", webUI.Planner.Config())
		return
	}

	network, conns, err := webUI.Planner.Inspect()
	if err != nil {
		writeDebugData(w, "Planner - Not initialized", map[string]string{"error": err.Error()})
		return
	}

	switch dataType {
	case "stats":
		writeDebugData(w, "Network - Preprocess stats", network.Stats)
	case "stop":
		id, err := strconv.ParseInt(query.Get("id"), 10, 64)
		stop, ok := network.StopByID[timetable.StopID(id)]
		if err != nil || !ok {
			writeDebugData(w, "Network - Stop", map[string]string{"error": "unknown stop id"})
			return
		}
		writeDebugData(w, "Network - Stop "+stop.DisplayName(), stopDump{
			Stop:     stop,
			Rides:    network.RidesByStop[stop.ID],
			Outgoing: network.Graph.Outgoing(stop.ID),
			Incoming: network.Graph.Incoming(stop.ID),
		})
	case "connections":
		t, _ := strconv.Atoi(query.Get("t"))
		start := timetable.FindWindowStart(conns, t, 0)
		end := min(start+maxDebugConnections, len(conns))
		writeDebugData(w, "Connections from "+strconv.Itoa(t), conns[start:end])
	default:
		writeDebugData(w, "Choose a data type", map[string]string{
			"error": "Please use one of the following: health, config, stats, stop, connections.",
		})
	}
}
