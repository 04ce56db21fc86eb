package transitdb

import (
	"cmp"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/jamespfennell/gtfs"

	"csaplanner.dev/internal/logging"
	"csaplanner.dev/internal/utils"
)

const (
	gtfsStation           = 1
	gtfsPickupPhoneAgency = 2
	gtfsPickupCoordinate  = 3
	nightStartMinute      = 23 * 60
	nightEndMinute        = 5 * 60
	minutesPerDay         = 24 * 60
)

// lineTypeNames maps GTFS route types to display names.
var lineTypeNames = map[int][2]string{
	0:  {"tram", "trams"},
	1:  {"metro", "metros"},
	2:  {"train", "trains"},
	3:  {"bus", "buses"},
	4:  {"ferry", "ferries"},
	5:  {"cable tram", "cable trams"},
	6:  {"aerial lift", "aerial lifts"},
	7:  {"funicular", "funiculars"},
	11: {"trolleybus", "trolleybuses"},
	12: {"monorail", "monorails"},
}

// ImportGTFS replaces the store content with a GTFS feed. A feed whose hash
// matches the last import is skipped; only the recorded source is refreshed.
func (c *Client) ImportGTFS(ctx context.Context, data []byte, source string) error {
	startTime := time.Now()
	defer func() {
		c.importRuntime = time.Since(startTime)
	}()

	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])

	previous, err := c.GetImportMetadata(ctx)
	if err != nil {
		return fmt.Errorf("reading import metadata: %w", err)
	}
	if previous != nil && previous.FileHash == hash {
		logging.LogOperation(c.logger, "gtfs_import_skipped_unchanged",
			slog.String("source", source),
			slog.String("component", "transitdb"))
		if previous.FileSource == source {
			return nil
		}
		return c.recordImport(ctx, nil, hash, source)
	}

	staticData, err := gtfs.ParseStatic(data, gtfs.ParseStaticOptions{})
	if err != nil {
		return fmt.Errorf("parsing GTFS: %w", err)
	}

	snapshot := SnapshotFromGTFS(staticData)
	if err := c.recordImport(ctx, snapshot, hash, source); err != nil {
		return err
	}

	logging.LogOperation(c.logger, "gtfs_imported",
		slog.String("source", source),
		slog.Int("warnings", len(staticData.Warnings)),
		slog.Int("stops", len(snapshot.Stops)),
		slog.Int("departure_routes", len(snapshot.DepartureRoutes)),
		slog.Int("timetables", len(snapshot.Timetables)),
		slog.Duration("duration", time.Since(startTime)),
		slog.String("component", "transitdb"))

	if c.config.verbose {
		counts, err := c.TableCounts()
		if err != nil {
			return err
		}
		for table, n := range counts {
			c.logger.Debug("table_count", slog.String("table", table), slog.Int("rows", n))
		}
	}
	return nil
}

// recordImport replaces the data with snapshot (when non-nil) and stores the
// import metadata in the same transaction.
func (c *Client) recordImport(ctx context.Context, snapshot *Snapshot, hash, source string) error {
	tx, err := c.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}
	defer logging.SafeRollbackWithLogging(tx, c.logger, "gtfs_import")

	if snapshot != nil {
		if err := clearAllData(ctx, tx); err != nil {
			return err
		}
		if err := insertSnapshot(ctx, tx, snapshot); err != nil {
			return err
		}
	}

	meta := ImportMetadata{FileHash: hash, FileSource: source, ImportTime: time.Now().UnixNano()}
	if err := upsertImportMetadata(ctx, tx, meta); err != nil {
		return fmt.Errorf("error storing import metadata: %w", err)
	}

	return tx.Commit()
}

// SnapshotFromGTFS maps a parsed feed onto the store model: parent stations
// become stop groups, every distinct (stop sequence, running times) of a
// route direction becomes a route with its full-route stops and a single
// departure route, and trip start times become timetable rows. GTFS has no
// optional stops, so no additional_stops rows are produced.
func SnapshotFromGTFS(static *gtfs.Static) *Snapshot {
	s := &Snapshot{}

	trips := make([]*gtfs.ScheduledTrip, 0, len(static.Trips))
	for i := range static.Trips {
		t := &static.Trips[i]
		if len(t.StopTimes) < 2 || t.Route == nil {
			continue
		}
		trips = append(trips, t)
	}

	stopIDs, groupKeys := boardingStops(trips)
	stopByID := make(map[string]*gtfs.Stop)
	for _, t := range trips {
		for _, st := range t.StopTimes {
			stopByID[st.Stop.Id] = st.Stop
		}
	}

	groupNames := make(map[string]string, len(groupKeys))
	for _, stop := range stopByID {
		key := groupKeyOf(stop)
		if key != stop.Id {
			groupNames[key] = stop.Parent.Name
		} else if _, ok := groupNames[key]; !ok {
			groupNames[key] = stop.Name
		}
	}

	groupIDs := make(map[string]int64, len(groupKeys))
	for i, key := range groupKeys {
		groupIDs[key] = int64(i + 1)
		s.StopGroups = append(s.StopGroups, StopGroup{ID: int64(i + 1), Name: groupNames[key]})
	}

	internalStop := make(map[string]int64, len(stopIDs))
	for i, id := range stopIDs {
		stop := stopByID[id]
		gid := groupIDs[groupKeyOf(stop)]
		internalStop[id] = int64(i + 1)
		s.Stops = append(s.Stops, Stop{
			ID:       int64(i + 1),
			SourceID: id,
			GroupID:  &gid,
			Code:     stop.Code,
			Alias:    stop.Name,
			Street:   stop.Description,
			Lat:      deref(stop.Latitude),
			Lon:      deref(stop.Longitude),
		})
	}

	// lines and their types, in route id order
	routes := make([]*gtfs.Route, 0, len(static.Routes))
	for i := range static.Routes {
		routes = append(routes, &static.Routes[i])
	}
	slices.SortFunc(routes, func(a, b *gtfs.Route) int { return cmp.Compare(a.Id, b.Id) })

	lineIDs := make(map[string]int64, len(routes))
	seenTypes := make(map[int]bool)
	for i, r := range routes {
		typ := int(r.Type)
		if !seenTypes[typ] {
			seenTypes[typ] = true
			names, ok := lineTypeNames[typ]
			if !ok {
				names = [2]string{"vehicle", "vehicles"}
			}
			s.LineTypes = append(s.LineTypes, LineType{ID: int64(typ + 1), NameSingular: names[0], NamePlural: names[1]})
		}
		lineIDs[r.Id] = int64(i + 1)
		s.Lines = append(s.Lines, Line{ID: int64(i + 1), Name: lineName(r), LineTypeID: int64(typ + 1)})
	}
	slices.SortFunc(s.LineTypes, func(a, b LineType) int { return cmp.Compare(a.ID, b.ID) })

	slices.SortFunc(trips, func(a, b *gtfs.ScheduledTrip) int {
		return cmp.Or(
			cmp.Compare(a.Route.Id, b.Route.Id),
			cmp.Compare(int(a.DirectionId), int(b.DirectionId)),
			cmp.Compare(a.StopTimes[0].DepartureTime, b.StopTimes[0].DepartureTime),
			cmp.Compare(a.ID, b.ID),
		)
	})

	patternIDs := make(map[string]int64)
	patternBases := make(map[int64][]int)
	for _, t := range trips {
		base := minutes(t.StopTimes[0].DepartureTime)

		key := patternKey(t, base)
		patternID, ok := patternIDs[key]
		if !ok {
			patternID = int64(len(patternIDs) + 1)
			patternIDs[key] = patternID

			first, last := t.StopTimes[0].Stop.Id, t.StopTimes[len(t.StopTimes)-1].Stop.Id
			s.Routes = append(s.Routes, Route{ID: patternID, LineID: lineIDs[t.Route.Id], IsCircular: first == last})
			s.DepartureRoutes = append(s.DepartureRoutes, DepartureRoute{
				ID:        patternID,
				RouteID:   patternID,
				Signature: t.Headsign,
				Color:     t.Route.Color,
			})

			prevOffset := 0
			for i, st := range t.StopTimes {
				offset := minutes(st.DepartureTime) - base
				pickup := int(st.PickupType)
				s.FullRoutes = append(s.FullRoutes, FullRouteStop{
					RouteID:     patternID,
					StopID:      internalStop[st.Stop.Id],
					StopNumber:  i + 1,
					TravelTime:  offset - prevOffset,
					IsOnRequest: pickup == gtfsPickupPhoneAgency || pickup == gtfsPickupCoordinate,
				})
				prevOffset = offset
			}
			s.Geometry = append(s.Geometry, patternGeometry(patternID, t)...)
		}

		patternBases[patternID] = append(patternBases[patternID], base)
		s.Timetables = append(s.Timetables, Timetable{DepartureRouteID: patternID, DepartureTime: base})
	}

	for i := range s.Routes {
		s.Routes[i].IsNight = allNight(patternBases[s.Routes[i].ID])
	}

	return s
}

// boardingStops returns the source ids of stops served by trips and the
// group keys they fall into, both sorted.
func boardingStops(trips []*gtfs.ScheduledTrip) ([]string, []string) {
	stops := make(map[string]struct{})
	groups := make(map[string]struct{})
	for _, t := range trips {
		for _, st := range t.StopTimes {
			stops[st.Stop.Id] = struct{}{}
			groups[groupKeyOf(st.Stop)] = struct{}{}
		}
	}

	stopIDs := make([]string, 0, len(stops))
	for id := range stops {
		stopIDs = append(stopIDs, id)
	}
	groupKeys := make([]string, 0, len(groups))
	for key := range groups {
		groupKeys = append(groupKeys, key)
	}
	slices.Sort(stopIDs)
	slices.Sort(groupKeys)
	return stopIDs, groupKeys
}

// groupKeyOf is the parent station id, or the stop's own id when it has none.
func groupKeyOf(stop *gtfs.Stop) string {
	if stop.Parent != nil && int(stop.Parent.Type) == gtfsStation {
		return stop.Parent.Id
	}
	return stop.Id
}

// patternKey identifies a stop sequence with its running times within one
// route direction.
func patternKey(t *gtfs.ScheduledTrip, base int) string {
	var b strings.Builder
	b.WriteString(t.Route.Id)
	b.WriteByte('/')
	b.WriteString(strconv.Itoa(int(t.DirectionId)))
	for _, st := range t.StopTimes {
		b.WriteByte('|')
		b.WriteString(st.Stop.Id)
		b.WriteByte('@')
		b.WriteString(strconv.Itoa(minutes(st.DepartureTime) - base))
	}
	return b.String()
}

// patternGeometry tags each shape point with the number of the stop its
// segment starts at. Trips without a shape fall back to the stop coordinates.
func patternGeometry(patternID int64, t *gtfs.ScheduledTrip) []GeometryPoint {
	var points []GeometryPoint
	if t.Shape == nil || len(t.Shape.Points) < 2 {
		for i, st := range t.StopTimes {
			points = append(points, GeometryPoint{
				DepartureRouteID: patternID,
				StopNumber:       i + 1,
				Lat:              deref(st.Stop.Latitude),
				Lon:              deref(st.Stop.Longitude),
			})
		}
		return points
	}

	shape := t.Shape.Points
	anchors := make([]int, len(t.StopTimes))
	from := 0
	for i, st := range t.StopTimes {
		lat, lon := deref(st.Stop.Latitude), deref(st.Stop.Longitude)
		best, bestDist := from, math.Inf(1)
		for j := from; j < len(shape); j++ {
			d := utils.Haversine(lat, lon, shape[j].Latitude, shape[j].Longitude)
			if d < bestDist {
				best, bestDist = j, d
			}
		}
		anchors[i] = best
		from = best
	}

	stopNumber := 1
	for j, pt := range shape {
		for stopNumber < len(anchors) && j >= anchors[stopNumber] {
			stopNumber++
		}
		points = append(points, GeometryPoint{
			DepartureRouteID: patternID,
			StopNumber:       stopNumber,
			Lat:              pt.Latitude,
			Lon:              pt.Longitude,
		})
	}
	return points
}

func allNight(bases []int) bool {
	if len(bases) == 0 {
		return false
	}
	for _, b := range bases {
		m := b % minutesPerDay
		if m >= nightEndMinute && m < nightStartMinute {
			return false
		}
	}
	return true
}

func lineName(r *gtfs.Route) string {
	switch {
	case r.ShortName != "":
		return r.ShortName
	case r.LongName != "":
		return r.LongName
	default:
		return r.Id
	}
}

func minutes(d time.Duration) int {
	return int(d / time.Minute)
}

func deref(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}
