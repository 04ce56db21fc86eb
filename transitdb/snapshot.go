package transitdb

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"csaplanner.dev/internal/logging"
)

func queryRows[T any](ctx context.Context, db *sql.DB, logger *slog.Logger, query string, scan func(*sql.Rows) (T, error)) ([]T, error) {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer logging.SafeCloseWithLogging(rows, logger, "query_rows")

	var out []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// Load reads every table into memory.
func (c *Client) Load(ctx context.Context) (*Snapshot, error) {
	start := time.Now()
	s := &Snapshot{}
	var err error

	if s.StopGroups, err = queryRows(ctx, c.DB, c.logger,
		`SELECT id, name FROM stop_groups ORDER BY id`,
		func(r *sql.Rows) (StopGroup, error) {
			var g StopGroup
			err := r.Scan(&g.ID, &g.Name)
			return g, err
		}); err != nil {
		return nil, fmt.Errorf("loading stop groups: %w", err)
	}

	if s.Stops, err = queryRows(ctx, c.DB, c.logger,
		`SELECT id, source_id, group_id, code, alias, street, lat, lon FROM stops ORDER BY id`,
		func(r *sql.Rows) (Stop, error) {
			var st Stop
			var source, code, alias, street sql.NullString
			var group sql.NullInt64
			if err := r.Scan(&st.ID, &source, &group, &code, &alias, &street, &st.Lat, &st.Lon); err != nil {
				return st, err
			}
			st.SourceID, st.Code, st.Alias, st.Street = source.String, code.String, alias.String, street.String
			if group.Valid {
				st.GroupID = &group.Int64
			}
			return st, nil
		}); err != nil {
		return nil, fmt.Errorf("loading stops: %w", err)
	}

	if s.LineTypes, err = queryRows(ctx, c.DB, c.logger,
		`SELECT id, name_singular, name_plural, color FROM line_types ORDER BY id`,
		func(r *sql.Rows) (LineType, error) {
			var t LineType
			var color sql.NullString
			err := r.Scan(&t.ID, &t.NameSingular, &t.NamePlural, &color)
			t.Color = color.String
			return t, err
		}); err != nil {
		return nil, fmt.Errorf("loading line types: %w", err)
	}

	if s.Lines, err = queryRows(ctx, c.DB, c.logger,
		`SELECT id, name, line_type_id FROM lines ORDER BY id`,
		func(r *sql.Rows) (Line, error) {
			var l Line
			err := r.Scan(&l.ID, &l.Name, &l.LineTypeID)
			return l, err
		}); err != nil {
		return nil, fmt.Errorf("loading lines: %w", err)
	}

	if s.Routes, err = queryRows(ctx, c.DB, c.logger,
		`SELECT id, line_id, is_circular, is_night FROM routes ORDER BY id`,
		func(r *sql.Rows) (Route, error) {
			var rt Route
			err := r.Scan(&rt.ID, &rt.LineID, &rt.IsCircular, &rt.IsNight)
			return rt, err
		}); err != nil {
		return nil, fmt.Errorf("loading routes: %w", err)
	}

	if s.DepartureRoutes, err = queryRows(ctx, c.DB, c.logger,
		`SELECT id, route_id, signature, color FROM departure_routes ORDER BY id`,
		func(r *sql.Rows) (DepartureRoute, error) {
			var d DepartureRoute
			var signature, color sql.NullString
			err := r.Scan(&d.ID, &d.RouteID, &signature, &color)
			d.Signature, d.Color = signature.String, color.String
			return d, err
		}); err != nil {
		return nil, fmt.Errorf("loading departure routes: %w", err)
	}

	if s.FullRoutes, err = queryRows(ctx, c.DB, c.logger,
		`SELECT id, route_id, stop_id, stop_number, travel_time, is_optional, is_on_request
		 FROM full_routes ORDER BY route_id, stop_number`,
		func(r *sql.Rows) (FullRouteStop, error) {
			var f FullRouteStop
			err := r.Scan(&f.ID, &f.RouteID, &f.StopID, &f.StopNumber, &f.TravelTime, &f.IsOptional, &f.IsOnRequest)
			return f, err
		}); err != nil {
		return nil, fmt.Errorf("loading full routes: %w", err)
	}

	if s.Timetables, err = queryRows(ctx, c.DB, c.logger,
		`SELECT id, departure_route_id, departure_time FROM timetables ORDER BY departure_route_id, departure_time`,
		func(r *sql.Rows) (Timetable, error) {
			var t Timetable
			err := r.Scan(&t.ID, &t.DepartureRouteID, &t.DepartureTime)
			return t, err
		}); err != nil {
		return nil, fmt.Errorf("loading timetables: %w", err)
	}

	if s.AdditionalStops, err = queryRows(ctx, c.DB, c.logger,
		`SELECT departure_route_id, stop_number FROM additional_stops ORDER BY departure_route_id, stop_number`,
		func(r *sql.Rows) (AdditionalStop, error) {
			var a AdditionalStop
			err := r.Scan(&a.DepartureRouteID, &a.StopNumber)
			return a, err
		}); err != nil {
		return nil, fmt.Errorf("loading additional stops: %w", err)
	}

	if s.Geometry, err = queryRows(ctx, c.DB, c.logger,
		`SELECT id, departure_route_id, stop_number, lat, lon FROM route_geometry ORDER BY departure_route_id, id`,
		func(r *sql.Rows) (GeometryPoint, error) {
			var g GeometryPoint
			err := r.Scan(&g.ID, &g.DepartureRouteID, &g.StopNumber, &g.Lat, &g.Lon)
			return g, err
		}); err != nil {
		return nil, fmt.Errorf("loading route geometry: %w", err)
	}

	logging.LogOperation(c.logger, "transitdb_snapshot_loaded",
		slog.Int("stops", len(s.Stops)),
		slog.Int("departure_routes", len(s.DepartureRoutes)),
		slog.Int("timetables", len(s.Timetables)),
		slog.Duration("duration", time.Since(start)),
		slog.String("component", "transitdb"))

	return s, nil
}
