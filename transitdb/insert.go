package transitdb

import (
	"context"
	"database/sql"
	"fmt"

	"csaplanner.dev/internal/logging"
)

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

// insertRows prepares query once and runs it for every row inside tx.
func insertRows[T any](ctx context.Context, tx execer, table, query string, rows []T, args func(T) []any) error {
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("error preparing %s insert: %w", table, err)
	}
	defer stmt.Close() // nolint:errcheck

	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, args(row)...); err != nil {
			return fmt.Errorf("error inserting into %s: %w", table, err)
		}
	}
	return nil
}

// Snapshot is the full timetable content, in dependency order. Imports write
// one and the planner loads one.
type Snapshot struct {
	StopGroups      []StopGroup
	Stops           []Stop
	LineTypes       []LineType
	Lines           []Line
	Routes          []Route
	DepartureRoutes []DepartureRoute
	FullRoutes      []FullRouteStop
	Timetables      []Timetable
	AdditionalStops []AdditionalStop
	Geometry        []GeometryPoint
}

// InsertSnapshot writes a dataset in one transaction.
func (c *Client) InsertSnapshot(ctx context.Context, d *Snapshot) error {
	tx, err := c.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}
	defer logging.SafeRollbackWithLogging(tx, c.logger, "insert_snapshot")

	if err := insertSnapshot(ctx, tx, d); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing transaction: %w", err)
	}
	return nil
}

func insertSnapshot(ctx context.Context, tx execer, d *Snapshot) error {
	steps := []func() error{
		func() error {
			return insertRows(ctx, tx, "stop_groups",
				`INSERT OR REPLACE INTO stop_groups (id, name) VALUES (?, ?)`,
				d.StopGroups, func(g StopGroup) []any { return []any{g.ID, g.Name} })
		},
		func() error {
			return insertRows(ctx, tx, "stops",
				`INSERT OR REPLACE INTO stops (id, source_id, group_id, code, alias, street, lat, lon) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				d.Stops, func(s Stop) []any {
					return []any{s.ID, toNullString(s.SourceID), toNullInt64(s.GroupID), toNullString(s.Code),
						toNullString(s.Alias), toNullString(s.Street), s.Lat, s.Lon}
				})
		},
		func() error {
			return insertRows(ctx, tx, "line_types",
				`INSERT OR REPLACE INTO line_types (id, name_singular, name_plural, color) VALUES (?, ?, ?, ?)`,
				d.LineTypes, func(t LineType) []any { return []any{t.ID, t.NameSingular, t.NamePlural, toNullString(t.Color)} })
		},
		func() error {
			return insertRows(ctx, tx, "lines",
				`INSERT OR REPLACE INTO lines (id, name, line_type_id) VALUES (?, ?, ?)`,
				d.Lines, func(l Line) []any { return []any{l.ID, l.Name, l.LineTypeID} })
		},
		func() error {
			return insertRows(ctx, tx, "routes",
				`INSERT OR REPLACE INTO routes (id, line_id, is_circular, is_night) VALUES (?, ?, ?, ?)`,
				d.Routes, func(r Route) []any { return []any{r.ID, r.LineID, boolToInt(r.IsCircular), boolToInt(r.IsNight)} })
		},
		func() error {
			return insertRows(ctx, tx, "departure_routes",
				`INSERT OR REPLACE INTO departure_routes (id, route_id, signature, color) VALUES (?, ?, ?, ?)`,
				d.DepartureRoutes, func(r DepartureRoute) []any {
					return []any{r.ID, r.RouteID, toNullString(r.Signature), toNullString(r.Color)}
				})
		},
		func() error {
			return insertRows(ctx, tx, "full_routes",
				`INSERT INTO full_routes (route_id, stop_id, stop_number, travel_time, is_optional, is_on_request) VALUES (?, ?, ?, ?, ?, ?)`,
				d.FullRoutes, func(f FullRouteStop) []any {
					return []any{f.RouteID, f.StopID, f.StopNumber, f.TravelTime, boolToInt(f.IsOptional), boolToInt(f.IsOnRequest)}
				})
		},
		func() error {
			return insertRows(ctx, tx, "timetables",
				`INSERT INTO timetables (departure_route_id, departure_time) VALUES (?, ?)`,
				d.Timetables, func(t Timetable) []any { return []any{t.DepartureRouteID, t.DepartureTime} })
		},
		func() error {
			return insertRows(ctx, tx, "additional_stops",
				`INSERT OR REPLACE INTO additional_stops (departure_route_id, stop_number) VALUES (?, ?)`,
				d.AdditionalStops, func(a AdditionalStop) []any { return []any{a.DepartureRouteID, a.StopNumber} })
		},
		func() error {
			return insertRows(ctx, tx, "route_geometry",
				`INSERT INTO route_geometry (departure_route_id, stop_number, lat, lon) VALUES (?, ?, ?, ?)`,
				d.Geometry, func(g GeometryPoint) []any { return []any{g.DepartureRouteID, g.StopNumber, g.Lat, g.Lon} })
		},
	}

	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func toNullInt64(i *int64) sql.NullInt64 {
	if i == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *i, Valid: true}
}

// toNullString converts a string to sql.NullString
func toNullString(s string) sql.NullString {
	return sql.NullString{
		String: s,
		Valid:  s != "",
	}
}
