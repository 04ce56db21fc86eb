package transitdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"csaplanner.dev/internal/logging"
)

// dataTables lists the timetable tables, children first.
var dataTables = []string{
	"route_geometry",
	"additional_stops",
	"timetables",
	"full_routes",
	"departure_routes",
	"routes",
	"lines",
	"line_types",
	"stops",
	"stop_groups",
}

// TableCounts returns the row count of every table.
func (c *Client) TableCounts() (map[string]int, error) {
	rows, err := c.DB.Query("SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%'")
	if err != nil {
		return nil, fmt.Errorf("failed to query table names: %w", err)
	}
	defer logging.SafeCloseWithLogging(rows, c.logger, "table_counts")

	var tables []string
	for rows.Next() {
		var tableName string
		if err := rows.Scan(&tableName); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		tables = append(tables, tableName)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	for _, table := range tables {
		var count int
		query := fmt.Sprintf("SELECT COUNT(*) FROM %s", table)
		if err := c.DB.QueryRow(query).Scan(&count); err != nil {
			return nil, err
		}
		counts[table] = count
	}

	return counts, nil
}

// clearAllData empties the timetable tables. Import metadata is kept.
func clearAllData(ctx context.Context, tx execer) error {
	for _, table := range dataTables {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("error clearing %s: %w", table, err)
		}
	}
	return nil
}

// GetImportMetadata returns the last import record, or nil when nothing was imported.
func (c *Client) GetImportMetadata(ctx context.Context) (*ImportMetadata, error) {
	var m ImportMetadata
	err := c.DB.QueryRowContext(ctx,
		`SELECT file_hash, file_source, import_time FROM import_metadata WHERE id = 1`,
	).Scan(&m.FileHash, &m.FileSource, &m.ImportTime)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func upsertImportMetadata(ctx context.Context, tx execer, m ImportMetadata) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO import_metadata (id, file_hash, file_source, import_time) VALUES (1, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			file_hash = excluded.file_hash,
			file_source = excluded.file_source,
			import_time = excluded.import_time`,
		m.FileHash, m.FileSource, m.ImportTime)
	return err
}
