// Package transitdb is the relational store behind the planner: stop groups,
// stops, lines, departure routes with their stop sequences, timetables and
// route geometry, kept in SQLite.
package transitdb

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"csaplanner.dev/internal/logging"
)

// Client is the main entry point for the store
type Client struct {
	config        Config
	DB            *sql.DB
	logger        *slog.Logger
	importRuntime time.Duration
}

// NewClient opens the database and applies the schema.
func NewClient(config Config, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := createDB(config)
	if err != nil {
		return nil, err
	}
	if config.verbose {
		logging.LogOperation(logger, "transitdb_tables_created",
			slog.String("db_path", config.DBPath),
			slog.String("component", "transitdb"))
	}

	return &Client{
		config: config,
		DB:     db,
		logger: logger,
	}, nil
}

func (c *Client) Close() error {
	return c.DB.Close()
}

// ImportRuntime returns how long the last import took.
func (c *Client) ImportRuntime() time.Duration {
	return c.importRuntime
}

// DownloadAndStore downloads a GTFS zip from url and imports it.
func (c *Client) DownloadAndStore(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("building GTFS request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("downloading GTFS: %w", err)
	}
	defer logging.SafeCloseWithLogging(resp.Body, c.logger, "gtfs_download")

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("downloading GTFS: HTTP %d", resp.StatusCode)
	}

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading GTFS body: %w", err)
	}

	return c.ImportGTFS(ctx, b, url)
}

// ImportFromFile imports a local GTFS zip.
func (c *Client) ImportFromFile(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	return c.ImportGTFS(ctx, data, path)
}
