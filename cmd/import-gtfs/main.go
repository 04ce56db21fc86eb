// Command import-gtfs loads a GTFS feed into the timetable database used by the planner.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"

	"csaplanner.dev/internal/appconf"
	"csaplanner.dev/internal/logging"
	"csaplanner.dev/transitdb"
)

func main() {
	var (
		dbPath  string
		source  string
		envFlag string
		verbose bool
	)
	flag.StringVar(&dbPath, "db", "timetable.db", "SQLite database to import into")
	flag.StringVar(&source, "gtfs", "", "GTFS zip path or URL")
	flag.StringVar(&envFlag, "env", "development", "Environment (development|test|production)")
	flag.BoolVar(&verbose, "verbose", false, "Log every import step")
	flag.Parse()

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := logging.NewStructuredLogger(os.Stderr, level)

	if source == "" {
		fmt.Fprintln(os.Stderr, "import-gtfs: -gtfs is required")
		flag.Usage()
		os.Exit(2)
	}

	if err := run(dbPath, source, appconf.EnvFlagToEnvironment(envFlag), verbose, logger); err != nil {
		logging.LogError(logger, "import failed", err)
		os.Exit(1)
	}
}

func run(dbPath, source string, env appconf.Environment, verbose bool, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	store, err := transitdb.NewClient(transitdb.NewConfig(dbPath, env, verbose), logger)
	if err != nil {
		return err
	}
	defer logging.SafeCloseWithLogging(store, logger, "close timetable database")

	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		err = store.DownloadAndStore(ctx, source)
	} else {
		err = store.ImportFromFile(ctx, source)
	}
	if err != nil {
		return err
	}

	counts, err := store.TableCounts()
	if err != nil {
		return err
	}
	tables := make([]string, 0, len(counts))
	for t := range counts {
		tables = append(tables, t)
	}
	sort.Strings(tables)
	for _, t := range tables {
		fmt.Printf("%-20s %d\n", t, counts[t])
	}
	return nil
}
