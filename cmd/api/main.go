package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"csaplanner.dev/internal/app"
	"csaplanner.dev/internal/appconf"
	"csaplanner.dev/internal/logging"
	"csaplanner.dev/internal/nearby"
	"csaplanner.dev/internal/planner"
	"csaplanner.dev/internal/restapi"
	"csaplanner.dev/transitdb"
)

const shutdownTimeout = 10 * time.Second

func main() {
	var cfg appconf.Config
	var envFlag, apiKeysFlag string

	flag.IntVar(&cfg.Port, "port", 4000, "API server port")
	flag.StringVar(&envFlag, "env", "development", "Environment (development|test|production)")
	flag.StringVar(&apiKeysFlag, "api-keys", "test", "Comma Separated API Keys (test, etc)")
	flag.IntVar(&cfg.RateLimit, "rate-limit", 100, "Requests per second per API key, 0 disables limiting")
	flag.StringVar(&cfg.LogLevel, "log-level", "info", "Log level (debug|info|warn|error)")
	flag.StringVar(&cfg.DBPath, "db", "timetable.db", "SQLite database holding the timetable")
	flag.StringVar(&cfg.GTFSSource, "gtfs", "", "GTFS zip path or URL imported into the database at startup")
	flag.StringVar(&cfg.PlannerConfigPath, "planner-config", "planner.yml", "YAML file with planner tunables")
	flag.BoolVar(&cfg.InitializeOnStart, "initialize", false, "Build the routing indices before serving")
	flag.Parse()

	cfg.Env = appconf.EnvFlagToEnvironment(envFlag)
	cfg.ApiKeys = splitKeys(apiKeysFlag)

	logger := logging.NewStructuredLogger(os.Stdout, logging.ParseLevel(cfg.LogLevel))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logging.LogError(logger, "server stopped", err)
		os.Exit(1)
	}
}

func splitKeys(flagValue string) []string {
	var keys []string
	for _, k := range strings.Split(flagValue, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

func run(cfg appconf.Config, logger *slog.Logger) error {
	if err := appconf.LoadEnvFiles(".env"); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	plannerConfig, err := planner.LoadConfig(cfg.PlannerConfigPath)
	if err != nil {
		return err
	}

	store, err := transitdb.NewClient(transitdb.NewConfig(cfg.DBPath, cfg.Env, cfg.Env == appconf.Development), logger)
	if err != nil {
		return fmt.Errorf("opening timetable database: %w", err)
	}
	defer logging.SafeCloseWithLogging(store, logger, "close timetable database")

	if err := importSource(ctx, store, cfg.GTFSSource); err != nil {
		return err
	}

	var service nearby.DistanceService
	if key := appconf.WalkingServiceKey(); key != "" {
		service = nearby.NewDistanceMatrixClient(plannerConfig.DistanceServiceURL, key, plannerConfig.DistanceRequestsPerSecond, logger)
	} else {
		logging.LogWarning(logger, "walking distance service disabled, using straight-line distances",
			slog.String("env", appconf.WalkingServiceKeyEnv))
	}

	manager := planner.NewManager(plannerConfig, store, service, logger)
	if cfg.InitializeOnStart {
		if err := manager.Initialize(ctx); err != nil {
			return fmt.Errorf("initializing planner: %w", err)
		}
	}

	application := &app.Application{
		Config:  cfg,
		Logger:  logger,
		Store:   store,
		Planner: manager,
	}
	return serve(ctx, application)
}

// importSource loads a GTFS feed into the store; URLs are downloaded first.
func importSource(ctx context.Context, store *transitdb.Client, source string) error {
	switch {
	case source == "":
		return nil
	case strings.HasPrefix(source, "http://"), strings.HasPrefix(source, "https://"):
		return store.DownloadAndStore(ctx, source)
	default:
		return store.ImportFromFile(ctx, source)
	}
}

func serve(ctx context.Context, application *app.Application) error {
	api := restapi.NewRestAPI(application)
	logger := application.Logger

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", application.Config.Port),
		Handler:      api.Handler(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	errCh := make(chan error, 1)
	go func() {
		logging.LogOperation(logger, "starting_server",
			slog.String("addr", srv.Addr),
			slog.String("env", application.Config.Env.String()))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logging.LogOperation(logger, "shutting_down_server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
