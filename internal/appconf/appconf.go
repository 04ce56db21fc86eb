package appconf

import "strings"

// Environment is the operating environment of the application.
type Environment int

const (
	Development Environment = iota
	Test
	Production
)

func (e Environment) String() string {
	switch e {
	case Test:
		return "test"
	case Production:
		return "production"
	default:
		return "development"
	}
}

// EnvFlagToEnvironment converts the -env flag value to an Environment.
// Unknown values map to Development.
func EnvFlagToEnvironment(env string) Environment {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "test":
		return Test
	case "production", "prod":
		return Production
	default:
		return Development
	}
}

// Config holds the server settings read from command-line flags.
type Config struct {
	Port      int
	Env       Environment
	ApiKeys   []string
	RateLimit int // requests per second per API key
	LogLevel  string

	// DBPath is the SQLite database holding the timetable.
	DBPath string
	// GTFSSource optionally names a GTFS zip (path or URL) imported into DBPath at startup.
	GTFSSource string
	// PlannerConfigPath is an optional YAML file with planner tunables.
	PlannerConfigPath string
	// InitializeOnStart builds the indices before the server accepts requests.
	InitializeOnStart bool
}
