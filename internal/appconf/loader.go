package appconf

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// WalkingServiceKeyEnv names the environment variable holding the walking-distance service key.
const WalkingServiceKeyEnv = "WALKING_SERVICE_KEY"

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validator returns the shared struct validator.
func Validator() *validator.Validate {
	return validate
}

// LoadYAML decodes the YAML file at path into out and validates the result.
// A missing file leaves out untouched, so callers pre-fill it with defaults.
func LoadYAML(path string, out any) error {
	if path == "" {
		return validate.Struct(out)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return validate.Struct(out)
		}
		return fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := validate.Struct(out); err != nil {
		return fmt.Errorf("invalid config %s: %w", path, err)
	}
	return nil
}

// LoadEnvFiles loads variables from .env style files into the process environment.
// Files that do not exist are skipped; variables already set are not overridden.
func LoadEnvFiles(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("loading env file %s: %w", p, err)
		}
	}
	return nil
}

// WalkingServiceKey returns the walking-distance service key, or "" when unset.
func WalkingServiceKey() string {
	return os.Getenv(WalkingServiceKeyEnv)
}
