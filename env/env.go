package env

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	goenv "github.com/Netflix/go-env"
	"github.com/joho/godotenv"
)

// Load reads the optional dotenv files (".env" when none are given) into the
// process environment, then unmarshals the environment into v using its
// `env:"..."` struct tags. Variables already set in the process win over the
// dotenv files. A missing dotenv file is not an error.
func Load(v any, files ...string) error {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load dotenv: %w", err)
	}
	return Unmarshal(os.Environ(), v)
}

// Unmarshal fills v from a KEY=VALUE list, as returned by os.Environ.
func Unmarshal(environ []string, v any) error {
	es, err := goenv.EnvironToEnvSet(environ)
	if err != nil {
		return fmt.Errorf("parse environment: %w", err)
	}
	if err := goenv.Unmarshal(es, v); err != nil {
		return fmt.Errorf("unmarshal environment: %w", err)
	}
	return nil
}
