// Package cfg reads the pmemctl configuration from the environment.
package cfg

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	MapFile     string `env:"PMEM_MAP_FILE"`
	RecordPath  string `env:"PMEM_RECORD_PATH"`
	MonitorPort int    `env:"PMEM_MONITOR_PORT" envDefault:"0"`
	Verbose     bool   `env:"PMEM_VERBOSE"`
}

// Parse loads the given dotenv files, or .env when none is given, and reads
// the configuration from the environment. Missing dotenv files are ignored.
// Variables already set in the environment take precedence.
func Parse(dotenvFiles ...string) (Config, error) {
	if len(dotenvFiles) == 0 {
		dotenvFiles = []string{".env"}
	}

	for _, f := range dotenvFiles {
		err := godotenv.Load(f)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	return env.ParseAs[Config]()
}
