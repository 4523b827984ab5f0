// Package config collects the settings of a simulation run.
//
// Settings are resolved in increasing priority: built-in defaults, a .env
// file, PROCSIM_* environment variables, and finally command-line flags.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/sarchlab/procsim/memory"
	"github.com/sarchlab/procsim/scheduling"
	"github.com/sarchlab/procsim/surrogate"
)

// EnvPrefix prefixes every environment variable read by this package.
const EnvPrefix = "PROCSIM_"

// RecordAuto as the record path asks for a generated file name.
const RecordAuto = "auto"

// ErrInvalid is wrapped by every error returned from Validate.
var ErrInvalid = errors.New("invalid configuration")

// Config holds everything a run needs to start.
type Config struct {
	InputFile      string
	Scheduler      string
	MemoryStrategy string
	Quantum        uint64
	SurrogatePath  string
	LogLevel       string
	LogFormat      string
	RecordPath     string
	MonitorPort    int
	OpenBrowser    bool
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Scheduler:      scheduling.NameSJF,
		MemoryStrategy: memory.StrategyInfinite,
		Quantum:        1,
		SurrogatePath:  surrogate.DefaultPath,
		LogLevel:       "warn",
		LogFormat:      "console",
		MonitorPort:    -1,
	}
}

// LoadDotEnv copies the variables in the given files into the environment.
// Variables that are already set win. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	for _, f := range files {
		err := godotenv.Load(f)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}

		if err != nil {
			return fmt.Errorf("loading %s: %w", f, err)
		}
	}

	return nil
}

// FromEnv overrides c with the PROCSIM_* variables found by lookup.
func (c Config) FromEnv(lookup func(string) (string, bool)) (Config, error) {
	str := func(key string, dst *string) {
		if v, ok := lookup(EnvPrefix + key); ok {
			*dst = v
		}
	}

	str("INPUT", &c.InputFile)
	str("SCHEDULER", &c.Scheduler)
	str("MEMORY", &c.MemoryStrategy)
	str("SURROGATE", &c.SurrogatePath)
	str("LOG_LEVEL", &c.LogLevel)
	str("LOG_FORMAT", &c.LogFormat)
	str("RECORD", &c.RecordPath)

	if v, ok := lookup(EnvPrefix + "QUANTUM"); ok {
		q, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return c, fmt.Errorf("%w: %sQUANTUM: %w", ErrInvalid, EnvPrefix, err)
		}

		c.Quantum = q
	}

	if v, ok := lookup(EnvPrefix + "MONITOR_PORT"); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return c, fmt.Errorf("%w: %sMONITOR_PORT: %w", ErrInvalid, EnvPrefix, err)
		}

		c.MonitorPort = port
	}

	if v, ok := lookup(EnvPrefix + "OPEN_BROWSER"); ok {
		open, err := strconv.ParseBool(v)
		if err != nil {
			return c, fmt.Errorf("%w: %sOPEN_BROWSER: %w", ErrInvalid, EnvPrefix, err)
		}

		c.OpenBrowser = open
	}

	return c, nil
}

// Load returns the defaults overridden by the .env file and the process
// environment.
func Load(dotEnvFiles ...string) (Config, error) {
	if err := LoadDotEnv(dotEnvFiles...); err != nil {
		return Config{}, err
	}

	return Default().FromEnv(os.LookupEnv)
}

// MonitorEnabled tells if the web monitor should be started.
func (c Config) MonitorEnabled() bool {
	return c.MonitorPort >= 0
}

// Recording tells if the run is recorded and into which file. An empty
// file name asks the recorder to generate one.
func (c Config) Recording() (file string, enabled bool) {
	switch c.RecordPath {
	case "":
		return "", false
	case RecordAuto:
		return "", true
	default:
		return c.RecordPath, true
	}
}

// Validate reports the first setting that cannot start a run.
func (c Config) Validate() error {
	if c.InputFile == "" {
		return fmt.Errorf("%w: no input file", ErrInvalid)
	}

	if _, err := scheduling.ByName(c.Scheduler); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	if _, err := memory.NewStrategy(c.MemoryStrategy, memory.DefaultCapacity); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	if c.Quantum == 0 || c.Quantum > uint64(^uint32(0)) {
		return fmt.Errorf("%w: quantum %d out of range", ErrInvalid, c.Quantum)
	}

	switch strings.ToLower(c.LogFormat) {
	case "console", "json":
	default:
		return fmt.Errorf("%w: log format %q", ErrInvalid, c.LogFormat)
	}

	if c.MonitorPort > 65535 {
		return fmt.Errorf("%w: monitor port %d", ErrInvalid, c.MonitorPort)
	}

	return nil
}
