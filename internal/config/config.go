// Package config resolves server settings from defaults, an optional .env
// file, DIBS_* environment variables and command-line flags, in that order
// of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

// Config holds everything the server needs to start.
type Config struct {
	DBPath      string
	Addr        string
	OwnerName   string
	LogPath     string
	SeedPath    string
	CacheSize   int
	BulkTimeout time.Duration
}

// Defaults.
const (
	DefaultDBPath      = "dibs.sqlite3"
	DefaultAddr        = ":8080"
	DefaultOwnerName   = "Owner"
	DefaultEnvFile     = ".env"
	DefaultCacheSize   = 100
	DefaultBulkTimeout = 5 * time.Second
)

// Environment variable names.
const (
	EnvDB          = "DIBS_DB"
	EnvAddr        = "DIBS_ADDR"
	EnvOwner       = "DIBS_OWNER"
	EnvLog         = "DIBS_LOG"
	EnvSeed        = "DIBS_SEED"
	EnvCacheSize   = "DIBS_CACHE_SIZE"
	EnvBulkTimeout = "DIBS_BULK_TIMEOUT"
)

// ErrHelp is returned when -h or --help was given.
var ErrHelp = pflag.ErrHelp

// Load parses args (without the program name) and resolves the final
// configuration.
func Load(args []string) (*Config, error) {
	return load(args, os.LookupEnv)
}

func load(args []string, lookupEnv func(string) (string, bool)) (*Config, error) {
	flagSet := pflag.NewFlagSet("dibs", pflag.ContinueOnError)
	flagSet.SetOutput(io.Discard)
	flagSet.Usage = func() {}

	var flags Config
	var envFile string
	flagSet.StringVarP(&flags.DBPath, "db", "d", DefaultDBPath, "SQLite database path")
	flagSet.StringVarP(&flags.Addr, "addr", "a", DefaultAddr, "listen address")
	flagSet.StringVarP(&flags.OwnerName, "owner", "o", DefaultOwnerName, "owner username on first run")
	flagSet.StringVarP(&flags.LogPath, "log", "l", "", "log file path")
	flagSet.StringVarP(&flags.SeedPath, "seed", "s", "", "YAML seed file imported at startup")
	flagSet.IntVar(&flags.CacheSize, "cache-size", DefaultCacheSize, "search cache capacity")
	flagSet.DurationVar(&flags.BulkTimeout, "bulk-timeout", DefaultBulkTimeout, "per-item bulk operation timeout")
	flagSet.StringVarP(&envFile, "env-file", "e", DefaultEnvFile, "dotenv file")

	if err := flagSet.Parse(args); err != nil {
		return nil, err
	}
	if flagSet.NArg() > 0 {
		return nil, fmt.Errorf("unexpected argument: %s", flagSet.Arg(0))
	}

	dotenv, err := godotenv.Read(envFile)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) || flagSet.Changed("env-file") {
			return nil, fmt.Errorf("reading %s: %w", envFile, err)
		}
		dotenv = map[string]string{}
	}
	lookup := func(key string) (string, bool) {
		if v, ok := lookupEnv(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}

	cfg := &Config{
		DBPath:      DefaultDBPath,
		Addr:        DefaultAddr,
		OwnerName:   DefaultOwnerName,
		CacheSize:   DefaultCacheSize,
		BulkTimeout: DefaultBulkTimeout,
	}
	for key, dst := range map[string]*string{
		EnvDB:    &cfg.DBPath,
		EnvAddr:  &cfg.Addr,
		EnvOwner: &cfg.OwnerName,
		EnvLog:   &cfg.LogPath,
		EnvSeed:  &cfg.SeedPath,
	} {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}
	if v, ok := lookup(EnvCacheSize); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", EnvCacheSize, err)
		}
		cfg.CacheSize = n
	}
	if v, ok := lookup(EnvBulkTimeout); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", EnvBulkTimeout, err)
		}
		cfg.BulkTimeout = d
	}

	if flagSet.Changed("db") {
		cfg.DBPath = flags.DBPath
	}
	if flagSet.Changed("addr") {
		cfg.Addr = flags.Addr
	}
	if flagSet.Changed("owner") {
		cfg.OwnerName = flags.OwnerName
	}
	if flagSet.Changed("log") {
		cfg.LogPath = flags.LogPath
	}
	if flagSet.Changed("seed") {
		cfg.SeedPath = flags.SeedPath
	}
	if flagSet.Changed("cache-size") {
		cfg.CacheSize = flags.CacheSize
	}
	if flagSet.Changed("bulk-timeout") {
		cfg.BulkTimeout = flags.BulkTimeout
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that every setting is usable.
func (c *Config) Validate() error {
	switch {
	case c.DBPath == "":
		return errors.New("database path required")
	case c.Addr == "":
		return errors.New("listen address required")
	case c.OwnerName == "":
		return errors.New("owner username required")
	case c.CacheSize < 1:
		return fmt.Errorf("cache size must be positive, got %d", c.CacheSize)
	case c.BulkTimeout <= 0:
		return fmt.Errorf("bulk timeout must be positive, got %s", c.BulkTimeout)
	}
	return nil
}

// Usage writes the command-line help.
func Usage(w io.Writer) {
	fmt.Fprint(w, `Usage: dibs [flags]

Flags:
  -d, --db <path>            SQLite database path (default: dibs.sqlite3, env DIBS_DB)
  -a, --addr <host:port>     listen address (default: :8080, env DIBS_ADDR)
  -o, --owner <name>         owner username on first run (default: Owner, env DIBS_OWNER)
  -l, --log <path>           log file path (default: stdout/stderr only, env DIBS_LOG)
  -s, --seed <path>          YAML seed file imported at startup (env DIBS_SEED)
      --cache-size <n>       search cache capacity (default: 100, env DIBS_CACHE_SIZE)
      --bulk-timeout <dur>   per-item bulk timeout (default: 5s, env DIBS_BULK_TIMEOUT)
  -e, --env-file <path>      dotenv file read before the environment (default: .env)
  -h, --help                 show this help and exit
`)
}
