package cliparse

import (
	"errors"
	"flag"
	"os"
	"strconv"
)

type Config struct {
	Port         int
	DatabaseURL  string
	DatabaseType string
	SessionSalt  string
	ProgramAPI   string
	HTTPTimeout  int // seconds, outbound program-API calls
}

// DefaultProgramAPI is the production program registry root.
const DefaultProgramAPI = "https://www.khanacademy.org"

// ParseFlags validates flags and sets port number
func ParseFlags(args []string) (Config, error) {
	var cfg Config

	fs := flag.NewFlagSet("kascribe", flag.ContinueOnError)

	// Network config (can be CLI args or env)
	fs.IntVar(&cfg.Port, "p", 0, "Server port")
	fs.StringVar(&cfg.DatabaseURL, "d", "", "Database URL")
	fs.StringVar(&cfg.DatabaseType, "t", "", "Database type (sqlite or postgres)")

	// External program registry
	fs.StringVar(&cfg.ProgramAPI, "api-base", "", "Program API base URL")
	fs.IntVar(&cfg.HTTPTimeout, "http-timeout", 0, "Outbound HTTP timeout in seconds")

	// Secrets (prefer env variables, but allow CLI for dev)
	fs.StringVar(&cfg.SessionSalt, "session-salt", "", "Session token salt (prefer env)")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	// Fall back to environment variables
	if cfg.Port == 0 {
		if portStr := os.Getenv("PORT"); portStr != "" {
			port, err := strconv.Atoi(portStr)
			if err != nil {
				return Config{}, errors.New("invalid PORT env variable")
			}
			cfg.Port = port
		} else {
			cfg.Port = 3419 // default
		}
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if cfg.DatabaseURL == "" {
		return Config{}, errors.New("database URL required (use -d or DATABASE_URL env)")
	}

	if cfg.DatabaseType == "" {
		cfg.DatabaseType = os.Getenv("DATABASE_TYPE")
		if cfg.DatabaseType == "" {
			cfg.DatabaseType = "postgres"
		}
	}
	if cfg.DatabaseType != "postgres" && cfg.DatabaseType != "sqlite" {
		return Config{}, errors.New("database type must be sqlite or postgres")
	}

	if cfg.ProgramAPI == "" {
		cfg.ProgramAPI = os.Getenv("PROGRAM_API_BASE")
		if cfg.ProgramAPI == "" {
			cfg.ProgramAPI = DefaultProgramAPI
		}
	}

	if cfg.HTTPTimeout == 0 {
		if timeoutStr := os.Getenv("HTTP_TIMEOUT"); timeoutStr != "" {
			timeout, err := strconv.Atoi(timeoutStr)
			if err != nil {
				return Config{}, errors.New("invalid HTTP_TIMEOUT env variable")
			}
			cfg.HTTPTimeout = timeout
		} else {
			cfg.HTTPTimeout = 10
		}
	}

	// Secrets - MUST be provided
	if cfg.SessionSalt == "" {
		cfg.SessionSalt = os.Getenv("SESSION_SALT")
	}
	if cfg.SessionSalt == "" {
		return Config{}, errors.New("SESSION_SALT required")
	}

	return cfg, nil
}
