// Package config loads service configuration from environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds everything the server needs to run. The client id and secret
// hash identify the single expense-extraction client allowed to call the API.
type Config struct {
	Addr             string        `env:"TALLY_ADDR"               envDefault:":8080"`
	DBPath           string        `env:"TALLY_DB_PATH"            envDefault:"data/tally.db"`
	JWTSecret        string        `env:"TALLY_JWT_SECRET,required"`
	TokenTTL         time.Duration `env:"TALLY_TOKEN_TTL"          envDefault:"24h"`
	ClientID         string        `env:"TALLY_CLIENT_ID,required"`
	ClientSecretHash string        `env:"TALLY_CLIENT_SECRET_HASH,required"`
}

// Load parses configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
