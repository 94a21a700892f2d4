package main

import (
	"errors"
	"io/fs"
	"net"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration from environment variables.
type Config struct {
	Host           string `envconfig:"HOST" default:"0.0.0.0"`
	Port           string `envconfig:"PORT" default:"5000"`
	KnowledgeFile  string `envconfig:"KNOWLEDGE_FILE" default:""`
	WatchKnowledge bool   `envconfig:"WATCH_KNOWLEDGE" default:"true"`
	LooseMatching  bool   `envconfig:"LOOSE_MATCHING" default:"false"`
	Debug          bool   `envconfig:"DEBUG" default:"false"`
}

// Addr is the listen address for the HTTP server.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, c.Port)
}

// LoadConfig reads envFile, if it exists, into the environment and then
// processes the environment into a Config. Variables already set win.
func LoadConfig(envFile string) (Config, error) {
	var cfg Config

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return cfg, err
		}
	}

	if err := envconfig.Process("", &cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}
