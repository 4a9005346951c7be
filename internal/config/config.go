package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config wires the play service together: HTTP server, the Redis play-state
// store and the Postgres content source. Redis and Postgres are both
// optional; without them the service runs in memory with demo content.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Redis    RedisConfig    `yaml:"redis"`
	Postgres PostgresConfig `yaml:"postgres"`
	Quiz     QuizConfig     `yaml:"quiz"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
}

// RedisConfig configures the participant-state gateway. TTL bounds how long
// finished sessions linger before their keys expire.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	TTL      string `yaml:"ttl"`
}

type PostgresConfig struct {
	URL string `yaml:"url"`
}

// QuizConfig tunes the content cache sitting in front of the quiz source.
type QuizConfig struct {
	TTL string `yaml:"ttl"`
}

// Load reads YAML config from path.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
