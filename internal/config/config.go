package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Config represents the application configuration
type Config struct {
	Strava     StravaConfig     `json:"strava"`
	Athlete    AthleteConfig    `json:"athlete"`
	Simulation SimulationConfig `json:"simulation"`
}

// StravaConfig holds Strava API credentials
type StravaConfig struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

// AthleteConfig holds athlete-specific settings
type AthleteConfig struct {
	// BasePower is the athlete's rough sustainable power in watts. It
	// seeds the critical power estimate until enough session history
	// exists, and scales template power multipliers.
	BasePower float64 `json:"base_power"`
}

// SimulationConfig holds Monte Carlo settings
type SimulationConfig struct {
	Iterations int   `json:"iterations"`
	Workers    int   `json:"workers"`
	Seed       int64 `json:"seed"`
}

// ErrNoConfig is returned when the config file doesn't exist
var ErrNoConfig = errors.New("config file not found")

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		Athlete: AthleteConfig{
			BasePower: 200,
		},
		Simulation: SimulationConfig{
			Iterations: 100000,
			Workers:    4,
			Seed:       1,
		},
	}
}

// Load reads the configuration from ~/.cardiokinetic/config.json
func Load() (*Config, error) {
	path, err := getConfigPath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, ErrNoConfig
	}
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Apply defaults for missing values
	defaults := DefaultConfig()
	if cfg.Athlete.BasePower == 0 {
		cfg.Athlete.BasePower = defaults.Athlete.BasePower
	}
	if cfg.Simulation.Iterations == 0 {
		cfg.Simulation.Iterations = defaults.Simulation.Iterations
	}
	if cfg.Simulation.Workers == 0 {
		cfg.Simulation.Workers = defaults.Simulation.Workers
	}
	if cfg.Simulation.Seed == 0 {
		cfg.Simulation.Seed = defaults.Simulation.Seed
	}

	return &cfg, nil
}

// Save writes the configuration to ~/.cardiokinetic/config.json
func Save(cfg *Config) error {
	path, err := getConfigPath()
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// CreateExample creates an example config file if none exists
func CreateExample() error {
	path, err := getConfigPath()
	if err != nil {
		return err
	}

	if _, err := os.Stat(path); err == nil {
		return nil // Config exists, don't overwrite
	}

	example := DefaultConfig()
	example.Strava = StravaConfig{
		ClientID:     "YOUR_CLIENT_ID",
		ClientSecret: "YOUR_CLIENT_SECRET",
	}

	return Save(&example)
}

// Validate checks if the config has required fields
func (c *Config) Validate() error {
	if c.Athlete.BasePower < 0 {
		return fmt.Errorf("athlete.base_power must be non-negative, got %v", c.Athlete.BasePower)
	}
	if c.Simulation.Iterations < 0 {
		return fmt.Errorf("simulation.iterations must be non-negative, got %v", c.Simulation.Iterations)
	}
	if c.Simulation.Workers < 0 {
		return fmt.Errorf("simulation.workers must be non-negative, got %v", c.Simulation.Workers)
	}
	return nil
}

// ValidateStrava checks the fields required for Strava sync specifically.
// Local-only usage never needs these.
func (c *Config) ValidateStrava() error {
	if c.Strava.ClientID == "" || c.Strava.ClientID == "YOUR_CLIENT_ID" {
		return errors.New("strava.client_id is required - get it from https://www.strava.com/settings/api")
	}
	if c.Strava.ClientSecret == "" || c.Strava.ClientSecret == "YOUR_CLIENT_SECRET" {
		return errors.New("strava.client_secret is required - get it from https://www.strava.com/settings/api")
	}
	return nil
}

// getConfigPath returns the path to the config file
func getConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".cardiokinetic", "config.json"), nil
}

// GetConfigDir returns the path to the config directory
func GetConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".cardiokinetic"), nil
}
