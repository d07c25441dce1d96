package config

import (
	"strings"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Athlete.BasePower != 200 {
		t.Errorf("Athlete.BasePower = %v, want 200", cfg.Athlete.BasePower)
	}
	if cfg.Simulation.Iterations != 100000 {
		t.Errorf("Simulation.Iterations = %v, want 100000", cfg.Simulation.Iterations)
	}
	if cfg.Simulation.Workers != 4 {
		t.Errorf("Simulation.Workers = %v, want 4", cfg.Simulation.Workers)
	}
	if cfg.Simulation.Seed != 1 {
		t.Errorf("Simulation.Seed = %v, want 1", cfg.Simulation.Seed)
	}

	// Strava config should be empty by default
	if cfg.Strava.ClientID != "" {
		t.Errorf("Strava.ClientID should be empty, got %q", cfg.Strava.ClientID)
	}
	if cfg.Strava.ClientSecret != "" {
		t.Errorf("Strava.ClientSecret should be empty, got %q", cfg.Strava.ClientSecret)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name        string
		config      Config
		expectError bool
		errContains string
	}{
		{
			name:        "defaults are valid",
			config:      DefaultConfig(),
			expectError: false,
		},
		{
			name: "negative base power",
			config: Config{
				Athlete: AthleteConfig{BasePower: -100},
			},
			expectError: true,
			errContains: "base_power",
		},
		{
			name: "negative iterations",
			config: Config{
				Simulation: SimulationConfig{Iterations: -1},
			},
			expectError: true,
			errContains: "iterations",
		},
		{
			name: "negative workers",
			config: Config{
				Simulation: SimulationConfig{Workers: -2},
			},
			expectError: true,
			errContains: "workers",
		},
		{
			name:        "zero values pass",
			config:      Config{},
			expectError: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.expectError {
				if err == nil {
					t.Error("expected error, got nil")
				} else if tt.errContains != "" && !strings.Contains(err.Error(), tt.errContains) {
					t.Errorf("error %q should contain %q", err.Error(), tt.errContains)
				}
			} else {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
			}
		})
	}
}

func TestValidateStrava(t *testing.T) {
	tests := []struct {
		name        string
		strava      StravaConfig
		expectError bool
		errContains string
	}{
		{
			name:        "valid credentials",
			strava:      StravaConfig{ClientID: "12345", ClientSecret: "abc123secret"},
			expectError: false,
		},
		{
			name:        "empty client ID",
			strava:      StravaConfig{ClientID: "", ClientSecret: "abc123secret"},
			expectError: true,
			errContains: "client_id",
		},
		{
			name:        "placeholder client ID",
			strava:      StravaConfig{ClientID: "YOUR_CLIENT_ID", ClientSecret: "abc123secret"},
			expectError: true,
			errContains: "client_id",
		},
		{
			name:        "empty client secret",
			strava:      StravaConfig{ClientID: "12345", ClientSecret: ""},
			expectError: true,
			errContains: "client_secret",
		},
		{
			name:        "placeholder client secret",
			strava:      StravaConfig{ClientID: "12345", ClientSecret: "YOUR_CLIENT_SECRET"},
			expectError: true,
			errContains: "client_secret",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{Strava: tt.strava}
			err := cfg.ValidateStrava()
			if tt.expectError {
				if err == nil {
					t.Error("expected error, got nil")
				} else if tt.errContains != "" && !strings.Contains(err.Error(), tt.errContains) {
					t.Errorf("error %q should contain %q", err.Error(), tt.errContains)
				}
			} else {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
			}
		})
	}
}
