package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Load loads configuration with priority: defaults < file < flags.
func Load() (*Config, error) {
	// Start with defaults
	cfg := Default()

	// Try to load from file (explicit path takes priority)
	configPath := ConfigPath()
	if configPath == "" {
		configPath = findConfigFile()
	}

	if configPath != "" {
		if err := loadFromFile(cfg, configPath); err != nil {
			return nil, fmt.Errorf("loading config from %s: %w", configPath, err)
		}
	}

	// Apply CLI flags (highest priority)
	applyFlags(cfg)

	return cfg, nil
}

// findConfigFile looks for config in standard locations.
func findConfigFile() string {
	candidates := []string{
		filepath.Join(".", FileName),
		filepath.Join(ConfigDir(), FileName),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// ConfigDir returns the OS-appropriate config directory.
func ConfigDir() string {
	switch runtime.GOOS {
	case "darwin":
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Application Support", "SectorForge")
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "SectorForge")
	default: // Linux and others
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "sectorforge")
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "sectorforge")
	}
}

// loadFromFile loads config from a YAML file, merging with existing values.
func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return err
	}
	return cfg.Validate()
}

// Validate rejects tolerances that would make every comparison fail.
func (c *Config) Validate() error {
	g := c.Geometry
	for _, v := range []struct {
		name string
		val  float64
	}{
		{"tolerance", g.Tolerance},
		{"normal_epsilon", g.NormalEpsilon},
		{"convex_epsilon", g.ConvexEpsilon},
		{"project_tol", g.ProjectTol},
		{"area_tolerance", g.AreaTolerance},
	} {
		if v.val <= 0 {
			return fmt.Errorf("geometry.%s must be positive, got %g", v.name, v.val)
		}
	}
	return nil
}
