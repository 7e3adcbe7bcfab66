package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	// Test geometry defaults
	if cfg.Geometry.Tolerance != 1e-4 {
		t.Errorf("expected tolerance 1e-4, got %g", cfg.Geometry.Tolerance)
	}
	if cfg.Geometry.NormalEpsilon != 1e-5 {
		t.Errorf("expected normal epsilon 1e-5, got %g", cfg.Geometry.NormalEpsilon)
	}
	if cfg.Geometry.AreaTolerance != 1e-3 {
		t.Errorf("expected area tolerance 1e-3, got %g", cfg.Geometry.AreaTolerance)
	}

	// Test export defaults
	if cfg.Export.Tool != "sectorforge" {
		t.Errorf("expected tool 'sectorforge', got %s", cfg.Export.Tool)
	}
	if cfg.Export.DefaultTexture != "Default" {
		t.Errorf("expected default texture 'Default', got %s", cfg.Export.DefaultTexture)
	}
	if cfg.Export.SkyTexture != "" {
		t.Errorf("expected empty sky texture, got %s", cfg.Export.SkyTexture)
	}

	// Test import defaults
	if !cfg.Import.Fixups {
		t.Error("expected fixups to be enabled by default")
	}

	// Test logging defaults
	if cfg.Logging.Level != "info" {
		t.Errorf("expected log level 'info', got %s", cfg.Logging.Level)
	}
	if cfg.Logging.LogFile != "" {
		t.Errorf("expected empty log file, got %s", cfg.Logging.LogFile)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	// Create temporary config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "sectorforge.yaml")

	yamlContent := `
geometry:
  tolerance: 0.001
  normal_epsilon: 0.0001

export:
  tool: "worldbuilder"
  default_texture: "stone"
  sky_texture: "SKY"

import:
  fixups: false

logging:
  level: "debug"
  log_file: "compile.log"
`

	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	// Load config
	cfg := Default()
	if err := loadFromFile(cfg, configPath); err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	// Verify values were loaded
	if cfg.Geometry.Tolerance != 0.001 {
		t.Errorf("expected tolerance 0.001, got %g", cfg.Geometry.Tolerance)
	}
	if cfg.Geometry.NormalEpsilon != 0.0001 {
		t.Errorf("expected normal epsilon 0.0001, got %g", cfg.Geometry.NormalEpsilon)
	}
	// Unset values keep their defaults
	if cfg.Geometry.ConvexEpsilon != 1e-4 {
		t.Errorf("expected convex epsilon default 1e-4, got %g", cfg.Geometry.ConvexEpsilon)
	}

	if cfg.Export.Tool != "worldbuilder" {
		t.Errorf("expected tool 'worldbuilder', got %s", cfg.Export.Tool)
	}
	if cfg.Export.Version != "0.1.0" {
		t.Errorf("expected version default 0.1.0, got %s", cfg.Export.Version)
	}
	if cfg.Export.DefaultTexture != "stone" {
		t.Errorf("expected default texture 'stone', got %s", cfg.Export.DefaultTexture)
	}
	if cfg.Export.SkyTexture != "SKY" {
		t.Errorf("expected sky texture 'SKY', got %s", cfg.Export.SkyTexture)
	}

	if cfg.Import.Fixups {
		t.Error("expected fixups to be disabled")
	}

	if cfg.Logging.Level != "debug" {
		t.Errorf("expected log level 'debug', got %s", cfg.Logging.Level)
	}
	if cfg.Logging.LogFile != "compile.log" {
		t.Errorf("expected log file 'compile.log', got %s", cfg.Logging.LogFile)
	}
}

func TestLoadFromFileInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"syntax", "geometry:\n  tolerance: not a number\n  invalid syntax here\n"},
		{"zero tolerance", "geometry:\n  tolerance: 0\n"},
		{"negative epsilon", "geometry:\n  normal_epsilon: -1\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configPath := filepath.Join(t.TempDir(), "invalid.yaml")
			if err := os.WriteFile(configPath, []byte(tt.content), 0644); err != nil {
				t.Fatalf("failed to write test config: %v", err)
			}

			cfg := Default()
			if err := loadFromFile(cfg, configPath); err == nil {
				t.Error("expected error loading invalid config, got nil")
			}
		})
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	cfg := Default()
	err := loadFromFile(cfg, "/nonexistent/path/sectorforge.yaml")
	if err == nil {
		t.Error("expected error loading missing file, got nil")
	}
}

func TestConfigDir(t *testing.T) {
	dir := ConfigDir()

	// Just verify it returns a non-empty path
	// Actual path depends on OS
	if dir == "" {
		t.Error("ConfigDir returned empty string")
	}

	// Verify path is absolute
	if !filepath.IsAbs(dir) {
		t.Errorf("ConfigDir should return absolute path, got %s", dir)
	}
}

func TestFindConfigFile(t *testing.T) {
	// Save current directory
	origDir, _ := os.Getwd()
	defer os.Chdir(origDir)

	// Keep the user config directory out of the search
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())

	// Create temp directory and change to it
	tmpDir := t.TempDir()
	os.Chdir(tmpDir)

	// No config file exists - should return empty
	path := findConfigFile()
	if path != "" {
		t.Errorf("expected empty path when no config exists, got %s", path)
	}

	// Create sectorforge.yaml in current directory
	configPath := filepath.Join(tmpDir, "sectorforge.yaml")
	if err := os.WriteFile(configPath, []byte("geometry:\n  tolerance: 0.01\n"), 0644); err != nil {
		t.Fatalf("failed to create test config: %v", err)
	}

	// Should find it now
	path = findConfigFile()
	if path == "" {
		t.Error("expected to find sectorforge.yaml in current directory")
	}
}

func TestApplyFlags(t *testing.T) {
	tests := []struct {
		name     string
		setup    func()
		verify   func(*Config)
		teardown func()
	}{
		{
			name: "debug flag",
			setup: func() {
				*flagDebug = true
			},
			verify: func(cfg *Config) {
				if cfg.Logging.Level != "debug" {
					t.Errorf("expected log level 'debug', got %s", cfg.Logging.Level)
				}
			},
			teardown: func() {
				*flagDebug = false
			},
		},
		{
			name: "log file flag",
			setup: func() {
				*flagLogFile = "out.log"
			},
			verify: func(cfg *Config) {
				if cfg.Logging.LogFile != "out.log" {
					t.Errorf("expected log file out.log, got %s", cfg.Logging.LogFile)
				}
			},
			teardown: func() {
				*flagLogFile = ""
			},
		},
		{
			name: "tolerance flag",
			setup: func() {
				*flagTolerance = 0.01
			},
			verify: func(cfg *Config) {
				if cfg.Geometry.Tolerance != 0.01 {
					t.Errorf("expected tolerance 0.01, got %g", cfg.Geometry.Tolerance)
				}
			},
			teardown: func() {
				*flagTolerance = 0
			},
		},
		{
			name: "no-fixups flag",
			setup: func() {
				*flagNoFixups = true
			},
			verify: func(cfg *Config) {
				if cfg.Import.Fixups {
					t.Error("expected fixups to be disabled with no-fixups flag")
				}
			},
			teardown: func() {
				*flagNoFixups = false
			},
		},
		{
			name: "texture flag",
			setup: func() {
				*flagTexture = "brick"
			},
			verify: func(cfg *Config) {
				if cfg.Export.DefaultTexture != "brick" {
					t.Errorf("expected default texture brick, got %s", cfg.Export.DefaultTexture)
				}
			},
			teardown: func() {
				*flagTexture = ""
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Setup
			tt.setup()
			defer tt.teardown()

			// Apply flags to default config
			cfg := Default()
			applyFlags(cfg)

			// Verify
			tt.verify(cfg)
		})
	}
}

func TestLoadPriority(t *testing.T) {
	// Create temporary config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "sectorforge.yaml")

	yamlContent := `
geometry:
  tolerance: 0.002
  area_tolerance: 0.01
`

	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	// Set flag to override config file
	*flagConfig = configPath
	*flagTolerance = 0.005
	defer func() {
		*flagConfig = ""
		*flagTolerance = 0
	}()

	// Load config
	cfg, err := Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	// Tolerance should be from flag (0.005), not file (0.002)
	if cfg.Geometry.Tolerance != 0.005 {
		t.Errorf("expected tolerance 0.005 from flag, got %g", cfg.Geometry.Tolerance)
	}

	// Area tolerance should be from file (0.01) since no flag override
	if cfg.Geometry.AreaTolerance != 0.01 {
		t.Errorf("expected area tolerance 0.01 from file, got %g", cfg.Geometry.AreaTolerance)
	}
}

func TestSaveTo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "sectorforge.yaml")

	cfg := Default()
	cfg.Export.DefaultTexture = "marble"
	if err := cfg.SaveTo(path); err != nil {
		t.Fatalf("failed to save config: %v", err)
	}

	loaded := Default()
	if err := loadFromFile(loaded, path); err != nil {
		t.Fatalf("failed to reload config: %v", err)
	}
	if loaded.Export.DefaultTexture != "marble" {
		t.Errorf("expected default texture marble, got %s", loaded.Export.DefaultTexture)
	}
	if loaded.Geometry.Tolerance != cfg.Geometry.Tolerance {
		t.Errorf("expected tolerance %g, got %g", cfg.Geometry.Tolerance, loaded.Geometry.Tolerance)
	}
}

func TestSaveToRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)

	cfg := Default()
	cfg.Geometry.NormalEpsilon = 0
	if err := cfg.SaveTo(path); err == nil {
		t.Fatal("expected an error for a zero normal epsilon")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("invalid config should not be written, stat: %v", err)
	}
}

func TestSave(t *testing.T) {
	if runtime.GOOS == "darwin" || runtime.GOOS == "windows" {
		t.Skip("config directory follows XDG only on Linux")
	}
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)

	path, err := Default().Save()
	if err != nil {
		t.Fatalf("failed to save config: %v", err)
	}
	want := filepath.Join(xdg, "sectorforge", FileName)
	if path != want {
		t.Errorf("expected %s, got %s", want, path)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("saved config missing: %v", err)
	}
}

func TestEncode(t *testing.T) {
	var buf strings.Builder
	if err := Default().Encode(&buf); err != nil {
		t.Fatalf("failed to encode config: %v", err)
	}
	for _, key := range []string{"geometry:", "tolerance:", "default_texture: Default", "fixups: true"} {
		if !strings.Contains(buf.String(), key) {
			t.Errorf("expected %q in encoded config", key)
		}
	}
}
