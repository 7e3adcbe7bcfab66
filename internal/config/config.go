// Package config handles compiler configuration loading and management.
package config

// Config holds all compiler settings.
type Config struct {
	Geometry GeometryConfig `yaml:"geometry"`
	Export   ExportConfig   `yaml:"export"`
	Import   ImportConfig   `yaml:"import"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// GeometryConfig holds the geometric tolerances, in editor units.
type GeometryConfig struct {
	Tolerance     float64 `yaml:"tolerance"`      // bisect and vertex distance
	NormalEpsilon float64 `yaml:"normal_epsilon"` // coplanarity: dot > 1 - eps
	ConvexEpsilon float64 `yaml:"convex_epsilon"` // convex hull plane distance
	ProjectTol    float64 `yaml:"project_tol"`    // projection normal search
	AreaTolerance float64 `yaml:"area_tolerance"` // shared wall area mismatch
}

// ExportConfig holds .bw writer settings.
type ExportConfig struct {
	Tool           string `yaml:"tool"`
	Version        string `yaml:"version"`
	URL            string `yaml:"url"`
	DefaultTexture string `yaml:"default_texture"`
	SkyTexture     string `yaml:"sky_texture"`
}

// ImportConfig holds .bw reader settings.
type ImportConfig struct {
	Fixups bool `yaml:"fixups"` // vertex matching and link reconciliation
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Geometry: GeometryConfig{
			Tolerance:     1e-4,
			NormalEpsilon: 1e-5,
			ConvexEpsilon: 1e-4,
			ProjectTol:    1e-6,
			AreaTolerance: 1e-3,
		},
		Export: ExportConfig{
			Tool:           "sectorforge",
			Version:        "0.1.0",
			URL:            "https://github.com/Faultbox/sectorforge",
			DefaultTexture: "Default",
			SkyTexture:     "",
		},
		Import: ImportConfig{
			Fixups: true,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}
