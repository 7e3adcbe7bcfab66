package config

import "flag"

var (
	flagConfig    = flag.String("config", "", "Path to config file")
	flagDebug     = flag.Bool("debug", false, "Enable debug logging")
	flagLogFile   = flag.String("log", "", "Also write logs to this file")
	flagTolerance = flag.Float64("tol", 0, "Geometry tolerance in editor units")
	flagNoFixups  = flag.Bool("no-fixups", false, "Skip the repair passes after import")
	flagTexture   = flag.String("texture", "", "Default texture name")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return *flagConfig
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
	}
	if *flagLogFile != "" {
		cfg.Logging.LogFile = *flagLogFile
	}
	if *flagTolerance > 0 {
		cfg.Geometry.Tolerance = *flagTolerance
	}
	if *flagNoFixups {
		cfg.Import.Fixups = false
	}
	if *flagTexture != "" {
		cfg.Export.DefaultTexture = *flagTexture
	}
}
