package config

import "flag"

// Flags holds command-line overrides. Zero values leave the config unchanged.
type Flags struct {
	Config   string
	Debug    bool
	Scale    float64
	Normals  string
	NoDedup  bool
	LogFile  string
	TwoSided bool
}

// Register binds the override flags to fs.
func (f *Flags) Register(fs *flag.FlagSet) {
	fs.StringVar(&f.Config, "config", "", "Path to config file")
	fs.BoolVar(&f.Debug, "debug", false, "Enable debug logging")
	fs.Float64Var(&f.Scale, "scale", 0, "Uniform scale applied after the instance transform")
	fs.StringVar(&f.Normals, "normals", "", "Normal policy: legacy or corrected")
	fs.BoolVar(&f.NoDedup, "no-dedup", false, "Skip GLB accessor and material dedup")
	fs.StringVar(&f.LogFile, "log-file", "", "Write logs to this file as well")
	fs.BoolVar(&f.TwoSided, "two-sided", false, "Emit back faces for every face")
}

// apply applies CLI flag overrides to the config.
func (f *Flags) apply(cfg *Config) {
	if f == nil {
		return
	}
	if f.Debug {
		cfg.Logging.Level = "debug"
	}
	if f.Scale > 0 {
		cfg.Conversion.ScaleFactor = float32(f.Scale)
	}
	if f.Normals != "" {
		cfg.Conversion.NormalPolicy = f.Normals
	}
	if f.NoDedup {
		cfg.Output.Dedup = false
	}
	if f.LogFile != "" {
		cfg.Logging.LogFile = f.LogFile
	}
	if f.TwoSided {
		cfg.Conversion.TwoSided = true
	}
}
