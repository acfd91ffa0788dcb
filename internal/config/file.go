package config

// InputConfig describes one prevalence CSV input declared in the
// configuration file. A file that carries a single series in short form
// (age,prevalence) needs Sex and Group here; long-form files label their
// own rows and leave both empty.
type InputConfig struct {
	// Path is the CSV file path, relative to the working directory.
	Path string `yaml:"path"`

	// Sex labels a short-form file's series ("female" or "male").
	Sex string `yaml:"sex,omitempty"`

	// Group labels a short-form file's series ("general" or
	// "public_sector").
	Group string `yaml:"group,omitempty"`

	// Percent indicates the file's values are percentages.
	Percent bool `yaml:"percent,omitempty"`

	// Latin1 enables ISO-8859-1 transcoding for this file.
	Latin1 bool `yaml:"latin1,omitempty"`

	// Delimiter overrides the CSV field separator for this file.
	Delimiter string `yaml:"delimiter,omitempty"`
}

// EstimatorConfig holds estimator parameter overrides from the
// configuration file. Zero values mean "use the default"; the tuning
// parameters are all strictly positive so zero is unambiguous.
type EstimatorConfig struct {
	// MaxIterations bounds the iterative refinement.
	MaxIterations int `yaml:"maxIterations,omitempty"`

	// Tolerance is the MAE convergence threshold.
	Tolerance float64 `yaml:"tolerance,omitempty"`

	// LearningRate is the initial gradient step size.
	LearningRate float64 `yaml:"learningRate,omitempty"`

	// DecayFactor is the learning-rate multiplier per decay interval.
	DecayFactor float64 `yaml:"decayFactor,omitempty"`

	// DecayInterval is the number of iterations between decays.
	DecayInterval int `yaml:"decayInterval,omitempty"`
}

// File represents the structure of the .unionfit configuration file.
type File struct {
	// Inputs lists the prevalence files to fit.
	Inputs []InputConfig `yaml:"inputs,omitempty"`

	// Estimator holds parameter overrides for the two-state estimator.
	Estimator EstimatorConfig `yaml:"estimator,omitempty"`

	// Ablation additionally runs the entry-only baseline.
	Ablation bool `yaml:"ablation,omitempty"`
}

// Apply merges file settings into cfg. CLI flags win: only fields still at
// their defaults are overridden, and file inputs are appended only when no
// inputs were given on the command line.
func (f *File) Apply(cfg *Config) {
	if len(cfg.Inputs) == 0 {
		for _, in := range f.Inputs {
			cfg.Inputs = append(cfg.Inputs, in.Path)
		}
	}

	if f.Estimator.MaxIterations > 0 && cfg.MaxIterations == DefaultMaxIterations {
		cfg.MaxIterations = f.Estimator.MaxIterations
	}
	if f.Estimator.Tolerance > 0 && cfg.Tolerance == DefaultTolerance {
		cfg.Tolerance = f.Estimator.Tolerance
	}
	if f.Estimator.LearningRate > 0 && cfg.LearningRate == DefaultLearningRate {
		cfg.LearningRate = f.Estimator.LearningRate
	}
	if f.Estimator.DecayFactor > 0 && cfg.DecayFactor == DefaultDecayFactor {
		cfg.DecayFactor = f.Estimator.DecayFactor
	}
	if f.Estimator.DecayInterval > 0 && cfg.DecayInterval == DefaultDecayInterval {
		cfg.DecayInterval = f.Estimator.DecayInterval
	}
	if f.Ablation {
		cfg.Ablation = true
	}
}

// FindInput returns the InputConfig for a path, falling back to a bare
// entry so per-file options default sensibly for paths given only on the
// command line.
func (f *File) FindInput(path string) InputConfig {
	for _, in := range f.Inputs {
		if in.Path == path {
			return in
		}
	}
	return InputConfig{Path: path}
}
