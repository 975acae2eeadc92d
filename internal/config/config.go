package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/dynfit/internal/convergence"
	"github.com/san-kum/dynfit/internal/fitter"
	"github.com/san-kum/dynfit/internal/pool"
)

const (
	DefaultIterations   = 1000
	DefaultWalkers      = 40
	DefaultTemperatures = 1
	DefaultFrackStep    = 20
	DefaultChunkSize    = 100
	DefaultSeed         = 1
)

type Config struct {
	Model               string        `yaml:"model"`
	Iterations          int           `yaml:"iterations"`
	Walkers             int           `yaml:"walkers"`
	Temperatures        int           `yaml:"temperatures"`
	Burn                *int          `yaml:"burn,omitempty"`
	PostBurn            *int          `yaml:"post_burn,omitempty"`
	Frack               FrackConfig   `yaml:"frack"`
	DrawAboveLikelihood bool          `yaml:"draw_above_likelihood"`
	Walltime            time.Duration `yaml:"walltime"`
	Converge            bool          `yaml:"converge"`
	MaxIterations       int           `yaml:"max_iterations"`
	ChunkSize           int           `yaml:"chunk_size"`
	Seed                int64         `yaml:"seed"`
	Pool                PoolConfig    `yaml:"pool"`
	Tuning              TuningConfig  `yaml:"tuning"`
}

type FrackConfig struct {
	Enabled bool `yaml:"enabled"`
	Step    int  `yaml:"step"`
}

type PoolConfig struct {
	Strategy string        `yaml:"strategy"`
	Workers  int           `yaml:"workers"`
	NATSURL  string        `yaml:"nats_url"`
	Subject  string        `yaml:"subject"`
	Timeout  time.Duration `yaml:"timeout"`
}

type TuningConfig struct {
	LadderStep       float64 `yaml:"ladder_step"`
	Softening        float64 `yaml:"softening"`
	Jitter           float64 `yaml:"jitter"`
	RepairFloor      float64 `yaml:"repair_floor"`
	PSRFThreshold    float64 `yaml:"psrf_threshold"`
	MaxWindow        int     `yaml:"max_window"`
	MinWindow        int     `yaml:"min_window"`
	AutocorrWalkers  int     `yaml:"autocorr_walkers"`
	AutocorrInterval int     `yaml:"autocorr_interval"`
	MaxDrawAttempts  int     `yaml:"max_draw_attempts"`
}

func DefaultConfig() *Config {
	fc := fitter.DefaultConfig()
	return &Config{
		Model:        "gaussian",
		Iterations:   DefaultIterations,
		Walkers:      DefaultWalkers,
		Temperatures: DefaultTemperatures,
		Frack:        FrackConfig{Enabled: true, Step: DefaultFrackStep},
		ChunkSize:    DefaultChunkSize,
		Seed:         DefaultSeed,
		Pool: PoolConfig{
			Strategy: pool.StrategySerial,
			Subject:  pool.DefaultSubject,
			Timeout:  30 * time.Second,
		},
		Tuning: TuningConfig{
			LadderStep:       fc.LadderStep,
			Softening:        fc.Softening,
			Jitter:           fc.Jitter,
			PSRFThreshold:    fc.Monitor.Threshold,
			MaxWindow:        fc.Monitor.MaxWindow,
			MinWindow:        fc.Monitor.MinWindow,
			AutocorrWalkers:  fc.Monitor.AutocorrWalkers,
			AutocorrInterval: fc.Monitor.Interval,
			MaxDrawAttempts:  fc.MaxDrawAttempts,
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Clone returns a deep copy, so presets are never mutated by callers.
func (c *Config) Clone() *Config {
	out := *c
	if c.Burn != nil {
		b := *c.Burn
		out.Burn = &b
	}
	if c.PostBurn != nil {
		p := *c.PostBurn
		out.PostBurn = &p
	}
	return &out
}

// FitterConfig converts the file form into a validated fitter.Config.
func (c *Config) FitterConfig() (fitter.Config, error) {
	fc := fitter.DefaultConfig()
	fc.Iterations = c.Iterations
	fc.Walkers = c.Walkers
	fc.Temperatures = c.Temperatures
	fc.Burn = c.Burn
	fc.PostBurn = c.PostBurn
	fc.Frack = c.Frack.Enabled
	fc.FrackStep = c.Frack.Step
	fc.DrawAboveLikelihood = c.DrawAboveLikelihood
	fc.Walltime = c.Walltime
	fc.Converge = c.Converge
	fc.MaxIterations = c.MaxIterations
	fc.ChunkSize = c.ChunkSize
	fc.Seed = c.Seed

	t := c.Tuning
	if t.LadderStep > 0 {
		fc.LadderStep = t.LadderStep
	}
	if t.Softening > 0 {
		fc.Softening = t.Softening
	}
	if t.Jitter > 0 {
		fc.Jitter = t.Jitter
	}
	if t.MaxDrawAttempts > 0 {
		fc.MaxDrawAttempts = t.MaxDrawAttempts
	}
	fc.RepairFloor = t.RepairFloor
	fc.Monitor = convergence.Monitor{
		MaxWindow:       t.MaxWindow,
		MinWindow:       t.MinWindow,
		AutocorrWalkers: t.AutocorrWalkers,
		Threshold:       t.PSRFThreshold,
		Interval:        t.AutocorrInterval,
		Low:             fc.Monitor.Low,
	}

	if err := fc.Validate(); err != nil {
		return fitter.Config{}, err
	}
	return fc, nil
}

// PoolOptions returns the pool strategy settings.
func (c *Config) PoolOptions() pool.Options {
	return pool.Options{
		Strategy: c.Pool.Strategy,
		Workers:  c.Pool.Workers,
		Seed:     c.Seed,
		NATS: pool.NATSOptions{
			URL:     c.Pool.NATSURL,
			Subject: c.Pool.Subject,
			Timeout: c.Pool.Timeout,
		},
	}
}
