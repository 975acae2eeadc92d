package config

import "sort"

func intPtr(v int) *int { return &v }

var Presets = map[string]map[string]*Config{
	"gaussian": {
		"quick": {
			Model: "gaussian", Iterations: 400, Walkers: 20, Temperatures: 1,
			Frack: FrackConfig{Enabled: false}, ChunkSize: 100, Seed: 1,
		},
		"reference": {
			Model: "gaussian", Iterations: 2000, Walkers: 40, Temperatures: 1,
			Frack: FrackConfig{Enabled: false}, ChunkSize: 500, Seed: 1,
		},
	},
	"bimodal": {
		"tempered": {
			Model: "bimodal", Iterations: 3000, Walkers: 40, Temperatures: 4,
			Frack: FrackConfig{Enabled: true, Step: 50}, ChunkSize: 500, Seed: 1,
		},
		"cold": {
			Model: "bimodal", Iterations: 3000, Walkers: 40, Temperatures: 1,
			Frack: FrackConfig{Enabled: false}, ChunkSize: 500, Seed: 1,
		},
	},
	"line": {
		"default": {
			Model: "line", Iterations: 2000, Walkers: 32, Temperatures: 2,
			Frack: FrackConfig{Enabled: true, Step: 20}, ChunkSize: 250, Seed: 1,
		},
		"long-burn": {
			Model: "line", Iterations: 3000, Walkers: 32, Temperatures: 2, Burn: intPtr(2000),
			Frack: FrackConfig{Enabled: true, Step: 20}, ChunkSize: 250, Seed: 1,
		},
	},
	"pendulum": {
		"default": {
			Model: "pendulum", Iterations: 1000, Walkers: 24, Temperatures: 2,
			Frack: FrackConfig{Enabled: true, Step: 25}, ChunkSize: 200, Seed: 1,
		},
		"converge": {
			Model: "pendulum", Iterations: 600, Walkers: 24, Temperatures: 2, Converge: true,
			MaxIterations: 20000, Frack: FrackConfig{Enabled: true, Step: 25}, ChunkSize: 200, Seed: 1,
		},
	},
}

// GetPreset returns a copy of the named preset layered over the defaults,
// or nil when it does not exist.
func GetPreset(model, preset string) *Config {
	modelPresets, ok := Presets[model]
	if !ok {
		return nil
	}
	p, ok := modelPresets[preset]
	if !ok {
		return nil
	}
	cfg := DefaultConfig()
	cfg.Model = p.Model
	cfg.Iterations = p.Iterations
	cfg.Walkers = p.Walkers
	cfg.Temperatures = p.Temperatures
	cfg.Frack = p.Frack
	if cfg.Frack.Step == 0 {
		cfg.Frack.Step = DefaultFrackStep
	}
	cfg.Converge = p.Converge
	cfg.MaxIterations = p.MaxIterations
	cfg.ChunkSize = p.ChunkSize
	cfg.Seed = p.Seed
	c := p.Clone()
	cfg.Burn, cfg.PostBurn = c.Burn, c.PostBurn
	return cfg
}

func ListPresets(model string) []string {
	modelPresets, ok := Presets[model]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(modelPresets))
	for name := range modelPresets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
