package experiment

import (
	"fmt"
	"sort"

	"github.com/san-kum/dynfit/internal/model"
	"github.com/san-kum/dynfit/internal/models"
)

type Registry struct {
	models map[string]model.Factory
}

func NewRegistry() *Registry {
	r := &Registry{models: make(map[string]model.Factory)}

	r.models["gaussian"] = func() (model.Model, error) { return models.NewGaussian(), nil }
	r.models["bimodal"] = func() (model.Model, error) { return models.NewBimodal(), nil }
	r.models["line"] = func() (model.Model, error) { return models.NewLine(), nil }
	r.models["pendulum"] = func() (model.Model, error) { return models.NewPendulumFit(), nil }

	return r
}

// Register adds or replaces a model factory.
func (r *Registry) Register(name string, f model.Factory) {
	r.models[name] = f
}

// Factory returns the per-worker constructor of the named model.
func (r *Registry) Factory(name string) (model.Factory, error) {
	fn, ok := r.models[name]
	if !ok {
		return nil, fmt.Errorf("unknown model: %s", name)
	}
	return fn, nil
}

func (r *Registry) GetModel(name string) (model.Model, error) {
	fn, err := r.Factory(name)
	if err != nil {
		return nil, err
	}
	return fn()
}

func (r *Registry) ListModels() []string {
	names := make([]string, 0, len(r.models))
	for name := range r.models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
