package saga

import (
	"io"
	"sort"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/mattermost/awsprov/model"
)

// StepRegistry maps transaction kinds to their ordered step
// definitions and implementation keys to step factories. It is filled
// at startup and read-only afterwards.
type StepRegistry struct {
	kinds     map[string]*model.Kind
	order     []string
	factories map[string]StepFactory
}

// NewStepRegistry returns an empty StepRegistry.
func NewStepRegistry() *StepRegistry {
	return &StepRegistry{
		kinds:     make(map[string]*model.Kind),
		factories: make(map[string]StepFactory),
	}
}

// RegisterFactory binds an implementation key to a StepFactory.
func (r *StepRegistry) RegisterFactory(key string, factory StepFactory) error {
	if key == "" {
		return errors.New("implementation key must not be empty")
	}
	if factory == nil {
		return errors.Errorf("factory for %q must not be nil", key)
	}
	if _, ok := r.factories[key]; ok {
		return errors.Errorf("implementation key %q registered twice", key)
	}
	r.factories[key] = factory
	return nil
}

// RegisterKind adds or replaces the step definitions of a kind.
func (r *StepRegistry) RegisterKind(kind model.Kind) error {
	if kind.Name == "" {
		return errors.New("kind name must not be empty")
	}
	if _, ok := r.kinds[kind.Name]; !ok {
		r.order = append(r.order, kind.Name)
	}
	k := cloneKind(kind)
	r.kinds[kind.Name] = &k
	return nil
}

// Validate checks that every kind is well formed and that every
// implementation key resolves to a factory. It is meant to be called
// once at startup so that bad configuration fails fast.
func (r *StepRegistry) Validate() error {
	if len(r.kinds) == 0 {
		return errors.New("no transaction kinds registered")
	}
	for _, name := range r.order {
		kind := r.kinds[name]
		if len(kind.Steps) == 0 {
			return errors.Errorf("kind %q has no steps", name)
		}
		previous := 0
		for _, def := range kind.Steps {
			if def.StepID <= previous {
				return errors.Errorf("kind %q: step ids must be positive and strictly increasing, got %d after %d", name, def.StepID, previous)
			}
			previous = def.StepID
			if def.Type == "" {
				return errors.Errorf("kind %q: step %d has no type", name, def.StepID)
			}
			if def.AnticipatedDuration < 0 {
				return errors.Errorf("kind %q: step %d has a negative anticipated duration", name, def.StepID)
			}
			switch def.Mode {
			case "", model.StepModeExecute, model.StepModeSimulate, model.StepModeFail:
			default:
				return errors.Errorf("kind %q: step %d has unknown mode %q", name, def.StepID, def.Mode)
			}
			if _, ok := r.factories[def.ImplementationKey]; !ok {
				return errors.Errorf("kind %q: step %d references unknown implementation key %q", name, def.StepID, def.ImplementationKey)
			}
		}
	}
	return nil
}

// Definitions returns a copy of the step definitions of a kind in
// ascending StepID order.
func (r *StepRegistry) Definitions(kind string) ([]model.StepDefinition, error) {
	k, ok := r.kinds[kind]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownKind, "kind %q", kind)
	}
	defs := cloneKind(*k).Steps
	sort.SliceStable(defs, func(i, j int) bool { return defs[i].StepID < defs[j].StepID })
	return defs, nil
}

// Definition returns the definition of a single step of a kind.
func (r *StepRegistry) Definition(kind string, stepID int) (model.StepDefinition, error) {
	defs, err := r.Definitions(kind)
	if err != nil {
		return model.StepDefinition{}, err
	}
	for _, def := range defs {
		if def.StepID == stepID {
			return def, nil
		}
	}
	return model.StepDefinition{}, errors.Errorf("kind %q has no step %d", kind, stepID)
}

// Factory returns the StepFactory bound to key.
func (r *StepRegistry) Factory(key string) (StepFactory, error) {
	f, ok := r.factories[key]
	if !ok {
		return nil, errors.Errorf("no step implementation registered for %q", key)
	}
	return f, nil
}

// Kinds returns copies of all registered kinds in registration order.
func (r *StepRegistry) Kinds() []*model.Kind {
	kinds := make([]*model.Kind, 0, len(r.order))
	for _, name := range r.order {
		k := cloneKind(*r.kinds[name])
		kinds = append(kinds, &k)
	}
	return kinds
}

// LoadKinds decodes a YAML document of the form
//
//	kinds:
//	  - name: custom-role
//	    steps:
//	      - stepId: 1
//	        ...
func LoadKinds(reader io.Reader) ([]model.Kind, error) {
	var doc struct {
		Kinds []model.Kind `yaml:"kinds"`
	}
	if err := yaml.NewDecoder(reader).Decode(&doc); err != nil {
		return nil, errors.Wrap(err, "failed to decode step catalog")
	}
	return doc.Kinds, nil
}

func cloneKind(k model.Kind) model.Kind {
	c := model.Kind{Name: k.Name, Steps: make([]model.StepDefinition, len(k.Steps))}
	for i, def := range k.Steps {
		c.Steps[i] = def
		if def.Config != nil {
			c.Steps[i].Config = make(map[string]string, len(def.Config))
			for key, value := range def.Config {
				c.Steps[i].Config[key] = value
			}
		}
	}
	return c
}
