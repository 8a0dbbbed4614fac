package devicestate

import (
	"fmt"
	"sort"
)

// ArgumentKind names a kind of argument a state definition can require.
type ArgumentKind string

const (
	ArgumentAppGroup ArgumentKind = "APP_GROUP"
)

// Definition is a catalogue entry describing a device state.
type Definition struct {
	DeviceState DeviceState    `json:"deviceState" yaml:"device_state"`
	Title       string         `json:"title" yaml:"title"`
	Icon        string         `json:"icon,omitempty" yaml:"icon"`
	Description string         `json:"description,omitempty" yaml:"description"`
	Arguments   []ArgumentKind `json:"arguments,omitempty" yaml:"arguments"`
}

// Instance is a concrete, selectable state derived from a Definition.
type Instance struct {
	DeviceState DeviceState `json:"deviceState"`
	Title       string      `json:"title"`
	Icon        string      `json:"icon,omitempty"`
	Description string      `json:"description,omitempty"`
	Extra       string      `json:"extra,omitempty"`
}

// Value returns the state value selecting this instance.
func (i Instance) Value() Value {
	return Value{DeviceState: i.DeviceState, Extra: i.Extra}
}

// AppGroup is the part of an app group needed to fan out APP_GROUP states.
type AppGroup struct {
	ID   string
	Name string
}

// argumentation expands a definition into instances. Each supported argument set
// has exactly one implementation.
type argumentation interface {
	expand(def Definition, groups []AppGroup) []Instance
}

type noArguments struct{}

func (noArguments) expand(def Definition, _ []AppGroup) []Instance {
	return []Instance{{
		DeviceState: def.DeviceState,
		Title:       def.Title,
		Icon:        def.Icon,
		Description: def.Description,
	}}
}

type appGroupArguments struct{}

func (appGroupArguments) expand(def Definition, groups []AppGroup) []Instance {
	instances := make([]Instance, 0, len(groups))
	for _, group := range groups {
		instance := Instance{
			DeviceState: def.DeviceState,
			Title:       fmt.Sprintf("%s (%s)", def.Title, group.Name),
			Icon:        def.Icon,
			Extra:       group.ID,
		}
		if def.Description != "" {
			instance.Description = fmt.Sprintf("%s (%s)", def.Description, group.Name)
		}
		instances = append(instances, instance)
	}
	return instances
}

func argumentationFor(kinds []ArgumentKind) (argumentation, error) {
	set := make(map[ArgumentKind]struct{}, len(kinds))
	for _, kind := range kinds {
		set[kind] = struct{}{}
	}

	switch {
	case len(set) == 0:
		return noArguments{}, nil
	case len(set) == 1:
		if _, ok := set[ArgumentAppGroup]; ok {
			return appGroupArguments{}, nil
		}
	}

	names := make([]string, 0, len(set))
	for kind := range set {
		names = append(names, string(kind))
	}
	sort.Strings(names)
	return nil, fmt.Errorf("%w: %v", ErrUnsupportedArguments, names)
}

// Validate checks the definition can be instantiated.
func (d Definition) Validate() error {
	if _, err := Parse(string(d.DeviceState)); err != nil {
		return err
	}
	_, err := argumentationFor(d.Arguments)
	return err
}

// TakesAppGroup reports whether instances of d are scoped to an app group.
func (d Definition) TakesAppGroup() bool {
	for _, kind := range d.Arguments {
		if kind == ArgumentAppGroup {
			return true
		}
	}
	return false
}

// Instantiate expands def into one instance, or one instance per app group when
// the definition takes an APP_GROUP argument.
func Instantiate(def Definition, groups []AppGroup) ([]Instance, error) {
	arg, err := argumentationFor(def.Arguments)
	if err != nil {
		return nil, err
	}
	return arg.expand(def, groups), nil
}
