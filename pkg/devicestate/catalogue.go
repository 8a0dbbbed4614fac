package devicestate

import "fmt"

// DefaultDefinitions is the catalogue used when none is configured.
var DefaultDefinitions = []Definition{
	{
		DeviceState: Active,
		Title:       "Active",
		Icon:        "play",
		Description: "Device can be used normally",
	},
	{
		DeviceState: Locked,
		Title:       "Locked",
		Icon:        "lock",
		Description: "Device screen is locked",
	},
	{
		DeviceState: LoggedOut,
		Title:       "Logged out",
		Icon:        "logout",
		Description: "User session is terminated",
	},
	{
		DeviceState: AppDisabled,
		Title:       "Limit to group",
		Icon:        "apps",
		Description: "Only apps of the group can be used",
		Arguments:   []ArgumentKind{ArgumentAppGroup},
	},
}

// Catalogue is a validated, read-only set of state definitions.
type Catalogue struct {
	definitions []Definition
	byState     map[DeviceState]Definition
}

// NewCatalogue validates every definition. Duplicate states are rejected.
func NewCatalogue(defs []Definition) (*Catalogue, error) {
	c := &Catalogue{
		definitions: make([]Definition, 0, len(defs)),
		byState:     make(map[DeviceState]Definition, len(defs)),
	}
	for _, def := range defs {
		if err := def.Validate(); err != nil {
			return nil, fmt.Errorf("device state %q: %w", def.DeviceState, err)
		}
		if _, ok := c.byState[def.DeviceState]; ok {
			return nil, fmt.Errorf("device state %q: %w: duplicate definition", def.DeviceState, ErrInvalidState)
		}
		c.definitions = append(c.definitions, def)
		c.byState[def.DeviceState] = def
	}
	return c, nil
}

// Definitions returns the definitions in configured order.
func (c *Catalogue) Definitions() []Definition {
	out := make([]Definition, len(c.definitions))
	copy(out, c.definitions)
	return out
}

// Lookup returns the definition for state.
func (c *Catalogue) Lookup(state DeviceState) (Definition, bool) {
	def, ok := c.byState[state]
	return def, ok
}

// Instances fans every definition out over groups.
func (c *Catalogue) Instances(groups []AppGroup) []Instance {
	var out []Instance
	for _, def := range c.definitions {
		// definitions were validated in NewCatalogue
		instances, _ := Instantiate(def, groups)
		out = append(out, instances...)
	}
	return out
}

// Accepts reports whether v names a selectable instance given the available groups.
func (c *Catalogue) Accepts(v Value, groups []AppGroup) error {
	def, ok := c.Lookup(v.DeviceState)
	if !ok {
		return fmt.Errorf("%w: unknown state %q", ErrInvalidState, v.DeviceState)
	}
	if !def.TakesAppGroup() {
		if v.Extra != "" {
			return fmt.Errorf("%w: state %q takes no argument", ErrInvalidState, v.DeviceState)
		}
		return nil
	}
	for _, group := range groups {
		if group.ID == v.Extra {
			return nil
		}
	}
	return fmt.Errorf("%w: state %q requires a known app group, got %q", ErrInvalidState, v.DeviceState, v.Extra)
}
