package config

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Event is one scripted action. Exactly one of Force and Spawn is set.
type Event struct {
	AtTick uint64      `yaml:"at_tick"`
	Force  *ForceEvent `yaml:"force,omitempty"`
	Spawn  *BodyConfig `yaml:"spawn,omitempty"`
}

// ForceEvent pushes the fluid of one domain at a world position for
// Duration ticks starting at the event tick.
type ForceEvent struct {
	Domain   int        `yaml:"domain"`
	Force    [2]float32 `yaml:"force"`
	Position [2]float32 `yaml:"position"`
	Duration uint64     `yaml:"duration,omitempty"`
}

// Active reports whether the force applies at tick.
func (f *ForceEvent) Active(start, tick uint64) bool {
	d := max(f.Duration, 1)
	return tick >= start && tick < start+d
}

type Scenario struct {
	Name   string  `yaml:"name"`
	Events []Event `yaml:"events"`
}

func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("config: parse scenario %s: %w", path, err)
	}
	for i := range s.Events {
		if sp := s.Events[i].Spawn; sp != nil && sp.Density == 0 {
			sp.Density = DefaultDensity
		}
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	s.sort()
	return &s, nil
}

func (s *Scenario) Validate() error {
	for i, e := range s.Events {
		if (e.Force == nil) == (e.Spawn == nil) {
			return fmt.Errorf("%w: event %d needs exactly one of force or spawn", ErrInvalidConfig, i)
		}
		if e.AtTick == 0 {
			return fmt.Errorf("%w: event %d: ticks start at 1", ErrInvalidConfig, i)
		}
		if e.Spawn != nil {
			if _, err := e.Spawn.Spec(); err != nil {
				return fmt.Errorf("%w: event %d: %v", ErrInvalidConfig, i, err)
			}
		}
	}
	return nil
}

func (s *Scenario) sort() {
	sort.SliceStable(s.Events, func(i, j int) bool { return s.Events[i].AtTick < s.Events[j].AtTick })
}

// Forces returns the force events active at tick.
func (s *Scenario) Forces(tick uint64) []ForceEvent {
	var out []ForceEvent
	for _, e := range s.Events {
		if e.Force != nil && e.Force.Active(e.AtTick, tick) {
			out = append(out, *e.Force)
		}
	}
	return out
}

// Spawns returns the bodies spawned at tick.
func (s *Scenario) Spawns(tick uint64) []BodyConfig {
	var out []BodyConfig
	for _, e := range s.Events {
		if e.Spawn != nil && e.AtTick == tick {
			out = append(out, *e.Spawn)
		}
	}
	return out
}

// Scenario merges the inline events of c with the scenario file named in
// the run section, if any.
func (c *Config) Scenario() (*Scenario, error) {
	s := &Scenario{Name: c.Preset, Events: append([]Event(nil), c.Events...)}
	if c.Run.Scenario != "" {
		file, err := LoadScenario(c.Run.Scenario)
		if err != nil {
			return nil, err
		}
		s.Name = file.Name
		s.Events = append(s.Events, file.Events...)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	s.sort()
	return s, nil
}
