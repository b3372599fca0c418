package schema

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Rule describes the per-event checks the registry knows about beyond the
// generic structural rules.
type Rule struct {
	RequiredParams []string `yaml:"required_params"`
}

// Registry holds per-event-name validation rules loaded from a YAML file:
//
//	events:
//	  login:
//	    required_params: [method]
//	  search:
//	    required_params: [search_term]
//
// The registry is optional; a nil *Registry disables the stricter checks.
type Registry struct {
	events map[string]Rule
}

type rulesFile struct {
	Events map[string]Rule `yaml:"events"`
}

// Load reads and parses a rules file from disk.
func Load(path string) (*Registry, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema rules: %w", err)
	}
	return Parse(b)
}

// Parse builds a registry from raw YAML rules.
func Parse(b []byte) (*Registry, error) {
	var f rulesFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse schema rules: %w", err)
	}
	return &Registry{events: f.Events}, nil
}

// Lookup returns the rule for an event name and whether the name is known.
func (r *Registry) Lookup(name string) (Rule, bool) {
	if r == nil {
		return Rule{}, false
	}
	rule, ok := r.events[name]
	return rule, ok
}

// Len returns the number of event names the registry knows.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.events)
}
