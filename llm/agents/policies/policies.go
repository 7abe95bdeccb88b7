// Package policies holds the instruction text given to each agent. The
// built-in policies are embedded; a directory of <name>.yaml files
// overrides them one by one.
package policies

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed *.yaml
var builtin embed.FS

// Policy is the instruction set for one agent.
type Policy struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Instruction string `yaml:"instruction"`
	// Classifier is only used by the coordinator.
	Classifier string `yaml:"classifier,omitempty"`
}

// Store loads policies by name.
type Store struct {
	dir string
}

// NewStore returns a Store. An empty dir uses only the embedded policies.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Load returns the named policy, preferring the override directory.
func (s *Store) Load(name string) (Policy, error) {
	if s.dir != "" {
		data, err := os.ReadFile(filepath.Join(s.dir, name+".yaml"))
		switch {
		case err == nil:
			return parse(name, data)
		case !errors.Is(err, fs.ErrNotExist):
			return Policy{}, fmt.Errorf("read policy %s: %w", name, err)
		}
	}

	data, err := builtin.ReadFile(name + ".yaml")
	if err != nil {
		return Policy{}, fmt.Errorf("policy not found: %s", name)
	}
	return parse(name, data)
}

// MustLoad is Load for built-in names known at compile time.
func (s *Store) MustLoad(name string) Policy {
	p, err := s.Load(name)
	if err != nil {
		panic(err)
	}
	return p
}

// Names lists the embedded policy names.
func Names() []string {
	entries, _ := builtin.ReadDir(".")
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ".yaml"))
	}
	return names
}

func parse(name string, data []byte) (Policy, error) {
	var p Policy
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil {
		return Policy{}, fmt.Errorf("parse policy %s: %w", name, err)
	}
	if p.Name == "" {
		p.Name = name
	}
	if strings.TrimSpace(p.Instruction) == "" {
		return Policy{}, fmt.Errorf("policy %s: instruction is empty", name)
	}
	p.Instruction = strings.TrimSpace(p.Instruction)
	p.Classifier = strings.TrimSpace(p.Classifier)
	return p, nil
}
