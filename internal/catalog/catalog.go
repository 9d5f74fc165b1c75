// Package catalog holds the reusable steps that reference nodes point at.
package catalog

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var ErrStepNotFound = errors.New("reusable step not found")

type StepType string

const (
	TypeCommon     StepType = "common"
	TypeEmergency  StepType = "emergency"
	TypeAssessment StepType = "assessment"
)

type Step struct {
	ID                string   `json:"id" yaml:"id" validate:"required"`
	Name              string   `json:"name" yaml:"name" validate:"required"`
	Title             string   `json:"title" yaml:"title" validate:"required,max=200"`
	Instruction       string   `json:"instruction" yaml:"instruction"`
	ExpertInstruction string   `json:"expertInstruction,omitempty" yaml:"expertInstruction,omitempty"`
	Image             string   `json:"image,omitempty" yaml:"image,omitempty" validate:"omitempty,url"`
	Type              StepType `json:"type" yaml:"type" validate:"required,oneof=common emergency assessment"`
	Tags              []string `json:"tags,omitempty" yaml:"tags,omitempty"`
	UsageCount        int      `json:"usageCount" yaml:"usageCount" validate:"min=0"`
}

func (s Step) clone() Step {
	s.Tags = append([]string(nil), s.Tags...)
	return s
}

// InMemory is safe for concurrent use.
type InMemory struct {
	mu       sync.RWMutex
	steps    map[string]Step
	validate *validator.Validate
}

func NewInMemory() *InMemory {
	return &InMemory{
		steps:    map[string]Step{},
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Put inserts or replaces a step.
func (c *InMemory) Put(s Step) error {
	if err := c.validate.Struct(s); err != nil {
		return fmt.Errorf("step %q: %w", s.ID, err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.steps[s.ID] = s.clone()
	return nil
}

func (c *InMemory) Get(id string) (Step, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.steps[id]
	if !ok {
		return Step{}, false
	}
	return s.clone(), true
}

// List returns every step ordered by name, then id.
func (c *InMemory) List() []Step {
	c.mu.RLock()
	out := make([]Step, 0, len(c.steps))
	for _, s := range c.steps {
		out = append(out, s.clone())
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Search matches query case-insensitively against tags, name and title.
func (c *InMemory) Search(query string) []Step {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return c.List()
	}
	var out []Step
	for _, s := range c.List() {
		if matches(s, q) {
			out = append(out, s)
		}
	}
	return out
}

func matches(s Step, q string) bool {
	for _, tag := range s.Tags {
		if strings.ToLower(tag) == q {
			return true
		}
	}
	return strings.Contains(strings.ToLower(s.Name), q) || strings.Contains(strings.ToLower(s.Title), q)
}

// RecordUse bumps the usage counter of a step placed into a graph.
func (c *InMemory) RecordUse(id string) (Step, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.steps[id]
	if !ok {
		return Step{}, fmt.Errorf("%w: %q", ErrStepNotFound, id)
	}
	s.UsageCount++
	c.steps[id] = s
	return s.clone(), nil
}

type file struct {
	Steps []Step `yaml:"steps"`
}

// Load reads a YAML document of the form `steps: [...]` into c. Either every
// step is stored or none is.
func (c *InMemory) Load(r io.Reader) error {
	var f file
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("decode catalog: %w", err)
	}
	for _, s := range f.Steps {
		if err := c.validate.Struct(s); err != nil {
			return fmt.Errorf("step %q: %w", s.ID, err)
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range f.Steps {
		c.steps[s.ID] = s.clone()
	}
	return nil
}

func LoadFile(path string) (*InMemory, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()

	c := NewInMemory()
	if err := c.Load(fh); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}
