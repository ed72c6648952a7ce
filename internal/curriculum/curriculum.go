// Package curriculum manages the ordered, YAML-configured list of design
// topics the conversation works through.
package curriculum

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"
)

//go:embed default.yml
var defaultYAML []byte

// Shape hints how a topic value is usually structured.
type Shape string

const (
	ShapeText   Shape = "text"
	ShapeList   Shape = "list"
	ShapeFields Shape = "fields"
)

// Topic is one curriculum entry.
type Topic struct {
	ID       string `yaml:"id"`
	Title    string `yaml:"title"`
	Section  string `yaml:"section"`
	Question string `yaml:"question"`
	Probe    string `yaml:"probe"`
	Shape    Shape  `yaml:"shape"`
}

// Prompt returns the question to put to the user. Re-asks use the narrower
// probe text when one is configured.
func (t Topic) Prompt(reask bool) string {
	if reask && t.Probe != "" {
		return t.Probe
	}
	return t.Question
}

// Config is the top-level YAML structure.
type Config struct {
	Topics []Topic `yaml:"topics"`
}

// Registry holds loaded topics, keyed by identifier.
type Registry struct {
	byID  map[string]*Topic
	order []string // preserves definition order
}

// Default returns the built-in curriculum.
func Default() *Registry {
	r, err := Parse(defaultYAML)
	if err != nil {
		panic(fmt.Sprintf("curriculum: built-in default is invalid: %v", err))
	}
	return r
}

// Load reads the YAML file at path and returns a Registry.
// An empty path or a missing file yields the built-in curriculum.
func Load(path string) (*Registry, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return Parse(data)
}

// Parse builds a Registry from YAML content.
func Parse(data []byte) (*Registry, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return New(cfg.Topics)
}

// New builds a Registry from topics in order. Identifiers are normalised and
// must be unique, and every topic needs a question.
func New(topics []Topic) (*Registry, error) {
	if len(topics) == 0 {
		return nil, fmt.Errorf("curriculum: no topics defined")
	}
	r := &Registry{byID: make(map[string]*Topic, len(topics))}
	for i := range topics {
		t := topics[i]
		t.ID = NormalizeID(t.ID)
		if t.ID == "" {
			return nil, fmt.Errorf("curriculum: topic %d has no id", i+1)
		}
		if _, dup := r.byID[t.ID]; dup {
			return nil, fmt.Errorf("curriculum: duplicate topic %q", t.ID)
		}
		if strings.TrimSpace(t.Question) == "" {
			return nil, fmt.Errorf("curriculum: topic %q has no question", t.ID)
		}
		if t.Title == "" {
			t.Title = TitleFromID(t.ID)
		}
		if t.Shape == "" {
			t.Shape = ShapeText
		}
		r.byID[t.ID] = &t
		r.order = append(r.order, t.ID)
	}
	return r, nil
}

// Get returns a topic by identifier. Returns (nil, false) if not found.
func (r *Registry) Get(id string) (*Topic, bool) {
	t, ok := r.byID[id]
	return t, ok
}

// Contains reports whether id is a curriculum topic.
func (r *Registry) Contains(id string) bool {
	_, ok := r.byID[id]
	return ok
}

// All returns all topics in definition order.
func (r *Registry) All() []*Topic {
	result := make([]*Topic, 0, len(r.order))
	for _, id := range r.order {
		result = append(result, r.byID[id])
	}
	return result
}

// IDs returns topic identifiers in curriculum order.
func (r *Registry) IDs() []string {
	ids := make([]string, len(r.order))
	copy(ids, r.order)
	return ids
}

// Len returns the number of topics.
func (r *Registry) Len() int {
	return len(r.order)
}

// Section groups topics under a heading.
type Section struct {
	Name   string
	Topics []*Topic
}

// Sections returns topics grouped by section, in order of first appearance.
func (r *Registry) Sections() []Section {
	var out []Section
	index := make(map[string]int)
	for _, t := range r.All() {
		i, ok := index[t.Section]
		if !ok {
			i = len(out)
			index[t.Section] = i
			out = append(out, Section{Name: t.Section})
		}
		out[i].Topics = append(out[i].Topics, t)
	}
	return out
}

// NormalizeID converts a topic name into lower snake case, e.g.
// "Target Users" and "targetUsers" both become "target_users".
func NormalizeID(s string) string {
	var b strings.Builder
	prevLower := false
	pendingSep := false
	for _, r := range strings.TrimSpace(s) {
		switch {
		case unicode.IsUpper(r):
			if prevLower {
				pendingSep = true
			}
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(unicode.ToLower(r))
			prevLower = false
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
			prevLower = true
		default:
			pendingSep = true
			prevLower = false
		}
	}
	return b.String()
}

// TitleFromID turns "target_users" into "Target Users".
func TitleFromID(id string) string {
	words := strings.Split(id, "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
