// Package decision resolves a recognized decision intent against a static,
// versioned template registry. Templates live in an embedded YAML file so a
// registry bump is a rebuild, never a migration.
package decision

import (
	_ "embed"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sakhilabs/sakhid/contracts"
)

//go:embed templates.yaml
var registryYAML []byte

// Slot is one piece of information a template wants. VOI ranks which
// missing slot is worth asking about first.
type Slot struct {
	Key      string  `yaml:"key"`
	Question string  `yaml:"question"`
	VOI      float64 `yaml:"voi"`
	Fallback string  `yaml:"fallback"`
}

// Option is one candidate answer with its rationale. Both fields may
// reference slots via ${key}.
type Option struct {
	Label     string `yaml:"label"`
	Rationale string `yaml:"rationale"`
}

type learningHint struct {
	Key   string `yaml:"key"`
	Value string `yaml:"value"`
}

// Template binds an intent to its slots, options and learning hints.
type Template struct {
	Intent     string         `yaml:"intent"`
	Slots      []Slot         `yaml:"slots"`
	Options    []Option       `yaml:"options"`
	TinyAction string         `yaml:"tiny_action"`
	Learning   []learningHint `yaml:"learning"`
}

type registry struct {
	Version   string     `yaml:"version"`
	Templates []Template `yaml:"templates"`
}

// Result is what a decide call hands back to the planner.
type Result struct {
	Intent        string
	MicroQuestion string
	Options       []Option
	TinyAction    string
	LearningHints []contracts.LearningHint
}

// Engine answers decide(intent, slots) lookups against the registry.
type Engine struct {
	version   string
	templates map[string]Template
}

// NewEngine loads the embedded registry.
func NewEngine() (*Engine, error) {
	return newEngineFromYAML(registryYAML)
}

func newEngineFromYAML(raw []byte) (*Engine, error) {
	var reg registry
	if err := yaml.Unmarshal(raw, &reg); err != nil {
		return nil, fmt.Errorf("parse template registry: %w", err)
	}
	templates := make(map[string]Template, len(reg.Templates))
	for _, tpl := range reg.Templates {
		if tpl.Intent == "" {
			return nil, fmt.Errorf("template registry: template without intent")
		}
		templates[tpl.Intent] = tpl
	}
	return &Engine{version: reg.Version, templates: templates}, nil
}

// Version reports the registry version tag.
func (e *Engine) Version() string { return e.version }

// Decide resolves an intent with whatever slots the extractor filled in.
// Unknown intents get no options and a generic micro-question.
func (e *Engine) Decide(intent string, provided map[string]string) Result {
	tpl, ok := e.templates[intent]
	if !ok {
		return Result{
			Intent:        intent,
			MicroQuestion: "Tell me more about what you need",
			Options:       []Option{},
		}
	}

	resolved := make(map[string]string, len(tpl.Slots))
	for _, slot := range tpl.Slots {
		if v, ok := provided[slot.Key]; ok && v != "" {
			resolved[slot.Key] = v
			continue
		}
		resolved[slot.Key] = slot.Fallback
	}

	result := Result{
		Intent:     intent,
		TinyAction: tpl.TinyAction,
		Options:    make([]Option, 0, len(tpl.Options)),
	}
	if missing := highestVOIMissing(tpl.Slots, provided); missing != nil {
		result.MicroQuestion = missing.Question
	}
	for _, opt := range tpl.Options {
		result.Options = append(result.Options, Option{
			Label:     interpolate(opt.Label, resolved),
			Rationale: interpolate(opt.Rationale, resolved),
		})
	}
	for _, hint := range tpl.Learning {
		result.LearningHints = append(result.LearningHints, contracts.LearningHint{
			Key:   interpolate(hint.Key, resolved),
			Value: interpolate(hint.Value, resolved),
		})
	}
	return result
}

// highestVOIMissing picks the unfilled slot most worth asking about.
// Unspecified VOI counts as 0.5. Sort is stable so registry order breaks ties.
func highestVOIMissing(slots []Slot, provided map[string]string) *Slot {
	var missing []Slot
	for _, slot := range slots {
		if v, ok := provided[slot.Key]; !ok || v == "" {
			missing = append(missing, slot)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.SliceStable(missing, func(i, j int) bool {
		return voiOf(missing[i]) > voiOf(missing[j])
	})
	return &missing[0]
}

func voiOf(s Slot) float64 {
	if s.VOI == 0 {
		return 0.5
	}
	return s.VOI
}

var slotRef = regexp.MustCompile(`\$\{([^}]+)}`)

func interpolate(text string, slots map[string]string) string {
	return slotRef.ReplaceAllStringFunc(text, func(match string) string {
		key := strings.TrimSpace(match[2 : len(match)-1])
		return slots[key]
	})
}
