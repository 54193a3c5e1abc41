package normalisers

import (
	"regexp"
	"sort"
	"sync"
)

// Rule recognises address text that is really a descriptive note.
type Rule interface {
	// Name identifies the rule in logs and tests
	Name() string

	// Matches reports whether text should be reclassified as a note
	Matches(text string) bool

	// Priority orders rules; higher runs first
	Priority() int
}

// Registry holds note rules and evaluates them in order.
// Rules with equal priority run in registration order; the first match wins.
type Registry struct {
	mu    sync.RWMutex
	rules []Rule
}

// NewRegistry creates an empty rule registry.
func NewRegistry() *Registry {
	return &Registry{
		rules: make([]Rule, 0),
	}
}

// Register adds a rule.
func (r *Registry) Register(rule Rule) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.rules = append(r.rules, rule)
	sort.SliceStable(r.rules, func(i, j int) bool {
		return r.rules[i].Priority() > r.rules[j].Priority()
	})
}

// Match returns the first rule matching text, or nil.
func (r *Registry) Match(text string) Rule {
	if text == "" {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, rule := range r.rules {
		if rule.Matches(text) {
			return rule
		}
	}
	return nil
}

// Classify splits an addr1 candidate into (addr1, note). Text matched by a
// rule moves to the note and addr1 becomes empty.
func (r *Registry) Classify(text string) (addr1, note string) {
	if r.Match(text) != nil {
		return "", text
	}
	return text, ""
}

// List returns rule names in evaluation order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, len(r.rules))
	for i, rule := range r.rules {
		names[i] = rule.Name()
	}
	return names
}

// PatternRule is a Rule backed by a regular expression.
type PatternRule struct {
	name     string
	pattern  *regexp.Regexp
	priority int
}

// NewPatternRule compiles pattern into a rule. Panics on an invalid pattern.
func NewPatternRule(name, pattern string, priority int) *PatternRule {
	return &PatternRule{
		name:     name,
		pattern:  regexp.MustCompile(pattern),
		priority: priority,
	}
}

func (p *PatternRule) Name() string {
	return p.name
}

func (p *PatternRule) Matches(text string) bool {
	return p.pattern.MatchString(text)
}

func (p *PatternRule) Priority() int {
	return p.priority
}

// DefaultRegistry creates a registry with the comprehensive registry's note
// patterns: "below/following" leads, "case of" tails, "whole area" tails,
// range dashes and list commas.
func DefaultRegistry() *Registry {
	r := NewRegistry()

	r.Register(NewPatternRule("leading-below", `^以下に`, 60))
	r.Register(NewPatternRule("trailing-case", `場合$`, 50))
	r.Register(NewPatternRule("case-bracket", `場合（`, 50))
	r.Register(NewPatternRule("whole-area", `一円$`, 40))
	r.Register(NewPatternRule("range-dash", `～`, 30))
	r.Register(NewPatternRule("list-comma", `、`, 20))

	return r
}
