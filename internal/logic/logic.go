// Package logic implements a declarative rule engine over entity
// attributes. Tables of rules fire each turn to mutate attributes, and
// tables of labels translate attributes into prompt text.
package logic

import (
	"fmt"
	"math/rand"
	"os"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"gopkg.in/yaml.v3"

	"github.com/fablesim/fablesim/internal/world"
)

// TriggerFunc is a named side effect a rule can fire against the matched
// entity, with whatever parameters the rule supplies. Triggers are
// registered explicitly by name.
type TriggerFunc func(w *world.World, entity world.Entity, params map[string]any)

// Trigger names a registered side-effect function. In YAML it is either a
// bare string or a mapping with function and parameters.
type Trigger struct {
	Function   string         `yaml:"function" json:"function"`
	Parameters map[string]any `yaml:"parameters,omitempty" json:"parameters,omitempty"`
}

func (t *Trigger) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		return node.Decode(&t.Function)
	}
	type plain Trigger
	return node.Decode((*plain)(t))
}

// Rule mutates an entity's attributes when its conditions hold. Match is a
// subset test against the attributes; Rule is an optional predicate
// expression evaluated with the attributes in scope; Chance gates firing
// randomly, nil meaning always. Within one pass over an entity, at most
// one rule per group fires.
type Rule struct {
	Group    string           `yaml:"group,omitempty" json:"group,omitempty"`
	Match    world.Attributes `yaml:"match,omitempty" json:"match,omitempty"`
	Rule     string           `yaml:"rule,omitempty" json:"rule,omitempty"`
	Chance   *float64         `yaml:"chance,omitempty" json:"chance,omitempty"`
	Set      world.Attributes `yaml:"set,omitempty" json:"set,omitempty"`
	Remove   []string         `yaml:"remove,omitempty" json:"remove,omitempty"`
	Triggers []Trigger        `yaml:"trigger,omitempty" json:"trigger,omitempty"`

	program *vm.Program
}

// Label renders attribute state as text. Backstory is addressed to the
// entity itself; description is what observers see.
type Label struct {
	Match       world.Attributes `yaml:"match,omitempty" json:"match,omitempty"`
	Rule        string           `yaml:"rule,omitempty" json:"rule,omitempty"`
	Backstory   string           `yaml:"backstory,omitempty" json:"backstory,omitempty"`
	Description string           `yaml:"description,omitempty" json:"description,omitempty"`

	program *vm.Program
}

// Table is one loaded rule file.
type Table struct {
	Rules  []*Rule  `yaml:"rules,omitempty" json:"rules,omitempty"`
	Labels []*Label `yaml:"labels,omitempty" json:"labels,omitempty"`
}

// Compile pre-compiles every predicate expression in the table. Rules fire
// many times per turn, so compilation happens once at load.
func (t *Table) Compile() error {
	for i, rule := range t.Rules {
		for _, trigger := range rule.Triggers {
			if trigger.Function == "" {
				return fmt.Errorf("rule %d: trigger has no function", i)
			}
		}
		if rule.Rule == "" {
			continue
		}
		program, err := expr.Compile(rule.Rule, expr.AllowUndefinedVariables())
		if err != nil {
			return fmt.Errorf("compiling rule %d: %w", i, err)
		}
		rule.program = program
	}
	for i, label := range t.Labels {
		if label.Rule == "" {
			continue
		}
		program, err := expr.Compile(label.Rule, expr.AllowUndefinedVariables())
		if err != nil {
			return fmt.Errorf("compiling label %d: %w", i, err)
		}
		label.program = program
	}
	return nil
}

// LoadTable reads and compiles a YAML rule file.
func LoadTable(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rule table: %w", err)
	}
	var table Table
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("parsing rule table %s: %w", path, err)
	}
	if err := table.Compile(); err != nil {
		return nil, fmt.Errorf("rule table %s: %w", path, err)
	}
	return &table, nil
}

// ruleEnv builds the expression environment: the entity's attributes plus
// its kind under the "type" key.
func ruleEnv(entity world.Entity) map[string]any {
	attrs := entity.AttributeMap()
	env := make(map[string]any, len(attrs)+2)
	for k, v := range attrs {
		env[k] = v
	}
	env["type"] = entity.EntityKind()
	env["attributes"] = map[string]any(attrs)
	return env
}

func matchesSubset(attrs world.Attributes, match world.Attributes, kind string) bool {
	for key, want := range match {
		if key == "type" {
			if want != kind {
				return false
			}
			continue
		}
		got, exists := attrs[key]
		if !exists || !looseEqual(got, want) {
			return false
		}
	}
	return true
}

// looseEqual compares attribute values across int and float encodings, so a
// YAML 10 matches a runtime float64(10).
func looseEqual(a, b any) bool {
	if a == b {
		return true
	}
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	return aok && bok && af == bf
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func runPredicate(program *vm.Program, entity world.Entity) (bool, error) {
	if program == nil {
		return true, nil
	}
	out, err := expr.Run(program, ruleEnv(entity))
	if err != nil {
		return false, err
	}
	result, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("predicate returned %T, want bool", out)
	}
	return result, nil
}

// chance returns the firing probability, distinguishing an unset chance
// from an explicit zero.
func (r *Rule) chance() float64 {
	if r.Chance == nil {
		return 1
	}
	return *r.Chance
}

func (r *Rule) matches(entity world.Entity) (bool, error) {
	if r.Match != nil && !matchesSubset(entity.AttributeMap(), r.Match, entity.EntityKind()) {
		return false, nil
	}
	return runPredicate(r.program, entity)
}

func (l *Label) matches(entity world.Entity) (bool, error) {
	if l.Match != nil && !matchesSubset(entity.AttributeMap(), l.Match, entity.EntityKind()) {
		return false, nil
	}
	return runPredicate(l.program, entity)
}

// Engine applies rule tables to entities. Tables apply in load order and
// rules within a table in file order.
type Engine struct {
	tables   []*Table
	triggers map[string]TriggerFunc
	rng      *rand.Rand
}

// NewEngine creates an engine drawing chance rolls from the given source.
func NewEngine(rng *rand.Rand) *Engine {
	return &Engine{
		triggers: make(map[string]TriggerFunc),
		rng:      rng,
	}
}

// AddTable appends a compiled table.
func (e *Engine) AddTable(t *Table) { e.tables = append(e.tables, t) }

// RegisterTrigger binds a name rules can fire to a function.
func (e *Engine) RegisterTrigger(name string, fn TriggerFunc) { e.triggers[name] = fn }

// RuleOutcome records one rule firing during a pass.
type RuleOutcome struct {
	Entity world.Entity
	Rule   *Rule
}

// ApplyTo runs every table against a single entity. Once a rule from a
// named group fires, later rules in the same group are skipped for this
// pass.
func (e *Engine) ApplyTo(w *world.World, entity world.Entity) ([]RuleOutcome, error) {
	var fired []RuleOutcome
	consumed := make(map[string]bool)

	for _, table := range e.tables {
		for _, rule := range table.Rules {
			if rule.Group != "" && consumed[rule.Group] {
				continue
			}
			ok, err := rule.matches(entity)
			if err != nil {
				return fired, fmt.Errorf("evaluating rule for %s %q: %w",
					entity.EntityKind(), entity.EntityName(), err)
			}
			if !ok {
				continue
			}
			if chance := rule.chance(); chance < 1 && e.rng.Float64() >= chance {
				continue
			}

			attrs := entity.AttributeMap()
			for _, key := range rule.Remove {
				delete(attrs, key)
			}
			for key, value := range rule.Set {
				world.SetAttribute(attrs, key, value)
			}
			for _, trigger := range rule.Triggers {
				fn, known := e.triggers[trigger.Function]
				if !known {
					return fired, fmt.Errorf("rule fired unknown trigger %q", trigger.Function)
				}
				fn(w, entity, trigger.Parameters)
			}

			if rule.Group != "" {
				consumed[rule.Group] = true
			}
			fired = append(fired, RuleOutcome{Entity: entity, Rule: rule})
		}
	}
	return fired, nil
}

// Apply runs the tables against every room, character and item in the
// world, in world order.
func (e *Engine) Apply(w *world.World) ([]RuleOutcome, error) {
	var fired []RuleOutcome
	for _, room := range w.Rooms {
		entities := []world.Entity{room}
		for _, character := range room.Characters {
			entities = append(entities, character)
			for _, item := range character.Items {
				entities = append(entities, item)
			}
		}
		for _, item := range room.Items {
			entities = append(entities, item)
		}
		for _, entity := range entities {
			outcomes, err := e.ApplyTo(w, entity)
			fired = append(fired, outcomes...)
			if err != nil {
				return fired, err
			}
		}
	}
	return fired, nil
}

// Describe renders the matching label text for an entity. Backstory lines
// are returned for the first and second person, description lines for the
// third.
func (e *Engine) Describe(entity world.Entity, thirdPerson bool) ([]string, error) {
	var lines []string
	for _, table := range e.tables {
		for _, label := range table.Labels {
			ok, err := label.matches(entity)
			if err != nil {
				return lines, fmt.Errorf("evaluating label for %s %q: %w",
					entity.EntityKind(), entity.EntityName(), err)
			}
			if !ok {
				continue
			}
			text := label.Backstory
			if thirdPerson {
				text = label.Description
			}
			if text != "" {
				lines = append(lines, text)
			}
		}
	}
	return lines, nil
}
