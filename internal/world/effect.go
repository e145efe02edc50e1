package world

import (
	"encoding/json"
	"fmt"
	"math/rand"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Effect application modes.
const (
	ApplicationPermanent = "permanent"
	ApplicationTemporary = "temporary"
)

// Readiness describes whether an effect pattern can currently be applied.
type Readiness string

const (
	ReadinessReady     Readiness = "ready"
	ReadinessCooldown  Readiness = "cooldown"
	ReadinessExhausted Readiness = "exhausted"
)

// IntSpec is an integer drawn either from a fixed value or uniformly from an
// inclusive range. In YAML and JSON a bare number means a fixed value and a
// {min, max} mapping means a range.
type IntSpec struct {
	Fixed *int
	Min   *int
	Max   *int
}

// Resolve draws a concrete value from the spec.
func (s *IntSpec) Resolve(rng *rand.Rand) int {
	if s.Fixed != nil {
		return *s.Fixed
	}
	lo, hi := 0, 0
	if s.Min != nil {
		lo = *s.Min
	}
	if s.Max != nil {
		hi = *s.Max
	}
	if hi <= lo {
		return lo
	}
	return lo + rng.Intn(hi-lo+1)
}

func (s *IntSpec) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		var v int
		if err := node.Decode(&v); err != nil {
			return err
		}
		s.Fixed = &v
		return nil
	}
	var r struct {
		Min int `yaml:"min"`
		Max int `yaml:"max"`
	}
	if err := node.Decode(&r); err != nil {
		return err
	}
	s.Min, s.Max = &r.Min, &r.Max
	return nil
}

func (s IntSpec) MarshalYAML() (any, error) {
	if s.Fixed != nil {
		return *s.Fixed, nil
	}
	return map[string]int{"min": intOrZero(s.Min), "max": intOrZero(s.Max)}, nil
}

func (s *IntSpec) UnmarshalJSON(data []byte) error {
	var v int
	if err := json.Unmarshal(data, &v); err == nil {
		s.Fixed = &v
		return nil
	}
	var r struct {
		Min int `json:"min"`
		Max int `json:"max"`
	}
	if err := json.Unmarshal(data, &r); err != nil {
		return err
	}
	s.Min, s.Max = &r.Min, &r.Max
	return nil
}

func (s IntSpec) MarshalJSON() ([]byte, error) {
	if s.Fixed != nil {
		return json.Marshal(*s.Fixed)
	}
	return json.Marshal(map[string]int{"min": intOrZero(s.Min), "max": intOrZero(s.Max)})
}

func intOrZero(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

// FloatSpec is a float drawn either from a fixed value or uniformly from a
// range, with the same wire forms as IntSpec.
type FloatSpec struct {
	Fixed *float64
	Min   *float64
	Max   *float64
}

// Resolve draws a concrete value from the spec.
func (s *FloatSpec) Resolve(rng *rand.Rand) float64 {
	if s.Fixed != nil {
		return *s.Fixed
	}
	lo, hi := 0.0, 0.0
	if s.Min != nil {
		lo = *s.Min
	}
	if s.Max != nil {
		hi = *s.Max
	}
	if hi <= lo {
		return lo
	}
	return lo + rng.Float64()*(hi-lo)
}

func (s *FloatSpec) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		var v float64
		if err := node.Decode(&v); err != nil {
			return err
		}
		s.Fixed = &v
		return nil
	}
	var r struct {
		Min float64 `yaml:"min"`
		Max float64 `yaml:"max"`
	}
	if err := node.Decode(&r); err != nil {
		return err
	}
	s.Min, s.Max = &r.Min, &r.Max
	return nil
}

func (s FloatSpec) MarshalYAML() (any, error) {
	if s.Fixed != nil {
		return *s.Fixed, nil
	}
	return map[string]float64{"min": floatOrZero(s.Min), "max": floatOrZero(s.Max)}, nil
}

func (s *FloatSpec) UnmarshalJSON(data []byte) error {
	var v float64
	if err := json.Unmarshal(data, &v); err == nil {
		s.Fixed = &v
		return nil
	}
	var r struct {
		Min float64 `json:"min"`
		Max float64 `json:"max"`
	}
	if err := json.Unmarshal(data, &r); err != nil {
		return err
	}
	s.Min, s.Max = &r.Min, &r.Max
	return nil
}

func (s FloatSpec) MarshalJSON() ([]byte, error) {
	if s.Fixed != nil {
		return json.Marshal(*s.Fixed)
	}
	return json.Marshal(map[string]float64{"min": floatOrZero(s.Min), "max": floatOrZero(s.Max)})
}

func floatOrZero(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

// AttributeEffect is a typed delta against a single attribute. Concrete
// types are BoolEffect, IntEffect, FloatEffect and StringEffect, selected by
// the "type" field on the wire.
type AttributeEffect interface {
	// Target returns the attribute key the delta applies to.
	Target() string
	// EffectType returns the wire tag of the concrete type.
	EffectType() string
	// Resolve draws concrete values for any ranged fields.
	Resolve(rng *rand.Rand) AttributeEffect
	applyTo(attrs Attributes) error
}

// BoolEffect sets or toggles a boolean attribute.
type BoolEffect struct {
	Type   string `json:"type" yaml:"type"`
	Name   string `json:"name" yaml:"name"`
	Set    *bool  `json:"set,omitempty" yaml:"set,omitempty"`
	Toggle bool   `json:"toggle,omitempty" yaml:"toggle,omitempty"`
}

func (e *BoolEffect) Target() string     { return e.Name }
func (e *BoolEffect) EffectType() string { return "bool" }

func (e *BoolEffect) Resolve(rng *rand.Rand) AttributeEffect {
	clone := *e
	clone.Type = e.EffectType()
	return &clone
}

func (e *BoolEffect) applyTo(attrs Attributes) error {
	if e.Set != nil {
		SetAttribute(attrs, e.Name, *e.Set)
		return nil
	}
	if !e.Toggle {
		return nil
	}
	prev, exists := attrs[e.Name]
	if !exists {
		SetAttribute(attrs, e.Name, true)
		return nil
	}
	b, ok := prev.(bool)
	if !ok {
		return &TypeMismatchError{Key: e.Name, Op: "toggle", Value: prev}
	}
	SetAttribute(attrs, e.Name, !b)
	return nil
}

// IntEffect sets, offsets or scales an integer attribute. The result is
// truncated to an integer.
type IntEffect struct {
	Type     string     `json:"type" yaml:"type"`
	Name     string     `json:"name" yaml:"name"`
	Set      *IntSpec   `json:"set,omitempty" yaml:"set,omitempty"`
	Offset   *IntSpec   `json:"offset,omitempty" yaml:"offset,omitempty"`
	Multiply *FloatSpec `json:"multiply,omitempty" yaml:"multiply,omitempty"`
}

func (e *IntEffect) Target() string     { return e.Name }
func (e *IntEffect) EffectType() string { return "int" }

func (e *IntEffect) Resolve(rng *rand.Rand) AttributeEffect {
	clone := IntEffect{Type: e.EffectType(), Name: e.Name}
	if e.Set != nil {
		v := e.Set.Resolve(rng)
		clone.Set = &IntSpec{Fixed: &v}
	}
	if e.Offset != nil {
		v := e.Offset.Resolve(rng)
		clone.Offset = &IntSpec{Fixed: &v}
	}
	if e.Multiply != nil {
		v := e.Multiply.Resolve(rng)
		clone.Multiply = &FloatSpec{Fixed: &v}
	}
	return &clone
}

func (e *IntEffect) applyTo(attrs Attributes) error {
	// Resolve draws fixed values, so resolving here is deterministic.
	var value float64
	if e.Set != nil {
		value = float64(intOrZero(e.Set.Fixed))
	} else if prev, exists := attrs[e.Name]; exists {
		n, ok := asNumber(prev)
		if !ok {
			return &TypeMismatchError{Key: e.Name, Op: "offset", Value: prev}
		}
		value = n
	}
	if e.Offset != nil {
		value += float64(intOrZero(e.Offset.Fixed))
	}
	if e.Multiply != nil {
		value *= floatOrZero(e.Multiply.Fixed)
	}
	SetAttribute(attrs, e.Name, int(value))
	return nil
}

// FloatEffect sets, offsets or scales a float attribute.
type FloatEffect struct {
	Type     string     `json:"type" yaml:"type"`
	Name     string     `json:"name" yaml:"name"`
	Set      *FloatSpec `json:"set,omitempty" yaml:"set,omitempty"`
	Offset   *FloatSpec `json:"offset,omitempty" yaml:"offset,omitempty"`
	Multiply *FloatSpec `json:"multiply,omitempty" yaml:"multiply,omitempty"`
}

func (e *FloatEffect) Target() string     { return e.Name }
func (e *FloatEffect) EffectType() string { return "float" }

func (e *FloatEffect) Resolve(rng *rand.Rand) AttributeEffect {
	clone := FloatEffect{Type: e.EffectType(), Name: e.Name}
	if e.Set != nil {
		v := e.Set.Resolve(rng)
		clone.Set = &FloatSpec{Fixed: &v}
	}
	if e.Offset != nil {
		v := e.Offset.Resolve(rng)
		clone.Offset = &FloatSpec{Fixed: &v}
	}
	if e.Multiply != nil {
		v := e.Multiply.Resolve(rng)
		clone.Multiply = &FloatSpec{Fixed: &v}
	}
	return &clone
}

func (e *FloatEffect) applyTo(attrs Attributes) error {
	var value float64
	if e.Set != nil {
		value = floatOrZero(e.Set.Fixed)
	} else if prev, exists := attrs[e.Name]; exists {
		n, ok := asNumber(prev)
		if !ok {
			return &TypeMismatchError{Key: e.Name, Op: "offset", Value: prev}
		}
		value = n
	}
	if e.Offset != nil {
		value += floatOrZero(e.Offset.Fixed)
	}
	if e.Multiply != nil {
		value *= floatOrZero(e.Multiply.Fixed)
	}
	SetAttribute(attrs, e.Name, value)
	return nil
}

// StringEffect sets, appends to or prepends to a string attribute.
type StringEffect struct {
	Type    string  `json:"type" yaml:"type"`
	Name    string  `json:"name" yaml:"name"`
	Set     *string `json:"set,omitempty" yaml:"set,omitempty"`
	Append  *string `json:"append,omitempty" yaml:"append,omitempty"`
	Prepend *string `json:"prepend,omitempty" yaml:"prepend,omitempty"`
}

func (e *StringEffect) Target() string     { return e.Name }
func (e *StringEffect) EffectType() string { return "string" }

func (e *StringEffect) Resolve(rng *rand.Rand) AttributeEffect {
	clone := *e
	clone.Type = e.EffectType()
	return &clone
}

func (e *StringEffect) applyTo(attrs Attributes) error {
	if e.Set != nil {
		SetAttribute(attrs, e.Name, *e.Set)
		return nil
	}
	if e.Append != nil {
		if err := AppendAttribute(attrs, e.Name, *e.Append); err != nil {
			return err
		}
	}
	if e.Prepend != nil {
		if err := PrependAttribute(attrs, e.Name, *e.Prepend); err != nil {
			return err
		}
	}
	return nil
}

// AttributeEffects is a list of typed deltas with tagged-union wire forms.
type AttributeEffects []AttributeEffect

func unmarshalAttributeEffectJSON(data []byte) (AttributeEffect, error) {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, err
	}
	var effect AttributeEffect
	switch probe.Type {
	case "bool":
		effect = &BoolEffect{}
	case "int":
		effect = &IntEffect{}
	case "float":
		effect = &FloatEffect{}
	case "string":
		effect = &StringEffect{}
	default:
		return nil, fmt.Errorf("unknown attribute effect type: %q", probe.Type)
	}
	if err := json.Unmarshal(data, effect); err != nil {
		return nil, err
	}
	return effect, nil
}

func (l *AttributeEffects) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	effects := make(AttributeEffects, 0, len(raw))
	for _, entry := range raw {
		effect, err := unmarshalAttributeEffectJSON(entry)
		if err != nil {
			return err
		}
		effects = append(effects, effect)
	}
	*l = effects
	return nil
}

func (l *AttributeEffects) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.SequenceNode {
		return fmt.Errorf("attribute effects must be a sequence")
	}
	effects := make(AttributeEffects, 0, len(node.Content))
	for _, entry := range node.Content {
		var probe struct {
			Type string `yaml:"type"`
		}
		if err := entry.Decode(&probe); err != nil {
			return err
		}
		var effect AttributeEffect
		switch probe.Type {
		case "bool":
			effect = &BoolEffect{}
		case "int":
			effect = &IntEffect{}
		case "float":
			effect = &FloatEffect{}
		case "string":
			effect = &StringEffect{}
		default:
			return fmt.Errorf("unknown attribute effect type: %q", probe.Type)
		}
		if err := entry.Decode(effect); err != nil {
			return err
		}
		effects = append(effects, effect)
	}
	*l = effects
	return nil
}

// EffectPattern is a reusable effect template attached to an item. Ranged
// fields are drawn fresh each time the pattern is applied. Cooldown, uses and
// the last-used stamp gate how often the pattern can be applied.
type EffectPattern struct {
	ID          string           `json:"id" yaml:"id,omitempty"`
	Name        string           `json:"name" yaml:"name"`
	Description string           `json:"description" yaml:"description,omitempty"`
	Application string           `json:"application" yaml:"application"`
	Duration    *IntSpec         `json:"duration,omitempty" yaml:"duration,omitempty"`
	Cooldown    *int             `json:"cooldown,omitempty" yaml:"cooldown,omitempty"`
	Uses        *int             `json:"uses,omitempty" yaml:"uses,omitempty"`
	LastUsed    *int             `json:"last_used,omitempty" yaml:"last_used,omitempty"`
	Attributes  AttributeEffects `json:"attributes" yaml:"attributes,omitempty"`
}

// Effect is a resolved instance of a pattern, carried on an entity until its
// duration runs out. All ranged fields have been drawn to concrete values.
type Effect struct {
	ID          string           `json:"id" yaml:"id,omitempty"`
	Name        string           `json:"name" yaml:"name"`
	Description string           `json:"description" yaml:"description,omitempty"`
	Duration    *int             `json:"duration,omitempty" yaml:"duration,omitempty"`
	Attributes  AttributeEffects `json:"attributes" yaml:"attributes,omitempty"`
}

// Resolve draws a concrete effect instance from the pattern.
func (p *EffectPattern) Resolve(rng *rand.Rand) *Effect {
	effect := &Effect{
		ID:          uuid.NewString(),
		Name:        p.Name,
		Description: p.Description,
	}
	if p.Duration != nil {
		d := p.Duration.Resolve(rng)
		effect.Duration = &d
	}
	for _, attr := range p.Attributes {
		effect.Attributes = append(effect.Attributes, attr.Resolve(rng))
	}
	return effect
}

// ReadyAt reports whether the pattern can be applied on the given turn.
// Exhaustion is permanent and reported over a pending cooldown.
func (p *EffectPattern) ReadyAt(turn int) Readiness {
	if p.Uses != nil && *p.Uses <= 0 {
		return ReadinessExhausted
	}
	if p.Cooldown != nil && p.LastUsed != nil && *p.LastUsed+*p.Cooldown > turn {
		return ReadinessCooldown
	}
	return ReadinessReady
}

// MarkUsed stamps the pattern with the turn it was applied on and consumes
// one use if uses are limited.
func (p *EffectPattern) MarkUsed(turn int) {
	t := turn
	p.LastUsed = &t
	if p.Uses != nil {
		remaining := *p.Uses - 1
		p.Uses = &remaining
	}
}

// applyDeltas stages every delta against a copy of the attributes and only
// commits once all of them succeed, so a type mismatch midway leaves the
// entity untouched.
func applyDeltas(attrs Attributes, deltas AttributeEffects) error {
	staged := make(Attributes, len(attrs))
	for k, v := range attrs {
		staged[k] = v
	}
	for _, delta := range deltas {
		if err := delta.applyTo(staged); err != nil {
			return err
		}
	}
	for k, v := range staged {
		attrs[k] = v
	}
	return nil
}

// ApplyEffect resolves a pattern against a target entity. Permanent and
// temporary effects both change attributes immediately; temporary effects
// additionally join the target's active list until their duration expires.
func ApplyEffect(target Entity, pattern *EffectPattern, rng *rand.Rand) (*Effect, error) {
	effect := pattern.Resolve(rng)
	if err := applyDeltas(target.AttributeMap(), effect.Attributes); err != nil {
		return nil, fmt.Errorf("applying effect %q to %s %q: %w",
			pattern.Name, target.EntityKind(), target.EntityName(), err)
	}
	if pattern.Application == ApplicationTemporary {
		target.SetActiveEffects(append(target.ActiveEffectList(), effect))
	}
	return effect, nil
}

// ExpireEffects decrements durations on the target's active effects and
// drops the ones that have run out. Effects without a duration never expire.
// Returns the effects that were removed.
func ExpireEffects(target Entity) []*Effect {
	var kept []*Effect
	var expired []*Effect
	for _, effect := range target.ActiveEffectList() {
		if effect.Duration == nil {
			kept = append(kept, effect)
			continue
		}
		remaining := *effect.Duration - 1
		effect.Duration = &remaining
		if remaining > 0 {
			kept = append(kept, effect)
		} else {
			expired = append(expired, effect)
		}
	}
	target.SetActiveEffects(kept)
	return expired
}
