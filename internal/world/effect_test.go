package world

import (
	"encoding/json"
	"math/rand"
	"testing"

	"gopkg.in/yaml.v3"
)

func testRand() *rand.Rand {
	return rand.New(rand.NewSource(42))
}

func intPtr(v int) *int          { return &v }
func boolPtr(v bool) *bool       { return &v }
func strPtr(v string) *string    { return &v }
func floatPtr(v float64) *float64 { return &v }

// TestIntSpecResolve tests fixed and ranged integer draws
func TestIntSpecResolve(t *testing.T) {
	fixed := IntSpec{Fixed: intPtr(7)}
	if got := fixed.Resolve(testRand()); got != 7 {
		t.Errorf("Expected 7, got %d", got)
	}

	ranged := IntSpec{Min: intPtr(2), Max: intPtr(5)}
	rng := testRand()
	for i := 0; i < 50; i++ {
		got := ranged.Resolve(rng)
		if got < 2 || got > 5 {
			t.Fatalf("Ranged draw %d outside [2, 5]", got)
		}
	}
}

// TestIntSpecWireForms tests scalar and range forms in YAML and JSON
func TestIntSpecWireForms(t *testing.T) {
	var fromScalar IntSpec
	if err := yaml.Unmarshal([]byte("3"), &fromScalar); err != nil {
		t.Fatalf("Scalar unmarshal failed: %v", err)
	}
	if fromScalar.Fixed == nil || *fromScalar.Fixed != 3 {
		t.Errorf("Expected fixed 3, got %+v", fromScalar)
	}

	var fromRange IntSpec
	if err := yaml.Unmarshal([]byte("{min: 1, max: 4}"), &fromRange); err != nil {
		t.Fatalf("Range unmarshal failed: %v", err)
	}
	if fromRange.Min == nil || *fromRange.Min != 1 || fromRange.Max == nil || *fromRange.Max != 4 {
		t.Errorf("Expected range [1, 4], got %+v", fromRange)
	}

	var fromJSON IntSpec
	if err := json.Unmarshal([]byte(`{"min": 1, "max": 4}`), &fromJSON); err != nil {
		t.Fatalf("JSON unmarshal failed: %v", err)
	}
	if fromJSON.Min == nil || *fromJSON.Min != 1 {
		t.Errorf("Expected min 1, got %+v", fromJSON)
	}
}

// TestApplyPermanentEffect tests immediate attribute changes
func TestApplyPermanentEffect(t *testing.T) {
	alice := &Character{Name: "Alice", Attributes: Attributes{"health": 100}}
	pattern := &EffectPattern{
		Name:        "Poison",
		Application: ApplicationPermanent,
		Attributes: AttributeEffects{
			&IntEffect{Type: "int", Name: "health", Offset: &IntSpec{Fixed: intPtr(-10)}},
		},
	}

	if _, err := ApplyEffect(alice, pattern, testRand()); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if alice.Attributes["health"] != 90 {
		t.Errorf("Expected health 90, got %v", alice.Attributes["health"])
	}
	if len(alice.ActiveEffects) != 0 {
		t.Errorf("Permanent effect should not join the active list")
	}
}

// TestApplyTemporaryEffect tests the active list and duration expiry
func TestApplyTemporaryEffect(t *testing.T) {
	alice := &Character{Name: "Alice", Attributes: Attributes{}}
	pattern := &EffectPattern{
		Name:        "Blessing",
		Application: ApplicationTemporary,
		Duration:    &IntSpec{Fixed: intPtr(2)},
		Attributes: AttributeEffects{
			&BoolEffect{Type: "bool", Name: "blessed", Set: boolPtr(true)},
		},
	}

	if _, err := ApplyEffect(alice, pattern, testRand()); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if alice.Attributes["blessed"] != true {
		t.Errorf("Expected blessed true, got %v", alice.Attributes["blessed"])
	}
	if len(alice.ActiveEffects) != 1 {
		t.Fatalf("Expected 1 active effect, got %d", len(alice.ActiveEffects))
	}

	if expired := ExpireEffects(alice); len(expired) != 0 {
		t.Errorf("Effect expired a turn early")
	}
	expired := ExpireEffects(alice)
	if len(expired) != 1 || expired[0].Name != "Blessing" {
		t.Fatalf("Expected Blessing to expire, got %v", expired)
	}
	if len(alice.ActiveEffects) != 0 {
		t.Errorf("Expected empty active list, got %d", len(alice.ActiveEffects))
	}
}

// TestApplyEffectAtomicity tests that a mid-effect mismatch leaves attributes untouched
func TestApplyEffectAtomicity(t *testing.T) {
	alice := &Character{Name: "Alice", Attributes: Attributes{"gold": 5, "title": "knight"}}
	pattern := &EffectPattern{
		Name:        "Curse",
		Application: ApplicationPermanent,
		Attributes: AttributeEffects{
			&IntEffect{Type: "int", Name: "gold", Offset: &IntSpec{Fixed: intPtr(10)}},
			&IntEffect{Type: "int", Name: "title", Offset: &IntSpec{Fixed: intPtr(1)}},
		},
	}

	if _, err := ApplyEffect(alice, pattern, testRand()); err == nil {
		t.Fatal("Expected type mismatch error")
	}
	if alice.Attributes["gold"] != 5 {
		t.Errorf("Partial apply leaked: gold = %v", alice.Attributes["gold"])
	}
}

// TestStringEffect tests set, append and prepend deltas
func TestStringEffect(t *testing.T) {
	attrs := Attributes{"mood": "calm"}
	effect := &StringEffect{Type: "string", Name: "mood", Append: strPtr(" but wary")}

	if err := effect.applyTo(attrs); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if attrs["mood"] != "calm but wary" {
		t.Errorf("Expected 'calm but wary', got %v", attrs["mood"])
	}
}

// TestBoolEffectToggle tests toggling with absent-key seeding
func TestBoolEffectToggle(t *testing.T) {
	attrs := Attributes{}
	effect := &BoolEffect{Type: "bool", Name: "lit", Toggle: true}

	if err := effect.applyTo(attrs); err != nil {
		t.Fatalf("Toggle on absent key failed: %v", err)
	}
	if attrs["lit"] != true {
		t.Errorf("Expected lit true, got %v", attrs["lit"])
	}

	if err := effect.applyTo(attrs); err != nil {
		t.Fatalf("Second toggle failed: %v", err)
	}
	if attrs["lit"] != false {
		t.Errorf("Expected lit false, got %v", attrs["lit"])
	}
}

// TestFloatEffectMultiply tests scaling a float attribute
func TestFloatEffectMultiply(t *testing.T) {
	attrs := Attributes{"speed": 2.0}
	effect := &FloatEffect{Type: "float", Name: "speed", Multiply: &FloatSpec{Fixed: floatPtr(1.5)}}

	if err := effect.applyTo(attrs); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if attrs["speed"] != 3.0 {
		t.Errorf("Expected speed 3.0, got %v", attrs["speed"])
	}
}

// TestEffectPatternReadiness tests the ready, cooldown and exhausted states
func TestEffectPatternReadiness(t *testing.T) {
	pattern := &EffectPattern{
		Name:     "Heal",
		Cooldown: intPtr(3),
		Uses:     intPtr(2),
	}

	if got := pattern.ReadyAt(0); got != ReadinessReady {
		t.Errorf("Expected ready before first use, got %s", got)
	}

	pattern.MarkUsed(1)
	if got := pattern.ReadyAt(2); got != ReadinessCooldown {
		t.Errorf("Expected cooldown at turn 2, got %s", got)
	}
	if got := pattern.ReadyAt(4); got != ReadinessReady {
		t.Errorf("Expected ready at turn 4, got %s", got)
	}

	pattern.MarkUsed(4)
	if pattern.Uses == nil || *pattern.Uses != 0 {
		t.Fatalf("Expected 0 uses remaining, got %v", pattern.Uses)
	}
	if got := pattern.ReadyAt(10); got != ReadinessExhausted {
		t.Errorf("Expected exhausted, got %s", got)
	}
}

// TestAttributeEffectsUnmarshal tests the tagged union wire format
func TestAttributeEffectsUnmarshal(t *testing.T) {
	doc := `
- type: int
  name: health
  offset: {min: -5, max: -1}
- type: bool
  name: wet
  set: true
- type: string
  name: mood
  prepend: "soggy "
`
	var effects AttributeEffects
	if err := yaml.Unmarshal([]byte(doc), &effects); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if len(effects) != 3 {
		t.Fatalf("Expected 3 effects, got %d", len(effects))
	}
	if effects[0].EffectType() != "int" || effects[0].Target() != "health" {
		t.Errorf("Unexpected first effect: %s %s", effects[0].EffectType(), effects[0].Target())
	}
	if effects[1].EffectType() != "bool" {
		t.Errorf("Expected bool effect, got %s", effects[1].EffectType())
	}

	var unknown AttributeEffects
	if err := yaml.Unmarshal([]byte("- type: vector\n  name: x\n"), &unknown); err == nil {
		t.Error("Expected error for unknown effect type")
	}
}

// TestEffectPatternResolve tests that resolving fixes all ranged fields
func TestEffectPatternResolve(t *testing.T) {
	pattern := &EffectPattern{
		Name:        "Chill",
		Application: ApplicationTemporary,
		Duration:    &IntSpec{Min: intPtr(2), Max: intPtr(4)},
		Attributes: AttributeEffects{
			&IntEffect{Type: "int", Name: "warmth", Offset: &IntSpec{Min: intPtr(-3), Max: intPtr(-1)}},
		},
	}

	effect := pattern.Resolve(testRand())
	if effect.ID == "" {
		t.Error("Expected a generated effect ID")
	}
	if effect.Duration == nil || *effect.Duration < 2 || *effect.Duration > 4 {
		t.Errorf("Duration outside range: %v", effect.Duration)
	}
	resolved, ok := effect.Attributes[0].(*IntEffect)
	if !ok {
		t.Fatalf("Expected IntEffect, got %T", effect.Attributes[0])
	}
	if resolved.Offset == nil || resolved.Offset.Fixed == nil {
		t.Fatal("Expected a fixed offset after resolve")
	}
	if *resolved.Offset.Fixed < -3 || *resolved.Offset.Fixed > -1 {
		t.Errorf("Offset outside range: %d", *resolved.Offset.Fixed)
	}
}
