package sim

import (
	"context"
	"strings"
	"testing"

	"github.com/fablesim/fablesim/internal/agent"
	"github.com/fablesim/fablesim/internal/event"
	"github.com/fablesim/fablesim/internal/system"
	"github.com/fablesim/fablesim/internal/world"
)

func createTestWorld() *world.World {
	alice := &world.Character{Name: "Alice", Backstory: "You are an explorer."}
	bob := &world.Character{Name: "Bob", Backstory: "You are a scribe."}

	cave := &world.Room{
		Name:        "Cave",
		Description: "A damp cave.",
		Portals: []*world.Portal{
			{Name: "Cave Mouth", Destination: "Clearing"},
		},
		Characters: []*world.Character{alice, bob},
	}
	clearing := &world.Room{
		Name:        "Clearing",
		Description: "A sunlit clearing.",
		Portals: []*world.Portal{
			{Name: "Dark Hole", Destination: "Cave"},
		},
	}

	return &world.World{
		Name:  "Test World",
		Order: []string{"Alice", "Bob"},
		Rooms: []*world.Room{cave, clearing},
	}
}

func createTestSimulator(t *testing.T, w *world.World) *Simulator {
	t.Helper()
	config := DefaultConfig()
	config.Turns = 1
	config.Seed = 42
	config.PlanningSteps = 1

	s, err := New(w, system.NewRegistry(), event.NewBus(256), config)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return s
}

// TestStepAdvancesTurnOnce tests the turn counter across one step
func TestStepAdvancesTurnOnce(t *testing.T) {
	w := createTestWorld()
	s := createTestSimulator(t, w)
	s.Bind("Alice", agent.NewScriptAgent("Alice", "I wait."))
	s.Bind("Bob", agent.NewScriptAgent("Bob", "I scribble."))

	if err := s.Step(context.Background()); err != nil {
		t.Fatalf("Step failed: %v", err)
	}
	if s.Turn() != 1 {
		t.Errorf("Expected turn 1, got %d", s.Turn())
	}
}

// TestStepDispatchesAction tests an agent's call changing the world
func TestStepDispatchesAction(t *testing.T) {
	w := createTestWorld()
	s := createTestSimulator(t, w)
	s.Bind("Alice", agent.NewScriptAgent("Alice",
		`{"name": "move", "params": {"direction": "Cave Mouth"}}`,
	))
	s.Bind("Bob", agent.NewScriptAgent("Bob", "I stay put."))

	if err := s.Step(context.Background()); err != nil {
		t.Fatalf("Step failed: %v", err)
	}

	clearing := world.FindRoom(w, "Clearing")
	if world.FindCharacterInRoom(clearing, "Alice") == nil {
		t.Error("Alice did not move to the Clearing")
	}
}

// TestStepSkipsMissingCharacter tests a stale order entry being skipped
func TestStepSkipsMissingCharacter(t *testing.T) {
	w := createTestWorld()
	w.Order = []string{"Ghost", "Alice"}
	s := createTestSimulator(t, w)
	s.Bind("Alice", agent.NewScriptAgent("Alice", "Still here."))

	if err := s.Step(context.Background()); err != nil {
		t.Fatalf("Step failed: %v", err)
	}
	if s.Turn() != 1 {
		t.Errorf("Expected the turn to advance despite the skip, got %d", s.Turn())
	}
}

// TestActRetryFeedsErrorBack tests the failure loop reprompting the agent
func TestActRetryFeedsErrorBack(t *testing.T) {
	w := createTestWorld()
	s := createTestSimulator(t, w)
	alice := agent.NewScriptAgent("Alice",
		`{"name": "move", "params": {"direction": "Trapdoor"}}`,
		`{"name": "move", "params": {"direction": "Cave Mouth"}}`,
	)
	s.Bind("Alice", alice)
	s.Bind("Bob", agent.NewScriptAgent("Bob", "Carry on."))

	if err := s.Step(context.Background()); err != nil {
		t.Fatalf("Step failed: %v", err)
	}

	clearing := world.FindRoom(w, "Clearing")
	if world.FindCharacterInRoom(clearing, "Alice") == nil {
		t.Error("Alice never recovered from the failed move")
	}

	// The retry prompt must carry the failure back to the agent.
	last := alice.Prompts[len(alice.Prompts)-1]
	if !strings.Contains(last, "failed") || !strings.Contains(last, "Trapdoor") {
		t.Errorf("Expected the failure in the retry prompt, got %q", last)
	}
}

// TestPlainTextBecomesSpeech tests the reply fallback for non-call output
func TestPlainTextBecomesSpeech(t *testing.T) {
	w := createTestWorld()
	s := createTestSimulator(t, w)
	s.Bind("Alice", agent.NewScriptAgent("Alice", "What a gloomy cave this is."))
	s.Bind("Bob", agent.NewScriptAgent("Bob", "Indeed."))

	sub := s.Bus().Subscribe(16, event.TypeReply)
	defer sub.Cancel()

	if err := s.Step(context.Background()); err != nil {
		t.Fatalf("Step failed: %v", err)
	}

	if got := len(sub.C); got != 2 {
		t.Fatalf("Expected 2 reply events, got %d", got)
	}
	reply := (<-sub.C).(*event.ReplyEvent)
	if reply.Character != "Alice" || !strings.Contains(reply.Text, "gloomy") {
		t.Errorf("Unexpected reply: %+v", reply)
	}
}

// TestPlanningSubLoop tests notes taken before acting
func TestPlanningSubLoop(t *testing.T) {
	w := createTestWorld()
	config := DefaultConfig()
	config.Turns = 1
	config.Seed = 42
	config.PlanningSteps = 2

	s, err := New(w, system.NewRegistry(), event.NewBus(256), config)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	s.Bind("Alice", agent.NewScriptAgent("Alice",
		`{"name": "take_note", "params": {"fact": "the cave is damp"}}`,
		"done",
		"Time to act.",
	))
	s.Bind("Bob", agent.NewScriptAgent("Bob", "Nothing to add."))
	s.SetMemories(map[string][]string{"Alice": {"Turn 0: you said: Hm."}})

	if err := s.Step(context.Background()); err != nil {
		t.Fatalf("Step failed: %v", err)
	}

	alice := world.FindCharacter(w, "Alice")
	if len(alice.Planner.Notes) != 1 || alice.Planner.Notes[0] != "the cave is damp" {
		t.Errorf("Unexpected notes: %v", alice.Planner.Notes)
	}
}

// TestPlanningWaitsForMemory tests that a character's first turn goes
// straight to acting
func TestPlanningWaitsForMemory(t *testing.T) {
	w := createTestWorld()
	config := DefaultConfig()
	config.Turns = 2
	config.Seed = 42
	config.PlanningSteps = 2

	s, err := New(w, system.NewRegistry(), event.NewBus(256), config)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	alice := agent.NewScriptAgent("Alice",
		"Nothing here yet.",
		"done",
		"Still nothing.",
	)
	s.Bind("Alice", alice)
	s.Bind("Bob", agent.NewScriptAgent("Bob", "Hm."))

	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(alice.Prompts) < 3 {
		t.Fatalf("Expected at least 3 prompts, got %d", len(alice.Prompts))
	}
	if strings.Contains(alice.Prompts[0], "planning before you act") {
		t.Error("Expected no planning prompt on the first turn")
	}
	if !strings.Contains(alice.Prompts[0], "Your actions:") {
		t.Errorf("Expected the first prompt to be the action prompt, got %q", alice.Prompts[0])
	}
	if !strings.Contains(alice.Prompts[1], "planning before you act") {
		t.Error("Expected planning once the transcript has entries")
	}
}

// TestMemoryRecordsOutcomes tests the transcript and its prompt feedback
func TestMemoryRecordsOutcomes(t *testing.T) {
	w := createTestWorld()
	config := DefaultConfig()
	config.Turns = 2
	config.Seed = 42
	config.PlanningSteps = 1

	s, err := New(w, system.NewRegistry(), event.NewBus(256), config)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	alice := agent.NewScriptAgent("Alice",
		`{"name": "move", "params": {"direction": "Cave Mouth"}}`,
		"done",
		"A fine day in the clearing.",
	)
	s.Bind("Alice", alice)
	s.Bind("Bob", agent.NewScriptAgent("Bob", "Hm."))

	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	entries := s.Memories()["alice"]
	if len(entries) != 2 {
		t.Fatalf("Expected 2 memory entries, got %v", entries)
	}
	if !strings.Contains(entries[0], "move") {
		t.Errorf("Expected the move outcome first, got %q", entries[0])
	}
	if !strings.Contains(entries[1], "fine day") {
		t.Errorf("Expected the speech second, got %q", entries[1])
	}

	// The second turn's action prompt should have carried the first
	// turn's outcome.
	found := false
	for _, prompt := range alice.Prompts {
		if strings.Contains(prompt, "You remember:") && strings.Contains(prompt, "move") {
			found = true
		}
	}
	if !found {
		t.Error("Expected a later prompt to include the transcript")
	}
}

// TestMemoriesRoundTrip tests restoring transcripts from a snapshot
func TestMemoriesRoundTrip(t *testing.T) {
	w := createTestWorld()
	s := createTestSimulator(t, w)
	s.Bind("Alice", agent.NewScriptAgent("Alice", "Hello."))

	s.SetMemories(map[string][]string{"Alice": {"Turn 0: you said: Hello."}})
	entries := s.Memories()["alice"]
	if len(entries) != 1 || entries[0] != "Turn 0: you said: Hello." {
		t.Errorf("Unexpected entries after restore: %v", entries)
	}
}

// TestEffectExpiryDuringTurn tests the per-character sweep
func TestEffectExpiryDuringTurn(t *testing.T) {
	w := createTestWorld()
	alice := world.FindCharacter(w, "Alice")
	duration := 1
	alice.ActiveEffects = []*world.Effect{{Name: "Chill", Duration: &duration}}

	s := createTestSimulator(t, w)
	s.Bind("Alice", agent.NewScriptAgent("Alice", "Brr."))
	s.Bind("Bob", agent.NewScriptAgent("Bob", "Hm."))

	sub := s.Bus().Subscribe(32, event.TypeStatus)
	defer sub.Cancel()

	if err := s.Step(context.Background()); err != nil {
		t.Fatalf("Step failed: %v", err)
	}
	if len(alice.ActiveEffects) != 0 {
		t.Error("Expected the Chill effect to expire")
	}

	found := false
	for len(sub.C) > 0 {
		status := (<-sub.C).(*event.StatusEvent)
		if strings.Contains(status.Text, "Chill") {
			found = true
		}
	}
	if !found {
		t.Error("Expected a status event announcing the expiry")
	}
}

// TestRunHonorsTurnCount tests the configured number of turns
func TestRunHonorsTurnCount(t *testing.T) {
	w := createTestWorld()
	config := DefaultConfig()
	config.Turns = 3
	config.Seed = 42
	config.PlanningSteps = 1

	s, err := New(w, system.NewRegistry(), event.NewBus(256), config)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	s.Bind("Alice", agent.NewScriptAgent("Alice", "Waiting."))
	s.Bind("Bob", agent.NewScriptAgent("Bob", "Waiting too."))

	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if s.Turn() != 3 {
		t.Errorf("Expected 3 turns, got %d", s.Turn())
	}
}

// TestRunStopsOnCancel tests context cancellation
func TestRunStopsOnCancel(t *testing.T) {
	w := createTestWorld()
	config := DefaultConfig()
	config.Turns = -1
	config.Seed = 42

	s, err := New(w, system.NewRegistry(), event.NewBus(256), config)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := s.Run(ctx); err == nil {
		t.Error("Expected a context error from a cancelled run")
	}
}
