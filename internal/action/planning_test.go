package action

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/fablesim/fablesim/internal/agent"
	"github.com/fablesim/fablesim/internal/event"
	"github.com/fablesim/fablesim/internal/world"
)

// TestTakeAndReadNotes tests the note round trip
func TestTakeAndReadNotes(t *testing.T) {
	ac := createTestContext()
	ctx := context.Background()

	if _, err := TakeNote(ctx, ac, Params{"fact": "Bob has the key"}); err != nil {
		t.Fatalf("TakeNote failed: %v", err)
	}

	if _, err := TakeNote(ctx, ac, Params{"fact": "Bob has the key"}); err == nil {
		t.Error("Expected an error for a duplicate note")
	}

	notes, err := ReadNotes(ctx, ac, Params{})
	if err != nil {
		t.Fatalf("ReadNotes failed: %v", err)
	}
	if !strings.Contains(notes, "Bob has the key") {
		t.Errorf("Expected the note listed, got %q", notes)
	}
}

// TestNoteLimit tests that the planner rejects notes past the cap
func TestNoteLimit(t *testing.T) {
	ac := createTestContext()
	ac.Config.NoteLimit = 2
	ctx := context.Background()

	TakeNote(ctx, ac, Params{"fact": "one"})
	TakeNote(ctx, ac, Params{"fact": "two"})

	_, err := TakeNote(ctx, ac, Params{"fact": "three"})
	var actionErr *Error
	if !errors.As(err, &actionErr) || actionErr.Kind != ErrConflict {
		t.Fatalf("Expected a conflict error at the limit, got %v", err)
	}
	if len(ac.Character.Planner.Notes) != 2 {
		t.Errorf("Expected 2 notes, got %d", len(ac.Character.Planner.Notes))
	}
}

// TestEraseAndEditNotes tests note maintenance
func TestEraseAndEditNotes(t *testing.T) {
	ac := createTestContext()
	ctx := context.Background()
	ac.Character.Planner.Notes = []string{"the door is locked", "Bob seems nervous", "the door creaks"}

	result, err := EraseNotes(ctx, ac, Params{"note": "door"})
	if err != nil {
		t.Fatalf("EraseNotes failed: %v", err)
	}
	if !strings.Contains(result, "2") {
		t.Errorf("Expected 2 notes erased, got %q", result)
	}
	if len(ac.Character.Planner.Notes) != 1 {
		t.Fatalf("Expected 1 note left, got %d", len(ac.Character.Planner.Notes))
	}

	if _, err := EditNote(ctx, ac, Params{"old": "nervous", "new": "Bob is hiding something"}); err != nil {
		t.Fatalf("EditNote failed: %v", err)
	}
	if ac.Character.Planner.Notes[0] != "Bob is hiding something" {
		t.Errorf("Unexpected note: %q", ac.Character.Planner.Notes[0])
	}

	if _, err := EraseNotes(ctx, ac, Params{"note": "dragon"}); err == nil {
		t.Error("Expected an error erasing with no matches")
	}
}

// TestScheduleAndCheckCalendar tests calendar scheduling relative to the turn
func TestScheduleAndCheckCalendar(t *testing.T) {
	ac := createTestContext()
	ac.Turn = 5
	ctx := context.Background()

	if _, err := ScheduleEvent(ctx, ac, Params{"name": "meet Bob", "turns": float64(3)}); err != nil {
		t.Fatalf("ScheduleEvent failed: %v", err)
	}
	events := ac.Character.Planner.Calendar.Events
	if len(events) != 1 || events[0].Turn != 8 {
		t.Fatalf("Expected an event at turn 8, got %+v", events)
	}

	if _, err := ScheduleEvent(ctx, ac, Params{"name": "bad", "turns": float64(0)}); err == nil {
		t.Error("Expected an error for a zero-turn event")
	}

	listing, err := CheckCalendar(ctx, ac, Params{})
	if err != nil {
		t.Fatalf("CheckCalendar failed: %v", err)
	}
	if !strings.Contains(listing, "meet Bob in 3 turn(s)") {
		t.Errorf("Unexpected listing: %q", listing)
	}
}

// TestExpireCalendar tests that due events are removed and returned
func TestExpireCalendar(t *testing.T) {
	alice := &world.Character{Name: "Alice"}
	alice.Planner.Calendar.Events = []world.CalendarEvent{
		{Name: "past", Turn: 3},
		{Name: "now", Turn: 5},
		{Name: "future", Turn: 9},
	}

	due := ExpireCalendar(alice, 5)
	if len(due) != 2 {
		t.Fatalf("Expected 2 due events, got %d", len(due))
	}
	remaining := alice.Planner.Calendar.Events
	if len(remaining) != 1 || remaining[0].Name != "future" {
		t.Errorf("Unexpected remaining events: %+v", remaining)
	}
}

// TestConverse tests the reply loop ending on the keyword
func TestConverse(t *testing.T) {
	ac := createTestContext()
	ac.Agents["bob"] = agent.NewScriptAgent("Bob", "Well met, Alice. END")
	ac.Agents["alice"] = agent.NewScriptAgent("Alice", "should not be used")

	sub := ac.Bus.Subscribe(8, event.TypeReply)
	defer sub.Cancel()

	result, err := Ask(context.Background(), ac, Params{"character": "Bob", "question": "Who are you?"})
	if err != nil {
		t.Fatalf("Ask failed: %v", err)
	}
	if !strings.Contains(result, "Well met, Alice.") {
		t.Errorf("Expected Bob's reply, got %q", result)
	}

	if got := len(sub.C); got != 2 {
		t.Errorf("Expected the opening and one reply published, got %d events", got)
	}
}

// TestConverseLimit tests the reply cap on a chatty pair
func TestConverseLimit(t *testing.T) {
	ac := createTestContext()
	ac.Config.ConversationLimit = 3
	ac.Agents["bob"] = agent.NewScriptAgent("Bob", "And another thing!")
	ac.Agents["alice"] = agent.NewScriptAgent("Alice", "I disagree entirely!")

	sub := ac.Bus.Subscribe(16, event.TypeReply)
	defer sub.Cancel()

	if _, err := Tell(context.Background(), ac, Params{"character": "Bob", "message": "You are wrong."}); err != nil {
		t.Fatalf("Tell failed: %v", err)
	}

	// Opening plus at most the configured number of replies.
	if got := len(sub.C); got != 4 {
		t.Errorf("Expected 4 published events, got %d", got)
	}
}

// TestConverseUnwrapsCallReply tests recovering speech from a tool-call reply
func TestConverseUnwrapsCallReply(t *testing.T) {
	ac := createTestContext()
	ac.Agents["bob"] = agent.NewScriptAgent("Bob",
		`{"name": "tell", "params": {"character": "Alice", "message": "I am just the blacksmith. END"}}`)

	result, err := Ask(context.Background(), ac, Params{"character": "Bob", "question": "Who are you?"})
	if err != nil {
		t.Fatalf("Ask failed: %v", err)
	}
	if !strings.Contains(result, "just the blacksmith") {
		t.Errorf("Expected the unwrapped message, got %q", result)
	}
	if strings.Contains(result, "{") {
		t.Errorf("Expected no JSON in the reply, got %q", result)
	}
}

// TestConverseSilentPartner tests talking to a character with no agent
func TestConverseSilentPartner(t *testing.T) {
	ac := createTestContext()

	result, err := Ask(context.Background(), ac, Params{"character": "Bob", "question": "Hello?"})
	if err != nil {
		t.Fatalf("Ask failed: %v", err)
	}
	if !strings.Contains(result, "does not respond") {
		t.Errorf("Expected a non-response, got %q", result)
	}
}
