package action

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/fablesim/fablesim/internal/event"
)

// TestDispatchPublishesEvents tests the intent and outcome announcements
func TestDispatchPublishesEvents(t *testing.T) {
	ac := createTestContext()
	registry := NewRegistry()
	if err := RegisterCore(registry); err != nil {
		t.Fatalf("RegisterCore failed: %v", err)
	}
	ac.Registry = registry

	sub := ac.Bus.Subscribe(8, event.TypeAction, event.TypeResult)
	defer sub.Cancel()

	result, err := registry.Dispatch(context.Background(), ac, &Call{
		Name:   "move",
		Params: Params{"direction": "Cave Mouth"},
	})
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if result == "" {
		t.Error("Expected a result message")
	}

	first := <-sub.C
	if first.GetType() != event.TypeAction {
		t.Errorf("Expected the action event first, got %s", first.GetType())
	}
	actionEvent := first.(*event.ActionEvent)
	if actionEvent.Room != "Cave" {
		t.Errorf("Expected the action announced from the Cave, got %s", actionEvent.Room)
	}

	second := <-sub.C
	resultEvent, ok := second.(*event.ResultEvent)
	if !ok {
		t.Fatalf("Expected the result event second, got %T", second)
	}
	if resultEvent.Error != "" {
		t.Errorf("Unexpected error in result event: %s", resultEvent.Error)
	}
	if resultEvent.Room != "Clearing" {
		t.Errorf("Expected the result announced from the Clearing, got %s", resultEvent.Room)
	}
}

// TestDispatchUnknownAction tests the unknown action error and its event
func TestDispatchUnknownAction(t *testing.T) {
	ac := createTestContext()
	registry := NewRegistry()
	RegisterCore(registry)
	ac.Registry = registry

	sub := ac.Bus.Subscribe(8, event.TypeResult)
	defer sub.Cancel()

	_, err := registry.Dispatch(context.Background(), ac, &Call{Name: "fly", Params: Params{}})
	var actionErr *Error
	if !errors.As(err, &actionErr) || actionErr.Kind != ErrUnknownAction {
		t.Fatalf("Expected an unknown_action error, got %v", err)
	}

	resultEvent := (<-sub.C).(*event.ResultEvent)
	if resultEvent.Error == "" {
		t.Error("Expected the failure recorded in the result event")
	}
}

// TestRegistryDescribe tests the action list shown to agents
func TestRegistryDescribe(t *testing.T) {
	registry := NewRegistry()
	RegisterCore(registry)
	RegisterPlanning(registry)

	described := registry.Describe()
	for _, name := range []string{"move", "take", "use", "take_note", "check_calendar"} {
		if !strings.Contains(described, "- "+name+":") {
			t.Errorf("Expected %q in the description:\n%s", name, described)
		}
	}

	if err := registry.Register(&Definition{Name: "move"}); err == nil {
		t.Error("Expected an error for a duplicate action")
	}
}
