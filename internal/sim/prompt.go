package sim

import (
	"fmt"
	"strings"

	"github.com/fablesim/fablesim/internal/action"
	"github.com/fablesim/fablesim/internal/system"
)

// recentMemoryLines caps how much transcript history a prompt carries.
const recentMemoryLines = 8

// actionPrompt renders a character's view of the world for their turn: the
// room, who and what is here, the ways out, what they remember, and the
// actions they can take.
func actionPrompt(ac *action.Context, registry *action.Registry, recent []string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are %s. %s\n", ac.Character.Name, ac.Character.Backstory)
	fmt.Fprintf(&b, "You are in %s. %s\n", ac.Room.Name, ac.Room.Description)

	if len(recent) > recentMemoryLines {
		recent = recent[len(recent)-recentMemoryLines:]
	}
	if len(recent) > 0 {
		b.WriteString("You remember:\n")
		for _, line := range recent {
			fmt.Fprintf(&b, "- %s\n", line)
		}
	}

	for _, line := range ac.Systems.Format(ac.Character, system.PerspectiveSecond) {
		b.WriteString(line + "\n")
	}
	for _, line := range ac.Systems.Format(ac.Room, system.PerspectiveThird) {
		b.WriteString(line + "\n")
	}

	var others []string
	for _, other := range ac.Room.Characters {
		if other != ac.Character {
			others = append(others, other.Name)
		}
	}
	if len(others) > 0 {
		fmt.Fprintf(&b, "Also here: %s.\n", strings.Join(others, ", "))
	}

	var items []string
	for _, item := range ac.Room.Items {
		items = append(items, item.Name)
	}
	if len(items) > 0 {
		fmt.Fprintf(&b, "You see: %s.\n", strings.Join(items, ", "))
	}

	var portals []string
	for _, portal := range ac.Room.Portals {
		portals = append(portals, portal.Name)
	}
	if len(portals) > 0 {
		fmt.Fprintf(&b, "Ways out: %s.\n", strings.Join(portals, ", "))
	}

	var carried []string
	for _, item := range ac.Character.Items {
		carried = append(carried, item.Name)
	}
	if len(carried) > 0 {
		fmt.Fprintf(&b, "You are carrying: %s.\n", strings.Join(carried, ", "))
	}

	b.WriteString("\nYour actions:\n")
	b.WriteString(registry.Describe())
	b.WriteString("\nTake one action by answering with JSON like " +
		`{"name": "move", "params": {"direction": "north"}}` +
		", or answer in plain words to speak aloud.\n")

	return b.String()
}

// planningPrompt renders the character's private planner state.
func planningPrompt(ac *action.Context, registry *action.Registry) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are %s, planning before you act on turn %d.\n", ac.Character.Name, ac.Turn)

	notes := ac.Character.Planner.Notes
	if len(notes) == 0 {
		b.WriteString("You have no notes.\n")
	} else {
		b.WriteString("Your notes:\n")
		for i, note := range notes {
			fmt.Fprintf(&b, "%d. %s\n", i+1, note)
		}
	}

	events := ac.Character.Planner.Calendar.Events
	if len(events) > 0 {
		b.WriteString("Your calendar:\n")
		for _, entry := range events {
			fmt.Fprintf(&b, "- %s in %d turn(s)\n", entry.Name, entry.Turn-ac.Turn)
		}
	}

	b.WriteString("\nPlanning actions:\n")
	b.WriteString(registry.Describe())
	fmt.Fprintf(&b, "\nTake one planning action as JSON, or say %q to stop planning.\n", planningDoneKeyword)

	return b.String()
}

// retryPrompt tells the agent why its last action failed and asks again.
func retryPrompt(ac *action.Context, registry *action.Registry, recent []string, failure error) string {
	return fmt.Sprintf("%s\nYour last action failed: %s\nTry something else.\n",
		actionPrompt(ac, registry, recent), failure.Error())
}
