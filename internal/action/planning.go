package action

import (
	"context"
	"fmt"
	"strings"

	"github.com/fablesim/fablesim/internal/world"
)

// RegisterPlanning adds the planning actions characters use between turns:
// private notes and a calendar of scheduled events. Planning actions never
// change the shared world.
func RegisterPlanning(r *Registry) error {
	defs := []*Definition{
		{Name: "take_note", Description: "Write a note to remember. Params: fact.", Handler: TakeNote},
		{Name: "read_notes", Description: "Read back your notes. No params.", Handler: ReadNotes},
		{Name: "erase_notes", Description: "Erase notes containing a phrase. Params: note.", Handler: EraseNotes},
		{Name: "edit_note", Description: "Replace a note. Params: old, new.", Handler: EditNote},
		{Name: "schedule_event", Description: "Schedule a future event. Params: name, turns (from now).", Handler: ScheduleEvent},
		{Name: "check_calendar", Description: "List upcoming scheduled events. Params: count (optional).", Handler: CheckCalendar},
	}
	for _, def := range defs {
		if err := r.Register(def); err != nil {
			return err
		}
	}
	return nil
}

// TakeNote saves a fact in the character's planner.
func TakeNote(ctx context.Context, ac *Context, params Params) (string, error) {
	fact, err := params.String("fact")
	if err != nil {
		return "", err
	}
	fact = strings.TrimSpace(fact)
	if fact == "" {
		return "", NewError(ErrInvalidParams, "the note is empty")
	}

	planner := &ac.Character.Planner
	for _, note := range planner.Notes {
		if note == fact {
			return "", NewError(ErrConflict, "you already have that note")
		}
	}
	limit := ac.Config.NoteLimit
	if limit <= 0 {
		limit = DefaultConfig().NoteLimit
	}
	if len(planner.Notes) >= limit {
		return "", NewError(ErrConflict,
			"you have too many notes, erase or edit one first (%d of %d)", len(planner.Notes), limit)
	}

	planner.Notes = append(planner.Notes, fact)
	return "You make a note of that.", nil
}

// ReadNotes lists the character's notes.
func ReadNotes(ctx context.Context, ac *Context, params Params) (string, error) {
	notes := ac.Character.Planner.Notes
	if len(notes) == 0 {
		return "You have no notes.", nil
	}
	var b strings.Builder
	b.WriteString("Your notes:\n")
	for i, note := range notes {
		fmt.Fprintf(&b, "%d. %s\n", i+1, note)
	}
	return b.String(), nil
}

// EraseNotes removes every note containing the given text.
func EraseNotes(ctx context.Context, ac *Context, params Params) (string, error) {
	text, err := params.String("note")
	if err != nil {
		return "", err
	}

	planner := &ac.Character.Planner
	var kept []string
	removed := 0
	for _, note := range planner.Notes {
		if strings.Contains(note, text) {
			removed++
			continue
		}
		kept = append(kept, note)
	}
	if removed == 0 {
		return "", NewError(ErrNotFound, "no notes mention %q", text)
	}
	planner.Notes = kept
	return fmt.Sprintf("You erase %d note(s).", removed), nil
}

// EditNote replaces the note containing the old text with a new one.
func EditNote(ctx context.Context, ac *Context, params Params) (string, error) {
	oldText, err := params.String("old")
	if err != nil {
		return "", err
	}
	newText, err := params.String("new")
	if err != nil {
		return "", err
	}
	newText = strings.TrimSpace(newText)
	if newText == "" {
		return "", NewError(ErrInvalidParams, "the replacement note is empty")
	}

	planner := &ac.Character.Planner
	for i, note := range planner.Notes {
		if strings.Contains(note, oldText) {
			planner.Notes[i] = newText
			return "You update your note.", nil
		}
	}
	return "", NewError(ErrNotFound, "no notes mention %q", oldText)
}

// ScheduleEvent puts an event on the character's calendar a number of turns
// from now.
func ScheduleEvent(ctx context.Context, ac *Context, params Params) (string, error) {
	name, err := params.String("name")
	if err != nil {
		return "", err
	}
	turns, err := params.Int("turns")
	if err != nil {
		return "", err
	}
	if turns <= 0 {
		return "", NewError(ErrInvalidParams, "the event must be at least one turn away")
	}

	calendar := &ac.Character.Planner.Calendar
	calendar.Events = append(calendar.Events, world.CalendarEvent{
		Name: name,
		Turn: ac.Turn + turns,
	})
	return fmt.Sprintf("You plan %q for %d turn(s) from now.", name, turns), nil
}

// CheckCalendar lists the character's upcoming events.
func CheckCalendar(ctx context.Context, ac *Context, params Params) (string, error) {
	count := params.IntOr("count", 10)

	events := ac.Character.Planner.Calendar.Events
	if len(events) == 0 {
		return "Your calendar is empty.", nil
	}

	var b strings.Builder
	b.WriteString("Upcoming events:\n")
	listed := 0
	for _, entry := range events {
		if listed >= count {
			break
		}
		remaining := entry.Turn - ac.Turn
		if remaining < 0 {
			continue
		}
		fmt.Fprintf(&b, "- %s in %d turn(s)\n", entry.Name, remaining)
		listed++
	}
	if listed == 0 {
		return "Nothing is coming up.", nil
	}
	return b.String(), nil
}

// ExpireCalendar drops events scheduled at or before the given turn from a
// character's calendar and returns the ones that came due.
func ExpireCalendar(c *world.Character, turn int) []world.CalendarEvent {
	calendar := &c.Planner.Calendar
	var due []world.CalendarEvent
	var kept []world.CalendarEvent
	for _, entry := range calendar.Events {
		if entry.Turn <= turn {
			due = append(due, entry)
		} else {
			kept = append(kept, entry)
		}
	}
	calendar.Events = kept
	return due
}
