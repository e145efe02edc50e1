package event

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Type tags an event on the wire.
type Type string

const (
	TypeGenerate Type = "generate"
	TypeAction   Type = "action"
	TypeReply    Type = "reply"
	TypeResult   Type = "result"
	TypeStatus   Type = "status"
	TypePlayer   Type = "player"
	TypePrompt   Type = "prompt"
)

// Event is the base interface for everything published on the bus.
type Event interface {
	GetID() string
	GetType() Type
	GetTurn() int
	GetTimestamp() time.Time
}

// BaseEvent contains common event fields.
type BaseEvent struct {
	ID        string    `json:"id"`
	Type      Type      `json:"type"`
	Turn      int       `json:"turn"`
	Timestamp time.Time `json:"timestamp"`
}

func (e *BaseEvent) GetID() string           { return e.ID }
func (e *BaseEvent) GetType() Type           { return e.Type }
func (e *BaseEvent) GetTurn() int            { return e.Turn }
func (e *BaseEvent) GetTimestamp() time.Time { return e.Timestamp }

func newBase(t Type, turn int) BaseEvent {
	return BaseEvent{
		ID:        uuid.NewString(),
		Type:      t,
		Turn:      turn,
		Timestamp: time.Now().UTC(),
	}
}

// GenerateEvent announces a newly generated entity.
type GenerateEvent struct {
	BaseEvent
	EntityKind string `json:"entity_kind"`
	Name       string `json:"name"`
}

// NewGenerateEvent creates a generation announcement.
func NewGenerateEvent(turn int, entityKind, name string) *GenerateEvent {
	return &GenerateEvent{BaseEvent: newBase(TypeGenerate, turn), EntityKind: entityKind, Name: name}
}

// ActionEvent records an action a character is about to attempt.
type ActionEvent struct {
	BaseEvent
	Character string         `json:"character"`
	Room      string         `json:"room"`
	Action    string         `json:"action"`
	Params    map[string]any `json:"params"`
}

// NewActionEvent creates an intent announcement, published before the
// action handler runs.
func NewActionEvent(turn int, character, room, action string, params map[string]any) *ActionEvent {
	return &ActionEvent{
		BaseEvent: newBase(TypeAction, turn),
		Character: character,
		Room:      room,
		Action:    action,
		Params:    params,
	}
}

// ReplyEvent records free-form speech from a character.
type ReplyEvent struct {
	BaseEvent
	Character string `json:"character"`
	Room      string `json:"room"`
	To        string `json:"to,omitempty"`
	Text      string `json:"text"`
}

// NewReplyEvent creates a speech event.
func NewReplyEvent(turn int, character, room, to, text string) *ReplyEvent {
	return &ReplyEvent{
		BaseEvent: newBase(TypeReply, turn),
		Character: character,
		Room:      room,
		To:        to,
		Text:      text,
	}
}

// ResultEvent records the outcome of an action.
type ResultEvent struct {
	BaseEvent
	Character string `json:"character"`
	Room      string `json:"room"`
	Action    string `json:"action"`
	Result    string `json:"result"`
	Error     string `json:"error,omitempty"`
}

// NewResultEvent creates an outcome event, published after the action
// handler returns.
func NewResultEvent(turn int, character, room, action, result, errText string) *ResultEvent {
	return &ResultEvent{
		BaseEvent: newBase(TypeResult, turn),
		Character: character,
		Room:      room,
		Action:    action,
		Result:    result,
		Error:     errText,
	}
}

// StatusEvent carries a world-level status line, such as a rule label or a
// turn marker.
type StatusEvent struct {
	BaseEvent
	Room string `json:"room,omitempty"`
	Text string `json:"text"`
}

// NewStatusEvent creates a status line.
func NewStatusEvent(turn int, room, text string) *StatusEvent {
	return &StatusEvent{BaseEvent: newBase(TypeStatus, turn), Room: room, Text: text}
}

// PlayerEvent records a player joining or leaving a character.
type PlayerEvent struct {
	BaseEvent
	Player    string `json:"player"`
	Character string `json:"character"`
	Joined    bool   `json:"joined"`
}

// NewPlayerEvent creates a join or leave notice.
func NewPlayerEvent(turn int, player, character string, joined bool) *PlayerEvent {
	return &PlayerEvent{BaseEvent: newBase(TypePlayer, turn), Player: player, Character: character, Joined: joined}
}

// PromptEvent asks a player client for input on behalf of a character.
type PromptEvent struct {
	BaseEvent
	Character string `json:"character"`
	Prompt    string `json:"prompt"`
}

// NewPromptEvent creates a player input request.
func NewPromptEvent(turn int, character, prompt string) *PromptEvent {
	return &PromptEvent{BaseEvent: newBase(TypePrompt, turn), Character: character, Prompt: prompt}
}

// Unmarshal decodes JSON into the concrete event type named by the "type"
// field.
func Unmarshal(data []byte) (Event, error) {
	var probe struct {
		Type Type `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, err
	}

	var e Event
	switch probe.Type {
	case TypeGenerate:
		e = &GenerateEvent{}
	case TypeAction:
		e = &ActionEvent{}
	case TypeReply:
		e = &ReplyEvent{}
	case TypeResult:
		e = &ResultEvent{}
	case TypeStatus:
		e = &StatusEvent{}
	case TypePlayer:
		e = &PlayerEvent{}
	case TypePrompt:
		e = &PromptEvent{}
	default:
		return nil, fmt.Errorf("unknown event type: %q", probe.Type)
	}
	if err := json.Unmarshal(data, e); err != nil {
		return nil, err
	}
	return e, nil
}
