package action

import (
	"context"
	"fmt"
	"math/rand"
	"strings"

	"github.com/fablesim/fablesim/internal/agent"
	"github.com/fablesim/fablesim/internal/event"
	"github.com/fablesim/fablesim/internal/system"
	"github.com/fablesim/fablesim/internal/world"
)

// Config bounds the side channels actions can grow without limit.
type Config struct {
	// NoteLimit caps a character's planner notes.
	NoteLimit int
	// ConversationLimit caps the replies in one conversation.
	ConversationLimit int
}

// DefaultConfig returns the standard limits.
func DefaultConfig() Config {
	return Config{NoteLimit: 10, ConversationLimit: 6}
}

// Context carries everything an action handler may touch. It is built per
// character turn; handlers mutate the world through it rather than through
// shared state.
type Context struct {
	World     *world.World
	Room      *world.Room
	Character *world.Character
	Turn      int
	Systems   *system.Registry
	Bus       *event.Bus
	Agents    map[string]agent.Agent
	Rand      *rand.Rand
	Registry  *Registry
	Config    Config
}

// AgentFor returns the agent driving the named character, or nil.
func (c *Context) AgentFor(name string) agent.Agent {
	if c.Agents == nil {
		return nil
	}
	return c.Agents[world.NormalizeName(name)]
}

// Handler executes one action on behalf of the acting character.
type Handler func(ctx context.Context, ac *Context, params Params) (string, error)

// Definition describes a registered action for dispatch and for the action
// list shown to agents.
type Definition struct {
	Name        string
	Description string
	Handler     Handler
}

// Registry maps action names to handlers in registration order.
type Registry struct {
	defs   map[string]*Definition
	sorted []string
}

// NewRegistry creates an empty action registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]*Definition)}
}

// Register adds an action. Duplicate names are an error.
func (r *Registry) Register(def *Definition) error {
	if def.Name == "" {
		return fmt.Errorf("action has no name")
	}
	if _, exists := r.defs[def.Name]; exists {
		return fmt.Errorf("action %q already registered", def.Name)
	}
	r.defs[def.Name] = def
	r.sorted = append(r.sorted, def.Name)
	return nil
}

// Get returns the named definition, or nil.
func (r *Registry) Get(name string) *Definition { return r.defs[name] }

// Names returns the registered action names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.sorted))
	copy(out, r.sorted)
	return out
}

// Describe lists the actions for inclusion in an agent prompt.
func (r *Registry) Describe() string {
	var b strings.Builder
	for _, name := range r.sorted {
		def := r.defs[name]
		fmt.Fprintf(&b, "- %s: %s\n", def.Name, def.Description)
	}
	return b.String()
}

// Dispatch runs a parsed call. The attempt is announced before the handler
// runs and the outcome after, whether it succeeded or not.
func (r *Registry) Dispatch(ctx context.Context, ac *Context, call *Call) (string, error) {
	roomName := ""
	if ac.Room != nil {
		roomName = ac.Room.Name
	}
	if ac.Bus != nil {
		ac.Bus.Publish(event.NewActionEvent(ac.Turn, ac.Character.Name, roomName, call.Name, call.Params))
	}

	var result string
	var err error
	if def := r.defs[call.Name]; def != nil {
		result, err = def.Handler(ctx, ac, call.Params)
	} else {
		err = NewError(ErrUnknownAction, "unknown action %q, available actions:\n%s", call.Name, r.Describe())
	}

	if ac.Bus != nil {
		errText := ""
		if err != nil {
			errText = err.Error()
		}
		// The acting character may have changed rooms.
		if ac.Room != nil {
			roomName = ac.Room.Name
		}
		ac.Bus.Publish(event.NewResultEvent(ac.Turn, ac.Character.Name, roomName, call.Name, result, errText))
	}
	return result, err
}
