// Package sim runs the turn loop: each character in the world order plans,
// acts through its agent, and the registered systems take their per-turn
// pass.
package sim

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"sync"

	"github.com/fablesim/fablesim/internal/action"
	"github.com/fablesim/fablesim/internal/agent"
	"github.com/fablesim/fablesim/internal/event"
	"github.com/fablesim/fablesim/internal/system"
	"github.com/fablesim/fablesim/internal/world"
)

// Config tunes the loop.
type Config struct {
	// Turns is the number of turns to run; negative means run until the
	// context is cancelled.
	Turns int `yaml:"turns" json:"turns"`
	// MaxRetries is how many times a failed action is retried with the
	// error fed back to the agent.
	MaxRetries int `yaml:"max_retries" json:"max_retries"`
	// PlanningSteps caps the planning calls before a character acts.
	PlanningSteps int `yaml:"planning_steps" json:"planning_steps"`
	// ConversationLimit caps replies per conversation.
	ConversationLimit int `yaml:"conversation_limit" json:"conversation_limit"`
	// NoteLimit caps planner notes per character.
	NoteLimit int `yaml:"note_limit" json:"note_limit"`
	// EventLimit sizes the recent event ring.
	EventLimit int `yaml:"event_limit" json:"event_limit"`
	// Seed fixes the random source; zero draws a random seed.
	Seed int64 `yaml:"seed" json:"seed"`
}

// DefaultConfig returns the standard loop settings.
func DefaultConfig() Config {
	return Config{
		Turns:             -1,
		MaxRetries:        3,
		PlanningSteps:     3,
		ConversationLimit: 6,
		NoteLimit:         10,
		EventLimit:        256,
	}
}

const planningDoneKeyword = "done"

// memoryLimit caps the transcript entries kept per character.
const memoryLimit = 50

// Simulator owns the world and drives it turn by turn. All world access
// from other goroutines goes through View.
type Simulator struct {
	mu       sync.Mutex
	world    *world.World
	systems  *system.Registry
	actions  *action.Registry
	plans    *action.Registry
	agents   map[string]agent.Agent
	memories map[string]*agent.Memory
	bus      *event.Bus
	rng      *rand.Rand
	config   Config
	turn     int
}

// New wires a simulator around a loaded world. The action registries come
// pre-populated with the core and planning actions.
func New(w *world.World, systems *system.Registry, bus *event.Bus, config Config) (*Simulator, error) {
	if config.Seed == 0 {
		config.Seed = rand.Int63()
	}

	actions := action.NewRegistry()
	if err := action.RegisterCore(actions); err != nil {
		return nil, err
	}
	plans := action.NewRegistry()
	if err := action.RegisterPlanning(plans); err != nil {
		return nil, err
	}

	return &Simulator{
		world:    w,
		systems:  systems,
		actions:  actions,
		plans:    plans,
		agents:   make(map[string]agent.Agent),
		memories: make(map[string]*agent.Memory),
		bus:      bus,
		rng:      rand.New(rand.NewSource(config.Seed)),
		config:   config,
	}, nil
}

// Bind attaches an agent to a character by name and starts its memory
// transcript.
func (s *Simulator) Bind(characterName string, a agent.Agent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := world.NormalizeName(characterName)
	s.agents[key] = a
	if s.memories[key] == nil {
		s.memories[key] = agent.NewMemory(memoryLimit)
	}
}

// Agent returns the agent bound to a character, or nil.
func (s *Simulator) Agent(characterName string) agent.Agent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.agents[world.NormalizeName(characterName)]
}

// Memories returns every character's transcript, for snapshots.
func (s *Simulator) Memories() map[string][]string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string][]string, len(s.memories))
	for name, memory := range s.memories {
		out[name] = memory.Entries()
	}
	return out
}

// SetMemories replaces the character transcripts, used when restoring a
// snapshot.
func (s *Simulator) SetMemories(memories map[string][]string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.memories = make(map[string]*agent.Memory, len(memories))
	for name, entries := range memories {
		memory := agent.NewMemory(memoryLimit)
		for _, entry := range entries {
			memory.Add(entry)
		}
		s.memories[world.NormalizeName(name)] = memory
	}
}

// Seed returns the random seed this run draws from.
func (s *Simulator) Seed() int64 { return s.config.Seed }

// Actions exposes the world action registry, for registering extras before
// the loop starts.
func (s *Simulator) Actions() *action.Registry { return s.actions }

// Bus returns the event bus the loop publishes on.
func (s *Simulator) Bus() *event.Bus { return s.bus }

// Turn returns the current turn counter.
func (s *Simulator) Turn() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.turn
}

// View runs fn with the world and turn counter under the simulator lock.
func (s *Simulator) View(fn func(w *world.World, turn int)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.world, s.turn)
}

// SetState replaces the world and turn counter, used when restoring a
// snapshot.
func (s *Simulator) SetState(w *world.World, turn int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.world = w
	s.turn = turn
}

// Initialize runs the systems' startup hooks.
func (s *Simulator) Initialize() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.systems.Initialize(s.world)
}

// Run drives the loop for the configured number of turns, or until the
// context is cancelled.
func (s *Simulator) Run(ctx context.Context) error {
	for i := 0; s.config.Turns < 0 || i < s.config.Turns; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := s.Step(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Step runs exactly one turn: every character in the world order acts, then
// the systems take their pass, then the turn counter advances once.
func (s *Simulator) Step(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.bus.Publish(event.NewStatusEvent(s.turn, "", fmt.Sprintf("Turn %d begins.", s.turn)))

	// The order is copied so mid-turn joins and removals take effect next
	// turn.
	order := make([]string, len(s.world.Order))
	copy(order, s.world.Order)

	for _, name := range order {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		character := world.FindCharacter(s.world, name)
		if character == nil {
			log.Printf("sim: character %q in the turn order does not exist, skipping", name)
			continue
		}
		room := world.FindContainingRoom(s.world, character)
		if room == nil {
			log.Printf("sim: character %q is not in any room, skipping", name)
			continue
		}

		s.expireFor(character, room)
		s.takeTurn(ctx, character, room)
	}

	if err := s.systems.Simulate(ctx, s.world, s.turn); err != nil {
		return fmt.Errorf("turn %d systems pass: %w", s.turn, err)
	}
	s.expireWorld()

	s.turn++
	return nil
}

// expireFor sweeps a character's effects and due calendar entries at the
// start of their turn.
func (s *Simulator) expireFor(character *world.Character, room *world.Room) {
	for _, expired := range world.ExpireEffects(character) {
		s.bus.Publish(event.NewStatusEvent(s.turn, room.Name,
			fmt.Sprintf("The %s effect on %s wears off.", expired.Name, character.Name)))
	}
	for _, item := range character.Items {
		world.ExpireEffects(item)
	}
	for _, due := range action.ExpireCalendar(character, s.turn) {
		s.bus.Publish(event.NewStatusEvent(s.turn, room.Name,
			fmt.Sprintf("%s's planned event %q is due.", character.Name, due.Name)))
	}
}

// expireWorld sweeps effects on rooms and floor items at the end of the
// turn.
func (s *Simulator) expireWorld() {
	for _, room := range s.world.Rooms {
		for _, expired := range world.ExpireEffects(room) {
			s.bus.Publish(event.NewStatusEvent(s.turn, room.Name,
				fmt.Sprintf("The %s effect on %s wears off.", expired.Name, room.Name)))
		}
		for _, item := range room.Items {
			world.ExpireEffects(item)
		}
	}
}

func (s *Simulator) takeTurn(ctx context.Context, character *world.Character, room *world.Room) {
	key := world.NormalizeName(character.Name)
	characterAgent := s.agents[key]
	if characterAgent == nil {
		log.Printf("sim: character %q has no agent, skipping", character.Name)
		return
	}
	memory := s.memories[key]
	if memory == nil {
		memory = agent.NewMemory(memoryLimit)
		s.memories[key] = memory
	}

	ac := &action.Context{
		World:     s.world,
		Room:      room,
		Character: character,
		Turn:      s.turn,
		Systems:   s.systems,
		Bus:       s.bus,
		Agents:    s.agents,
		Rand:      s.rng,
		Config: action.Config{
			NoteLimit:         s.config.NoteLimit,
			ConversationLimit: s.config.ConversationLimit,
		},
	}

	// A character with nothing to remember has nothing to plan around.
	if len(memory.Entries()) > 0 {
		s.plan(ctx, ac, characterAgent)
	}
	s.act(ctx, ac, characterAgent, memory)
}

// plan runs the private planning sub-loop: the character may consult and
// update its notes and calendar before acting, up to the step cap or until
// it says it is done.
func (s *Simulator) plan(ctx context.Context, ac *action.Context, characterAgent agent.Agent) {
	ac.Registry = s.plans
	for step := 0; step < s.config.PlanningSteps; step++ {
		prompt := planningPrompt(ac, s.plans)
		response, err := characterAgent.Invoke(ctx, prompt)
		if err != nil {
			log.Printf("sim: planning for %q: %v", ac.Character.Name, err)
			return
		}
		if saysKeyword(response, planningDoneKeyword) {
			return
		}
		call, err := action.ParseCall(response)
		if err != nil {
			return
		}
		if _, err := s.plans.Dispatch(ctx, ac, call); err != nil {
			log.Printf("sim: planning action %q for %q: %v", call.Name, ac.Character.Name, err)
		}
	}
}

// act prompts the agent for its turn and dispatches the result. Failures
// are fed back for another try; plain text stands as speech. The outcome
// lands in the character's memory.
func (s *Simulator) act(ctx context.Context, ac *action.Context, characterAgent agent.Agent, memory *agent.Memory) {
	ac.Registry = s.actions
	recent := memory.Entries()
	prompt := actionPrompt(ac, s.actions, recent)

	for attempt := 0; attempt <= s.config.MaxRetries; attempt++ {
		response, err := characterAgent.Invoke(ctx, prompt)
		if err != nil {
			log.Printf("sim: agent for %q: %v", ac.Character.Name, err)
			return
		}

		call, err := action.ParseCall(response)
		if errors.Is(err, action.ErrNoCall) {
			text := strings.TrimSpace(response)
			if text != "" {
				s.bus.Publish(event.NewReplyEvent(s.turn, ac.Character.Name, ac.Room.Name, "", text))
				memory.Add(fmt.Sprintf("Turn %d: you said: %s", s.turn, text))
			}
			return
		}
		if err != nil {
			prompt = retryPrompt(ac, s.actions, recent, err)
			continue
		}

		result, err := s.actions.Dispatch(ctx, ac, call)
		if err != nil {
			prompt = retryPrompt(ac, s.actions, recent, err)
			continue
		}
		memory.Add(fmt.Sprintf("Turn %d: %s: %s", s.turn, call.Name, result))
		return
	}

	log.Printf("sim: character %q exhausted action retries", ac.Character.Name)
}

func saysKeyword(text, keyword string) bool {
	for _, field := range strings.Fields(strings.ToLower(text)) {
		if strings.Trim(field, ".,!?\"'") == keyword {
			return true
		}
	}
	return false
}
