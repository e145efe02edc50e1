package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fablesim/fablesim/internal/event"
)

// PlayerAgent hands a character's turn to a human player. The prompt is
// published on the bus for connected clients; the response arrives through
// Submit. If the player does not answer in time, an optional fallback agent
// takes the turn instead.
type PlayerAgent struct {
	name     string
	bus      *event.Bus
	mu       sync.Mutex
	waiting  bool
	input    chan string
	timeout  time.Duration
	fallback Agent
}

// NewPlayerAgent creates a player-driven agent. A nil fallback means a
// missed timeout is an error.
func NewPlayerAgent(name string, bus *event.Bus, timeout time.Duration, fallback Agent) *PlayerAgent {
	return &PlayerAgent{
		name:     name,
		bus:      bus,
		input:    make(chan string, 1),
		timeout:  timeout,
		fallback: fallback,
	}
}

func (a *PlayerAgent) Name() string { return a.name }

// Submit delivers the player's response for the pending prompt. It never
// blocks; input with no prompt outstanding is rejected.
func (a *PlayerAgent) Submit(text string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.waiting {
		return false
	}
	select {
	case a.input <- text:
		a.waiting = false
		return true
	default:
		return false
	}
}

// Invoke publishes the prompt and waits for the player, the timeout or
// context cancellation, whichever comes first.
func (a *PlayerAgent) Invoke(ctx context.Context, prompt string) (string, error) {
	a.mu.Lock()
	// Discard input accepted just as the previous prompt timed out.
	select {
	case <-a.input:
	default:
	}
	a.waiting = true
	a.mu.Unlock()
	defer func() {
		a.mu.Lock()
		a.waiting = false
		a.mu.Unlock()
	}()

	a.bus.Publish(event.NewPromptEvent(0, a.name, prompt))

	timer := time.NewTimer(a.timeout)
	defer timer.Stop()

	select {
	case text := <-a.input:
		return text, nil
	case <-ctx.Done():
		return "", ctx.Err()
	case <-timer.C:
		if a.fallback != nil {
			return a.fallback.Invoke(ctx, prompt)
		}
		return "", fmt.Errorf("player %s did not respond in %s", a.name, a.timeout)
	}
}
