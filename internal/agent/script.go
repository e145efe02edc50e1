package agent

import (
	"context"
	"fmt"
	"sync"
)

// ScriptAgent replays a fixed sequence of responses. It stands in for a
// model during tests and offline runs.
type ScriptAgent struct {
	mu        sync.Mutex
	name      string
	responses []string
	next      int
	Prompts   []string
}

// NewScriptAgent creates an agent that answers with the given responses in
// order.
func NewScriptAgent(name string, responses ...string) *ScriptAgent {
	return &ScriptAgent{name: name, responses: responses}
}

func (a *ScriptAgent) Name() string { return a.name }

// Invoke records the prompt and returns the next scripted response. The
// last response repeats once the script runs out.
func (a *ScriptAgent) Invoke(ctx context.Context, prompt string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.Prompts = append(a.Prompts, prompt)
	if len(a.responses) == 0 {
		return "", fmt.Errorf("agent %s has no scripted responses", a.name)
	}
	response := a.responses[a.next]
	if a.next < len(a.responses)-1 {
		a.next++
	}
	return response, nil
}
