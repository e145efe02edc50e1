package main

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/fablesim/fablesim/internal/agent"
	"github.com/fablesim/fablesim/internal/api"
	"github.com/fablesim/fablesim/internal/event"
	"github.com/fablesim/fablesim/internal/gen"
	"github.com/fablesim/fablesim/internal/logic"
	"github.com/fablesim/fablesim/internal/sim"
	"github.com/fablesim/fablesim/internal/state"
	"github.com/fablesim/fablesim/internal/system"
	"github.com/fablesim/fablesim/internal/world"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	port := envOr("PORT", "8080")
	worldPath := envOr("WORLD_PATH", "data/world.yaml")
	dbPath := envOr("DB_PATH", "fablesim.db")
	logDir := envOr("EVENT_LOG_DIR", "logs")
	model := envOr("MODEL", "openai/gpt-4o-mini")
	authSecret := os.Getenv("AUTH_SECRET")

	config := sim.DefaultConfig()
	if turns := os.Getenv("TURNS"); turns != "" {
		n, err := strconv.Atoi(turns)
		if err != nil {
			log.Fatalf("Invalid TURNS value %q: %v", turns, err)
		}
		config.Turns = n
	}
	if seed := os.Getenv("SEED"); seed != "" {
		n, err := strconv.ParseInt(seed, 10, 64)
		if err != nil {
			log.Fatalf("Invalid SEED value %q: %v", seed, err)
		}
		config.Seed = n
	}

	w, err := state.LoadWorld(worldPath)
	if err != nil {
		log.Fatalf("Failed to load world: %v", err)
	}
	log.Printf("Loaded world %q with %d rooms", w.Name, len(w.Rooms))

	store, err := state.NewStore(dbPath)
	if err != nil {
		log.Fatalf("Failed to open snapshot store: %v", err)
	}
	defer store.Close()

	bus := event.NewBus(config.EventLimit)

	systems := system.NewRegistry()
	if err := registerLogic(systems, bus, config.Seed); err != nil {
		log.Fatalf("Failed to set up logic system: %v", err)
	}
	if err := systems.Register(state.NewSnapshotSystem(store, snapshotInterval())); err != nil {
		log.Fatalf("Failed to register snapshot system: %v", err)
	}

	simulator, err := sim.New(w, systems, bus, config)
	if err != nil {
		log.Fatalf("Failed to create simulator: %v", err)
	}

	client := agent.NewOpenRouterClient()
	bindAgents(simulator, w, bus, model, client)
	if err := registerWorldBuilder(simulator, systems, bus, w, model, client); err != nil {
		log.Fatalf("Failed to register world builder actions: %v", err)
	}

	if err := simulator.Initialize(); err != nil {
		log.Fatalf("Failed to initialize world: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eventLog, err := state.NewEventLog(logDir)
	if err != nil {
		log.Fatalf("Failed to open event log: %v", err)
	}
	go eventLog.Pump(ctx, bus)
	defer eventLog.Close()

	server := api.NewServer(simulator, store, authSecret)
	go server.Hub().Run(ctx)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%s", port),
		Handler: server,
	}
	go func() {
		log.Printf("Starting server on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	simDone := make(chan error, 1)
	go func() {
		simDone <- simulator.Run(ctx)
	}()

	select {
	case <-ctx.Done():
		log.Printf("Shutting down")
	case err := <-simDone:
		if err != nil {
			log.Printf("Simulation stopped: %v", err)
		} else {
			log.Printf("Simulation finished after %d turns", simulator.Turn())
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func snapshotInterval() int {
	raw := os.Getenv("SNAPSHOT_INTERVAL")
	if raw == "" {
		return 10
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		log.Fatalf("Invalid SNAPSHOT_INTERVAL value %q", raw)
	}
	return n
}

// registerLogic loads every rule table listed in LOGIC_TABLES (or found
// under data/logic) into one logic system.
func registerLogic(systems *system.Registry, bus *event.Bus, seed int64) error {
	var paths []string
	if raw := os.Getenv("LOGIC_TABLES"); raw != "" {
		paths = strings.Split(raw, ",")
	} else {
		found, err := filepath.Glob("data/logic/*.yaml")
		if err != nil {
			return err
		}
		paths = found
	}
	if len(paths) == 0 {
		log.Printf("No logic tables configured")
		return nil
	}

	engine := logic.NewEngine(rand.New(rand.NewSource(seed)))
	logicSystem := logic.NewSystem(engine, bus)
	if err := logicSystem.LoadTables(paths...); err != nil {
		return err
	}
	return systems.Register(logicSystem)
}

// registerWorldBuilder wires the world-growing actions to an LLM builder,
// so characters can explore past the authored rooms.
func registerWorldBuilder(simulator *sim.Simulator, systems *system.Registry, bus *event.Bus, w *world.World, model string, client *agent.OpenRouterClient) error {
	prompt := fmt.Sprintf(
		"You are the builder of the world %q (theme: %s). You invent rooms, "+
			"characters and items that fit the world and answer only in JSON.",
		w.Name, w.Theme)
	builder := agent.NewOpenRouterAgent("world builder", model, prompt, client)
	return gen.RegisterActions(simulator.Actions(), gen.NewGenerator(builder, systems, bus))
}

// bindAgents gives every character in the turn order an LLM agent.
// Characters listed in PLAYER_CHARACTERS are driven by a human instead,
// falling back to the LLM when no input arrives in time.
func bindAgents(simulator *sim.Simulator, w *world.World, bus *event.Bus, model string, client *agent.OpenRouterClient) {
	players := make(map[string]bool)
	for _, name := range strings.Split(os.Getenv("PLAYER_CHARACTERS"), ",") {
		if trimmed := world.NormalizeName(name); trimmed != "" {
			players[trimmed] = true
		}
	}

	for _, name := range w.Order {
		character := findCharacter(w, name)
		if character == nil {
			log.Printf("Turn order names unknown character %q, skipping", name)
			continue
		}

		prompt := fmt.Sprintf(
			"You are %s, a character in the world %q. %s Stay in character at all times.",
			character.Name, w.Name, character.Backstory)
		llm := agent.NewOpenRouterAgent(character.Name, model, prompt, client)

		if players[world.NormalizeName(name)] {
			simulator.Bind(name, agent.NewPlayerAgent(character.Name, bus, 60*time.Second, llm))
			log.Printf("Character %q is player-controlled", character.Name)
		} else {
			simulator.Bind(name, llm)
		}
	}
}

func findCharacter(w *world.World, name string) *world.Character {
	for _, room := range w.Rooms {
		if c := world.FindCharacterInRoom(room, name); c != nil {
			return c
		}
	}
	return nil
}
