package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/fablesim/fablesim/internal/event"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Observers are read-only, so cross-origin viewers are fine.
		return true
	},
}

// wsClient is one connected observer.
type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans the event stream out to websocket observers. Slow clients
// are disconnected rather than allowed to stall the stream.
type Hub struct {
	bus        *event.Bus
	register   chan *wsClient
	unregister chan *wsClient
	clients    map[*wsClient]bool
	mu         sync.RWMutex
}

// NewHub creates a hub over the given event bus. Call Run to start it.
func NewHub(bus *event.Bus) *Hub {
	return &Hub{
		bus:        bus,
		register:   make(chan *wsClient, 16),
		unregister: make(chan *wsClient, 16),
		clients:    make(map[*wsClient]bool),
	}
}

// Run pumps bus events to connected clients until the context is
// cancelled.
func (h *Hub) Run(ctx context.Context) {
	sub := h.bus.Subscribe(256)
	defer sub.Cancel()

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.drop(client)

		case ev, ok := <-sub.C:
			if !ok {
				h.closeAll()
				return
			}
			frame, err := json.Marshal(ev)
			if err != nil {
				log.Printf("websocket: failed to encode event: %v", err)
				continue
			}
			h.broadcast(frame)
		}
	}
}

// ClientCount reports the number of connected observers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) broadcast(frame []byte) {
	h.mu.RLock()
	stalled := make([]*wsClient, 0)
	for client := range h.clients {
		select {
		case client.send <- frame:
		default:
			stalled = append(stalled, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range stalled {
		h.drop(client)
	}
}

func (h *Hub) drop(client *wsClient) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
	h.mu.Unlock()
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	for client := range h.clients {
		close(client.send)
	}
	h.clients = make(map[*wsClient]bool)
	h.mu.Unlock()
}

// HandleWS upgrades the connection and streams events until the client
// disconnects.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket: upgrade failed: %v", err)
		return
	}

	client := &wsClient{
		conn: conn,
		send: make(chan []byte, 64),
	}
	h.register <- client

	go h.writeLoop(client)
	go h.readLoop(client)
}

func (h *Hub) writeLoop(client *wsClient) {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		client.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-client.send:
			if !ok {
				client.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(time.Second))
				return
			}
			client.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := client.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}

		case <-ticker.C:
			client.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readLoop discards inbound messages. The stream is one-way, but we
// still have to read to notice disconnects and answer pings.
func (h *Hub) readLoop(client *wsClient) {
	defer func() {
		h.unregister <- client
		client.conn.Close()
	}()

	client.conn.SetReadLimit(4096)
	client.conn.SetReadDeadline(time.Now().Add(90 * time.Second))
	client.conn.SetPongHandler(func(string) error {
		client.conn.SetReadDeadline(time.Now().Add(90 * time.Second))
		return nil
	})

	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			return
		}
	}
}
