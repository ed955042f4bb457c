package signaling

import (
	"context"
	"log/slog"
	"time"

	"github.com/beamdrop/beamdrop/internal/observe"
)

// DefaultSweepInterval is how often the hub evicts expired rooms.
const DefaultSweepInterval = time.Minute

// Hub is the central brain of the signaling server. It owns the only
// goroutine that performs compound state transitions (join, disconnect,
// relay), so per-room transitions are linearized without per-room
// locks.
type Hub struct {
	// Rooms is the shared room table, also consulted by the HTTP
	// layer for /create-room and /receive.
	Rooms *RoomStore

	// Register is a channel for registering new clients.
	Register chan *Client

	// Unregister is a channel for unregistering clients.
	Unregister chan *Client

	// Inbound carries every decoded client event into the hub's
	// processing loop.
	Inbound chan *Message

	router  *Router
	conns   *Registry
	clients map[string]*Client
	sweep   time.Duration
	log     *slog.Logger
}

// NewHub creates a new Hub instance around the given room store.
func NewHub(rooms *RoomStore, sweepInterval time.Duration, log *slog.Logger) *Hub {
	if sweepInterval <= 0 {
		sweepInterval = DefaultSweepInterval
	}
	conns := NewRegistry(rooms)
	return &Hub{
		Rooms:      rooms,
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		Inbound:    make(chan *Message),
		router:     NewRouter(rooms, conns, log),
		conns:      conns,
		clients:    make(map[string]*Client),
		sweep:      sweepInterval,
		log:        log,
	}
}

// Run starts the hub's main processing loop. It returns when ctx is
// cancelled.
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(h.sweep)
	defer ticker.Stop()

	for {
		select {
		case client := <-h.Register:
			h.clients[client.ID] = client
			observe.SetActiveConnections(float64(len(h.clients)))
			h.log.Debug("client registered", "conn", client.ID)

		case client := <-h.Unregister:
			if _, ok := h.clients[client.ID]; !ok {
				// Already gone; disconnect is processed once.
				continue
			}
			delete(h.clients, client.ID)
			observe.SetActiveConnections(float64(len(h.clients)))

			h.deliver(h.router.Disconnect(client.ID))

			// Close the client's send channel to stop its WritePump.
			close(client.Send)
			h.log.Debug("client unregistered", "conn", client.ID)

		case msg := <-h.Inbound:
			if msg.client == nil {
				continue
			}
			if _, ok := h.clients[msg.client.ID]; !ok {
				// The connection lost a race with its own disconnect;
				// behave as if the event never happened.
				continue
			}
			h.deliver(h.router.Route(msg.client.ID, msg))

		case <-ticker.C:
			if n := h.Rooms.SweepExpired(); n > 0 {
				h.log.Info("expired rooms removed", "count", n)
			}

		case <-ctx.Done():
			return
		}
	}
}

// deliver fans messages out to their target connections. Targets that
// are no longer registered are skipped (disconnect races are
// expected); targets with a full send buffer lose the message rather
// than stalling the hub.
func (h *Hub) deliver(out []Outbound) {
	for _, o := range out {
		client, ok := h.clients[o.To]
		if !ok {
			continue
		}
		select {
		case client.Send <- o.Msg:
		default:
			observe.IncDropped()
			h.log.Warn("outbound message dropped: slow consumer", "conn", o.To, "type", o.Msg.Type)
		}
	}
}
