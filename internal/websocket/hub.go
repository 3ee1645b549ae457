package websocket

import "github.com/rs/zerolog/log"

// Hub maintains the set of active clients and routes pushed payloads to
// them. Each client is keyed by the username its session belongs to, so
// notifications reach only their owner while announcements reach everyone.
type Hub struct {
	// Registered clients.
	clients map[*Client]bool

	// Register requests from the clients.
	Register chan *Client

	// Unregister requests from clients.
	Unregister chan *Client

	// Payloads to deliver, addressed by username ("" = broadcast).
	push chan addressed

	// A map of usernames to the set of their live connections.
	byUser map[string]map[*Client]bool
}

type addressed struct {
	username string
	payload  []byte
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		push:       make(chan addressed, 64),
		byUser:     make(map[string]map[*Client]bool),
	}
}

// PushTo queues a payload for every live connection of one user, or for
// everyone when username is empty. Never blocks the caller.
func (h *Hub) PushTo(username string, payload []byte) {
	select {
	case h.push <- addressed{username: username, payload: payload}:
	default:
		log.Warn().Str("username", username).Msg("Push queue full, dropping websocket payload")
	}
}

// Run starts the Hub's message processing loop.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.clients[client] = true
			if h.byUser[client.Username] == nil {
				h.byUser[client.Username] = make(map[*Client]bool)
			}
			h.byUser[client.Username][client] = true
			log.Info().Int("total_clients", len(h.clients)).Str("username", client.Username).Msg("Client connected")

		case client := <-h.Unregister:
			if _, ok := h.clients[client]; ok {
				h.drop(client)
				log.Info().Int("total_clients", len(h.clients)).Msg("Client disconnected")
			}

		case msg := <-h.push:
			if msg.username == "" {
				for client := range h.clients {
					h.deliver(client, msg.payload)
				}
				continue
			}
			for client := range h.byUser[msg.username] {
				h.deliver(client, msg.payload)
			}
		}
	}
}

func (h *Hub) deliver(client *Client, payload []byte) {
	select {
	case client.Send <- payload:
	default:
		h.drop(client)
	}
}

func (h *Hub) drop(client *Client) {
	delete(h.clients, client)
	close(client.Send)
	if subs, ok := h.byUser[client.Username]; ok {
		delete(subs, client)
		if len(subs) == 0 {
			delete(h.byUser, client.Username)
		}
	}
}
