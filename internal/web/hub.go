package web

import (
	"github.com/splitdeck/splitdeck/internal/keys"
	"github.com/splitdeck/splitdeck/internal/layout"
)

// Websocket message types. Inbound and outbound share one envelope; unused
// fields are omitted on the wire.
const (
	// inbound
	msgHello     = "hello"
	msgCommand   = "command"
	msgInput     = "input"
	msgKeys      = "keys"
	msgResize    = "resize"
	msgSubscribe = "subscribe"

	// outbound
	msgLayout   = "layout"
	msgTabs     = "tabs"
	msgOutput   = "output"
	msgPaneExit = "pane-exit"
	msgReload   = "reload"
	msgError    = "error"
)

// wsMessage is the websocket envelope in both directions.
type wsMessage struct {
	Type string `json:"type"`

	// hello response and tab broadcasts
	Sessions  *layout.HelloSessions `json:"sessions,omitempty"`
	Tabs      []layout.Tab          `json:"tabs,omitempty"`
	ActiveTab string                `json:"activeTab,omitempty"`

	// layout broadcast
	Tab *layout.Tab `json:"tab,omitempty"`

	// pane traffic; Data is base64 for input and output
	PaneID string      `json:"paneId,omitempty"`
	Data   string      `json:"data,omitempty"`
	Steps  []keys.Step `json:"steps,omitempty"`
	Cols   uint16      `json:"cols,omitempty"`
	Rows   uint16      `json:"rows,omitempty"`

	// palette command
	Input string `json:"input,omitempty"`

	// error
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// Hub owns the connected websocket clients. All membership changes and
// broadcasts flow through its run loop, so no client map locking is needed.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
}

func newHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

func (h *Hub) run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.drop()
			}
		case message := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Slow consumer; cut it loose rather than stall
					// every other client.
					delete(h.clients, client)
					client.drop()
				}
			}
		case <-h.done:
			for client := range h.clients {
				delete(h.clients, client)
				client.drop()
			}
			return
		}
	}
}

// Broadcast queues a message for every connected client. Safe after stop.
func (h *Hub) Broadcast(message []byte) {
	select {
	case h.broadcast <- message:
	case <-h.done:
	}
}

func (h *Hub) stop() {
	select {
	case <-h.done:
	default:
		close(h.done)
	}
}
