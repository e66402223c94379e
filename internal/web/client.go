package web

import (
	"encoding/base64"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/splitdeck/splitdeck/internal/command"
	"github.com/splitdeck/splitdeck/internal/keys"
	"github.com/splitdeck/splitdeck/internal/layout"
)

const (
	// writeWait is the deadline for a single websocket write.
	writeWait = 10 * time.Second
	// pongWait is how long a silent peer stays connected.
	pongWait = 60 * time.Second
	// pingPeriod must be under pongWait so pings keep the read alive.
	pingPeriod = (pongWait * 9) / 10
	// maxMessageSize bounds inbound frames. Key-injection requests carry up
	// to 16 KiB of text plus JSON overhead.
	maxMessageSize = 64 * 1024
	// sendBuffer is the per-client outbound queue.
	sendBuffer = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The token check has already passed by upgrade time, and the server
	// binds to loopback by default.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Client is one websocket connection.
type Client struct {
	server *Server
	conn   *websocket.Conn
	send   chan []byte

	mu       sync.Mutex
	subs     map[string]func()
	dropOnce sync.Once
}

// drop closes the outbound queue and detaches all pane subscriptions.
// Idempotent; called by the hub on unregister and on hub shutdown.
func (c *Client) drop() {
	c.dropOnce.Do(func() {
		c.mu.Lock()
		for paneID, cancel := range c.subs {
			delete(c.subs, paneID)
			cancel()
		}
		c.mu.Unlock()
		close(c.send)
	})
}

// handleWebsocket upgrades /ws connections after the token check.
func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	if !s.authorizeRequest(r) {
		writeAPIError(w, http.StatusUnauthorized, "UNAUTHORIZED", "unauthorized")
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[WEB] Websocket upgrade failed: %v", err)
		return
	}

	client := &Client{
		server: s,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		subs:   make(map[string]func()),
	}
	select {
	case s.hub.register <- client:
	case <-s.hub.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.server.hub.unregister <- c:
		case <-c.server.hub.done:
			c.drop()
		}
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[WEB] Websocket read error: %v", err)
			}
			return
		}
		c.handleMessage(raw)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// reply queues a message for this client only, dropping it if the client is
// already saturated.
func (c *Client) reply(msg wsMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

func (c *Client) replyError(code, message string) {
	c.reply(wsMessage{Type: msgError, Code: code, Message: message})
}

func (c *Client) handleMessage(raw []byte) {
	var msg wsMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.replyError("INVALID_MESSAGE", "malformed message")
		return
	}
	s := c.server

	switch msg.Type {
	case msgHello:
		sessions := layout.SessionsForHello(s.layout.Snapshot())
		c.reply(wsMessage{Type: msgHello, Sessions: &sessions, Tabs: s.layout.Tabs(), ActiveTab: s.layout.ActiveTab()})

	case msgInput:
		if s.terminals == nil {
			c.replyError("SERVICE_UNAVAILABLE", "terminals not available")
			return
		}
		data, err := base64.StdEncoding.DecodeString(msg.Data)
		if err != nil {
			// Not base64; treat it as raw text from simple clients.
			data = []byte(msg.Data)
		}
		if err := s.terminals.Write(msg.PaneID, data); err != nil {
			c.replyError("WRITE_FAILED", err.Error())
		}

	case msgKeys:
		if s.terminals == nil {
			c.replyError("SERVICE_UNAVAILABLE", "terminals not available")
			return
		}
		seq, err := keys.Expand(msg.Steps)
		if err != nil {
			c.replyError("INVALID_KEY", err.Error())
			return
		}
		if err := s.terminals.Write(msg.PaneID, seq); err != nil {
			c.replyError("WRITE_FAILED", err.Error())
		}

	case msgResize:
		if s.terminals == nil {
			return
		}
		if err := s.terminals.Resize(msg.PaneID, msg.Cols, msg.Rows); err != nil {
			c.replyError("RESIZE_FAILED", err.Error())
		}

	case msgSubscribe:
		c.subscribe(msg.PaneID)

	case msgCommand:
		action, ok := command.Route(msg.Input)
		if !ok {
			c.replyError("UNKNOWN_COMMAND", "unrecognized command")
			return
		}
		s.applyCommand(action)

	default:
		c.replyError("INVALID_MESSAGE", "unknown message type")
	}
}

// subscribe attaches this client to a pane's output stream, starting the
// pane's instance on first attach. Repeat subscriptions are no-ops.
func (c *Client) subscribe(paneID string) {
	s := c.server
	if s.terminals == nil {
		c.replyError("SERVICE_UNAVAILABLE", "terminals not available")
		return
	}

	c.mu.Lock()
	_, already := c.subs[paneID]
	c.mu.Unlock()
	if already {
		return
	}

	if !s.terminals.IsRunning(paneID) {
		_, content, ok := s.layout.PaneContentByID(paneID)
		if !ok {
			c.replyError("NOT_FOUND", "unknown pane")
			return
		}
		if content.Kind != layout.ContentTerminal {
			c.replyError("INVALID_REQUEST", "pane has no terminal")
			return
		}
		if err := s.terminals.Start(paneID, content); err != nil {
			c.replyError("START_FAILED", err.Error())
			return
		}
	}

	ch, cancel, err := s.terminals.Subscribe(paneID)
	if err != nil {
		c.replyError("NOT_FOUND", err.Error())
		return
	}

	c.mu.Lock()
	c.subs[paneID] = cancel
	c.mu.Unlock()

	go func() {
		for chunk := range ch {
			c.reply(wsMessage{
				Type:   msgOutput,
				PaneID: paneID,
				Data:   base64.StdEncoding.EncodeToString(chunk),
			})
		}
		c.mu.Lock()
		delete(c.subs, paneID)
		c.mu.Unlock()
	}()
}

// applyCommand executes a routed palette action against the workspace.
func (s *Server) applyCommand(a command.Action) {
	switch a.Kind {
	case command.KindSplit:
		tabID := s.layout.ActiveTab()
		tab, ok := s.layout.Tab(tabID)
		if !ok || tab.ActivePane == "" {
			return
		}
		if _, changed := s.layout.SplitPane(tabID, tab.ActivePane, a.Direction, layout.TerminalContent(layout.ModeShell, "")); changed {
			s.layoutChanged(tabID)
		}

	case command.KindNewTab:
		tab := s.layout.AddTab(string(a.Mode))
		s.layout.InitLayout(tab.ID, layout.TerminalContent(a.Mode, ""))
		s.layout.SetActiveTab(tab.ID)
		s.broadcastTabs()
		s.layoutChanged(tab.ID)

	case command.KindOpenURL:
		tabID := s.layout.ActiveTab()
		tab, ok := s.layout.Tab(tabID)
		if !ok {
			return
		}
		content := layout.BrowserContent(a.URL)
		changed := false
		if tab.Root == nil {
			changed = s.layout.InitLayout(tabID, content)
		} else if tab.ActivePane != "" {
			_, changed = s.layout.SplitPane(tabID, tab.ActivePane, layout.Horizontal, content)
		}
		if changed {
			s.layoutChanged(tabID)
		}

	case command.KindAddTab:
		s.layout.AddTab(a.Title)
		s.saveWorkspace()
		s.broadcastTabs()

	case command.KindClosePane:
		tabID := s.layout.ActiveTab()
		tab, ok := s.layout.Tab(tabID)
		if !ok || tab.ActivePane == "" {
			return
		}
		paneID := tab.ActivePane
		if s.layout.ClosePane(tabID, paneID) {
			if s.terminals != nil {
				_ = s.terminals.Close(paneID)
			}
			s.layoutChanged(tabID)
		}
	}
}
