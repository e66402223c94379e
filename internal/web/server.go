// Package web serves the splitdeck browser client: a token-guarded JSON API
// and websocket over the workspace store, the PTY manager and the session
// history catalog.
package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/splitdeck/splitdeck/internal/history"
	"github.com/splitdeck/splitdeck/internal/layout"
	"github.com/splitdeck/splitdeck/internal/notify"
	"github.com/splitdeck/splitdeck/internal/project"
	"github.com/splitdeck/splitdeck/internal/remote"
	"github.com/splitdeck/splitdeck/internal/term"
)

// shutdownTimeout bounds graceful shutdown of in-flight requests.
const shutdownTimeout = 5 * time.Second

// Config wires the server to its collaborators. Nil collaborators disable
// the endpoints that need them.
type Config struct {
	ListenAddr string
	Profile    string
	DataDir    string
	ProfileDir string
	Token      string
	DevMode    bool

	Layout    *layout.Store
	Storage   *layout.Storage
	Terminals *term.Manager
	History   *history.Store
	Discovery *project.Discovery
	Favorites *project.FavoriteStore
	Notifier  *notify.Notifier
	PushStore *notify.SubscriptionStore
	Presence  *remote.Publisher
}

// Server is the splitdeck web process: HTTP API, websocket hub and static
// client.
type Server struct {
	cfg Config

	layout      *layout.Store
	storage     *layout.Storage
	terminals   *term.Manager
	history     *history.Store
	discovery   *project.Discovery
	favorites   *project.FavoriteStore
	notifier    *notify.Notifier
	pushStore   *notify.SubscriptionStore
	presence    *remote.Publisher
	screenshots *ScreenshotStore

	hub     *Hub
	httpSrv *http.Server
	ln      net.Listener
	addr    string
}

// NewServer builds a server around the configured collaborators. The hub
// goroutine starts immediately; call Stop to release it.
func NewServer(cfg Config) *Server {
	s := &Server{
		cfg:       cfg,
		layout:    cfg.Layout,
		storage:   cfg.Storage,
		terminals: cfg.Terminals,
		history:   cfg.History,
		discovery: cfg.Discovery,
		favorites: cfg.Favorites,
		notifier:  cfg.Notifier,
		pushStore: cfg.PushStore,
		presence:  cfg.Presence,
		addr:      cfg.ListenAddr,
	}
	if s.layout == nil {
		s.layout = layout.NewStore()
	}
	if cfg.ProfileDir != "" {
		if store, err := NewScreenshotStore(cfg.ProfileDir); err == nil {
			s.screenshots = store
		} else {
			log.Printf("[WEB] Screenshot store unavailable: %v", err)
		}
	}
	s.hub = newHub()
	go s.hub.run()
	return s
}

// Handler returns the full HTTP handler, including request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/api/health", s.handleHealthz)

	mux.HandleFunc("/api/tabs", s.handleTabs)
	mux.HandleFunc("/api/tabs/", s.handleTabByID)
	mux.HandleFunc("/api/layout", s.handleLayoutGet)
	mux.HandleFunc("/api/layout/", s.handleLayoutOp)

	mux.HandleFunc("/api/sessions/hello", s.handleSessionsHello)
	mux.HandleFunc("/api/sessions/history", s.handleHistoryList)
	mux.HandleFunc("/api/sessions/history/", s.handleHistoryByID)

	mux.HandleFunc("/api/panes/", s.handlePaneByID)

	mux.HandleFunc("/api/screenshots", s.handleScreenshots)
	mux.HandleFunc("/api/screenshots/", s.handleScreenshotByName)

	mux.HandleFunc("/api/projects", s.handleProjects)
	mux.HandleFunc("/api/projects/favorites", s.handleFavorites)
	mux.HandleFunc("/api/projects/used", s.handleProjectUsed)

	mux.HandleFunc("/api/push/key", s.handlePushKey)
	mux.HandleFunc("/api/push/subscribe", s.handlePushSubscribe)

	mux.HandleFunc("/ws", s.handleWebsocket)

	mux.Handle("/static/", http.StripPrefix("/static/", s.staticFileServer()))
	mux.HandleFunc("/", s.handleIndex)

	return s.logRequests(mux)
}

// Listen binds the configured address. Split from Serve so callers can print
// the resolved URL before traffic starts.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.ListenAddr, err)
	}
	s.ln = ln
	s.addr = ln.Addr().String()
	return nil
}

// Serve runs the HTTP server until Stop. Callers typically run it on a
// goroutine and watch the returned error.
func (s *Server) Serve() error {
	if s.ln == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}
	s.httpSrv = &http.Server{Handler: s.Handler()}
	err := s.httpSrv.Serve(s.ln)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// URL returns the server's base URL, with the bound port once Listen ran.
func (s *Server) URL() string {
	return "http://" + s.addr
}

// TargetURL returns the token-bearing URL to open in a browser.
func (s *Server) TargetURL() string {
	return BuildTargetURL(s.URL(), s.cfg.Token)
}

// Stop shuts down gracefully: in-flight requests get the shutdown timeout,
// then websocket clients and the hub are released.
func (s *Server) Stop() error {
	var err error
	if s.httpSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err = s.httpSrv.Shutdown(ctx)
	}
	s.hub.stop()
	return err
}

// Close releases the hub without a running HTTP server. Tests that never
// call Serve use this.
func (s *Server) Close() {
	s.hub.stop()
}

// authorizeRequest accepts the token from the query string or a bearer
// header. A server without a configured token refuses everything.
func (s *Server) authorizeRequest(r *http.Request) bool {
	if s.cfg.Token == "" {
		return false
	}
	token := r.URL.Query().Get("token")
	if token == "" {
		header := r.Header.Get("Authorization")
		token = strings.TrimPrefix(header, "Bearer ")
		if token == header {
			token = ""
		}
	}
	if token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.Token)) == 1
}

// statusRecorder captures the response code for the request log.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.status = code
	rec.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The websocket upgrade hijacks the connection; wrapping the
		// ResponseWriter would hide the Hijacker interface.
		if r.URL.Path == "/ws" {
			next.ServeHTTP(w, r)
			return
		}
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)
		log.Printf("[WEB] %s %s %d %s", r.Method, RedactURL(r.URL.RequestURI()), rec.status, time.Since(start).Round(time.Millisecond))
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeAPIError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":      true,
		"profile": s.cfg.Profile,
	})
}

// saveWorkspace persists the current layout snapshot. Mutating handlers call
// it after every accepted change.
func (s *Server) saveWorkspace() {
	if s.storage == nil {
		return
	}
	if err := s.storage.Save(s.layout.Snapshot()); err != nil {
		log.Printf("[WEB] Workspace save failed: %v", err)
	}
}

// layoutChanged runs the bookkeeping shared by every layout mutation:
// persist, broadcast the updated tab, nudge remote presence.
func (s *Server) layoutChanged(tabID string) {
	s.saveWorkspace()
	if tab, ok := s.layout.Tab(tabID); ok {
		s.broadcast(wsMessage{Type: msgLayout, Tab: &tab})
	} else {
		s.broadcastTabs()
	}
	if s.presence != nil {
		s.presence.Kick()
	}
}

func (s *Server) broadcastTabs() {
	s.broadcast(wsMessage{Type: msgTabs, Tabs: s.layout.Tabs(), ActiveTab: s.layout.ActiveTab()})
}

func (s *Server) broadcast(msg wsMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("[WEB] Broadcast marshal failed: %v", err)
		return
	}
	s.hub.Broadcast(data)
}

// HandlePaneExit reacts to a PTY instance finishing: clients learn the pane
// is dead, and if the pane sits outside the active tab, subscribers get a
// push notification.
func (s *Server) HandlePaneExit(e term.ExitEvent) {
	s.broadcast(wsMessage{Type: msgPaneExit, PaneID: e.PaneID})

	if s.notifier == nil {
		return
	}
	// A pane missing from the tree was closed on purpose; only exits the
	// user is not looking at deserve a notification.
	tabID, _, ok := s.layout.PaneContentByID(e.PaneID)
	if !ok || tabID == s.layout.ActiveTab() {
		return
	}
	s.notifier.NotifySessionEnded(e.Provider, e.PaneID)
}

// writeJSON writes a JSON response body with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[WEB] Response encode failed: %v", err)
	}
}

// apiError is the error envelope every failing endpoint returns.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeAPIError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]apiError{"error": {Code: code, Message: message}})
}
