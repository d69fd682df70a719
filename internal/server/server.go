// Package server exposes the powerwatch control surface over HTTP.
//
// The host platform delivers power and visibility transitions through the
// event-injection endpoints (wired, for example, to systemd sleep hooks),
// the CLI reads /status, and WebSocket clients at /ws receive every
// journal event live.
package server

import (
	"context"
	"log"
	"net"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/powerwatch/host/internal/coordinator"
	"github.com/powerwatch/host/internal/notify"
	"github.com/powerwatch/host/internal/storage"
	"github.com/powerwatch/host/internal/wakelock"
)

// channelBufferSize is each WebSocket client's send buffer. A slow
// client drops events rather than blocking the emitter.
const channelBufferSize = 64

// Config assembles the server's collaborators.
type Config struct {
	// Addr is the host:port to listen on.
	Addr string
	// Coordinator provides the lifecycle snapshot for /status.
	Coordinator *coordinator.Coordinator
	// Power receives injected power-state transitions.
	Power *notify.PowerChain
	// Visibility receives injected visibility transitions.
	Visibility *notify.VisibilityChain
	// Journal backs the recent-events portion of /status. Optional.
	Journal *storage.Journal
	// PowerProvider backs the battery/AC portion of /status. Optional.
	PowerProvider wakelock.PowerProvider
	// AuthTokenHash is a bcrypt hash of the required bearer token.
	// Empty disables authentication.
	AuthTokenHash string
}

// Server is the powerwatch control server.
type Server struct {
	addr          string
	coord         *coordinator.Coordinator
	power         *notify.PowerChain
	visibility    *notify.VisibilityChain
	journal       *storage.Journal
	powerProvider wakelock.PowerProvider
	tokenHash     string

	upgrader websocket.Upgrader
	// eventLimiter bounds event injections across all clients.
	eventLimiter *rate.Limiter

	httpServer *http.Server
	listener   net.Listener

	mu      sync.Mutex
	clients map[*client]bool
}

// New creates a server from the given configuration.
func New(cfg Config) *Server {
	s := &Server{
		addr:          cfg.Addr,
		coord:         cfg.Coordinator,
		power:         cfg.Power,
		visibility:    cfg.Visibility,
		journal:       cfg.Journal,
		powerProvider: cfg.PowerProvider,
		tokenHash:     cfg.AuthTokenHash,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		// 20 injections/sec with a burst of 5 is far above any real
		// suspend/resume cadence while still stopping floods.
		eventLimiter: rate.NewLimiter(rate.Limit(20), 5),
		clients:      make(map[*client]bool),
	}
	return s
}

// Start begins listening and serving. It returns once the listener is
// bound; serving continues on a background goroutine.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.listener = ln
	s.httpServer = &http.Server{Handler: s.createMux()}

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Printf("server: serve: %v", err)
		}
	}()

	log.Printf("server: listening on %s", ln.Addr())
	return nil
}

// Addr returns the bound listen address. Valid after Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.addr
	}
	return s.listener.Addr().String()
}

// Stop closes all WebSocket clients and shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	for c := range s.clients {
		c.close()
	}
	s.clients = make(map[*client]bool)
	s.mu.Unlock()

	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// Broadcast forwards one journal event to every connected WebSocket
// client. Safe to call from any goroutine; slow clients drop events.
func (s *Server) Broadcast(ev storage.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		select {
		case c.send <- ev:
		default:
			// Client is too far behind; drop rather than block the
			// emitting goroutine.
		}
	}
}

// ClientCount returns the number of connected WebSocket clients.
func (s *Server) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

func (s *Server) createMux() *http.ServeMux {
	mux := http.NewServeMux()

	// Health check endpoint for monitoring
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/power-event", s.requireAuth(s.handlePowerEvent))
	mux.HandleFunc("/visibility-event", s.requireAuth(s.handleVisibilityEvent))
	mux.HandleFunc("/ws", s.requireAuth(s.handleWebSocket))

	return mux
}

// client is one connected WebSocket consumer of the live event stream.
type client struct {
	conn *websocket.Conn
	send chan storage.Event
	done chan struct{}
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// handleWebSocket upgrades the connection and streams journal events
// until the client disconnects or the server stops.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("server: websocket upgrade failed: %v", err)
		return
	}

	c := &client{
		conn: conn,
		send: make(chan storage.Event, channelBufferSize),
		done: make(chan struct{}),
	}

	s.mu.Lock()
	s.clients[c] = true
	n := len(s.clients)
	s.mu.Unlock()
	log.Printf("server: client connected (%d total)", n)

	// Reader goroutine: we never expect client messages, but reading
	// detects disconnects promptly.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				c.close()
				return
			}
		}
	}()

	for {
		select {
		case <-c.done:
			s.removeClient(c)
			return
		case ev := <-c.send:
			if err := conn.WriteJSON(ev); err != nil {
				c.close()
				s.removeClient(c)
				return
			}
		}
	}
}

func (s *Server) removeClient(c *client) {
	s.mu.Lock()
	delete(s.clients, c)
	n := len(s.clients)
	s.mu.Unlock()
	log.Printf("server: client disconnected (%d total)", n)
}
