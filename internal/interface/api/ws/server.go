package ws

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"modBot/internal/app/events"
	"modBot/internal/domain"
	"modBot/internal/usecase/commands"
)

const (
	writeWait       = 10 * time.Second
	pongWait        = 60 * time.Second
	pingPeriod      = (pongWait * 9) / 10
	shutdownTimeout = 5 * time.Second
)

type Config struct {
	Addr          string
	Bus           *events.Bus
	Registry      *commands.Registry
	Cooldowns     *commands.CooldownTracker
	ModerationLog domain.ModerationLogRepository
	Users         domain.UserRepository
	Logger        *slog.Logger
}

// DefaultAddr escucha solo en loopback: la API de administración no tiene auth.
const DefaultAddr = "127.0.0.1:8080"

func (c Config) addr() string {
	if strings.TrimSpace(c.Addr) == "" {
		return DefaultAddr
	}
	return c.Addr
}

// Server expone el stream de eventos por WebSocket, la API de administración y /metrics.
type Server struct {
	addr     string
	bus      *events.Bus
	log      *slog.Logger
	upgrader websocket.Upgrader
	api      *apiHandlers

	mu      sync.RWMutex
	clients map[*wsClient]struct{}
	httpSrv *http.Server
}

type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsClient) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(v)
}

func (c *wsClient) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

func NewServer(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	log := cfg.Logger.With("component", "http")
	return &Server{
		addr: cfg.addr(),
		bus:  cfg.Bus,
		log:  log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		api:     newAPIHandlers(cfg, log),
		clients: make(map[*wsClient]struct{}),
	}
}

// Handler arma el mux completo. Start lo usa; los tests también.
func (s *Server) Handler(ctx context.Context) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws/events", func(w http.ResponseWriter, r *http.Request) {
		s.handleWS(ctx, w, r)
	})
	mux.Handle("GET /metrics", promhttp.Handler())
	s.api.register(mux)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			setCORSHeaders(w, r)
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}
		mux.ServeHTTP(w, r)
	})
}

// Start levanta el HTTP server y se bloquea hasta que el contexto se cancela.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(ctx),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.mu.Lock()
	s.httpSrv = srv
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("shutdown error", "err", err)
		}
		s.closeClients()
	}()

	s.log.Info("listening", "addr", s.addr)
	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) handleWS(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("upgrade error", "err", err)
		return
	}

	client := &wsClient{conn: conn}

	s.mu.Lock()
	s.clients[client] = struct{}{}
	clientCount := len(s.clients)
	s.mu.Unlock()

	s.log.Info("websocket client connected", "remote", r.RemoteAddr, "clients", clientCount)

	clientCtx, cancel := context.WithCancel(ctx)
	go s.readLoop(clientCtx, cancel, client)
	go s.writeLoop(clientCtx, cancel, client)
}

// readLoop solo consume frames de control; el stream es de una sola vía.
func (s *Server) readLoop(ctx context.Context, cancel context.CancelFunc, client *wsClient) {
	defer cancel()
	_ = client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		return client.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if ctx.Err() != nil {
			return
		}
		if _, _, err := client.conn.ReadMessage(); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug("read error", "err", err)
			}
			return
		}
	}
}

func (s *Server) writeLoop(ctx context.Context, cancel context.CancelFunc, client *wsClient) {
	defer func() {
		cancel()
		s.removeClient(client)
	}()

	merged, unsubscribe := s.subscribeAll(ctx)
	defer unsubscribe()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case env, ok := <-merged:
			if !ok {
				return
			}
			if err := client.writeJSON(env); err != nil {
				s.log.Debug("removing client due to write error", "err", err)
				return
			}
		case <-ticker.C:
			if err := client.ping(); err != nil {
				return
			}
		}
	}
}

// subscribeAll junta todos los tópicos del bus en un único canal de Envelope.
func (s *Server) subscribeAll(ctx context.Context) (<-chan events.Envelope, func()) {
	out := make(chan events.Envelope, 64)
	if s.bus == nil {
		return out, func() {}
	}

	var (
		wg    sync.WaitGroup
		unsub []func()
	)
	for _, topic := range events.Topics {
		ch, u := s.bus.Subscribe(topic)
		unsub = append(unsub, u)
		wg.Add(1)
		go func(topic string, ch <-chan any) {
			defer wg.Done()
			for payload := range ch {
				select {
				case out <- events.Envelope{Topic: topic, Payload: payload}:
				case <-ctx.Done():
				}
			}
		}(topic, ch)
	}

	go func() {
		wg.Wait()
		close(out)
	}()

	return out, func() {
		for _, u := range unsub {
			u()
		}
	}
}

func (s *Server) removeClient(client *wsClient) {
	s.mu.Lock()
	_, ok := s.clients[client]
	delete(s.clients, client)
	clientCount := len(s.clients)
	s.mu.Unlock()

	if ok {
		client.conn.Close()
		s.log.Info("websocket client disconnected", "clients", clientCount)
	}
}

func (s *Server) closeClients() {
	s.mu.Lock()
	clients := make([]*wsClient, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.clients = make(map[*wsClient]struct{})
	s.mu.Unlock()

	for _, c := range clients {
		c.conn.Close()
	}
}

func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}
