package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"duochat/internal/bus"
	"duochat/internal/metrics"
)

// WSConfig configures the WebSocket transcript feed.
type WSConfig struct {
	Port   int
	Path   string // endpoint path (default: /ws)
	Bus    *bus.TranscriptBus
	Logger *slog.Logger
}

// WebSocketChannel pushes transcript events to connected clients. It is
// read-only for clients; turns always go through the HTTP API.
type WebSocketChannel struct {
	port   int
	path   string
	bus    *bus.TranscriptBus
	logger *slog.Logger
	server *http.Server

	mu      sync.RWMutex
	clients map[string]*wsClient
}

type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsClient) send(msg wsEvent) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// wsEvent is the JSON protocol pushed over the feed.
type wsEvent struct {
	Type    string       `json:"type"` // "message" | "reset" | "status"
	Message *wireMessage `json:"message,omitempty"`
	Content string       `json:"content,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// NewWebSocketChannel creates the transcript feed server.
func NewWebSocketChannel(cfg WSConfig) *WebSocketChannel {
	if cfg.Path == "" {
		cfg.Path = "/ws"
	}
	if cfg.Port == 0 {
		cfg.Port = 3002
	}
	return &WebSocketChannel{
		port:    cfg.Port,
		path:    cfg.Path,
		bus:     cfg.Bus,
		logger:  cfg.Logger,
		clients: make(map[string]*wsClient),
	}
}

func (ws *WebSocketChannel) Name() string { return "websocket" }

// Start runs the feed server and the bus pump until ctx is canceled.
func (ws *WebSocketChannel) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc(ws.path, ws.handleUpgrade)

	ws.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", ws.port),
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	subID, events := ws.bus.Subscribe()
	go ws.pump(events)

	ws.logger.Info("websocket server starting", "port", ws.port, "path", ws.path)

	errCh := make(chan error, 1)
	go func() {
		if err := ws.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		ws.bus.Unsubscribe(subID)
		ws.closeAllClients()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return ws.server.Shutdown(shutdownCtx)
	case err := <-errCh:
		ws.bus.Unsubscribe(subID)
		return err
	}
}

// pump forwards bus events to every connected client. Ends when the
// subscription channel closes.
func (ws *WebSocketChannel) pump(events <-chan bus.Event) {
	for evt := range events {
		switch evt.Type {
		case bus.EventMessage:
			wire := toWire(*evt.Message)
			ws.broadcast(wsEvent{Type: "message", Message: &wire})
		case bus.EventReset:
			ws.broadcast(wsEvent{Type: "reset"})
		}
	}
}

func (ws *WebSocketChannel) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		ws.logger.Error("websocket upgrade failed", "err", err)
		return
	}

	client := &wsClient{conn: conn}
	clientID := fmt.Sprintf("ws-%p", conn)

	ws.mu.Lock()
	ws.clients[clientID] = client
	ws.mu.Unlock()
	metrics.WebsocketConnections.Inc()

	ws.logger.Info("websocket client connected", "client_id", clientID)

	client.send(wsEvent{Type: "status", Content: "connected"})

	defer func() {
		ws.mu.Lock()
		delete(ws.clients, clientID)
		ws.mu.Unlock()
		metrics.WebsocketConnections.Dec()
		conn.Close()
		ws.logger.Info("websocket client disconnected", "client_id", clientID)
	}()

	// Clients never send turns over the socket; the read loop only detects
	// disconnects and discards anything else.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				ws.logger.Error("websocket read error", "err", err)
			}
			return
		}
	}
}

func (ws *WebSocketChannel) broadcast(msg wsEvent) {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	for id, client := range ws.clients {
		if err := client.send(msg); err != nil {
			ws.logger.Warn("websocket write failed", "client_id", id, "err", err)
		}
	}
}

func (ws *WebSocketChannel) closeAllClients() {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	for id, client := range ws.clients {
		client.conn.Close()
		delete(ws.clients, id)
	}
}

// Stop shuts the feed server down.
func (ws *WebSocketChannel) Stop() error {
	if ws.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return ws.server.Shutdown(ctx)
}
