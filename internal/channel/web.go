// Package channel exposes the conversation engine over the network: a JSON
// HTTP API for turns and history, and a WebSocket feed for live transcript
// updates.
package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"duochat/internal/domain"
	"duochat/internal/orchestrator"
)

const (
	maxBodySize       = 1 << 20 // 1MB
	readHeaderTimeout = 10 * time.Second
)

// TurnEngine is the slice of the orchestrator the web channel needs.
type TurnEngine interface {
	HandleTurn(ctx context.Context, content string, tags []string) (*orchestrator.TurnResult, error)
	History() []domain.Message
	Reset()
}

// Web serves the JSON API.
type Web struct {
	host           string
	port           int
	allowedOrigins []string
	metricsPath    string
	engine         TurnEngine
	logger         *slog.Logger
	server         *http.Server
}

// WebConfig configures the web channel.
type WebConfig struct {
	Host           string
	Port           int
	AllowedOrigins []string
	MetricsPath    string // empty disables the metrics endpoint
	Engine         TurnEngine
	Logger         *slog.Logger
}

func NewWeb(cfg WebConfig) *Web {
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 3001
	}
	return &Web{
		host:           cfg.Host,
		port:           cfg.Port,
		allowedOrigins: cfg.AllowedOrigins,
		metricsPath:    cfg.MetricsPath,
		engine:         cfg.Engine,
		logger:         cfg.Logger,
	}
}

func (w *Web) Name() string { return "web" }

// Handler builds the full HTTP handler with middleware applied. Exposed so
// tests can drive the API without a listening socket.
func (w *Web) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /send", w.handleSend)
	mux.HandleFunc("GET /history", w.handleHistory)
	mux.HandleFunc("POST /reset", w.handleReset)
	mux.HandleFunc("GET /status", w.handleStatus)
	if w.metricsPath != "" {
		mux.Handle("GET "+w.metricsPath, promhttp.Handler())
	}
	return w.withRecovery(w.withCORS(mux))
}

// Start runs the server until ctx is canceled.
func (w *Web) Start(ctx context.Context) error {
	w.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", w.host, w.port),
		Handler:           w.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	w.logger.Info("web server starting", "host", w.host, "port", w.port)

	errCh := make(chan error, 1)
	go func() {
		if err := w.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return w.server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// Stop shuts the server down gracefully.
func (w *Web) Stop() error {
	if w.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return w.server.Shutdown(ctx)
}

// sendRequest is the POST /send body.
type sendRequest struct {
	Content string   `json:"content"`
	Tags    []string `json:"tags"`
}

// wireReply is one per-tag slot of a /send response.
type wireReply struct {
	ID      string `json:"id"`
	Author  string `json:"author"`
	Content string `json:"content"`
	TS      int64  `json:"ts"`
	OK      bool   `json:"ok"`
}

// wireMessage is a history entry on the wire. Timestamps are unix millis.
type wireMessage struct {
	ID      string `json:"id"`
	Author  string `json:"author"`
	Role    string `json:"role"`
	Content string `json:"content"`
	TS      int64  `json:"ts"`
}

func toWire(msg domain.Message) wireMessage {
	return wireMessage{
		ID:      msg.ID,
		Author:  string(msg.Author),
		Role:    string(msg.Role),
		Content: msg.Content,
		TS:      msg.Timestamp.UnixMilli(),
	}
}

func (w *Web) handleSend(rw http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		writeError(rw, http.StatusBadRequest, "cannot read request body")
		return
	}

	var req sendRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(rw, http.StatusBadRequest, "invalid JSON body")
		return
	}

	result, err := w.engine.HandleTurn(r.Context(), req.Content, req.Tags)
	if err != nil {
		switch {
		case errors.Is(err, orchestrator.ErrEmptyContent), errors.Is(err, orchestrator.ErrNoTags):
			writeError(rw, http.StatusBadRequest, err.Error())
		default:
			w.logger.Error("turn failed", "err", err)
			writeError(rw, http.StatusInternalServerError, "internal error")
		}
		return
	}

	replies := make([]wireReply, 0, len(result.Outcomes))
	for _, out := range result.Outcomes {
		replies = append(replies, wireReply{
			ID:      out.ID,
			Author:  string(out.Author),
			Content: out.Content,
			TS:      out.Timestamp.UnixMilli(),
			OK:      out.OK,
		})
	}

	writeJSON(rw, http.StatusOK, map[string]any{
		"ok":            true,
		"userMessageId": result.UserMessageID,
		"replies":       replies,
	})
}

func (w *Web) handleHistory(rw http.ResponseWriter, r *http.Request) {
	history := w.engine.History()
	messages := make([]wireMessage, 0, len(history))
	for _, msg := range history {
		messages = append(messages, toWire(msg))
	}
	writeJSON(rw, http.StatusOK, map[string]any{"messages": messages})
}

func (w *Web) handleReset(rw http.ResponseWriter, r *http.Request) {
	w.engine.Reset()
	w.logger.Info("conversation reset")
	writeJSON(rw, http.StatusOK, map[string]any{"ok": true})
}

func (w *Web) handleStatus(rw http.ResponseWriter, r *http.Request) {
	writeJSON(rw, http.StatusOK, map[string]any{
		"status":   "ok",
		"messages": len(w.engine.History()),
	})
}

// withCORS answers preflight requests and stamps allowed responses. An empty
// origin list or a "*" entry allows any origin.
func (w *Web) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && w.originAllowed(origin) {
			rw.Header().Set("Access-Control-Allow-Origin", origin)
			rw.Header().Set("Vary", "Origin")
			rw.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			rw.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}
		if r.Method == http.MethodOptions {
			rw.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(rw, r)
	})
}

func (w *Web) originAllowed(origin string) bool {
	if len(w.allowedOrigins) == 0 {
		return true
	}
	for _, allowed := range w.allowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

// withRecovery turns a handler panic into a 500 instead of killing the
// connection and taking the process down with it.
func (w *Web) withRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				w.logger.Error("handler panic", "path", r.URL.Path, "panic", rec)
				writeError(rw, http.StatusInternalServerError, "internal error")
			}
		}()
		next.ServeHTTP(rw, r)
	})
}

func writeJSON(rw http.ResponseWriter, status int, payload any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	json.NewEncoder(rw).Encode(payload)
}

func writeError(rw http.ResponseWriter, status int, message string) {
	writeJSON(rw, status, map[string]any{"ok": false, "error": message})
}
