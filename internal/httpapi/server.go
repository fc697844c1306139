// Package httpapi serves the chat engine over HTTP: POST /chat runs a turn, the GET endpoints expose
// posts, the queue and thread state, and /stream pushes turn events over SSE.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/ankittk/postcraft/internal/app"
	"github.com/ankittk/postcraft/internal/checkpoint"
	"github.com/ankittk/postcraft/internal/review"
	"github.com/ankittk/postcraft/internal/router"
	"github.com/ankittk/postcraft/internal/scheduler"
	"github.com/ankittk/postcraft/pkg/models"
)

// ServerOptions configures the HTTP server. A zero value serves every route without auth or CORS.
type ServerOptions struct {
	Addr   string
	Dev    bool   // answer CORS preflights for a front-end on another origin
	APIKey string // required on every route except /health and /metrics

	// MetricsHandler serves /metrics; nil falls back to plain post and queue counts.
	MetricsHandler http.Handler
	UseOtelHTTP    bool
}

// Server is the HTTP front-end of one service graph.
type Server struct {
	HTTP *http.Server
	Hub  *SSEHub
	svc  *app.App
}

// NewServer registers the routes and subscribes the SSE hub to the engine's turn events.
func NewServer(svc *app.App, opts ServerOptions) *Server {
	hub := NewSSEHub()
	svc.Engine.Emit = hub.Publish
	s := &Server{Hub: hub, svc: svc}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"ok": true, "mode": svc.Mode()})
	})
	if opts.MetricsHandler != nil {
		mux.Handle("GET /metrics", opts.MetricsHandler)
	} else {
		mux.HandleFunc("GET /metrics", s.handleBasicMetrics)
	}
	mux.HandleFunc("GET /stream", hub.Handler())
	mux.HandleFunc("POST /chat", s.handleChat)
	mux.HandleFunc("GET /posts", s.handlePosts)
	mux.HandleFunc("GET /queue", s.handleQueue)
	mux.HandleFunc("GET /threads/{id}", s.handleThread)
	mux.HandleFunc("GET /help", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"help": scheduler.HelpText})
	})

	mw := []middleware{logRequests}
	if opts.Dev {
		mw = append(mw, allowCORS)
	}
	if opts.APIKey != "" {
		mw = append(mw, requireAPIKey(opts.APIKey, "/health", "/metrics"))
	}
	mw = append(mw, limitBodies(models.DefaultMaxRequestBodyBytes))
	handler := chain(mux, mw...)
	if opts.UseOtelHTTP {
		handler = otelhttp.NewHandler(handler, "postcraft")
	}
	s.HTTP = &http.Server{
		Addr:              opts.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.HTTP.ListenAndServe()
	}()
	slog.Info("http server starting", "addr", s.HTTP.Addr)
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = s.HTTP.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var body models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if strings.TrimSpace(body.Message) == "" {
		writeJSONError(w, http.StatusBadRequest, "message required")
		return
	}
	if body.ThreadID == "" {
		body.ThreadID = uuid.NewString()
	}
	if isHelp(body.Message) {
		pending, err := s.draftPending(r, body.ThreadID)
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if !pending {
			writeJSON(w, models.ChatResponse{ThreadID: body.ThreadID, Route: models.RouteEnd, Result: scheduler.HelpText, Reply: scheduler.HelpText})
			return
		}
	}
	c, err := s.svc.Engine.RunTurn(r.Context(), body.ThreadID, body.Message)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, models.ChatResponse{
		ThreadID:     body.ThreadID,
		Route:        c.Route,
		Result:       c.Result,
		Reply:        review.Reply(c),
		Draft:        c.Draft,
		Channel:      c.Channel,
		ImageURL:     c.ImageURL,
		WaitingForQA: c.WaitingForQA,
	})
}

func (s *Server) handlePosts(w http.ResponseWriter, r *http.Request) {
	ch, ok := channelParam(r)
	if !ok {
		writeJSONError(w, http.StatusBadRequest, "unknown channel")
		return
	}
	posts, err := s.svc.Posts.LoadAll(r.Context())
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]models.Post, 0, len(posts))
	for _, p := range posts {
		if ch == "" || models.SameChannel(p.Channel, ch) {
			out = append(out, p)
		}
	}
	writeJSON(w, out)
}

func (s *Server) handleQueue(w http.ResponseWriter, r *http.Request) {
	ch, ok := channelParam(r)
	if !ok {
		writeJSONError(w, http.StatusBadRequest, "unknown channel")
		return
	}
	rows, err := s.svc.Queue.List(r.Context(), ch)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if rows == nil {
		rows = []models.ScheduleEntry{}
	}
	writeJSON(w, rows)
}

func isHelp(msg string) bool {
	msg = strings.TrimSpace(msg)
	return msg == "?" || strings.EqualFold(msg, "help")
}

// draftPending reports whether the thread is waiting on the approval gate, where every input belongs to the gate.
func (s *Server) draftPending(r *http.Request, threadID string) (bool, error) {
	c, err := checkpoint.Load(r.Context(), s.svc.Checkpoints, threadID)
	if errors.Is(err, checkpoint.ErrNotFound) {
		return false, nil
	}
	return c.WaitingForQA, err
}

// handleThread serves GET /threads/{id}.
func (s *Server) handleThread(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	c, err := checkpoint.Load(r.Context(), s.svc.Checkpoints, id)
	if errors.Is(err, checkpoint.ErrNotFound) {
		writeJSONError(w, http.StatusNotFound, "thread not found")
		return
	}
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, models.Thread{ThreadID: id, Context: c})
}

// handleBasicMetrics is the Prometheus text fallback when OTel is disabled.
func (s *Server) handleBasicMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	posts, _ := s.svc.Posts.LoadAll(r.Context())
	rows, _ := s.svc.Queue.List(r.Context(), "")
	_, _ = fmt.Fprintf(w, "# TYPE postcraft_posts_total gauge\n")
	_, _ = fmt.Fprintf(w, "postcraft_posts_total %d\n", len(posts))
	_, _ = fmt.Fprintf(w, "# TYPE postcraft_scheduled_total gauge\n")
	_, _ = fmt.Fprintf(w, "postcraft_scheduled_total %d\n", len(rows))
}

func channelParam(r *http.Request) (models.Channel, bool) {
	raw := r.URL.Query().Get("channel")
	if raw == "" {
		return "", true
	}
	return router.NormalizeChannel(raw)
}
