package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/aretw0/arbor"
	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/pkg/bus"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// maxIntentBytes bounds a single intent request body.
const maxIntentBytes = 1 << 20

// Server serves a Workspace.
type Server struct {
	Workspace *arbor.Workspace
	Streams   *StreamManager

	metrics http.Handler
	logger  *slog.Logger

	mu    sync.Mutex
	pumps map[string]bus.Subscription
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMetrics mounts h at /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// NewServer creates a server over ws.
func NewServer(ws *arbor.Workspace, opts ...Option) *Server {
	s := &Server{
		Workspace: ws,
		logger:    logging.NewNop(),
		pumps:     make(map[string]bus.Subscription),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.Streams = NewStreamManager(64, s.logger)
	return s
}

// NewHandler creates a new HTTP handler for the workspace.
func NewHandler(ws *arbor.Workspace, opts ...Option) http.Handler {
	return NewServer(ws, opts...).Routes()
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(enableCORS)

	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	r.Get("/components", s.ListComponents)
	r.Get("/templates", s.ListTemplates)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}

	r.Route("/documents", func(r chi.Router) {
		r.Get("/", s.ListDocuments)
		r.Post("/", s.CreateDocument)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.GetDocument)
			r.Delete("/", s.DeleteDocument)
			r.Post("/intents", s.PostIntent)
			r.Get("/events", s.SubscribeEvents)
		})
	})
	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors to status codes.
func (s *Server) writeError(w http.ResponseWriter, op string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrDocumentNotFound), errors.Is(err, domain.ErrTemplateNotFound), errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrDocumentExists):
		status = http.StatusConflict
	case errors.Is(err, bus.ErrUnknownType), errors.Is(err, bus.ErrPayloadMismatch),
		errors.Is(err, domain.ErrMalformedTree), errors.Is(err, domain.ErrInvalidTarget),
		errors.Is(err, domain.ErrUnknownComponentType), errors.Is(err, domain.ErrInvalidProps):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		s.logger.Error(op+" failed", "err", err)
	} else {
		s.logger.Debug(op+" rejected", "err", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// GetHealth handles GET /health.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles GET /info.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"app":            "arbor-http",
		"version":        strings.TrimSpace(arbor.Version),
		"message_types":  bus.Types(),
		"open_documents": s.Workspace.OpenDocuments(),
	})
}

// ListComponents handles GET /components.
func (s *Server) ListComponents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Workspace.Registry().Listed())
}

// ListTemplates handles GET /templates.
func (s *Server) ListTemplates(w http.ResponseWriter, r *http.Request) {
	names, err := s.Workspace.Templates()
	if err != nil {
		s.writeError(w, "ListTemplates", err)
		return
	}
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, names)
}

// ListDocuments handles GET /documents.
func (s *Server) ListDocuments(w http.ResponseWriter, r *http.Request) {
	ids, err := s.Workspace.Documents(r.Context())
	if err != nil {
		s.writeError(w, "ListDocuments", err)
		return
	}
	writeJSON(w, http.StatusOK, ids)
}

// CreateRequest is the body of POST /documents.
type CreateRequest struct {
	ID       string `json:"id"`
	Template string `json:"template,omitempty"`
}

// CreateDocument handles POST /documents.
func (s *Server) CreateDocument(w http.ResponseWriter, r *http.Request) {
	var body CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.ID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}
	d, err := s.Workspace.Create(r.Context(), body.ID, body.Template)
	if err != nil {
		s.writeError(w, "CreateDocument", err)
		return
	}
	writeJSON(w, http.StatusCreated, d.Document())
}

// GetDocument handles GET /documents/{id}. Missing documents are created empty.
func (s *Server) GetDocument(w http.ResponseWriter, r *http.Request) {
	d, err := s.Workspace.Open(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, "GetDocument", err)
		return
	}
	writeJSON(w, http.StatusOK, d.Document())
}

// DeleteDocument handles DELETE /documents/{id}.
func (s *Server) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.stopPump(id)
	if err := s.Workspace.Delete(r.Context(), id); err != nil {
		s.writeError(w, "DeleteDocument", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// IntentResponse is returned once an intent has been handled.
type IntentResponse struct {
	Version  uint64 `json:"version"`
	Selected string `json:"selected,omitempty"`
}

// PostIntent handles POST /documents/{id}/intents. The body is one encoded
// bus message; it is published on the document's bus and the response is
// sent after every resulting message has been handled. An intent the designer
// rejects is reported with the matching error status.
func (s *Server) PostIntent(w http.ResponseWriter, r *http.Request) {
	d, err := s.Workspace.Open(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, "PostIntent", err)
		return
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxIntentBytes))
	if err != nil {
		writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": err.Error()})
		return
	}
	m, err := bus.Decode(data)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if m.Origin == "" {
		m.Origin = "http"
	}
	if err := d.Submit(r.Context(), m); err != nil {
		s.writeError(w, "PostIntent", err)
		return
	}
	if err := d.Flush(r.Context()); err != nil {
		s.writeError(w, "PostIntent", err)
		return
	}
	writeJSON(w, http.StatusAccepted, IntentResponse{Version: d.Version(), Selected: d.Selected()})
}

// SubscribeEvents handles GET /documents/{id}/events (SSE).
// The stream starts with a treeChanged snapshot, then relays every bus
// message. ?types=a,b restricts the relayed types.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	id := chi.URLParam(r, "id")
	d, err := s.Workspace.Open(r.Context(), id)
	if err != nil {
		s.writeError(w, "SubscribeEvents", err)
		return
	}

	var filter map[string]bool
	if raw := r.URL.Query().Get("types"); raw != "" {
		filter = make(map[string]bool)
		for _, t := range strings.Split(raw, ",") {
			filter[strings.TrimSpace(t)] = true
		}
	}

	ch, unsubscribe := s.Streams.Subscribe(id)
	defer func() {
		unsubscribe()
		s.stopIdlePump(id)
	}()
	if err := s.startPump(id, d); err != nil {
		s.writeError(w, "SubscribeEvents", err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	doc := d.Document()
	snapshot, err := bus.Encode(bus.New(&bus.TreeChanged{Version: doc.Version, Base: doc.Version, Tree: &doc.Tree}))
	if err != nil {
		s.logger.Error("SSE snapshot encode failed", "document_id", id, "err", err)
		return
	}
	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	if filter == nil || filter[string(bus.TypeTreeChanged)] {
		fmt.Fprintf(w, "event: %s\ndata: %s\n\n", bus.TypeTreeChanged, snapshot)
	}
	flusher.Flush()
	s.logger.Info("SSE: Subscribing to document", "document_id", id)

	for {
		select {
		case <-r.Context().Done():
			s.logger.Info("SSE Client Disconnected", "document_id", id)
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if filter != nil && !filter[ev.Type] {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, ev.Data)
			flusher.Flush()
		}
	}
}

// startPump relays the document's bus into the stream manager, once per document.
func (s *Server) startPump(id string, d *arbor.Designer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pumps[id]; ok {
		return nil
	}
	sub, err := d.Bus().SubscribeAll(func(m bus.Message) {
		data, err := bus.Encode(m)
		if err != nil {
			s.logger.Warn("SSE encode failed", "document_id", id, "type", m.Type, "err", err)
			return
		}
		s.Streams.Broadcast(id, Event{Type: string(m.Type), Data: string(data)})
	})
	if err != nil {
		return err
	}
	s.pumps[id] = sub
	return nil
}

// stopIdlePump stops the relay of id once no client is left.
func (s *Server) stopIdlePump(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Streams.Count(id) > 0 {
		return
	}
	if sub, ok := s.pumps[id]; ok {
		sub.Unsubscribe()
		delete(s.pumps, id)
	}
}

func (s *Server) stopPump(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sub, ok := s.pumps[id]; ok {
		sub.Unsubscribe()
		delete(s.pumps, id)
	}
}

// Shutdown disconnects every stream.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	for id, sub := range s.pumps {
		sub.Unsubscribe()
		delete(s.pumps, id)
	}
	s.mu.Unlock()
	s.Streams.CloseAll()
	return nil
}
