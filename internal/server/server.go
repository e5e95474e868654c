package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io/fs"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/etymology/winderconsole/internal/store"
	"github.com/etymology/winderconsole/internal/view"
)

const (
	// sseWriteTimeout bounds a single SSE write so a stalled client cannot
	// hold its handler past shutdown.
	sseWriteTimeout = 5 * time.Second

	shutdownTimeout = 5 * time.Second
	maxRequestBody  = 64 << 10

	defaultTitle     = "Winder Console"
	titlePlaceholder = "{{.Title}}"
)

// Status is the console state reported by /api/state.
type Status struct {
	Page         string   `json:"page"`
	Pages        []string `json:"pages"`
	Connectivity string   `json:"connectivity"`
	Stylesheets  []string `json:"stylesheets"`
	Slots        []string `json:"slots"`
	Queries      int      `json:"queries"`
}

// Controller runs requests against the console. Implementations hand each
// call to the loop goroutine and wait for it.
type Controller interface {
	Status(ctx context.Context) (Status, error)
	Action(ctx context.Context, id, value string) error
	Navigate(ctx context.Context, page, slot string) error
	Command(ctx context.Context, expr string) (any, error)
	Login(ctx context.Context, password string) (bool, error)
}

// Fetcher reads page assets.
type Fetcher interface {
	Fetch(ctx context.Context, path string) ([]byte, error)
}

// Server handles HTTP requests for the console.
type Server struct {
	store      store.Store
	control    Controller
	pages      Fetcher
	port       int
	httpServer *http.Server
	assets     fs.FS
	title      string
	logger     *slog.Logger
}

// NewServer creates a [Server]. assets holds the console shell at
// assets/index.html and may be nil; pages may be nil when no page assets
// are served.
func NewServer(st store.Store, control Controller, pages Fetcher, port int, assets fs.FS, title string, logger *slog.Logger) *Server {
	return &Server{
		store:   st,
		control: control,
		pages:   pages,
		port:    port,
		assets:  assets,
		title:   title,
		logger:  logger,
	}
}

// Router returns the server's routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleDashboard)
	r.Get("/pages/*", s.handlePageAsset)

	r.Route("/api", func(r chi.Router) {
		r.Get("/state", s.handleState)
		r.Get("/sse", s.handleSSE)
		r.Post("/action", s.handleAction)
		r.Post("/navigate", s.handleNavigate)
		r.Post("/command", s.handleCommand)
		r.Post("/login", s.handleLogin)
	})
	return r
}

// Start begins serving HTTP requests in a background goroutine.
//
// Start returns once the listener is bound. The server shuts down when ctx
// is cancelled. Returns an error if the port cannot be bound.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind to port %d: %w", s.port, err)
	}

	s.httpServer = &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		// request contexts derive from ctx, so SSE handlers end on shutdown
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("http server error", "error", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("http server shutdown error", "error", err)
		}
	}()

	return nil
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if s.assets == nil {
		http.Error(w, "Console not found", http.StatusInternalServerError)
		return
	}
	content, err := fs.ReadFile(s.assets, "assets/index.html")
	if err != nil {
		http.Error(w, "Console not found", http.StatusInternalServerError)
		return
	}

	title := s.title
	if title == "" {
		title = defaultTitle
	}
	rendered := strings.ReplaceAll(string(content), titlePlaceholder, html.EscapeString(title))

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err = w.Write([]byte(rendered)); err != nil {
		s.logger.Error("failed to write console response", "error", err)
	}
}

// handlePageAsset serves stylesheets and other files next to page markup.
// Module descriptors are not served.
func (s *Server) handlePageAsset(w http.ResponseWriter, r *http.Request) {
	name := path.Clean("/" + chi.URLParam(r, "*"))
	if s.pages == nil || name == "/" || path.Ext(name) == ".yaml" {
		http.NotFound(w, r)
		return
	}
	body, err := s.pages.Fetch(r.Context(), strings.TrimPrefix(name, "/"))
	if err != nil {
		s.logger.Debug("page asset not found", "path", name, "error", err.Error())
		http.NotFound(w, r)
		return
	}
	if ct := mime.TypeByExtension(path.Ext(name)); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	_, _ = w.Write(body)
}

type stateResponse struct {
	Status  Status         `json:"status"`
	Changes []store.Change `json:"changes"`
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	st, err := s.control.Status(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, stateResponse{Status: st, Changes: s.store.GetAll()})
}

type actionRequest struct {
	ID    string `json:"id"`
	Value string `json:"value"`
}

func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	var req actionRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.ID == "" {
		http.Error(w, "id is required", http.StatusBadRequest)
		return
	}
	if err := s.control.Action(r.Context(), req.ID, req.Value); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type navigateRequest struct {
	Page string `json:"page"`
	Slot string `json:"slot"`
}

func (s *Server) handleNavigate(w http.ResponseWriter, r *http.Request) {
	var req navigateRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Page == "" {
		http.Error(w, "page is required", http.StatusBadRequest)
		return
	}
	if err := s.control.Navigate(r.Context(), req.Page, req.Slot); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

type commandRequest struct {
	Expr string `json:"expr"`
}

type commandResponse struct {
	Value any `json:"value"`
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	var req commandRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Expr == "" {
		http.Error(w, "expr is required", http.StatusBadRequest)
		return
	}
	v, err := s.control.Command(r.Context(), req.Expr)
	if err != nil {
		s.logger.Warn("command failed", "error", err.Error())
		http.Error(w, "remote command failed", http.StatusBadGateway)
		return
	}
	s.writeJSON(w, http.StatusOK, commandResponse{Value: v})
}

type loginRequest struct {
	Password string `json:"password"`
}

type loginResponse struct {
	OK bool `json:"ok"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !s.decode(w, r, &req) {
		return
	}
	ok, err := s.control.Login(r.Context(), req.Password)
	if err != nil {
		s.logger.Warn("login failed", "error", err.Error())
		http.Error(w, "remote login failed", http.StatusBadGateway)
		return
	}
	s.writeJSON(w, http.StatusOK, loginResponse{OK: ok})
}

// decode reads a JSON request body, answering 400 on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

// writeError maps controller errors to status codes.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, view.ErrUnknownControl), errors.Is(err, view.ErrNoHandler):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, view.ErrControlDisabled):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		http.Error(w, "request cancelled", http.StatusServiceUnavailable)
	default:
		s.logger.Error("request failed", "error", err.Error())
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

// handleSSE streams document changes via Server-Sent Events. The current
// snapshot is sent first.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	if _, ok := w.(http.Flusher); !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	rc := http.NewResponseController(w)
	deadlinesSupported := true

	writeAndFlush := func(data []byte) error {
		if deadlinesSupported {
			if err := rc.SetWriteDeadline(time.Now().Add(sseWriteTimeout)); err != nil {
				s.logger.Warn("sse write deadlines not supported", "error", err)
				deadlinesSupported = false
			}
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return err
		}
		return rc.Flush()
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	for {
		ch := s.store.Subscribe()
		behind := s.stream(r.Context(), ch, writeAndFlush)
		s.store.Unsubscribe(ch)
		if !behind {
			return
		}
		s.logger.Debug("sse client fell behind, resending snapshot")
	}
}

// stream sends the store snapshot and then every change received on ch. It
// reports whether ch was closed because the client fell behind, in which
// case the caller resubscribes and streams a fresh snapshot.
func (s *Server) stream(ctx context.Context, ch <-chan store.Change, send func([]byte) error) bool {
	for _, change := range s.store.GetAll() {
		data, err := json.Marshal(change)
		if err != nil {
			continue
		}
		if err := send(data); err != nil {
			return false
		}
	}

	for {
		select {
		case change, ok := <-ch:
			if !ok {
				return true
			}
			data, err := json.Marshal(change)
			if err != nil {
				continue
			}
			if err := send(data); err != nil {
				return false
			}
		case <-ctx.Done():
			return false
		}
	}
}
