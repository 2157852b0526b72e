// Package server exposes the archive over a small JSON HTTP API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/eddmann/whatsapp-archive/internal/archive"
	"github.com/eddmann/whatsapp-archive/internal/metrics"
	"github.com/eddmann/whatsapp-archive/internal/store"
)

const RequestIDHeader = "X-Request-ID"

// Server is the HTTP API server.
type Server struct {
	svc        *archive.Service
	log        zerolog.Logger
	httpServer *http.Server
	startTime  time.Time
}

// New creates a server for svc listening on addr.
func New(addr string, svc *archive.Service, log zerolog.Logger) *Server {
	s := &Server{svc: svc, log: log, startTime: time.Now()}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.healthHandler)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/messages", s.listMessagesHandler)
	mux.HandleFunc("GET /api/messages/{id}/context", s.messageContextHandler)
	mux.HandleFunc("GET /api/chats", s.listChatsHandler)
	mux.HandleFunc("GET /api/chats/{jid}", s.getChatHandler)
	mux.HandleFunc("GET /api/contacts", s.listContactsHandler)
	mux.HandleFunc("GET /api/contacts/search", s.searchContactsHandler)
	mux.HandleFunc("GET /api/contacts/{jid}", s.getContactHandler)
	mux.HandleFunc("GET /api/nicknames", s.listNicknamesHandler)
	mux.HandleFunc("PUT /api/nicknames/{jid}", s.setNicknameHandler)
	mux.HandleFunc("DELETE /api/nicknames/{jid}", s.removeNicknameHandler)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.middleware(mux),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.httpServer.Addr).Msg("HTTP server starting")
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.log.Info().Msg("HTTP server shutting down")
		return s.httpServer.Shutdown(shutdownCtx)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := r.Header.Get(RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		metrics.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
		s.log.Debug().
			Str("request_id", id).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

// HealthResponse is the /healthz body.
type HealthResponse struct {
	Status string `json:"status"`
	Uptime string `json:"uptime"`
	Error  string `json:"error,omitempty"`
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", Uptime: time.Since(s.startTime).Round(time.Second).String()}
	if err := s.svc.Ping(r.Context()); err != nil {
		resp.Status = "unavailable"
		resp.Error = err.Error()
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) listMessagesHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := archive.DefaultMessageFilter()
	f.After = q.Get("after")
	f.Before = q.Get("before")
	f.Sender = q.Get("sender")
	f.ChatJID = q.Get("chat_jid")
	f.Query = q.Get("query")

	var err error
	if f.Limit, err = intParam(q.Get("limit"), "limit", f.Limit); err != nil {
		s.writeError(w, err)
		return
	}
	if f.Page, err = intParam(q.Get("page"), "page", 0); err != nil {
		s.writeError(w, err)
		return
	}
	if f.IncludeContext, err = boolParam(q.Get("include_context"), "include_context", false); err != nil {
		s.writeError(w, err)
		return
	}
	if f.ContextBefore, err = intParam(q.Get("context_before"), "context_before", f.ContextBefore); err != nil {
		s.writeError(w, err)
		return
	}
	if f.ContextAfter, err = intParam(q.Get("context_after"), "context_after", f.ContextAfter); err != nil {
		s.writeError(w, err)
		return
	}

	msgs, err := s.svc.ListMessages(r.Context(), f)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

func (s *Server) messageContextHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	before, err := intParam(q.Get("before"), "before", 5)
	if err != nil {
		s.writeError(w, err)
		return
	}
	after, err := intParam(q.Get("after"), "after", 5)
	if err != nil {
		s.writeError(w, err)
		return
	}

	mc, err := s.svc.GetContext(r.Context(), r.PathValue("id"), q.Get("chat_jid"), before, after)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mc)
}

func (s *Server) listChatsHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := archive.DefaultChatFilter()
	f.Query = q.Get("query")
	if v := q.Get("sort_by"); v != "" {
		f.SortBy = v
	}

	var err error
	if f.Limit, err = intParam(q.Get("limit"), "limit", f.Limit); err != nil {
		s.writeError(w, err)
		return
	}
	if f.Page, err = intParam(q.Get("page"), "page", 0); err != nil {
		s.writeError(w, err)
		return
	}
	if f.IncludeLastMessage, err = boolParam(q.Get("include_last_message"), "include_last_message", true); err != nil {
		s.writeError(w, err)
		return
	}

	chats, err := s.svc.ListChats(r.Context(), f)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, chats)
}

func (s *Server) getChatHandler(w http.ResponseWriter, r *http.Request) {
	includeLast, err := boolParam(r.URL.Query().Get("include_last_message"), "include_last_message", true)
	if err != nil {
		s.writeError(w, err)
		return
	}
	chat, err := s.svc.GetChat(r.Context(), r.PathValue("jid"), includeLast)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, chat)
}

func (s *Server) listContactsHandler(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r.URL.Query().Get("limit"), "limit", 0)
	if err != nil {
		s.writeError(w, err)
		return
	}
	contacts, err := s.svc.ListAllContacts(r.Context(), limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, contacts)
}

func (s *Server) searchContactsHandler(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("query"))
	if query == "" {
		s.writeError(w, fmt.Errorf("query is required: %w", store.ErrInvalidArgument))
		return
	}
	contacts, err := s.svc.SearchContacts(r.Context(), query)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, contacts)
}

func (s *Server) getContactHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("jid")
	c, err := s.svc.ResolveContact(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if c == nil {
		s.writeError(w, fmt.Errorf("contact %q: %w", id, store.ErrNotFound))
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) listNicknamesHandler(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.ListNicknames(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

type nicknameRequest struct {
	Nickname string `json:"nickname"`
}

func (s *Server) setNicknameHandler(w http.ResponseWriter, r *http.Request) {
	var req nicknameRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		s.writeError(w, fmt.Errorf("invalid request body: %v: %w", err, store.ErrInvalidArgument))
		return
	}
	res, err := s.svc.SetNickname(r.Context(), r.PathValue("jid"), req.Nickname)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) removeNicknameHandler(w http.ResponseWriter, r *http.Request) {
	res, err := s.svc.RemoveNickname(r.Context(), r.PathValue("jid"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

// StatusFor maps an archive error to an HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case store.IsStorage(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		s.log.Error().Err(err).Int("status", status).Msg("request failed")
	}
	writeJSON(w, status, ErrorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func intParam(raw, name string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", name, store.ErrInvalidArgument)
	}
	return n, nil
}

func boolParam(raw, name string, def bool) (bool, error) {
	if raw == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean: %w", name, store.ErrInvalidArgument)
	}
	return b, nil
}
