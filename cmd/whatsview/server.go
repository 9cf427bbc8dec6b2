package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"whatsview/internal/middleware"
	"whatsview/internal/models"
	"whatsview/internal/service"
	"whatsview/internal/ws"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

type Server struct {
	router *mux.Router
	logger *logrus.Logger
	cfg    models.ServerConfig
	chat   service.ChatService
	hub    *ws.Hub
	server *http.Server
}

func NewServer(cfg models.ServerConfig, chat service.ChatService, hub *ws.Hub, logger *logrus.Logger) *Server {
	s := &Server{
		router: mux.NewRouter(),
		logger: logger,
		cfg:    cfg,
		chat:   chat,
		hub:    hub,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", s.handleHealth()).Methods(http.MethodGet)
	api.HandleFunc("/conversations", s.handleConversations()).Methods(http.MethodGet)
	api.HandleFunc("/messages", s.handleMessages()).Methods(http.MethodGet)
	api.HandleFunc("/send", s.handleSend()).Methods(http.MethodPost)

	s.router.HandleFunc("/ws", s.hub.Subscribe).Methods(http.MethodGet)
}

// Handler returns the full middleware-wrapped handler. CORS and
// observability wrap outside the router so preflight requests to
// unmatched routes are still answered.
func (s *Server) Handler() http.Handler {
	handler := middleware.Observability(s.logger)(s.router)
	return middleware.CORS(s.cfg.CORSOrigin)(handler)
}

func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Port),
		Handler:      s.Handler(),
		ReadTimeout:  time.Duration(s.cfg.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(s.cfg.WriteTimeoutSec) * time.Second,
		IdleTimeout:  time.Duration(s.cfg.IdleTimeoutSec) * time.Second,
	}

	s.logger.Infof("Starting server on port %d", s.cfg.Port)
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	}
}

func (s *Server) handleConversations() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		summaries, err := s.chat.Conversations(r.Context())
		if err != nil {
			s.logger.WithError(err).Error("Failed to aggregate conversations")
			s.writeError(w, http.StatusInternalServerError, "failed to load conversations")
			return
		}
		s.writeJSON(w, http.StatusOK, summaries)
	}
}

func (s *Server) handleMessages() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		waID := r.URL.Query().Get("wa_id")
		if waID == "" {
			s.writeError(w, http.StatusBadRequest, "wa_id is required")
			return
		}

		messages, err := s.chat.History(r.Context(), waID)
		if err != nil {
			s.logger.WithError(err).WithField(service.LogFieldWaID, waID).Error("Failed to load message history")
			s.writeError(w, http.StatusInternalServerError, "failed to load messages")
			return
		}
		s.writeJSON(w, http.StatusOK, messages)
	}
}

type sendRequest struct {
	WaID string `json:"waId"`
	Text string `json:"text"`
}

func (s *Server) handleSend() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req sendRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.WaID == "" || req.Text == "" {
			s.writeError(w, http.StatusBadRequest, "waId and text are required")
			return
		}

		msg, err := s.chat.Send(r.Context(), req.WaID, req.Text)
		if err != nil {
			s.logger.WithError(err).WithField(service.LogFieldWaID, req.WaID).Error("Failed to send message")
			s.writeError(w, http.StatusInternalServerError, "failed to send message")
			return
		}
		s.writeJSON(w, http.StatusCreated, msg)
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.WithError(err).Error("Failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
