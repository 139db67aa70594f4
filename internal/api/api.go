// Package api exposes the HTTP surface: event intake, client inspection,
// bot settings, and health.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/clienterra/leadline/internal/knowledge"
	"github.com/clienterra/leadline/internal/messaging"
	"github.com/clienterra/leadline/internal/models"
)

// Store is the persistence surface the API reads and writes.
type Store interface {
	GetClients() ([]models.Client, error)
	GetClientMessages(clientID int64) ([]models.Message, error)
	GetWelcomeTemplate() (string, error)
	SaveWelcomeTemplate(text string) error
}

// HealthReporter exposes the knowledge retriever's availability for the
// health endpoint.
type HealthReporter interface {
	Availability() knowledge.Availability
}

// Server routes HTTP requests to the conversation flow and the store.
type Server struct {
	router    chi.Router
	store     Store
	handler   messaging.EventHandler
	health    HealthReporter
	publisher *messaging.ChannelService
}

// NewServer builds the router. publisher may be nil, in which case the
// async intake endpoint responds 503.
func NewServer(store Store, handler messaging.EventHandler, health HealthReporter, publisher *messaging.ChannelService) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		store:     store,
		handler:   handler,
		health:    health,
		publisher: publisher,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recoverer)

	s.router.Get("/health", s.handleHealth)
	s.router.Post("/events", s.handleEvent)
	s.router.Post("/events/async", s.handleEventAsync)
	s.router.Get("/clients", s.handleListClients)
	s.router.Get("/clients/{clientID}/messages", s.handleClientMessages)
	s.router.Put("/settings/welcome", s.handleSaveWelcome)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, resp models.APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("api: failed to encode response", "error", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, models.Success(map[string]string{
		"knowledge": s.health.Availability().String(),
	}))
}

// eventReply is the result body for synchronous event intake.
type eventReply struct {
	Reply string `json:"reply"`
}

func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	var ev models.InboundEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		writeJSON(w, http.StatusBadRequest, models.Error("invalid JSON body"))
		return
	}
	if err := ev.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	reply, err := s.handler.HandleEvent(r.Context(), ev)
	if err != nil {
		slog.Error("api: event handling failed", "error", err, "external_id", ev.User.ID)
		writeJSON(w, http.StatusInternalServerError, models.Error("failed to process event"))
		return
	}
	writeJSON(w, http.StatusOK, models.Success(eventReply{Reply: reply}))
}

func (s *Server) handleEventAsync(w http.ResponseWriter, r *http.Request) {
	if s.publisher == nil {
		writeJSON(w, http.StatusServiceUnavailable, models.Error("async intake not enabled"))
		return
	}
	var ev models.InboundEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		writeJSON(w, http.StatusBadRequest, models.Error("invalid JSON body"))
		return
	}
	if err := ev.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}
	s.publisher.Publish(ev)
	writeJSON(w, http.StatusAccepted, models.Success(nil))
}

func (s *Server) handleListClients(w http.ResponseWriter, r *http.Request) {
	clients, err := s.store.GetClients()
	if err != nil {
		slog.Error("api: failed to list clients", "error", err)
		writeJSON(w, http.StatusInternalServerError, models.Error("failed to list clients"))
		return
	}
	writeJSON(w, http.StatusOK, models.Success(clients))
}

func (s *Server) handleClientMessages(w http.ResponseWriter, r *http.Request) {
	clientID, err := strconv.ParseInt(chi.URLParam(r, "clientID"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, models.Error("invalid client ID"))
		return
	}
	messages, err := s.store.GetClientMessages(clientID)
	if err != nil {
		slog.Error("api: failed to fetch messages", "error", err, "client_id", clientID)
		writeJSON(w, http.StatusInternalServerError, models.Error("failed to fetch messages"))
		return
	}
	writeJSON(w, http.StatusOK, models.Success(messages))
}

// welcomeRequest is the body for updating the welcome template.
type welcomeRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleSaveWelcome(w http.ResponseWriter, r *http.Request) {
	var req welcomeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.Error("invalid JSON body"))
		return
	}
	if req.Text == "" {
		writeJSON(w, http.StatusBadRequest, models.Error("text must not be empty"))
		return
	}
	if err := s.store.SaveWelcomeTemplate(req.Text); err != nil {
		slog.Error("api: failed to save welcome template", "error", err)
		writeJSON(w, http.StatusInternalServerError, models.Error("failed to save welcome template"))
		return
	}
	writeJSON(w, http.StatusOK, models.Success(nil))
}
