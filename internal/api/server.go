package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/medalert/medalert/internal/delivery"
	"github.com/medalert/medalert/internal/models"
	"github.com/medalert/medalert/internal/service"
)

// Server provides the HTTP API for caregivers and companion apps.
type Server struct {
	svc        *service.Service
	controller *delivery.Controller
	logger     *logrus.Logger
	mux        *http.ServeMux
}

// NewServer creates a Server, registers all routes, and returns it.
func NewServer(svc *service.Service, controller *delivery.Controller, logger *logrus.Logger) *Server {
	s := &Server{svc: svc, controller: controller, logger: logger, mux: http.NewServeMux()}
	s.routes()
	return s
}

// Handler returns the http.Handler that can be passed to http.Server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// ---------------------------------------------------------------------------
// Routes
// ---------------------------------------------------------------------------

func (s *Server) routes() {
	// API – Medications
	s.mux.HandleFunc("GET /api/medications", s.handleGetMedications)
	s.mux.HandleFunc("POST /api/medications", s.handleCreateMedication)
	s.mux.HandleFunc("GET /api/medications/{id}", s.handleGetMedication)
	s.mux.HandleFunc("PUT /api/medications/{id}/restock", s.handleRestockMedication)
	s.mux.HandleFunc("DELETE /api/medications/{id}", s.handleRemoveMedication)

	// API – Reminders
	s.mux.HandleFunc("GET /api/reminders", s.handleGetReminders)
	s.mux.HandleFunc("POST /api/reminders/{id}/taken", s.handleMarkTaken)
	s.mux.HandleFunc("POST /api/reminders/{id}/postpone", s.handlePostpone)

	// API – History & escalations
	s.mux.HandleFunc("GET /api/history", s.handleGetHistory)
	s.mux.HandleFunc("GET /api/escalations", s.handleGetEscalations)

	// API – Emergency contacts
	s.mux.HandleFunc("GET /api/contacts", s.handleGetContacts)
	s.mux.HandleFunc("POST /api/contacts", s.handleCreateContact)
	s.mux.HandleFunc("DELETE /api/contacts/{id}", s.handleDeleteContact)

	// Observability
	s.mux.Handle("GET /metrics", promhttp.Handler())
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
}

// ---------------------------------------------------------------------------
// JSON helpers
// ---------------------------------------------------------------------------

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			s.logger.WithError(err).Error("failed to encode JSON response")
		}
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

// decodeJSON reads the request body into dst and returns an error message on
// failure.  The caller should return immediately when ok == false.
func (s *Server) decodeJSON(r *http.Request, dst any) (ok bool, errMsg string) {
	if r.Body == nil {
		return false, "request body is empty"
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return false, fmt.Sprintf("invalid JSON: %v", err)
	}
	return true, ""
}

// pathID extracts the {id} path value and converts it to int64.
func pathID(r *http.Request) (int64, error) {
	raw := r.PathValue("id")
	if raw == "" {
		return 0, fmt.Errorf("missing id in path")
	}
	return strconv.ParseInt(raw, 10, 64)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ---------------------------------------------------------------------------
// Medications
// ---------------------------------------------------------------------------

type createMedicationRequest struct {
	Name          string `json:"name"`
	Quantity      int    `json:"quantity"`
	IntervalHours int    `json:"interval_hours"`
	StartAt       string `json:"start_at"` // RFC 3339, optional
	Notes         string `json:"notes"`
}

type restockRequest struct {
	Quantity int `json:"quantity"`
}

func (s *Server) handleGetMedications(w http.ResponseWriter, r *http.Request) {
	var (
		meds []*models.Medication
		err  error
	)
	if r.URL.Query().Get("only_active") == "true" {
		meds, err = s.svc.Medications.GetActive(r.Context())
	} else {
		meds, err = s.svc.Medications.GetAll(r.Context())
	}
	if err != nil {
		s.logger.WithError(err).Error("failed to get medications")
		s.respondError(w, http.StatusInternalServerError, "failed to get medications")
		return
	}

	s.respondJSON(w, http.StatusOK, meds)
}

func (s *Server) handleGetMedication(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid medication id")
		return
	}

	med, err := s.svc.Medications.GetByID(r.Context(), id)
	if err != nil {
		s.logger.WithError(err).Error("failed to get medication")
		s.respondError(w, http.StatusInternalServerError, "failed to get medication")
		return
	}
	if med == nil {
		s.respondError(w, http.StatusNotFound, "medication not found")
		return
	}

	s.respondJSON(w, http.StatusOK, med)
}

func (s *Server) handleCreateMedication(w http.ResponseWriter, r *http.Request) {
	var req createMedicationRequest
	if ok, msg := s.decodeJSON(r, &req); !ok {
		s.respondError(w, http.StatusBadRequest, msg)
		return
	}

	if strings.TrimSpace(req.Name) == "" {
		s.respondError(w, http.StatusBadRequest, "name is required")
		return
	}

	var startAt *time.Time
	if req.StartAt != "" {
		t, err := time.Parse(time.RFC3339, req.StartAt)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "start_at must be RFC 3339 format")
			return
		}
		startAt = &t
	}

	created, err := s.svc.CreateMedication(r.Context(), req.Name, req.Quantity, req.IntervalHours, startAt, req.Notes)
	if err != nil {
		s.logger.WithError(err).Error("failed to create medication")
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.respondJSON(w, http.StatusCreated, created)
}

func (s *Server) handleRestockMedication(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid medication id")
		return
	}

	var req restockRequest
	if ok, msg := s.decodeJSON(r, &req); !ok {
		s.respondError(w, http.StatusBadRequest, msg)
		return
	}

	med, err := s.svc.RestockMedication(r.Context(), id, req.Quantity)
	if err != nil {
		s.logger.WithError(err).Error("failed to restock medication")
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, med)
}

func (s *Server) handleRemoveMedication(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid medication id")
		return
	}

	if err := s.svc.RemoveMedication(r.Context(), id); err != nil {
		s.logger.WithError(err).Error("failed to remove medication")
		s.respondError(w, http.StatusInternalServerError, "failed to remove medication")
		return
	}

	s.respondJSON(w, http.StatusNoContent, nil)
}

// ---------------------------------------------------------------------------
// Reminders
// ---------------------------------------------------------------------------

func (s *Server) handleGetReminders(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			limit = v
		}
	}

	reminders, err := s.svc.UpcomingReminders(r.Context(), limit)
	if err != nil {
		s.logger.WithError(err).Error("failed to get reminders")
		s.respondError(w, http.StatusInternalServerError, "failed to get reminders")
		return
	}

	s.respondJSON(w, http.StatusOK, reminders)
}

func (s *Server) handleMarkTaken(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid reminder id")
		return
	}

	if err := s.controller.MarkTaken(r.Context(), id); err != nil {
		s.logger.WithError(err).Error("failed to mark reminder taken")
		s.respondError(w, http.StatusInternalServerError, "failed to mark reminder taken")
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]string{"status": "taken"})
}

func (s *Server) handlePostpone(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid reminder id")
		return
	}

	if err := s.controller.Postpone(r.Context(), id); err != nil {
		s.logger.WithError(err).Error("failed to postpone reminder")
		s.respondError(w, http.StatusInternalServerError, "failed to postpone reminder")
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]string{"status": "postponed"})
}

// ---------------------------------------------------------------------------
// History & escalations
// ---------------------------------------------------------------------------

func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			limit = v
		}
	}

	entries, err := s.svc.History.ListRecent(r.Context(), limit)
	if err != nil {
		s.logger.WithError(err).Error("failed to get history")
		s.respondError(w, http.StatusInternalServerError, "failed to get history")
		return
	}

	s.respondJSON(w, http.StatusOK, entries)
}

func (s *Server) handleGetEscalations(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			limit = v
		}
	}

	escalations, err := s.svc.Escalations.ListRecent(r.Context(), limit)
	if err != nil {
		s.logger.WithError(err).Error("failed to get escalations")
		s.respondError(w, http.StatusInternalServerError, "failed to get escalations")
		return
	}

	s.respondJSON(w, http.StatusOK, escalations)
}

// ---------------------------------------------------------------------------
// Emergency contacts
// ---------------------------------------------------------------------------

type createContactRequest struct {
	Name       string `json:"name"`
	Phone      string `json:"phone"`
	Starred    bool   `json:"starred"`
	Configured bool   `json:"configured"`
}

func (s *Server) handleGetContacts(w http.ResponseWriter, r *http.Request) {
	contacts, err := s.svc.Contacts.GetAll(r.Context())
	if err != nil {
		s.logger.WithError(err).Error("failed to get contacts")
		s.respondError(w, http.StatusInternalServerError, "failed to get contacts")
		return
	}

	s.respondJSON(w, http.StatusOK, contacts)
}

func (s *Server) handleCreateContact(w http.ResponseWriter, r *http.Request) {
	var req createContactRequest
	if ok, msg := s.decodeJSON(r, &req); !ok {
		s.respondError(w, http.StatusBadRequest, msg)
		return
	}

	if strings.TrimSpace(req.Name) == "" {
		s.respondError(w, http.StatusBadRequest, "name is required")
		return
	}
	if strings.TrimSpace(req.Phone) == "" {
		s.respondError(w, http.StatusBadRequest, "phone is required")
		return
	}

	contact := &models.EmergencyContact{
		Name:       strings.TrimSpace(req.Name),
		Phone:      strings.TrimSpace(req.Phone),
		Starred:    req.Starred,
		Configured: req.Configured,
	}

	created, err := s.svc.Contacts.Create(r.Context(), contact)
	if err != nil {
		s.logger.WithError(err).Error("failed to create contact")
		s.respondError(w, http.StatusInternalServerError, "failed to create contact")
		return
	}

	s.respondJSON(w, http.StatusCreated, created)
}

func (s *Server) handleDeleteContact(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid contact id")
		return
	}

	if err := s.svc.Contacts.Delete(r.Context(), id); err != nil {
		s.logger.WithError(err).Error("failed to delete contact")
		s.respondError(w, http.StatusInternalServerError, "failed to delete contact")
		return
	}

	s.respondJSON(w, http.StatusNoContent, nil)
}
