// Package server exposes review submission, execution progress and
// escalation over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ShayCichocki/qualgate/internal/escalation"
	"github.com/ShayCichocki/qualgate/internal/executor"
	"github.com/ShayCichocki/qualgate/internal/logging"
	"github.com/ShayCichocki/qualgate/internal/pipeline"
	"github.com/ShayCichocki/qualgate/internal/validator"
	"github.com/ShayCichocki/qualgate/pkg/models"
)

// Service is the part of the pipeline the HTTP surface drives.
type Service interface {
	PendingReviews(executionID string) []*validator.Ticket
	Review(ticketID string) (*validator.Ticket, bool)
	Queue() *validator.ReviewQueue
	Execution(ctx context.Context, executionID string) (*models.ChecklistExecutionResult, error)
	Progress(executionID string) (executor.Snapshot, bool)
	ResumeExecution(ctx context.Context, executionID string) (*models.ChecklistExecutionResult, error)
	Escalate(ctx context.Context, assignmentID, reason string, urgency models.Urgency) (*models.EscalationRecord, error)
}

// Config for the HTTP handler.
type Config struct {
	Service Service
	Logger  logging.Logger
}

type apiErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type apiError struct {
	Error apiErrorBody `json:"error"`
}

type handler struct {
	svc    Service
	logger logging.Logger
}

// New returns the HTTP handler.
func New(cfg Config) http.Handler {
	h := &handler{svc: cfg.Service, logger: cfg.Logger}
	if h.logger == nil {
		h.logger = logging.NopLogger()
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", h.health)
	r.Route("/reviews", func(r chi.Router) {
		r.Get("/", h.listReviews)
		r.Get("/{id}", h.getReview)
		r.Post("/{id}", h.submitReview)
	})
	r.Route("/executions", func(r chi.Router) {
		r.Get("/{id}", h.getExecution)
		r.Post("/{id}/resume", h.resumeExecution)
	})
	r.Post("/escalations", h.escalate)
	return r
}

// ListenAndServe serves handler on addr until ctx is cancelled.
func ListenAndServe(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) listReviews(w http.ResponseWriter, r *http.Request) {
	tickets := h.svc.PendingReviews(r.URL.Query().Get("execution_id"))
	if tickets == nil {
		tickets = []*validator.Ticket{}
	}
	writeJSON(w, http.StatusOK, tickets)
}

func (h *handler) getReview(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	t, ok := h.svc.Review(id)
	if !ok {
		h.writeError(w, fmt.Errorf("%w: %s", validator.ErrTicketNotFound, id))
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *handler) submitReview(w http.ResponseWriter, r *http.Request) {
	var sub validator.InboxSubmission
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{apiErrorBody{"bad_request", "invalid JSON body: " + err.Error()}})
		return
	}
	sub.TicketID = chi.URLParam(r, "id")

	t, err := sub.Apply(r.Context(), h.svc.Queue())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.logger.Log("[server] review %s answered by %s", t.ID, t.Reviewer)
	writeJSON(w, http.StatusOK, t)
}

// getExecution returns live progress while the execution runs, and the
// stored result afterwards.
func (h *handler) getExecution(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if snap, ok := h.svc.Progress(id); ok {
		writeJSON(w, http.StatusOK, snap)
		return
	}
	res, err := h.svc.Execution(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handler) resumeExecution(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.ResumeExecution(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type escalateRequest struct {
	AssignmentID string         `json:"assignment_id"`
	Reason       string         `json:"reason"`
	Urgency      models.Urgency `json:"urgency"`
}

func (h *handler) escalate(w http.ResponseWriter, r *http.Request) {
	var req escalateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{apiErrorBody{"bad_request", "invalid JSON body: " + err.Error()}})
		return
	}
	if req.AssignmentID == "" {
		writeJSON(w, http.StatusBadRequest, apiError{apiErrorBody{"bad_request", "assignment_id is required"}})
		return
	}
	rec, err := h.svc.Escalate(r.Context(), req.AssignmentID, req.Reason, req.Urgency)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (h *handler) writeError(w http.ResponseWriter, err error) {
	status, code := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Log("[server] %v", err)
	}
	writeJSON(w, status, apiError{apiErrorBody{Code: code, Message: err.Error()}})
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, validator.ErrTicketNotFound),
		errors.Is(err, pipeline.ErrExecutionNotFound),
		errors.Is(err, pipeline.ErrChecklistNotFound),
		errors.Is(err, escalation.ErrAssignmentNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, validator.ErrTicketClosed),
		errors.Is(err, validator.ErrNoRecommendation),
		errors.Is(err, escalation.ErrAssignmentResolved):
		return http.StatusConflict, "conflict"
	case errors.Is(err, escalation.ErrMaxEscalationReached):
		return http.StatusConflict, "max_escalation_reached"
	case errors.Is(err, models.ErrMalformedResult):
		return http.StatusBadRequest, "bad_request"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
