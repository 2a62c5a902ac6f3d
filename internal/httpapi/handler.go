package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"qms/queue-core/internal/models"
	"qms/queue-core/internal/queue"
	"qms/queue-core/internal/store"
)

// Queue is the part of the engine the HTTP intake drives.
type Queue interface {
	Register(ctx context.Context, reg queue.Registration) (queue.Result, error)
	Call(ctx context.Context, ticketID, officerID string) (queue.Result, error)
	CallNext(ctx context.Context, officerID string) (queue.Result, bool, error)
	Recall(ctx context.Context, ticketID, officerID string) (queue.Result, error)
	StartProcessing(ctx context.Context, ticketID, officerID string) (queue.Result, error)
	Complete(ctx context.Context, ticketID, officerID, notes string) (queue.Result, error)
	Skip(ctx context.Context, ticketID, officerID, notes string) (queue.Result, error)
	Cancel(ctx context.Context, ticketID, officerID, notes string) (queue.Result, error)
	Transfer(ctx context.Context, ticketID, targetServiceID, officerID, notes string) (queue.TransferResult, error)

	Ticket(ctx context.Context, ticketID string) (queue.TicketView, error)
	StatusLogs(ctx context.Context, ticketID string) ([]models.StatusLog, error)
	Documents(ctx context.Context, ticketID string) ([]models.Document, error)
	Waiting(ctx context.Context, serviceID string) ([]models.Ticket, error)
	EstimateWait(ctx context.Context, serviceID string) (int, error)
	TodayStats(ctx context.Context, serviceID string) (models.DailyStats, error)
	CurrentCalls(ctx context.Context) ([]models.Ticket, error)
	OfficerTickets(ctx context.Context, officerID string) ([]models.Ticket, error)
}

type Handler struct {
	queue Queue
}

type errorResponse struct {
	Error responseError `json:"error"`
}

type responseError struct {
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Fields  []string `json:"fields,omitempty"`
}

type registerResponse struct {
	Ticket               models.Ticket `json:"ticket"`
	EstimatedWaitMinutes int           `json:"estimated_wait_minutes"`
}

type callNextResponse struct {
	Ticket *models.Ticket `json:"ticket"`
	Idle   string         `json:"idle,omitempty"`
}

type transferResponse struct {
	Source models.Ticket `json:"source"`
	Target models.Ticket `json:"target"`
}

type actionRequest struct {
	Notes           string `json:"notes"`
	TargetServiceID string `json:"target_service_id"`
}

func NewHandler(q Queue) *Handler {
	return &Handler{queue: q}
}

func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", h.handleHealth)
	mux.HandleFunc("/api/tickets", h.handleTickets)
	mux.HandleFunc("/api/tickets/", h.handleTicket)
	mux.HandleFunc("/api/officer/call-next", h.handleCallNext)
	mux.HandleFunc("/api/officer/tickets", h.handleOfficerTickets)
	mux.HandleFunc("/api/services/", h.handleService)
	mux.HandleFunc("/api/stats", h.handleStats)
	mux.HandleFunc("/api/display/current", h.handleCurrentCalls)
	return mux
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) handleTickets(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req queue.Registration
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.queue.Register(r.Context(), req)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, registerResponse{
		Ticket:               result.Ticket,
		EstimatedWaitMinutes: result.EstimatedWaitMinutes,
	})
}

// handleTicket serves /api/tickets/{id}, /api/tickets/{id}/logs,
// /api/tickets/{id}/documents and /api/tickets/{id}/actions/{action}.
func (h *Handler) handleTicket(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/tickets/")
	parts := strings.Split(strings.Trim(path, "/"), "/")
	ticketID := strings.TrimSpace(parts[0])
	if ticketID == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	switch {
	case len(parts) == 1:
		h.handleTicketView(w, r, ticketID)
	case len(parts) == 2 && parts[1] == "logs":
		h.handleTicketLogs(w, r, ticketID)
	case len(parts) == 2 && parts[1] == "documents":
		h.handleTicketDocuments(w, r, ticketID)
	case len(parts) == 3 && parts[1] == "actions":
		h.handleTicketAction(w, r, ticketID, parts[2])
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleTicketView(w http.ResponseWriter, r *http.Request, ticketID string) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	view, err := h.queue.Ticket(r.Context(), ticketID)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) handleTicketLogs(w http.ResponseWriter, r *http.Request, ticketID string) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	logs, err := h.queue.StatusLogs(r.Context(), ticketID)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, logs)
}

func (h *Handler) handleTicketDocuments(w http.ResponseWriter, r *http.Request, ticketID string) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	docs, err := h.queue.Documents(r.Context(), ticketID)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, docs)
}

func (h *Handler) handleTicketAction(w http.ResponseWriter, r *http.Request, ticketID, action string) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req actionRequest
	if !decodeOptionalJSON(w, r, &req) {
		return
	}
	req.Notes = strings.TrimSpace(req.Notes)
	req.TargetServiceID = strings.TrimSpace(req.TargetServiceID)

	ctx := r.Context()
	officerID, _ := officerFromContext(ctx)

	// A requester may cancel their own ticket; everything else is officer work.
	if action != "cancel" && officerID == "" {
		writeError(w, http.StatusUnauthorized, "officer_required", OfficerHeader+" header is required")
		return
	}

	var (
		result queue.Result
		err    error
	)
	switch action {
	case "call":
		result, err = h.queue.Call(ctx, ticketID, officerID)
	case "recall":
		result, err = h.queue.Recall(ctx, ticketID, officerID)
	case "start":
		result, err = h.queue.StartProcessing(ctx, ticketID, officerID)
	case "complete":
		result, err = h.queue.Complete(ctx, ticketID, officerID, req.Notes)
	case "skip":
		result, err = h.queue.Skip(ctx, ticketID, officerID, req.Notes)
	case "cancel":
		result, err = h.queue.Cancel(ctx, ticketID, officerID, req.Notes)
	case "transfer":
		h.handleTransfer(w, r, ticketID, officerID, req)
		return
	default:
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result.Ticket)
}

func (h *Handler) handleTransfer(w http.ResponseWriter, r *http.Request, ticketID, officerID string, req actionRequest) {
	if req.TargetServiceID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "target_service_id is required")
		return
	}
	result, err := h.queue.Transfer(r.Context(), ticketID, req.TargetServiceID, officerID, req.Notes)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, transferResponse{Source: result.Source, Target: result.Target})
}

func (h *Handler) handleCallNext(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	officerID, ok := requireOfficer(w, r)
	if !ok {
		return
	}

	result, called, err := h.queue.CallNext(r.Context(), officerID)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	if !called {
		writeJSON(w, http.StatusOK, callNextResponse{Idle: result.Idle})
		return
	}
	writeJSON(w, http.StatusOK, callNextResponse{Ticket: &result.Ticket})
}

func (h *Handler) handleOfficerTickets(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	officerID, ok := requireOfficer(w, r)
	if !ok {
		return
	}
	tickets, err := h.queue.OfficerTickets(r.Context(), officerID)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(tickets))
}

// handleService serves /api/services/{id}/waiting and /api/services/{id}/estimate.
func (h *Handler) handleService(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	path := strings.TrimPrefix(r.URL.Path, "/api/services/")
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != 2 || strings.TrimSpace(parts[0]) == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	serviceID := strings.TrimSpace(parts[0])

	switch parts[1] {
	case "waiting":
		tickets, err := h.queue.Waiting(r.Context(), serviceID)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, nonNil(tickets))
	case "estimate":
		minutes, err := h.queue.EstimateWait(r.Context(), serviceID)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"service_id":             serviceID,
			"estimated_wait_minutes": minutes,
		})
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	serviceID := strings.TrimSpace(r.URL.Query().Get("service_id"))
	stats, err := h.queue.TodayStats(r.Context(), serviceID)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) handleCurrentCalls(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	tickets, err := h.queue.CurrentCalls(r.Context())
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(tickets))
}

func nonNil(tickets []models.Ticket) []models.Ticket {
	if tickets == nil {
		return []models.Ticket{}
	}
	return tickets
}

func decodeJSON(w http.ResponseWriter, r *http.Request, target interface{}) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return false
	}
	return true
}

// decodeOptionalJSON accepts an empty body.
func decodeOptionalJSON(w http.ResponseWriter, r *http.Request, target interface{}) bool {
	if r.Body == nil || r.Body == http.NoBody {
		return true
	}
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return false
	}
	return true
}

func mapError(err error) (int, string, string) {
	switch {
	case errors.Is(err, queue.ErrValidation):
		return http.StatusUnprocessableEntity, "validation_failed", "request validation failed"
	case errors.Is(err, store.ErrServiceNotFound):
		return http.StatusNotFound, "service_not_found", "service not found"
	case errors.Is(err, store.ErrTicketNotFound):
		return http.StatusNotFound, "ticket_not_found", "ticket not found"
	case errors.Is(err, store.ErrOfficerNotFound):
		return http.StatusNotFound, "officer_not_found", "officer not found"
	case errors.Is(err, queue.ErrInvalidState):
		return http.StatusConflict, "invalid_state", "ticket state does not allow this action"
	case errors.Is(err, queue.ErrOfficerMismatch):
		return http.StatusForbidden, "officer_mismatch", "ticket is held by another officer"
	case errors.Is(err, queue.ErrOfficerUnavailable):
		return http.StatusConflict, "officer_unavailable", "officer cannot accept another ticket"
	case errors.Is(err, queue.ErrTicketTaken):
		return http.StatusConflict, "ticket_taken", "ticket already called by another officer"
	case errors.Is(err, queue.ErrServiceClosed):
		return http.StatusConflict, "service_closed", "service is not accepting registrations"
	case errors.Is(err, queue.ErrInvalidTransfer):
		return http.StatusUnprocessableEntity, "invalid_transfer", "transfer target is not valid"
	case errors.Is(err, store.ErrDuplicateNumber):
		return http.StatusConflict, "number_conflict", "ticket number already issued, retry the request"
	default:
		return http.StatusInternalServerError, "internal_error", "internal server error"
	}
}

func writeMappedError(w http.ResponseWriter, err error) {
	status, code, msg := mapError(err)
	resp := errorResponse{Error: responseError{Code: code, Message: msg}}

	var verr *queue.ValidationError
	var perr *queue.PreconditionError
	switch {
	case errors.As(err, &verr):
		resp.Error.Fields = verr.Fields
	case errors.As(err, &perr) && perr.Detail != "":
		resp.Error.Message = msg + ": " + perr.Detail
	}
	writeJSON(w, status, resp)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{
		Error: responseError{
			Code:    code,
			Message: message,
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}
