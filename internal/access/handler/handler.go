// Package handler exposes the access ledger over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"vigia/internal/access/models"
	"vigia/internal/access/service"
	"vigia/internal/access/store"
	id "vigia/pkg/domain"
	dErrors "vigia/pkg/domain-errors"
	"vigia/pkg/platform/httputil"
	"vigia/pkg/platform/middleware/request"
	"vigia/pkg/requestcontext"
)

const defaultHistoryLimit = 100

// Service is the ledger operations surface the handler depends on.
type Service interface {
	Register(ctx context.Context, guardID id.GuardID, input service.RegisterInput) (*service.Receipt, error)
	History(ctx context.Context, filter store.Filter) ([]*models.AccessEvent, error)
	Get(ctx context.Context, eventID id.EventID) (*models.AccessEvent, error)
	Amend(ctx context.Context, eventID id.EventID, input service.AmendInput) (*models.AccessEvent, error)
}

type Handler struct {
	access Service
	logger *slog.Logger
}

func New(access Service, logger *slog.Logger) *Handler {
	return &Handler{access: access, logger: logger}
}

// RegisterGuard mounts the gate-facing ledger routes.
func (h *Handler) RegisterGuard(r chi.Router) {
	r.Post("/access/events", h.handleRegister)
	r.Get("/access/events", h.handleHistory)
	r.Get("/access/events/{eventID}", h.handleGet)
	r.Patch("/access/events/{eventID}", h.handleAmend)
}

// RegisterResident mounts the self-service history route.
func (h *Handler) RegisterResident(r chi.Router) {
	r.Get("/access/mine", h.handleMyHistory)
}

type registerEventRequest struct {
	ResidentID   string `json:"resident_id,omitempty"`
	PassCode     string `json:"pass_code,omitempty"`
	Direction    string `json:"direction"`
	VehiclePlate string `json:"vehicle_plate,omitempty"`
	Notes        string `json:"notes,omitempty"`
}

type eventResponse struct {
	ID           string           `json:"id"`
	Timestamp    time.Time        `json:"timestamp"`
	Direction    models.Direction `json:"direction"`
	ResidentID   *string          `json:"resident_id,omitempty"`
	PassID       *string          `json:"pass_id,omitempty"`
	GuardID      string           `json:"guard_id"`
	VehiclePlate string           `json:"vehicle_plate,omitempty"`
	Notes        string           `json:"notes,omitempty"`
}

type receiptResponse struct {
	Event        eventResponse `json:"event"`
	AccessorKind string        `json:"accessor_kind"`
	FirstName    string        `json:"first_name"`
	LastName     string        `json:"last_name"`
	GuardName    string        `json:"guard_name"`
	Message      string        `json:"message"`
}

func toEventResponse(event *models.AccessEvent) eventResponse {
	resp := eventResponse{
		ID:           event.ID.String(),
		Timestamp:    event.Timestamp,
		Direction:    event.Direction,
		GuardID:      event.GuardID.String(),
		VehiclePlate: event.VehiclePlate,
		Notes:        event.Notes,
	}
	if event.ResidentID != nil {
		residentID := event.ResidentID.String()
		resp.ResidentID = &residentID
	}
	if event.PassID != nil {
		passID := event.PassID.String()
		resp.PassID = &passID
	}
	return resp
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[registerEventRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	direction, err := models.ParseDirection(req.Direction)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	receipt, err := h.access.Register(ctx, requestcontext.GuardID(ctx), service.RegisterInput{
		ResidentID:   req.ResidentID,
		PassCode:     req.PassCode,
		Direction:    direction,
		VehiclePlate: req.VehiclePlate,
		Notes:        req.Notes,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "access registration rejected",
			"request_id", requestID,
			"direction", req.Direction,
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, receiptResponse{
		Event:        toEventResponse(receipt.Event),
		AccessorKind: string(receipt.AccessorKind),
		FirstName:    receipt.FirstName,
		LastName:     receipt.LastName,
		GuardName:    receipt.GuardName,
		Message:      receipt.Message,
	})
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	filter, err := filterFromQuery(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.writeHistory(w, ctx, filter)
}

func (h *Handler) handleMyHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	residentID := requestcontext.ResidentID(ctx)
	filter, err := filterFromQuery(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	filter.ResidentID = &residentID
	h.writeHistory(w, ctx, filter)
}

func (h *Handler) writeHistory(w http.ResponseWriter, ctx context.Context, filter store.Filter) {
	events, err := h.access.History(ctx, filter)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	result := make([]eventResponse, 0, len(events))
	for _, event := range events {
		result = append(result, toEventResponse(event))
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	eventID, err := id.ParseEventID(chi.URLParam(r, "eventID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	event, err := h.access.Get(r.Context(), eventID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toEventResponse(event))
}

type amendRequest struct {
	VehiclePlate *string `json:"vehicle_plate,omitempty"`
	Notes        *string `json:"notes,omitempty"`
}

func (h *Handler) handleAmend(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	eventID, err := id.ParseEventID(chi.URLParam(r, "eventID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[amendRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	event, err := h.access.Amend(ctx, eventID, service.AmendInput{
		VehiclePlate: req.VehiclePlate,
		Notes:        req.Notes,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "access amendment rejected",
			"request_id", requestID,
			"event_id", eventID.String(),
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toEventResponse(event))
}

func filterFromQuery(r *http.Request) (store.Filter, error) {
	query := r.URL.Query()
	filter := store.Filter{Limit: defaultHistoryLimit}

	if raw := query.Get("resident_id"); raw != "" {
		residentID, err := id.ParseResidentID(raw)
		if err != nil {
			return store.Filter{}, err
		}
		filter.ResidentID = &residentID
	}
	if raw := query.Get("pass_id"); raw != "" {
		passID, err := id.ParsePassID(raw)
		if err != nil {
			return store.Filter{}, err
		}
		filter.PassID = &passID
	}
	if raw := query.Get("guard_id"); raw != "" {
		guardID, err := id.ParseGuardID(raw)
		if err != nil {
			return store.Filter{}, err
		}
		filter.GuardID = &guardID
	}
	if raw := query.Get("direction"); raw != "" {
		direction, err := models.ParseDirection(raw)
		if err != nil {
			return store.Filter{}, err
		}
		filter.Direction = &direction
	}
	if raw := query.Get("plate"); raw != "" {
		filter.Plate = raw
	}
	if raw := query.Get("from"); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return store.Filter{}, dErrors.New(dErrors.CodeInvalidRequest, "from must be RFC 3339")
		}
		filter.From = &from
	}
	if raw := query.Get("to"); raw != "" {
		to, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return store.Filter{}, dErrors.New(dErrors.CodeInvalidRequest, "to must be RFC 3339")
		}
		filter.To = &to
	}
	return filter, nil
}
