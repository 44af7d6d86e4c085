// Package handler exposes the community directory over HTTP. All routes are
// guard-facing; residents manage only their own passes.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"vigia/internal/directory/models"
	"vigia/internal/directory/service"
	"vigia/internal/directory/store"
	id "vigia/pkg/domain"
	"vigia/pkg/platform/httputil"
	"vigia/pkg/platform/middleware/request"
)

// Service is the directory operations surface the handler depends on.
type Service interface {
	Register(ctx context.Context, input service.RegisterInput) (*service.RegisterResult, error)
	GetResident(ctx context.Context, residentID id.ResidentID) (*models.Resident, error)
	ListResidents(ctx context.Context, filter store.ResidentFilter) ([]*models.Resident, error)
	UpdateResident(ctx context.Context, residentID id.ResidentID, update models.ResidentUpdate) (*models.Resident, error)
	DeleteResident(ctx context.Context, residentID id.ResidentID) error
	GetGuard(ctx context.Context, guardID id.GuardID) (*models.Guard, error)
	ListGuards(ctx context.Context) ([]*models.Guard, error)
}

type Handler struct {
	directory Service
	logger    *slog.Logger
}

func New(directory Service, logger *slog.Logger) *Handler {
	return &Handler{directory: directory, logger: logger}
}

// Register mounts the directory routes.
func (h *Handler) Register(r chi.Router) {
	r.Post("/accounts/register", h.handleRegister)
	r.Get("/residents", h.handleListResidents)
	r.Get("/residents/{residentID}", h.handleGetResident)
	r.Patch("/residents/{residentID}", h.handleUpdateResident)
	r.Delete("/residents/{residentID}", h.handleDeleteResident)
	r.Get("/guards", h.handleListGuards)
	r.Get("/guards/{guardID}", h.handleGetGuard)
}

type registerRequest struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	Role      string `json:"role"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Unit      string `json:"unit,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Vehicle   string `json:"vehicle,omitempty"`
	Plate     string `json:"plate,omitempty"`
	Badge     string `json:"badge,omitempty"`
}

type registerResponse struct {
	UserID     string  `json:"user_id"`
	Username   string  `json:"username"`
	Role       string  `json:"role"`
	ResidentID *string `json:"resident_id,omitempty"`
	GuardID    *string `json:"guard_id,omitempty"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[registerRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	role, err := models.ParseRole(req.Role)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	result, err := h.directory.Register(ctx, service.RegisterInput{
		Username:  req.Username,
		Password:  req.Password,
		Role:      role,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Unit:      req.Unit,
		Phone:     req.Phone,
		Vehicle:   req.Vehicle,
		Plate:     req.Plate,
		Badge:     req.Badge,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "account registration rejected",
			"request_id", requestID,
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}

	resp := registerResponse{
		UserID:   result.User.ID.String(),
		Username: result.User.Username,
		Role:     string(result.User.Role),
	}
	if result.ResidentID != nil {
		residentID := result.ResidentID.String()
		resp.ResidentID = &residentID
	}
	if result.GuardID != nil {
		guardID := result.GuardID.String()
		resp.GuardID = &guardID
	}
	httputil.WriteJSON(w, http.StatusCreated, resp)
}

func (h *Handler) handleListResidents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	filter := store.ResidentFilter{
		Name: r.URL.Query().Get("name"),
		Unit: r.URL.Query().Get("unit"),
	}
	residents, err := h.directory.ListResidents(ctx, filter)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if residents == nil {
		residents = []*models.Resident{}
	}
	httputil.WriteJSON(w, http.StatusOK, residents)
}

func (h *Handler) handleGetResident(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	residentID, err := id.ParseResidentID(chi.URLParam(r, "residentID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	resident, err := h.directory.GetResident(ctx, residentID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, resident)
}

type updateResidentRequest struct {
	FirstName *string `json:"first_name,omitempty"`
	LastName  *string `json:"last_name,omitempty"`
	Unit      *string `json:"unit,omitempty"`
	Phone     *string `json:"phone,omitempty"`
	Vehicle   *string `json:"vehicle,omitempty"`
	Plate     *string `json:"plate,omitempty"`
}

func (h *Handler) handleUpdateResident(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	residentID, err := id.ParseResidentID(chi.URLParam(r, "residentID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[updateResidentRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	resident, err := h.directory.UpdateResident(ctx, residentID, models.ResidentUpdate{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Unit:      req.Unit,
		Phone:     req.Phone,
		Vehicle:   req.Vehicle,
		Plate:     req.Plate,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, resident)
}

func (h *Handler) handleDeleteResident(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	residentID, err := id.ParseResidentID(chi.URLParam(r, "residentID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.directory.DeleteResident(ctx, residentID); err != nil {
		h.logger.WarnContext(ctx, "resident deletion rejected",
			"request_id", requestID,
			"resident_id", residentID.String(),
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListGuards(w http.ResponseWriter, r *http.Request) {
	guards, err := h.directory.ListGuards(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if guards == nil {
		guards = []*models.Guard{}
	}
	httputil.WriteJSON(w, http.StatusOK, guards)
}

func (h *Handler) handleGetGuard(w http.ResponseWriter, r *http.Request) {
	guardID, err := id.ParseGuardID(chi.URLParam(r, "guardID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	guard, err := h.directory.GetGuard(r.Context(), guardID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, guard)
}
