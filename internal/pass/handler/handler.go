// Package handler exposes the pass lifecycle over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"vigia/internal/pass/models"
	"vigia/internal/pass/service"
	id "vigia/pkg/domain"
	dErrors "vigia/pkg/domain-errors"
	"vigia/pkg/platform/httputil"
	"vigia/pkg/platform/middleware/request"
	"vigia/pkg/requestcontext"
)

// Service is the pass operations surface the handler depends on.
type Service interface {
	Issue(ctx context.Context, owner id.ResidentID, input service.IssueInput) (*models.Pass, error)
	Get(ctx context.Context, passID id.PassID, owner id.ResidentID) (*models.Pass, models.Status, error)
	StatusOf(ctx context.Context, passID id.PassID) (*models.Pass, models.Status, error)
	ValidateCode(ctx context.Context, code string) (*models.Pass, models.Status, error)
	ListMine(ctx context.Context, owner id.ResidentID) ([]service.View, error)
	Cancel(ctx context.Context, passID id.PassID, owner id.ResidentID) (*models.Pass, error)
	Update(ctx context.Context, passID id.PassID, owner id.ResidentID, update models.Update) (*models.Pass, error)
	Delete(ctx context.Context, passID id.PassID, owner id.ResidentID) error
}

type Handler struct {
	passes Service
	logger *slog.Logger
}

func New(passes Service, logger *slog.Logger) *Handler {
	return &Handler{passes: passes, logger: logger}
}

// RegisterResident mounts the owner-facing lifecycle routes. The router
// applies authentication and the resident role guard before these run.
func (h *Handler) RegisterResident(r chi.Router) {
	r.Post("/passes", h.handleIssue)
	r.Get("/passes", h.handleListMine)
	r.Get("/passes/{passID}", h.handleGet)
	r.Patch("/passes/{passID}", h.handleUpdate)
	r.Post("/passes/{passID}/cancel", h.handleCancel)
	r.Delete("/passes/{passID}", h.handleDelete)
}

// RegisterGuard mounts the gate-facing read routes.
func (h *Handler) RegisterGuard(r chi.Router) {
	r.Get("/passes/validate/{code}", h.handleValidateCode)
	r.Get("/passes/{passID}/status", h.handleStatus)
}

type issueRequest struct {
	HolderName    string     `json:"holder_name"`
	HolderSurname string     `json:"holder_surname"`
	Kind          string     `json:"kind"`
	ValidUntil    *time.Time `json:"valid_until,omitempty"`
}

type updateRequest struct {
	HolderName      *string    `json:"holder_name,omitempty"`
	HolderSurname   *string    `json:"holder_surname,omitempty"`
	Kind            *string    `json:"kind,omitempty"`
	ValidUntil      *time.Time `json:"valid_until,omitempty"`
	ClearValidUntil bool       `json:"clear_valid_until,omitempty"`
}

type passResponse struct {
	ID            string         `json:"id"`
	Code          string         `json:"code"`
	HolderName    string         `json:"holder_name"`
	HolderSurname string         `json:"holder_surname"`
	Kind          models.Kind    `json:"kind"`
	Status        models.Status  `json:"status"`
	ValidUntil    *time.Time     `json:"valid_until,omitempty"`
	RevokedAt     *time.Time     `json:"revoked_at,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

func toPassResponse(pass *models.Pass, status models.Status) passResponse {
	return passResponse{
		ID:            pass.ID.String(),
		Code:          pass.Code,
		HolderName:    pass.HolderName,
		HolderSurname: pass.HolderSurname,
		Kind:          pass.Kind,
		Status:        status,
		ValidUntil:    pass.ValidUntil,
		RevokedAt:     pass.RevokedAt,
		CreatedAt:     pass.CreatedAt,
		UpdatedAt:     pass.UpdatedAt,
	}
}

func (h *Handler) handleIssue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[issueRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	kind, err := models.ParseKind(req.Kind)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	pass, err := h.passes.Issue(ctx, requestcontext.ResidentID(ctx), service.IssueInput{
		HolderName:    req.HolderName,
		HolderSurname: req.HolderSurname,
		Kind:          kind,
		ValidUntil:    req.ValidUntil,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "pass issuance rejected",
			"request_id", requestID,
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toPassResponse(pass, models.StatusActive))
}

func (h *Handler) handleListMine(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	views, err := h.passes.ListMine(ctx, requestcontext.ResidentID(ctx))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	result := make([]passResponse, 0, len(views))
	for _, view := range views {
		result = append(result, toPassResponse(view.Pass, view.Status))
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	passID, err := id.ParsePassID(chi.URLParam(r, "passID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	pass, status, err := h.passes.Get(ctx, passID, requestcontext.ResidentID(ctx))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toPassResponse(pass, status))
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	passID, err := id.ParsePassID(chi.URLParam(r, "passID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[updateRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	update := models.Update{
		HolderName:      req.HolderName,
		HolderSurname:   req.HolderSurname,
		ValidUntil:      req.ValidUntil,
		ClearValidUntil: req.ClearValidUntil,
	}
	if req.Kind != nil {
		kind, err := models.ParseKind(*req.Kind)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		update.Kind = &kind
	}

	pass, err := h.passes.Update(ctx, passID, requestcontext.ResidentID(ctx), update)
	if err != nil {
		h.logger.WarnContext(ctx, "pass update rejected",
			"request_id", requestID,
			"pass_id", passID.String(),
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}
	status := pass.StatusAt(requestcontext.Now(ctx), false)
	httputil.WriteJSON(w, http.StatusOK, toPassResponse(pass, status))
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	passID, err := id.ParsePassID(chi.URLParam(r, "passID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	pass, err := h.passes.Cancel(ctx, passID, requestcontext.ResidentID(ctx))
	if err != nil {
		h.logger.WarnContext(ctx, "pass cancellation rejected",
			"request_id", requestID,
			"pass_id", passID.String(),
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toPassResponse(pass, models.StatusCancelled))
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	passID, err := id.ParsePassID(chi.URLParam(r, "passID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.passes.Delete(ctx, passID, requestcontext.ResidentID(ctx)); err != nil {
		h.logger.WarnContext(ctx, "pass deletion rejected",
			"request_id", requestID,
			"pass_id", passID.String(),
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	passID, err := id.ParsePassID(chi.URLParam(r, "passID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	pass, status, err := h.passes.StatusOf(ctx, passID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"id":     pass.ID.String(),
		"code":   pass.Code,
		"status": status,
	})
}

func (h *Handler) handleValidateCode(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	pass, status, err := h.passes.ValidateCode(ctx, chi.URLParam(r, "code"))
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "unknown pass code"))
			return
		}
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toPassResponse(pass, status))
}
