package expense

import (
	"context"
	"net/http"

	"github.com/frahmantamala/payroll-admin/internal/core/common/batch"
	"github.com/frahmantamala/payroll-admin/internal/transport"
	"github.com/frahmantamala/payroll-admin/pkg/logger"
)

type ServiceAPI interface {
	CreateExpense(ctx context.Context, dto CreateExpenseDTO, creatorID int64) (*Expense, error)
	UpdateStatus(ctx context.Context, id int64, to Status, actor int64, reason string) (*Expense, error)
	BulkApprove(ctx context.Context, ids []int64, actor int64) (*batch.Result, error)
	History(ctx context.Context, id int64) ([]*StatusHistory, error)
	DeleteExpense(ctx context.Context, id int64) error
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(service ServiceAPI) *Handler {
	return &Handler{
		BaseHandler: transport.NewBaseHandler(logger.LoggerWrapper()),
		Service:     service,
	}
}

func (h *Handler) CreateExpense(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.ActorID(r)
	if !ok {
		h.WriteError(w, http.StatusBadRequest, "missing or invalid "+transport.ActorHeader)
		return
	}

	var dto CreateExpenseDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	exp, err := h.Service.CreateExpense(r.Context(), dto, actor)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, exp)
}

func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.ActorID(r)
	if !ok {
		h.WriteError(w, http.StatusBadRequest, "missing or invalid "+transport.ActorHeader)
		return
	}
	id, ok := h.PathID(r, "id")
	if !ok {
		h.WriteError(w, http.StatusBadRequest, "invalid expense id")
		return
	}

	var dto UpdateStatusDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := dto.Validate(); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	exp, err := h.Service.UpdateStatus(r.Context(), id, dto.Status, actor, dto.Reason)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, exp)
}

func (h *Handler) BulkApprove(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.ActorID(r)
	if !ok {
		h.WriteError(w, http.StatusBadRequest, "missing or invalid "+transport.ActorHeader)
		return
	}

	var dto BulkApproveDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := dto.Validate(); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	result, err := h.Service.BulkApprove(r.Context(), dto.ExpenseIDs, actor)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	id, ok := h.PathID(r, "id")
	if !ok {
		h.WriteError(w, http.StatusBadRequest, "invalid expense id")
		return
	}

	history, err := h.Service.History(r.Context(), id)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"history": history})
}

func (h *Handler) DeleteExpense(w http.ResponseWriter, r *http.Request) {
	id, ok := h.PathID(r, "id")
	if !ok {
		h.WriteError(w, http.StatusBadRequest, "invalid expense id")
		return
	}

	if err := h.Service.DeleteExpense(r.Context(), id); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
