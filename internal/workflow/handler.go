package workflow

import (
	"context"
	"net/http"

	"github.com/frahmantamala/payroll-admin/internal/transport"
	"github.com/frahmantamala/payroll-admin/pkg/logger"
)

type ServiceAPI interface {
	GetForExpense(ctx context.Context, expenseID int64) (*Workflow, error)
	AdvanceToNextStep(ctx context.Context, expenseID, approver int64) (*Workflow, error)
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

func (h *Handler) GetWorkflow(w http.ResponseWriter, r *http.Request) {
	id, ok := h.PathID(r, "id")
	if !ok {
		h.WriteError(w, http.StatusBadRequest, "invalid expense id")
		return
	}

	wf, err := h.Service.GetForExpense(r.Context(), id)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, wf)
}

func (h *Handler) Advance(w http.ResponseWriter, r *http.Request) {
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

	wf, err := h.Service.AdvanceToNextStep(r.Context(), id, actor)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, wf)
}
