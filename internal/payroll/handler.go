package payroll

import (
	"context"
	"net/http"
	"time"

	"github.com/frahmantamala/payroll-admin/internal/core/common/batch"
	"github.com/frahmantamala/payroll-admin/internal/transport"
	"github.com/frahmantamala/payroll-admin/pkg/logger"
)

const dateLayout = "2006-01-02"

type EngineAPI interface {
	Collect(ctx context.Context, employeeID int64, cycle Cycle) (*Summary, error)
	MarkAsProcessed(ctx context.Context, expenseIDs []int64, payrollReference string, cycle Cycle) (*batch.Result, error)
	History(ctx context.Context, expenseID int64) ([]*Integration, error)
	CreatePeriod(ctx context.Context, dto CreatePeriodDTO) (*Period, error)
	ClosePeriod(ctx context.Context, id int64) (*Period, error)
}

type Handler struct {
	*transport.BaseHandler
	Engine EngineAPI
}

func NewHandler(engine EngineAPI) *Handler {
	return &Handler{
		BaseHandler: transport.NewBaseHandler(logger.LoggerWrapper()),
		Engine:      engine,
	}
}

// Pending previews an employee's payroll adjustments for
// ?period_start=YYYY-MM-DD&period_end=YYYY-MM-DD.
func (h *Handler) Pending(w http.ResponseWriter, r *http.Request) {
	employeeID, ok := h.PathID(r, "id")
	if !ok {
		h.WriteError(w, http.StatusBadRequest, "invalid employee id")
		return
	}

	start, err := time.Parse(dateLayout, r.URL.Query().Get("period_start"))
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "period_start must be YYYY-MM-DD")
		return
	}
	end, err := time.Parse(dateLayout, r.URL.Query().Get("period_end"))
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "period_end must be YYYY-MM-DD")
		return
	}

	summary, err := h.Engine.Collect(r.Context(), employeeID, Cycle{Start: start, End: end})
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, summary)
}

func (h *Handler) MarkProcessed(w http.ResponseWriter, r *http.Request) {
	var dto MarkProcessedDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.Engine.MarkAsProcessed(r.Context(), dto.ExpenseIDs, dto.PayrollReference, dto.Cycle())
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

	list, err := h.Engine.History(r.Context(), id)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"integrations": list})
}

func (h *Handler) CreatePeriod(w http.ResponseWriter, r *http.Request) {
	var dto CreatePeriodDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	p, err := h.Engine.CreatePeriod(r.Context(), dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, p)
}

func (h *Handler) ClosePeriod(w http.ResponseWriter, r *http.Request) {
	id, ok := h.PathID(r, "id")
	if !ok {
		h.WriteError(w, http.StatusBadRequest, "invalid period id")
		return
	}

	p, err := h.Engine.ClosePeriod(r.Context(), id)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, p)
}
