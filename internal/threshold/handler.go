package threshold

import (
	"context"
	"net/http"
	"time"

	"github.com/frahmantamala/payroll-admin/internal/transport"
	"github.com/frahmantamala/payroll-admin/pkg/logger"
	"github.com/shopspring/decimal"
)

type ResolverAPI interface {
	Resolve(ctx context.Context, employeeID int64, asOf time.Time) Threshold
	SetEmployeeThreshold(ctx context.Context, t *EmployeeThreshold) error
}

type Handler struct {
	*transport.BaseHandler
	Resolver ResolverAPI
}

func NewHandler(resolver ResolverAPI) *Handler {
	return &Handler{
		BaseHandler: transport.NewBaseHandler(logger.LoggerWrapper()),
		Resolver:    resolver,
	}
}

type SetOverrideRequest struct {
	MaxAmount     decimal.Decimal `json:"max_amount"`
	Percentage    decimal.Decimal `json:"percentage"`
	EffectiveFrom string          `json:"effective_from"`
	EffectiveTo   *string         `json:"effective_to,omitempty"`
}

// Get resolves the threshold in force for an employee on ?as_of=YYYY-MM-DD,
// today when omitted.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	employeeID, ok := h.PathID(r, "id")
	if !ok {
		h.WriteError(w, http.StatusBadRequest, "invalid employee id")
		return
	}

	asOf := time.Now().UTC()
	if raw := r.URL.Query().Get("as_of"); raw != "" {
		parsed, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			h.WriteError(w, http.StatusBadRequest, "as_of must be YYYY-MM-DD")
			return
		}
		asOf = parsed
	}

	h.WriteJSON(w, http.StatusOK, h.Resolver.Resolve(r.Context(), employeeID, asOf))
}

func (h *Handler) SetOverride(w http.ResponseWriter, r *http.Request) {
	employeeID, ok := h.PathID(r, "id")
	if !ok {
		h.WriteError(w, http.StatusBadRequest, "invalid employee id")
		return
	}

	var req SetOverrideRequest
	if err := h.DecodeJSON(r, &req); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	from, err := time.Parse(time.DateOnly, req.EffectiveFrom)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "effective_from must be YYYY-MM-DD")
		return
	}
	override := &EmployeeThreshold{
		EmployeeID:    employeeID,
		MaxAmount:     req.MaxAmount,
		Percentage:    req.Percentage,
		EffectiveFrom: from,
	}
	if req.EffectiveTo != nil {
		to, err := time.Parse(time.DateOnly, *req.EffectiveTo)
		if err != nil {
			h.WriteError(w, http.StatusBadRequest, "effective_to must be YYYY-MM-DD")
			return
		}
		override.EffectiveTo = &to
	}

	if err := h.Resolver.SetEmployeeThreshold(r.Context(), override); err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, override)
}
