package accounting

import (
	"context"
	"net/http"
	"time"

	"github.com/frahmantamala/payroll-admin/internal/synclog"
	"github.com/frahmantamala/payroll-admin/internal/transport"
	"github.com/frahmantamala/payroll-admin/pkg/logger"
)

type ServiceAPI interface {
	SyncExpense(ctx context.Context, settings synclog.Settings, expenseID int64) (Outcome, error)
	SyncPayrollPeriod(ctx context.Context, settings synclog.Settings, periodID int64) (Outcome, error)
	FullSync(ctx context.Context, settings synclog.Settings) Outcome
	SyncPending(ctx context.Context, settings synclog.Settings) Outcome
	RetryFailed(ctx context.Context, settings synclog.Settings, now time.Time) Outcome
	TestConnection(ctx context.Context) Outcome
}

type SettingsLoader interface {
	Settings(ctx context.Context) (synclog.Settings, error)
}

type Handler struct {
	*transport.BaseHandler
	Service  ServiceAPI
	Settings SettingsLoader
}

func NewHandler(service ServiceAPI, settings SettingsLoader) *Handler {
	return &Handler{
		BaseHandler: transport.NewBaseHandler(logger.LoggerWrapper()),
		Service:     service,
		Settings:    settings,
	}
}

// writeOutcome answers 200 for accepted or skipped syncs and 502 when the
// accounting system refused.
func (h *Handler) writeOutcome(w http.ResponseWriter, o Outcome) {
	status := http.StatusOK
	if !o.Success && !o.Skipped {
		status = http.StatusBadGateway
	}
	h.WriteJSON(w, status, o)
}

func (h *Handler) SyncExpense(w http.ResponseWriter, r *http.Request) {
	id, ok := h.PathID(r, "id")
	if !ok {
		h.WriteError(w, http.StatusBadRequest, "invalid expense id")
		return
	}
	settings, err := h.Settings.Settings(r.Context())
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	o, err := h.Service.SyncExpense(r.Context(), settings, id)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.writeOutcome(w, o)
}

func (h *Handler) SyncPayrollPeriod(w http.ResponseWriter, r *http.Request) {
	id, ok := h.PathID(r, "id")
	if !ok {
		h.WriteError(w, http.StatusBadRequest, "invalid payroll period id")
		return
	}
	settings, err := h.Settings.Settings(r.Context())
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	o, err := h.Service.SyncPayrollPeriod(r.Context(), settings, id)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.writeOutcome(w, o)
}

func (h *Handler) FullSync(w http.ResponseWriter, r *http.Request) {
	settings, err := h.Settings.Settings(r.Context())
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.writeOutcome(w, h.Service.FullSync(r.Context(), settings))
}

func (h *Handler) SyncPending(w http.ResponseWriter, r *http.Request) {
	settings, err := h.Settings.Settings(r.Context())
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.writeOutcome(w, h.Service.SyncPending(r.Context(), settings))
}

func (h *Handler) RetryFailed(w http.ResponseWriter, r *http.Request) {
	settings, err := h.Settings.Settings(r.Context())
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.writeOutcome(w, h.Service.RetryFailed(r.Context(), settings, time.Now().UTC()))
}

func (h *Handler) TestConnection(w http.ResponseWriter, r *http.Request) {
	h.writeOutcome(w, h.Service.TestConnection(r.Context()))
}
