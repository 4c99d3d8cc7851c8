package synclog

import (
	"context"
	"net/http"
	"strconv"

	"github.com/frahmantamala/payroll-admin/internal/transport"
	"github.com/frahmantamala/payroll-admin/pkg/logger"
)

type ServiceAPI interface {
	Settings(ctx context.Context) (Settings, error)
	UpdateSettings(ctx context.Context, dto UpdateSettingsDTO) (Settings, error)
	ListBySource(ctx context.Context, syncType Type, sourceID int64) ([]*Log, error)
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

type settingsResponse struct {
	PayrollSyncEnabled    bool `json:"payroll_sync_enabled"`
	ExpenseSyncEnabled    bool `json:"expense_sync_enabled"`
	ScheduledSyncEnabled  bool `json:"scheduled_sync_enabled"`
	MaxRetries            int  `json:"max_retries"`
	RetryBaseDelaySeconds int  `json:"retry_base_delay_seconds"`
}

func toResponse(s Settings) settingsResponse {
	return settingsResponse{
		PayrollSyncEnabled:    s.PayrollSyncEnabled,
		ExpenseSyncEnabled:    s.ExpenseSyncEnabled,
		ScheduledSyncEnabled:  s.ScheduledSyncEnabled,
		MaxRetries:            s.MaxRetries,
		RetryBaseDelaySeconds: int(s.RetryBaseDelay.Seconds()),
	}
}

func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	s, err := h.Service.Settings(r.Context())
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, toResponse(s))
}

func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var dto UpdateSettingsDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s, err := h.Service.UpdateSettings(r.Context(), dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, toResponse(s))
}

// Logs lists the attempts for ?type=EXPENSE&source_id=42.
func (h *Handler) Logs(w http.ResponseWriter, r *http.Request) {
	syncType := Type(r.URL.Query().Get("type"))
	if !syncType.IsValid() {
		h.WriteError(w, http.StatusBadRequest, "type must be one of EXPENSE, PAYROLL_PERIOD, DEVICE, FULL_SYNC")
		return
	}
	sourceID, err := strconv.ParseInt(r.URL.Query().Get("source_id"), 10, 64)
	if err != nil || sourceID < 0 {
		h.WriteError(w, http.StatusBadRequest, "invalid source_id")
		return
	}

	logs, err := h.Service.ListBySource(r.Context(), syncType, sourceID)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, logs)
}
