package device

import (
	"context"
	"net/http"
	"strconv"

	"github.com/frahmantamala/payroll-admin/internal/core/common/batch"
	syncDatamodel "github.com/frahmantamala/payroll-admin/internal/core/datamodel/sync"
	"github.com/frahmantamala/payroll-admin/internal/synclog"
	"github.com/frahmantamala/payroll-admin/internal/transport"
	"github.com/frahmantamala/payroll-admin/pkg/logger"
)

type ServiceAPI interface {
	SyncDevice(ctx context.Context, settings synclog.Settings, deviceID int64, force bool) (*SyncOutcome, error)
	SyncAll(ctx context.Context, settings synclog.Settings, force bool) (*batch.Result, error)
	PushEmployees(ctx context.Context, deviceID int64) (*EmployeeSyncResult, error)
	TestConnection(ctx context.Context, deviceID int64) (bool, string, error)
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

func forced(r *http.Request) bool {
	force, _ := strconv.ParseBool(r.URL.Query().Get("force"))
	return force
}

// Sync pulls one device; ?force=true ignores the minimum interval.
func (h *Handler) Sync(w http.ResponseWriter, r *http.Request) {
	id, ok := h.PathID(r, "id")
	if !ok {
		h.WriteError(w, http.StatusBadRequest, "invalid device id")
		return
	}
	settings, err := h.Settings.Settings(r.Context())
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	o, err := h.Service.SyncDevice(r.Context(), settings, id, forced(r))
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	status := http.StatusOK
	if o.Status == syncDatamodel.StatusFailed {
		status = http.StatusBadGateway
	}
	h.WriteJSON(w, status, o)
}

func (h *Handler) SyncAll(w http.ResponseWriter, r *http.Request) {
	settings, err := h.Settings.Settings(r.Context())
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	result, err := h.Service.SyncAll(r.Context(), settings, forced(r))
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) PushEmployees(w http.ResponseWriter, r *http.Request) {
	id, ok := h.PathID(r, "id")
	if !ok {
		h.WriteError(w, http.StatusBadRequest, "invalid device id")
		return
	}
	res, err := h.Service.PushEmployees(r.Context(), id)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	status := http.StatusOK
	if !res.Success {
		status = http.StatusBadGateway
	}
	h.WriteJSON(w, status, res)
}

func (h *Handler) TestConnection(w http.ResponseWriter, r *http.Request) {
	id, ok := h.PathID(r, "id")
	if !ok {
		h.WriteError(w, http.StatusBadRequest, "invalid device id")
		return
	}
	connected, msg, err := h.Service.TestConnection(r.Context(), id)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": connected,
		"message": msg,
	})
}
