package installment

import (
	"net/http"
	"time"

	"github.com/frahmantamala/payroll-admin/internal/transport"
	"github.com/frahmantamala/payroll-admin/pkg/logger"
	"github.com/shopspring/decimal"
)

type PreviewAPI interface {
	Preview(total, limit decimal.Decimal, start time.Time) (*Preview, error)
}

type Handler struct {
	*transport.BaseHandler
	Service PreviewAPI
}

func NewHandler(service PreviewAPI) *Handler {
	return &Handler{
		BaseHandler: transport.NewBaseHandler(logger.LoggerWrapper()),
		Service:     service,
	}
}

// Preview answers ?total=...&limit=...&start=YYYY-MM-DD without saving
// anything. start defaults to the first day of next month.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	total, err := decimal.NewFromString(q.Get("total"))
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "total must be a decimal amount")
		return
	}
	limit, err := decimal.NewFromString(q.Get("limit"))
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "limit must be a decimal amount")
		return
	}

	now := time.Now().UTC()
	start := time.Date(now.Year(), now.Month()+1, 1, 0, 0, 0, 0, time.UTC)
	if raw := q.Get("start"); raw != "" {
		start, err = time.Parse(time.DateOnly, raw)
		if err != nil {
			h.WriteError(w, http.StatusBadRequest, "start must be YYYY-MM-DD")
			return
		}
	}

	preview, err := h.Service.Preview(total, limit, start)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, preview)
}
