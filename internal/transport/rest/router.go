package rest

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/frahmantamala/payroll-admin/internal/accounting"
	"github.com/frahmantamala/payroll-admin/internal/device"
	"github.com/frahmantamala/payroll-admin/internal/expense"
	"github.com/frahmantamala/payroll-admin/internal/installment"
	"github.com/frahmantamala/payroll-admin/internal/payroll"
	"github.com/frahmantamala/payroll-admin/internal/synclog"
	"github.com/frahmantamala/payroll-admin/internal/threshold"
	"github.com/frahmantamala/payroll-admin/internal/transport/middleware"
	"github.com/frahmantamala/payroll-admin/internal/transport/swagger"
	"github.com/frahmantamala/payroll-admin/internal/workflow"
	"github.com/go-chi/chi"
)

// Handlers groups every REST handler. A nil handler leaves its routes
// unmounted.
type Handlers struct {
	Expense     *expense.Handler
	Workflow    *workflow.Handler
	Installment *installment.Handler
	Threshold   *threshold.Handler
	Payroll     *payroll.Handler
	Accounting  *accounting.Handler
	SyncLog     *synclog.Handler
	Device      *device.Handler
}

type RouterOptions struct {
	AllowedOrigins string
	OpenAPIPath    string
	HealthChecks   []NamedCheck
}

func RegisterAllRoutes(router chi.Router, db *sql.DB, h Handlers, opts RouterOptions, logger *slog.Logger) {
	healthHandler := NewHealthHandler(db, opts.HealthChecks...)

	router.Use(middleware.CORS(opts.AllowedOrigins))
	router.Use(middleware.RequestID)
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.ActorContext)
	router.Use(middleware.LoggingMiddleware(logger))

	openAPIPath := opts.OpenAPIPath
	if openAPIPath == "" {
		openAPIPath = "./api/openapi.yml"
	}
	router.Get("/openapi.yml", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, openAPIPath)
	})
	router.Handle("/swagger/*", swagger.Handler())

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", healthHandler.healthCheckHandler)
		r.Get("/ping", healthHandler.pingHandler)

		if h.Expense != nil {
			r.Route("/expenses", func(er chi.Router) {
				er.Get("/{id}/history", h.Expense.History)
				if h.Payroll != nil {
					er.Get("/{id}/payroll-history", h.Payroll.History)
				}
				if h.Workflow != nil {
					er.Get("/{id}/workflow", h.Workflow.GetWorkflow)
				}

				er.Group(func(mr chi.Router) {
					mr.Use(middleware.RequireActor)
					mr.Post("/", h.Expense.CreateExpense)
					mr.Post("/bulk-approve", h.Expense.BulkApprove)
					mr.Post("/{id}/status", h.Expense.UpdateStatus)
					mr.Delete("/{id}", h.Expense.DeleteExpense)
					if h.Workflow != nil {
						mr.Post("/{id}/workflow/advance", h.Workflow.Advance)
					}
				})
			})
		}

		if h.Installment != nil {
			r.Get("/installments/preview", h.Installment.Preview)
		}

		if h.Threshold != nil {
			r.Get("/employees/{id}/threshold", h.Threshold.Get)
			r.Put("/employees/{id}/threshold", h.Threshold.SetOverride)
		}

		if h.Payroll != nil {
			r.Route("/payroll", func(pr chi.Router) {
				pr.Get("/employees/{id}/pending", h.Payroll.Pending)
				pr.Post("/mark-processed", h.Payroll.MarkProcessed)
				pr.Post("/periods", h.Payroll.CreatePeriod)
				pr.Post("/periods/{id}/close", h.Payroll.ClosePeriod)
			})
		}

		r.Route("/sync", func(sr chi.Router) {
			if h.Accounting != nil {
				sr.Post("/expenses/{id}", h.Accounting.SyncExpense)
				sr.Post("/payroll-periods/{id}", h.Accounting.SyncPayrollPeriod)
				sr.Post("/full", h.Accounting.FullSync)
				sr.Post("/pending", h.Accounting.SyncPending)
				sr.Post("/retry", h.Accounting.RetryFailed)
				sr.Get("/accounting/test-connection", h.Accounting.TestConnection)
			}
			if h.SyncLog != nil {
				sr.Get("/settings", h.SyncLog.GetSettings)
				sr.Patch("/settings", h.SyncLog.UpdateSettings)
				sr.Get("/logs", h.SyncLog.Logs)
			}
		})

		if h.Device != nil {
			r.Route("/devices", func(dr chi.Router) {
				dr.Post("/sync-all", h.Device.SyncAll)
				dr.Post("/{id}/sync", h.Device.Sync)
				dr.Post("/{id}/push-employees", h.Device.PushEmployees)
				dr.Get("/{id}/test-connection", h.Device.TestConnection)
			})
		}
	})
}
