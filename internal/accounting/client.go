package accounting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/frahmantamala/payroll-admin/internal"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

// Result is what the accounting system said about one sync call.
type Result struct {
	Success    bool                   `json:"success"`
	Message    string                 `json:"message"`
	ExternalID string                 `json:"external_id,omitempty"`
	Data       map[string]interface{} `json:"data,omitempty"`
}

type ExpensePayload struct {
	ExpenseID     int64           `json:"expense_id"`
	Reference     string          `json:"reference"`
	EmployeeID    int64           `json:"employee_id"`
	Category      string          `json:"category,omitempty"`
	Description   string          `json:"description"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	ExpenseDate   time.Time       `json:"expense_date"`
	PayrollEffect string          `json:"payroll_effect"`
	ExternalID    string          `json:"external_id,omitempty"`
}

type PayrollLine struct {
	ExpenseID        int64           `json:"expense_id"`
	EmployeeID       int64           `json:"employee_id"`
	PayrollReference string          `json:"payroll_reference"`
	Operation        string          `json:"operation"`
	Amount           decimal.Decimal `json:"amount"`
}

type PayrollPeriodPayload struct {
	PeriodID        int64           `json:"period_id"`
	Name            string          `json:"name"`
	StartDate       time.Time       `json:"start_date"`
	EndDate         time.Time       `json:"end_date"`
	TotalAdditions  decimal.Decimal `json:"total_additions"`
	TotalDeductions decimal.Decimal `json:"total_deductions"`
	Lines           []PayrollLine   `json:"lines"`
	ExternalID      string          `json:"external_id,omitempty"`
}

// Client is the accounting system as seen by the sync service.
type Client interface {
	SyncExpense(ctx context.Context, payload ExpensePayload) (*Result, error)
	SyncPayrollPeriod(ctx context.Context, payload PayrollPeriodPayload) (*Result, error)
	TestConnection(ctx context.Context) (*Result, error)
}

type ClientConfig struct {
	BaseURL           string
	RealmID           string
	AccessToken       string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
}

func ClientConfigFrom(cfg internal.AccountingConfig) ClientConfig {
	return ClientConfig{
		BaseURL:           cfg.BaseURL,
		RealmID:           cfg.RealmID,
		AccessToken:       cfg.AccessToken,
		Timeout:           cfg.Timeout,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Burst:             cfg.Burst,
	}
}

// QuickBooksClient talks to the QuickBooks Online REST API. Requests are
// throttled client side to stay under the company's rate limit.
type QuickBooksClient struct {
	baseURL     string
	realmID     string
	accessToken string
	timeout     time.Duration
	httpClient  *http.Client
	limiter     *rate.Limiter
	logger      *slog.Logger
}

func NewQuickBooksClient(cfg ClientConfig, logger *slog.Logger) *QuickBooksClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	return &QuickBooksClient{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		realmID:     cfg.RealmID,
		accessToken: cfg.AccessToken,
		timeout:     timeout,
		httpClient:  &http.Client{Timeout: timeout},
		limiter:     rate.NewLimiter(rate.Limit(rps), burst),
		logger:      logger,
	}
}

type entityRef struct {
	ID        string `json:"Id"`
	SyncToken string `json:"SyncToken"`
}

func (c *QuickBooksClient) SyncExpense(ctx context.Context, payload ExpensePayload) (*Result, error) {
	body := map[string]interface{}{
		"PaymentType": "Cash",
		"TxnDate":     payload.ExpenseDate.Format("2006-01-02"),
		"DocNumber":   payload.Reference,
		"PrivateNote": payload.Description,
		"CurrencyRef": map[string]string{"value": payload.Currency},
		"Line": []map[string]interface{}{{
			"Amount":     payload.Amount,
			"DetailType": "AccountBasedExpenseLineDetail",
			"Description": fmt.Sprintf("%s (employee %d, %s)",
				payload.Category, payload.EmployeeID, payload.PayrollEffect),
		}},
	}
	if payload.ExternalID != "" {
		body["Id"] = payload.ExternalID
		body["sparse"] = true
	}

	var resp struct {
		Purchase entityRef `json:"Purchase"`
	}
	if err := c.do(ctx, http.MethodPost, "/purchase", body, &resp); err != nil {
		return nil, err
	}

	return &Result{
		Success:    true,
		Message:    fmt.Sprintf("expense %s synced", payload.Reference),
		ExternalID: resp.Purchase.ID,
		Data:       map[string]interface{}{"sync_token": resp.Purchase.SyncToken},
	}, nil
}

// SyncPayrollPeriod posts the period's additions and deductions as one
// journal entry.
func (c *QuickBooksClient) SyncPayrollPeriod(ctx context.Context, payload PayrollPeriodPayload) (*Result, error) {
	lines := make([]map[string]interface{}, 0, len(payload.Lines))
	for _, l := range payload.Lines {
		posting := "Debit"
		if l.Operation == "DEDUCT" {
			posting = "Credit"
		}
		lines = append(lines, map[string]interface{}{
			"Amount":      l.Amount,
			"DetailType":  "JournalEntryLineDetail",
			"Description": fmt.Sprintf("%s expense %d employee %d", l.PayrollReference, l.ExpenseID, l.EmployeeID),
			"JournalEntryLineDetail": map[string]string{
				"PostingType": posting,
			},
		})
	}
	body := map[string]interface{}{
		"TxnDate":     payload.EndDate.Format("2006-01-02"),
		"DocNumber":   fmt.Sprintf("PAYROLL-%d", payload.PeriodID),
		"PrivateNote": payload.Name,
		"Line":        lines,
	}
	if payload.ExternalID != "" {
		body["Id"] = payload.ExternalID
		body["sparse"] = true
	}

	var resp struct {
		JournalEntry entityRef `json:"JournalEntry"`
	}
	if err := c.do(ctx, http.MethodPost, "/journalentry", body, &resp); err != nil {
		return nil, err
	}

	return &Result{
		Success:    true,
		Message:    fmt.Sprintf("payroll period %s synced", payload.Name),
		ExternalID: resp.JournalEntry.ID,
		Data: map[string]interface{}{
			"lines":            len(lines),
			"total_additions":  payload.TotalAdditions.StringFixed(2),
			"total_deductions": payload.TotalDeductions.StringFixed(2),
		},
	}, nil
}

func (c *QuickBooksClient) TestConnection(ctx context.Context) (*Result, error) {
	var resp struct {
		CompanyInfo struct {
			CompanyName string `json:"CompanyName"`
		} `json:"CompanyInfo"`
	}
	if err := c.do(ctx, http.MethodGet, "/companyinfo/"+c.realmID, nil, &resp); err != nil {
		return nil, err
	}
	return &Result{
		Success: true,
		Message: "connected to " + resp.CompanyInfo.CompanyName,
	}, nil
}

func (c *QuickBooksClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	if c.baseURL == "" || c.realmID == "" {
		return fmt.Errorf("%w: accounting base url and realm id", internal.ErrConfigMissing)
	}

	ctx, cancel := internal.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: rate limiter: %v", internal.ErrExternalSyncFailure, err)
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal accounting request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	url := fmt.Sprintf("%s/v3/company/%s%s", c.baseURL, c.realmID, path)
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", internal.ErrExternalSyncFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		c.logger.Warn("accounting API returned an error",
			"status_code", resp.StatusCode,
			"path", path,
			"body", string(raw))
		return fmt.Errorf("%w: accounting API returned status %d", internal.ErrExternalSyncFailure, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: failed to decode response: %v", internal.ErrExternalSyncFailure, err)
	}
	return nil
}
