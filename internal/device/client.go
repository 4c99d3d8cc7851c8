package device

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/frahmantamala/payroll-admin/internal"
)

// RawLog is one punch as the device reports it.
type RawLog struct {
	DeviceUserID string    `json:"user_id"`
	Timestamp    time.Time `json:"timestamp"`
	Punch        int       `json:"punch"`
}

type DeviceSyncResult struct {
	Success    bool
	LogsSynced int
	SyncTime   time.Time
	Error      string
	Logs       []RawLog
}

type User struct {
	UserID     string `json:"user_id"`
	Name       string `json:"name"`
	EmployeeID int64  `json:"employee_id"`
}

type EmployeeSyncResult struct {
	Success         bool   `json:"success"`
	EmployeesSynced int    `json:"employees_synced"`
	TotalEmployees  int    `json:"total_employees"`
	Error           string `json:"error,omitempty"`
}

// Client reaches attendance devices. Failures are reported in the results,
// never as errors.
type Client interface {
	TestConnection(ctx context.Context, dev *Device) (bool, string)
	SyncDeviceData(ctx context.Context, dev *Device, since *time.Time) DeviceSyncResult
	SyncEmployeesToDevice(ctx context.Context, dev *Device, users []User) EmployeeSyncResult
}

// GatewayClient talks to the device gateway, which speaks the vendor protocol
// to each terminal and exposes it over HTTP.
type GatewayClient struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
	logger     *slog.Logger
	now        func() time.Time
}

func NewGatewayClient(cfg internal.DeviceConfig, logger *slog.Logger) *GatewayClient {
	timeout := cfg.ConnectionTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &GatewayClient{
		baseURL:    strings.TrimRight(cfg.GatewayURL, "/"),
		timeout:    timeout,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (c *GatewayClient) TestConnection(ctx context.Context, dev *Device) (bool, string) {
	var resp struct {
		OK       bool   `json:"ok"`
		Message  string `json:"message"`
		Firmware string `json:"firmware"`
	}
	if err := c.do(ctx, http.MethodGet, c.devicePath(dev, "/ping"), nil, &resp); err != nil {
		return false, err.Error()
	}
	if !resp.OK {
		return false, resp.Message
	}
	msg := fmt.Sprintf("connected to %s (%s:%d)", dev.Name, dev.IPAddress, dev.Port)
	if resp.Firmware != "" {
		msg += ", firmware " + resp.Firmware
	}
	return true, msg
}

func (c *GatewayClient) SyncDeviceData(ctx context.Context, dev *Device, since *time.Time) DeviceSyncResult {
	path := c.devicePath(dev, "/attendance")
	if since != nil {
		path += "?since=" + url.QueryEscape(since.UTC().Format(time.RFC3339))
	}

	var resp struct {
		Records []RawLog `json:"records"`
	}
	syncTime := c.now()
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return DeviceSyncResult{SyncTime: syncTime, Error: err.Error()}
	}
	return DeviceSyncResult{
		Success:    true,
		LogsSynced: len(resp.Records),
		SyncTime:   syncTime,
		Logs:       resp.Records,
	}
}

func (c *GatewayClient) SyncEmployeesToDevice(ctx context.Context, dev *Device, users []User) EmployeeSyncResult {
	result := EmployeeSyncResult{TotalEmployees: len(users)}

	var resp struct {
		Synced int `json:"synced"`
	}
	body := map[string]interface{}{"users": users}
	if err := c.do(ctx, http.MethodPost, c.devicePath(dev, "/users"), body, &resp); err != nil {
		result.Error = err.Error()
		return result
	}
	result.Success = true
	result.EmployeesSynced = resp.Synced
	return result
}

func (c *GatewayClient) devicePath(dev *Device, suffix string) string {
	return fmt.Sprintf("/devices/%s:%d%s", dev.IPAddress, dev.Port, suffix)
}

func (c *GatewayClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	if c.baseURL == "" {
		return fmt.Errorf("%w: device gateway url", internal.ErrConfigMissing)
	}

	ctx, cancel := internal.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal gateway request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", internal.ErrExternalSyncFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		c.logger.Warn("device gateway returned an error",
			"status_code", resp.StatusCode,
			"path", path,
			"body", string(raw))
		return fmt.Errorf("%w: device gateway returned status %d", internal.ErrExternalSyncFailure, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: failed to decode gateway response: %v", internal.ErrExternalSyncFailure, err)
	}
	return nil
}
