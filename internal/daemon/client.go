package daemon

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/RobDeGeorge/fathertime/internal/errors"
	"github.com/RobDeGeorge/fathertime/internal/report"
)

// Client drives a running daemon over its HTTP API. One-shot CLI
// invocations go through here so the daemon stays the single writer of
// the data directory.
type Client struct {
	baseURL string
	http    *http.Client
}

// Dial checks for a daemon at addr and returns a client, or nil when no
// daemon is listening there.
func Dial(addr string) *Client {
	c := &Client{
		baseURL: "http://" + addr,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
	resp, err := c.http.Get(c.baseURL + "/healthz")
	if err != nil {
		return nil
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil
	}
	return c
}

// CreateTimer creates a timer and returns its view.
func (c *Client) CreateTimer(name, kind string) (TimerView, error) {
	var view TimerView
	err := c.do(http.MethodPost, "/api/timers", map[string]string{"name": name, "kind": kind}, &view)
	return view, err
}

// ListTimers returns all timers with their display strings.
func (c *Client) ListTimers() ([]TimerView, error) {
	var views []TimerView
	err := c.do(http.MethodGet, "/api/timers", nil, &views)
	return views, err
}

// StartTimer starts a timer by id.
func (c *Client) StartTimer(id string) error {
	return c.do(http.MethodPost, "/api/timers/"+id+"/start", nil, nil)
}

// StopTimer stops a timer by id.
func (c *Client) StopTimer(id string) error {
	return c.do(http.MethodPost, "/api/timers/"+id+"/stop", nil, nil)
}

// ResetTimer resets a timer's accounting.
func (c *Client) ResetTimer(id string) error {
	return c.do(http.MethodPost, "/api/timers/"+id+"/reset", nil, nil)
}

// AdjustTimer applies a manual time correction.
func (c *Client) AdjustTimer(id string, deltaSeconds int64) error {
	return c.do(http.MethodPost, "/api/timers/"+id+"/adjust", map[string]int64{"delta_seconds": deltaSeconds}, nil)
}

// SetCountdown configures a countdown's total.
func (c *Client) SetCountdown(id string, totalSeconds int64) error {
	return c.do(http.MethodPost, "/api/timers/"+id+"/countdown", map[string]int64{"total_seconds": totalSeconds}, nil)
}

// RenameTimer renames a timer.
func (c *Client) RenameTimer(id, name string) error {
	return c.do(http.MethodPost, "/api/timers/"+id+"/rename", map[string]string{"name": name}, nil)
}

// ToggleFavorite flips a timer's favorite flag.
func (c *Client) ToggleFavorite(id string) error {
	return c.do(http.MethodPost, "/api/timers/"+id+"/favorite", nil, nil)
}

// DeleteTimer deletes a timer.
func (c *Client) DeleteTimer(id string) error {
	return c.do(http.MethodDelete, "/api/timers/"+id, nil, nil)
}

// Daily returns the daily breakdown window.
func (c *Client) Daily() ([]report.DailyBreakdown, error) {
	var days []report.DailyBreakdown
	err := c.do(http.MethodGet, "/api/report/daily", nil, &days)
	return days, err
}

// Totals returns the today/yesterday/week summary.
func (c *Client) Totals() (report.Totals, error) {
	var t report.Totals
	err := c.do(http.MethodGet, "/api/report/totals", nil, &t)
	return t, err
}

// Timesheet returns the weekly timesheet as plain text.
func (c *Client) Timesheet() (string, error) {
	resp, err := c.http.Get(c.baseURL + "/api/report/timesheet")
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryDaemon, errors.SeverityError, "daemon unreachable")
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryDaemon, errors.SeverityError, "read response")
	}
	if resp.StatusCode != http.StatusOK {
		return "", decodeError(resp.StatusCode, body)
	}
	return string(body), nil
}

// ResetAll destroys all timers and history through the daemon.
func (c *Client) ResetAll() error {
	return c.do(http.MethodPost, "/api/reset-all", nil, nil)
}

// do issues one request and decodes the JSON response into out (when
// non-nil). Error envelopes come back as TrackerErrors with the category
// the daemon assigned, so CLI exit codes match local execution.
func (c *Client) do(method, path string, body, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return errors.Wrap(err, errors.CategoryInternal, errors.SeverityError, "encode request")
		}
	}
	req, err := http.NewRequest(method, c.baseURL+path, &buf)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, errors.SeverityError, "build request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, errors.CategoryDaemon, errors.SeverityError, "daemon unreachable")
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, errors.CategoryDaemon, errors.SeverityError, "read response")
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp.StatusCode, data)
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return errors.Wrap(err, errors.CategoryDaemon, errors.SeverityError, "decode response")
		}
	}
	return nil
}

// decodeError rebuilds a TrackerError from the daemon's error envelope.
func decodeError(status int, body []byte) error {
	var envelope struct {
		Error    string               `json:"error"`
		Category errors.ErrorCategory `json:"category"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || envelope.Category == "" {
		return errors.New(errors.CategoryDaemon, errors.SeverityError,
			fmt.Sprintf("daemon returned status %d", status))
	}
	return errors.New(envelope.Category, errors.SeverityWarning, envelope.Error)
}
