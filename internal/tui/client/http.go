package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/pcg-live/monitor/internal/health"
	"github.com/pcg-live/monitor/internal/session"
	"github.com/pcg-live/monitor/internal/ws"
)

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("%d %s", e.Status, e.Code)
}

// IsNotRunning reports whether err is the server refusing an anomaly for an
// idle session.
func IsNotRunning(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == "not_running"
}

// HTTPClient makes REST calls to the monitor server.
type HTTPClient struct {
	baseURL string
	token   string
	locale  string
	client  *http.Client
}

// NewHTTPClient creates a client targeting baseURL (e.g.
// "http://127.0.0.1:8080"). locale is sent with every request.
func NewHTTPClient(baseURL, token, locale string) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		token:   token,
		locale:  locale,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *HTTPClient) Sessions() ([]session.Snapshot, error) {
	var out []session.Snapshot
	return out, c.do(http.MethodGet, "/api/sessions", &out)
}

func (c *HTTPClient) Start(id string) (*session.Snapshot, error) {
	return c.action(id, "start")
}

func (c *HTTPClient) Stop(id string) (*session.Snapshot, error) {
	return c.action(id, "stop")
}

func (c *HTTPClient) InjectAnomaly(id string) (*session.Snapshot, error) {
	return c.action(id, "anomaly")
}

// Labels fetches the label table for the client's locale.
func (c *HTTPClient) Labels() (map[string]string, error) {
	out := make(map[string]string)
	return out, c.do(http.MethodGet, "/api/labels", &out)
}

func (c *HTTPClient) Health() (*health.Report, error) {
	var r health.Report
	if err := c.do(http.MethodGet, "/api/health", &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (c *HTTPClient) action(id, verb string) (*session.Snapshot, error) {
	var snap session.Snapshot
	if err := c.do(http.MethodPost, "/api/sessions/"+url.PathEscape(id)+"/"+verb, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (c *HTTPClient) do(method, path string, out interface{}) error {
	u := c.baseURL + path
	if c.locale != "" {
		u += "?locale=" + url.QueryEscape(c.locale)
	}
	req, err := http.NewRequest(method, u, nil)
	if err != nil {
		return err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{Status: resp.StatusCode, Code: http.StatusText(resp.StatusCode)}
		var payload ws.ErrorPayload
		if json.Unmarshal(body, &payload) == nil && payload.Code != "" {
			apiErr.Code = payload.Code
			apiErr.Message = payload.Message
		} else {
			apiErr.Message = string(body)
		}
		return fmt.Errorf("%s %s: %w", method, path, apiErr)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
