package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"clubadmin/internal/metrics"
	"clubadmin/internal/model"
)

// ErrUnauthorized is returned when the clubs API rejects the token.
var ErrUnauthorized = errors.New("upstream rejected credentials")

// APIError is a response the clubs API answered with an error status or
// with success=false.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("clubs api error %d", e.Status)
	}
	return fmt.Sprintf("clubs api error %d: %s", e.Status, e.Message)
}

// Client calls the clubs administration API.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// New creates a client with the given request timeout.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: timeout},
	}
}

// request describes one API call.
type request struct {
	op     string
	method string
	path   string
	token  string
	query  url.Values
	body   any
}

// do sends req and decodes the envelope's data into out (when non-nil).
func (c *Client) do(ctx context.Context, req request, out any) (err error) {
	start := time.Now()
	defer func() {
		metrics.UpstreamDuration.WithLabelValues(req.op, outcome(err)).Observe(time.Since(start).Seconds())
	}()

	var body io.Reader
	if req.body != nil {
		buf, err := json.Marshal(req.body)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", req.op, err)
		}
		body = bytes.NewReader(buf)
	}

	target := c.BaseURL + req.path
	if len(req.query) > 0 {
		target += "?" + req.query.Encode()
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.method, target, body)
	if err != nil {
		return err
	}
	httpReq.Header.Set("Accept", "application/json")
	if req.body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if req.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.token)
	}

	resp, err := c.HTTP.Do(httpReq)
	if err != nil {
		return fmt.Errorf("clubs api %s request failed: %w", req.op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s response: %w", req.op, err)
	}

	var env model.Envelope
	decodeErr := json.Unmarshal(raw, &env)

	if resp.StatusCode == http.StatusUnauthorized {
		if env.Message != "" {
			return fmt.Errorf("%w: %s", ErrUnauthorized, env.Message)
		}
		return ErrUnauthorized
	}
	if resp.StatusCode >= 300 {
		msg := env.Message
		if decodeErr != nil || msg == "" {
			msg = strings.TrimSpace(string(raw))
		}
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Message: msg}
	}
	if decodeErr != nil {
		return fmt.Errorf("failed to decode %s response: %w", req.op, decodeErr)
	}
	if !env.Success {
		return &APIError{Status: resp.StatusCode, Message: env.Message}
	}
	if out == nil || len(env.Data) == 0 || bytes.Equal(env.Data, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("failed to decode %s data: %w", req.op, err)
	}
	return nil
}

func outcome(err error) string {
	var apiErr *APIError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.As(err, &apiErr):
		return "rejected"
	default:
		return metrics.Outcome(err)
	}
}

// Retryable reports whether err came from the transport rather than from
// an answer of the API.
func Retryable(err error) bool {
	if err == nil || errors.Is(err, ErrUnauthorized) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status >= 500
	}
	return !errors.Is(err, context.Canceled)
}

// setInt adds key to q when v is positive.
func setInt(q url.Values, key string, v int) {
	if v > 0 {
		q.Set(key, strconv.Itoa(v))
	}
}

// setString adds key to q when v is not empty.
func setString(q url.Values, key, v string) {
	if v != "" {
		q.Set(key, v)
	}
}
