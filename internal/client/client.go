// Package client is a thin HTTP client for the ServeHub notification API.
package client

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
	"unicode/utf8"

	"github.com/01moynul/servehub/internal/models"
)

var (
	// ErrNetwork wraps transport failures: the request never produced an HTTP response.
	ErrNetwork = errors.New("network failure")
	// ErrReasonTooLong is returned before sending a rejection whose reason is over the limit.
	ErrReasonTooLong = fmt.Errorf("rejection reason must be at most %d characters", models.MaxRejectionReasonLength)
)

// APIError is a non-2xx response or a body with success=false.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error (%d): %s", e.StatusCode, e.Message)
}

// IsUnauthorized reports whether err is a 401 from the API.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized
}

// ListResult is one page of notifications plus the unread total.
type ListResult struct {
	Notifications []models.Notification
	UnreadCount   int
}

// Client talks to the API with a Bearer token. Requests are never retried.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New creates a client for baseURL (e.g. http://localhost:8080).
func New(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetToken swaps the session token, e.g. after login.
func (c *Client) SetToken(token string) {
	c.token = token
}

type envelope struct {
	Success     bool            `json:"success"`
	Error       string          `json:"error"`
	Data        json.RawMessage `json:"data"`
	UnreadCount int             `json:"unreadCount"`
	Count       int             `json:"count"`
	Token       string          `json:"token"`
}

// List fetches the newest limit notifications.
func (c *Client) List(ctx context.Context, limit int) (ListResult, error) {
	path := "/v1/notifications?limit=" + url.QueryEscape(strconv.Itoa(limit))
	var env envelope
	if err := c.do(ctx, http.MethodGet, path, nil, &env); err != nil {
		return ListResult{}, err
	}
	var notifications []models.Notification
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &notifications); err != nil {
			return ListResult{}, fmt.Errorf("decoding notifications: %w", err)
		}
	}
	return ListResult{Notifications: notifications, UnreadCount: env.UnreadCount}, nil
}

// UnreadCount fetches only the badge number.
func (c *Client) UnreadCount(ctx context.Context) (int, error) {
	var env envelope
	if err := c.do(ctx, http.MethodGet, "/v1/notifications/unread-count", nil, &env); err != nil {
		return 0, err
	}
	return env.Count, nil
}

// MarkRead marks ids as read.
func (c *Client) MarkRead(ctx context.Context, ids []string) error {
	body := map[string][]string{"notificationIds": ids}
	return c.do(ctx, http.MethodPut, "/v1/notifications/mark-read", body, &envelope{})
}

// MarkAllRead marks everything as read.
func (c *Client) MarkAllRead(ctx context.Context) error {
	return c.do(ctx, http.MethodPut, "/v1/notifications/mark-all-read", nil, &envelope{})
}

// Delete removes one notification.
func (c *Client) Delete(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/v1/notifications/"+url.PathEscape(id), nil, &envelope{})
}

// AcceptParticipation accepts a pending participation request.
func (c *Client) AcceptParticipation(ctx context.Context, requestID string) error {
	path := "/v1/participation-requests/" + url.PathEscape(requestID) + "/accept"
	return c.do(ctx, http.MethodPatch, path, nil, &envelope{})
}

// RejectParticipation rejects a pending participation request. An over-long
// reason fails with ErrReasonTooLong without contacting the server.
func (c *Client) RejectParticipation(ctx context.Context, requestID, reason string) error {
	reason = strings.TrimSpace(reason)
	if utf8.RuneCountInString(reason) > models.MaxRejectionReasonLength {
		return ErrReasonTooLong
	}
	path := "/v1/participation-requests/" + url.PathEscape(requestID) + "/reject"
	var body any
	if reason != "" {
		body = map[string]string{"reason": reason}
	}
	return c.do(ctx, http.MethodPatch, path, body, &envelope{})
}

// Login exchanges credentials for a session token.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	body := map[string]string{"email": email, "password": password}
	var env envelope
	if err := c.do(ctx, http.MethodPost, "/v1/login", body, &env); err != nil {
		return "", err
	}
	if env.Token == "" {
		return "", &APIError{StatusCode: http.StatusOK, Message: "login response carried no token"}
	}
	return env.Token, nil
}

// do builds the request, handles auth and decodes the envelope into result.
func (c *Client) do(ctx context.Context, method, path string, body any, result *envelope) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrNetwork, method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: reading response body: %v", ErrNetwork, err)
	}

	decodeErr := json.Unmarshal(respBody, result)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		message := strings.TrimSpace(string(respBody))
		if decodeErr == nil && result.Error != "" {
			message = result.Error
		}
		return &APIError{StatusCode: resp.StatusCode, Message: message}
	}
	if decodeErr != nil {
		return fmt.Errorf("unmarshaling response from %s %s: %w", method, path, decodeErr)
	}
	if !result.Success {
		return &APIError{StatusCode: resp.StatusCode, Message: result.Error}
	}
	return nil
}
