package plenumsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Plenum HTTP API client.
type Client struct {
	BaseURL     string
	MeetingID   string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL, meetingID string) *Client {
	return &Client{
		BaseURL:   baseURL,
		MeetingID: meetingID,
		Timeout:   10 * time.Second,
	}
}

// Motion represents the API motion model.
type Motion struct {
	ID         int64          `json:"id"`
	MeetingID  string         `json:"meeting_id"`
	Type       string         `json:"type"`
	Parent     *int64         `json:"parent,omitempty"`
	GroupID    int64          `json:"group_id"`
	Status     string         `json:"status"`
	CreatedBy  string         `json:"created_by"`
	CreatedAt  string         `json:"created_at"`
	ModifiedAt string         `json:"modified_at"`
	Payload    map[string]any `json:"payload,omitempty"`
}

// Meeting represents a plenary session.
type Meeting struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Moderate  string `json:"moderate"`
	Status    string `json:"status"`
	CreatedBy string `json:"created_by"`
	CreatedAt string `json:"created_at"`
}

// Event represents a log entry.
type Event struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts"`
	Type       string         `json:"type"`
	MeetingID  string         `json:"meeting_id"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id"`
	ActorID    string         `json:"actor_id"`
	Payload    map[string]any `json:"payload"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// CreateMeeting opens a new meeting.
func (c *Client) CreateMeeting(ctx context.Context, name, moderate string) (Meeting, error) {
	body := map[string]any{"name": name}
	if moderate != "" {
		body["moderate"] = moderate
	}
	var resp Meeting
	err := c.do(ctx, http.MethodPost, "v0/meetings", body, &resp)
	return resp, err
}

// OfferMotion offers a motion of the given type. A disabled type returns a
// zero Motion with no error.
func (c *Client) OfferMotion(ctx context.Context, typ string, groupID int64, payload map[string]any) (Motion, error) {
	body := map[string]any{"type": typ}
	if groupID != 0 {
		body["group_id"] = groupID
	}
	if payload != nil {
		body["payload"] = payload
	}
	var resp Motion
	err := c.do(ctx, http.MethodPost, c.meetingPath("motions"), body, &resp)
	return resp, err
}

// Decide changes a motion's status.
func (c *Client) Decide(ctx context.Context, motionID int64, status string) (Motion, error) {
	var resp Motion
	endpoint := c.meetingPath(fmt.Sprintf("motions/%d/status", motionID))
	err := c.do(ctx, http.MethodPut, endpoint, map[string]any{"status": status}, &resp)
	return resp, err
}

// DeleteMotion removes a motion and its descendants.
func (c *Client) DeleteMotion(ctx context.Context, motionID int64) error {
	endpoint := c.meetingPath(fmt.Sprintf("motions/%d", motionID))
	return c.do(ctx, http.MethodDelete, endpoint, nil, nil)
}

// Pending returns the pending motion chain for a group.
func (c *Client) Pending(ctx context.Context, groupID int64) ([]Motion, error) {
	var resp []Motion
	err := c.do(ctx, http.MethodGet, c.groupQuery("pending", groupID), nil, &resp)
	return resp, err
}

// Available returns the motion types currently in order, keyed by type name.
func (c *Client) Available(ctx context.Context, groupID int64) (map[string]string, error) {
	var resp map[string]string
	err := c.do(ctx, http.MethodGet, c.groupQuery("available", groupID), nil, &resp)
	return resp, err
}

// Offered returns the draft motions queued for the floor.
func (c *Client) Offered(ctx context.Context, groupID int64) ([]Motion, error) {
	var resp []Motion
	err := c.do(ctx, http.MethodGet, c.groupQuery("offered", groupID), nil, &resp)
	return resp, err
}

// Events returns recent events for the meeting.
func (c *Client) Events(ctx context.Context, limit int) ([]Event, error) {
	endpoint := c.meetingPath("events")
	if limit > 0 {
		endpoint = fmt.Sprintf("%s?limit=%d", endpoint, limit)
	}
	var resp []Event
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// AssignRole grants a meeting role to an actor.
func (c *Client) AssignRole(ctx context.Context, actorID, role string) error {
	body := map[string]any{"actor_id": actorID, "role": role}
	return c.do(ctx, http.MethodPost, c.meetingPath("roles"), body, nil)
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	target := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, target, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) meetingPath(p string) string {
	meeting := url.PathEscape(c.MeetingID)
	return fmt.Sprintf("v0/meetings/%s/%s", meeting, strings.TrimLeft(p, "/"))
}

func (c *Client) groupQuery(p string, groupID int64) string {
	endpoint := c.meetingPath(p)
	if groupID != 0 {
		endpoint = fmt.Sprintf("%s?group=%d", endpoint, groupID)
	}
	return endpoint
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
