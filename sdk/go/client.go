package adpsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client is a minimal ADP works HTTP API client.
type Client struct {
	BaseURL     string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

type ForwardedTo struct {
	Department string `json:"department,omitempty"`
	Section    string `json:"section,omitempty"`
}

// Work is the API work model.
type Work struct {
	ID                string      `json:"id"`
	DraftID           string      `json:"draftId,omitempty"`
	Sector            string      `json:"sector"`
	ProposalName      string      `json:"proposalName"`
	Area              string      `json:"area,omitempty"`
	Locality          string      `json:"locality,omitempty"`
	WardNo            string      `json:"wardNo,omitempty"`
	LatLong           string      `json:"latlong,omitempty"`
	Cost              string      `json:"cost"`
	CostDisplay       string      `json:"costDisplay"`
	Priority          int         `json:"priority"`
	CRNumber          string      `json:"crNumber,omitempty"`
	CRDate            string      `json:"crDate,omitempty"`
	WorkImage         string      `json:"workImage,omitempty"`
	DetailedReport    string      `json:"detailedReport,omitempty"`
	CommitteeReport   string      `json:"committeeReport,omitempty"`
	CouncilResolution string      `json:"councilResolution,omitempty"`
	Status            string      `json:"status"`
	ForwardedTo       ForwardedTo `json:"forwardedTo"`
	Remarks           string      `json:"remarks,omitempty"`
	RejectedBy        string      `json:"rejectedBy,omitempty"`
	SubmittedBy       string      `json:"submittedBy,omitempty"`
	CreatedAt         string      `json:"createdAt"`
	UpdatedAt         string      `json:"updatedAt"`
	ForwardedAt       string      `json:"forwardedAt,omitempty"`
	Final             bool        `json:"final,omitempty"`
	Actions           []string    `json:"actions,omitempty"`
}

// Upload is an attachment sent with a work.
type Upload struct {
	Name     string `json:"name,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
	Content  []byte `json:"content,omitempty"`
	URI      string `json:"uri,omitempty"`
}

type NewWork struct {
	Sector            string  `json:"sector"`
	ProposalName      string  `json:"proposalName"`
	Area              string  `json:"area,omitempty"`
	Locality          string  `json:"locality"`
	WardNo            string  `json:"wardNo"`
	LatLong           string  `json:"latlong,omitempty"`
	Cost              string  `json:"cost"`
	Priority          int     `json:"priority"`
	WorkImage         *Upload `json:"workImage,omitempty"`
	DetailedReport    *Upload `json:"detailedReport,omitempty"`
	CommitteeReport   *Upload `json:"committeeReport,omitempty"`
	CouncilResolution *Upload `json:"councilResolution,omitempty"`
}

type Correction struct {
	ProposalName      *string `json:"proposalName,omitempty"`
	Area              *string `json:"area,omitempty"`
	Locality          *string `json:"locality,omitempty"`
	WardNo            *string `json:"wardNo,omitempty"`
	LatLong           *string `json:"latlong,omitempty"`
	Note              string  `json:"note,omitempty"`
	WorkImage         *Upload `json:"workImage,omitempty"`
	DetailedReport    *Upload `json:"detailedReport,omitempty"`
	CommitteeReport   *Upload `json:"committeeReport,omitempty"`
	CouncilResolution *Upload `json:"councilResolution,omitempty"`
}

type WorkList struct {
	Items []Work `json:"items"`
	Total string `json:"total"`
}

type Dashboard struct {
	View   string         `json:"view"`
	Items  []Work         `json:"items"`
	Counts map[string]int `json:"counts"`
}

type CRGroup struct {
	CRNumber string `json:"crNumber"`
	CRDate   string `json:"crDate,omitempty"`
	Total    string `json:"total"`
	Items    []Work `json:"items"`
}

type Cycle struct {
	Active         bool   `json:"active"`
	Changed        bool   `json:"changed"`
	TargetCount    int    `json:"targetCount"`
	SubmittedCount int    `json:"submittedCount"`
	CRNumber       string `json:"crNumber,omitempty"`
	CRDate         string `json:"crDate,omitempty"`
	Locked         bool   `json:"locked"`
}

type Budget struct {
	Ceiling     string `json:"ceiling"`
	Committed   string `json:"committed"`
	Remaining   string `json:"remaining"`
	CRNumber    string `json:"crNumber,omitempty"`
	CRRemaining string `json:"crRemaining,omitempty"`
}

type Me struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	Role       string `json:"role"`
	Section    string `json:"section"`
	Department string `json:"department"`
}

// Event represents an audit log entry.
type Event struct {
	ID       int64          `json:"id"`
	TS       string         `json:"ts"`
	Type     string         `json:"type"`
	EntityID string         `json:"entityId"`
	ActorID  string         `json:"actorId"`
	Role     string         `json:"role"`
	Payload  map[string]any `json:"payload"`
}

// PaginatedEvents wraps list responses with cursors.
type PaginatedEvents struct {
	Items      []Event `json:"items"`
	NextCursor string  `json:"nextCursor"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error: status=%d code=%s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// DevLogin mints a token on servers with dev login enabled and keeps it for
// later calls.
func (c *Client) DevLogin(ctx context.Context, userID, username, role string) (string, error) {
	var resp struct {
		Token string `json:"token"`
	}
	body := map[string]any{"userId": userID, "username": username, "role": role}
	if err := c.do(ctx, http.MethodPost, "auth/dev/login", body, &resp); err != nil {
		return "", err
	}
	c.BearerToken = resp.Token
	return resp.Token, nil
}

func (c *Client) Me(ctx context.Context) (Me, error) {
	var resp Me
	err := c.do(ctx, http.MethodGet, "me", nil, &resp)
	return resp, err
}

// SetCycle opens or updates the CR cycle. A zero target discards it.
func (c *Client) SetCycle(ctx context.Context, target int, crNumber, crDate string) (Cycle, error) {
	var resp Cycle
	body := map[string]any{"targetCount": target, "crNumber": crNumber, "crDate": crDate}
	err := c.do(ctx, http.MethodPut, "cr-cycle", body, &resp)
	return resp, err
}

func (c *Client) Cycle(ctx context.Context) (Cycle, error) {
	var resp Cycle
	err := c.do(ctx, http.MethodGet, "cr-cycle", nil, &resp)
	return resp, err
}

func (c *Client) Budget(ctx context.Context) (Budget, error) {
	var resp Budget
	err := c.do(ctx, http.MethodGet, "budget", nil, &resp)
	return resp, err
}

// Submit adds a work to the caller's local list.
func (c *Client) Submit(ctx context.Context, w NewWork) (Work, error) {
	var resp Work
	err := c.do(ctx, http.MethodPost, "works", w, &resp)
	return resp, err
}

func (c *Client) LocalWorks(ctx context.Context) (WorkList, error) {
	var resp WorkList
	err := c.do(ctx, http.MethodGet, "works/local", nil, &resp)
	return resp, err
}

func (c *Client) DiscardLocal(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "works/local/"+url.PathEscape(id), nil, nil)
}

// EndSession drops the caller's local works and CR cycle.
func (c *Client) EndSession(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "session", nil, nil)
}

// Forward sends every local work to the Commissioner.
func (c *Client) Forward(ctx context.Context) (WorkList, error) {
	var resp WorkList
	err := c.do(ctx, http.MethodPost, "works/forward", nil, &resp)
	return resp, err
}

func (c *Client) Resubmit(ctx context.Context, id string, corr Correction) (Work, error) {
	var resp Work
	err := c.do(ctx, http.MethodPost, "works/"+url.PathEscape(id)+"/resubmit", corr, &resp)
	return resp, err
}

// Works lists shared works. Filter keys are status, section, crNumber and sector.
func (c *Client) Works(ctx context.Context, filters map[string]string) (WorkList, error) {
	q := url.Values{}
	for k, v := range filters {
		if v != "" {
			q.Set(k, v)
		}
	}
	endpoint := "works"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp WorkList
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) Work(ctx context.Context, id string) (Work, error) {
	var resp Work
	err := c.do(ctx, http.MethodGet, "works/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

func (c *Client) Dashboard(ctx context.Context, view string) (Dashboard, error) {
	var resp Dashboard
	err := c.do(ctx, http.MethodGet, "dashboard/"+url.PathEscape(view), nil, &resp)
	return resp, err
}

func (c *Client) ByCR(ctx context.Context, view string) ([]CRGroup, error) {
	var resp []CRGroup
	err := c.do(ctx, http.MethodGet, "dashboard/by-cr?view="+url.QueryEscape(view), nil, &resp)
	return resp, err
}

// Act applies one action to all ids, or to none of them.
func (c *Client) Act(ctx context.Context, action string, ids []string, remarks string) (WorkList, error) {
	body := map[string]any{"action": action, "ids": ids}
	if remarks != "" {
		body["remarks"] = remarks
	}
	var resp WorkList
	err := c.do(ctx, http.MethodPost, "works/actions", body, &resp)
	return resp, err
}

// EventsPage returns a page of audit events, newest first.
func (c *Client) EventsPage(ctx context.Context, limit int, cursor string) (PaginatedEvents, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	endpoint := "events"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp PaginatedEvents
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	u := c.base() + "/v1/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, u, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
		var env struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(b, &env) == nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
		}
		return apiErr
	}
	if out != nil && resp.StatusCode != http.StatusNoContent {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
