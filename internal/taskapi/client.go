// Package taskapi is the REST client for the PlanMyDay task API.
package taskapi

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

	"planmyday/internal/auth"
	"planmyday/internal/httputil"
	"planmyday/internal/logger"
	"planmyday/internal/task"
	"planmyday/internal/version"
)

// Task is the wire form of a card.
type Task struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	Duration      int    `json:"duration,omitempty"`
	Importance    string `json:"importance,omitempty"`
	Status        string `json:"status,omitempty"`
	ScheduledTime string `json:"scheduledTime,omitempty"`
}

// Card converts the wire task to a board card. A missing status lands in todo.
func (t Task) Card() task.Card {
	return task.Card{
		ID:            t.ID,
		Title:         t.Title,
		Column:        task.ColumnFromStatus(t.Status),
		Duration:      t.Duration,
		Importance:    task.Importance(t.Importance),
		ScheduledTime: t.ScheduledTime,
	}
}

// CreateRequest is the POST /api/tasks body.
type CreateRequest struct {
	Title         string `json:"title"`
	Duration      int    `json:"duration"`
	Importance    string `json:"importance"`
	Status        string `json:"status"`
	ScheduledTime string `json:"scheduledTime,omitempty"`
}

// NewCreateRequest builds the body from normalized input.
func NewCreateRequest(in task.Input) CreateRequest {
	return CreateRequest{
		Title:         in.Title,
		Duration:      in.Duration,
		Importance:    string(in.Importance),
		Status:        string(in.Column),
		ScheduledTime: in.ScheduledTime,
	}
}

// UpdateRequest is the PUT /api/tasks/{id} body. Nil fields are left out; an
// empty ScheduledTime clears the time.
type UpdateRequest struct {
	Status        *string `json:"status,omitempty"`
	ScheduledTime *string `json:"scheduledTime,omitempty"`
}

// StatusUpdate moves a task to col.
func StatusUpdate(col task.Column) UpdateRequest {
	s := string(col)
	return UpdateRequest{Status: &s}
}

// TimeUpdate sets or clears the scheduled time.
func TimeUpdate(hhmm string) UpdateRequest {
	return UpdateRequest{ScheduledTime: &hhmm}
}

// GenerateRequest asks the API to draft tasks with its AI endpoint.
type GenerateRequest struct {
	CustomPrompts     []string        `json:"customPrompts,omitempty"`
	ExistingPlan      json.RawMessage `json:"existingPlan,omitempty"`
	AlignWithSchedule bool            `json:"alignWithSchedule,omitempty"`
}

// Alignment summarizes what align-tasks-with-plan changed.
type Alignment struct {
	Inserted  int `json:"inserted"`
	Modified  int `json:"modified"`
	Deleted   int `json:"deleted"`
	Conflicts int `json:"conflicts"`
}

type AlignResult struct {
	OK        bool      `json:"ok"`
	Message   string    `json:"message"`
	Alignment Alignment `json:"alignment"`
}

type ArchiveResult struct {
	Message string `json:"message"`
	Count   int    `json:"count"`
}

// Breakdown counts tasks per board status.
type Breakdown struct {
	Backlog int `json:"backlog"`
	Todo    int `json:"todo"`
	Doing   int `json:"doing"`
	Done    int `json:"done"`
}

// Dictation is the assistant's spoken-style summary of the board.
type Dictation struct {
	Dictation string    `json:"dictation"`
	TaskCount int       `json:"taskCount"`
	Breakdown Breakdown `json:"breakdown"`
}

// Answer is the assistant's reply to a free-form question about the day.
type Answer struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

type tasksResponse struct {
	Tasks []Task `json:"tasks"`
}

type planResponse struct {
	Plan json.RawMessage `json:"plan"`
}

// Client talks to one API base URL with one token source.
type Client struct {
	baseURL string
	tokens  auth.TokenSource
	http    *httputil.RetryableClient
}

// New returns a client for baseURL (for example http://localhost:8787).
func New(baseURL string, tokens auth.TokenSource) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  tokens,
		http:    httputil.NewDefaultClient(),
	}
}

// WithHTTPClient swaps the transport, mainly to shorten retries in tests.
func (c *Client) WithHTTPClient(h *httputil.RetryableClient) *Client {
	c.http = h
	return c
}

// BaseURL returns the API root this client targets.
func (c *Client) BaseURL() string { return c.baseURL }

// Tasks fetches every task of the signed-in user, in server order.
func (c *Client) Tasks(ctx context.Context) ([]Task, error) {
	var resp tasksResponse
	if err := c.do(ctx, http.MethodGet, "/api/tasks", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Tasks, nil
}

// Create posts a new task. The response body is ignored; callers reload.
func (c *Client) Create(ctx context.Context, req CreateRequest) error {
	return c.do(ctx, http.MethodPost, "/api/tasks", req, nil)
}

// Update applies a partial update to one task.
func (c *Client) Update(ctx context.Context, id string, req UpdateRequest) error {
	return c.do(ctx, http.MethodPut, "/api/tasks/"+url.PathEscape(id), req, nil)
}

// Delete removes one task.
func (c *Client) Delete(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/tasks/"+url.PathEscape(id), nil, nil)
}

// Plan returns the stored day plan as raw JSON, or nil when none exists.
func (c *Client) Plan(ctx context.Context) (json.RawMessage, error) {
	var resp planResponse
	if err := c.do(ctx, http.MethodGet, "/api/plan", nil, &resp); err != nil {
		return nil, err
	}
	if string(resp.Plan) == "null" {
		return nil, nil
	}
	return resp.Plan, nil
}

// Generate asks the API to create tasks; the new tasks are returned as well as stored.
func (c *Client) Generate(ctx context.Context, req GenerateRequest) ([]Task, error) {
	var resp tasksResponse
	if err := c.do(ctx, http.MethodPost, "/api/generate-tasks", req, &resp); err != nil {
		return nil, err
	}
	return resp.Tasks, nil
}

// Align reconciles the task list with the stored plan.
func (c *Client) Align(ctx context.Context) (AlignResult, error) {
	var resp AlignResult
	err := c.do(ctx, http.MethodPost, "/api/align-tasks-with-plan", struct{}{}, &resp)
	return resp, err
}

// Archive clears finished tasks, or every task when keepIncomplete is false.
func (c *Client) Archive(ctx context.Context, keepIncomplete bool) (ArchiveResult, error) {
	var resp ArchiveResult
	body := struct {
		KeepIncomplete bool `json:"keepIncomplete"`
	}{keepIncomplete}
	err := c.do(ctx, http.MethodPost, "/api/clear-tasks", body, &resp)
	return resp, err
}

// Dictate asks the board assistant to read the current tasks back as prose.
func (c *Client) Dictate(ctx context.Context) (Dictation, error) {
	var resp Dictation
	err := c.do(ctx, http.MethodPost, "/api/kanban-ai/dictate", struct{}{}, &resp)
	return resp, err
}

// Ask sends one question to the board assistant.
func (c *Client) Ask(ctx context.Context, question string) (Answer, error) {
	var resp Answer
	body := struct {
		Question string `json:"question"`
	}{question}
	err := c.do(ctx, http.MethodPost, "/api/kanban-ai/ask", body, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, path string, body, result interface{}) error {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return err
	}

	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rdr = bytes.NewReader(data)
	}

	fullURL := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, method, fullURL, rdr)
	if err != nil {
		return fmt.Errorf("failed to create request: %v", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("User-Agent", version.UserAgent())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if strings.Contains(c.baseURL, "ngrok") {
		req.Header.Set("ngrok-skip-browser-warning", "true")
	}

	logger.HTTP(method, fullURL)
	start := time.Now()
	err = c.http.DoJSONRequest(ctx, req, result)
	logger.API("%s %s done in %v (err=%v)", method, path, time.Since(start), err != nil)
	return err
}
