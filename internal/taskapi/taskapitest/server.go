// Package taskapitest runs an in-memory task API for tests.
package taskapitest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/labstack/echo/v4"

	"planmyday/internal/taskapi"
)

// Token is the bearer token the fake server accepts.
const Token = "test-token"

// Request is one recorded call. Body is the decoded JSON object, or nil.
type Request struct {
	Method string
	Path   string
	Body   map[string]interface{}
}

type failure struct {
	status  int
	message string
}

// Server is an httptest server speaking the task API.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	tasks    []taskapi.Task
	nextID   int
	requests []Request
	failures map[string][]failure
	plan     json.RawMessage
}

// NewServer starts a server seeded with tasks. Close it when done.
func NewServer(seed ...taskapi.Task) *Server {
	s := &Server{
		tasks:    append([]taskapi.Task(nil), seed...),
		nextID:   len(seed) + 1,
		failures: make(map[string][]failure),
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(s.record, s.authorize, s.injectFailures)
	e.GET("/api/tasks", s.list)
	e.POST("/api/tasks", s.create)
	e.PUT("/api/tasks/:id", s.update)
	e.DELETE("/api/tasks/:id", s.remove)
	e.GET("/api/plan", s.getPlan)
	e.POST("/api/generate-tasks", s.generate)
	e.POST("/api/align-tasks-with-plan", s.align)
	e.POST("/api/clear-tasks", s.clear)
	e.POST("/api/kanban-ai/dictate", s.dictate)
	e.POST("/api/kanban-ai/ask", s.ask)

	s.Server = httptest.NewServer(e)
	return s
}

// Tasks returns a copy of the stored tasks in server order.
func (s *Server) Tasks() []taskapi.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]taskapi.Task(nil), s.tasks...)
}

// Requests returns every recorded request, oldest first.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// Mutations returns recorded requests other than GET.
func (s *Server) Mutations() []Request {
	var out []Request
	for _, r := range s.Requests() {
		if r.Method != http.MethodGet {
			out = append(out, r)
		}
	}
	return out
}

// ResetRequests clears the request log.
func (s *Server) ResetRequests() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = nil
}

// FailNext makes the next request matching method and path prefix fail with
// status and {"error": message}. An empty message sends an empty JSON object.
func (s *Server) FailNext(method, pathPrefix string, status int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := method + " " + pathPrefix
	s.failures[key] = append(s.failures[key], failure{status, message})
}

// SetPlan stores the plan returned by GET /api/plan.
func (s *Server) SetPlan(plan string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plan = json.RawMessage(plan)
}

func (s *Server) record(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := Request{Method: c.Request().Method, Path: c.Request().URL.Path}
		if c.Request().Body != nil {
			data, _ := io.ReadAll(c.Request().Body)
			c.Request().Body = io.NopCloser(strings.NewReader(string(data)))
			if len(data) > 0 {
				var body map[string]interface{}
				if json.Unmarshal(data, &body) == nil {
					req.Body = body
				}
			}
		}
		s.mu.Lock()
		s.requests = append(s.requests, req)
		s.mu.Unlock()
		return next(c)
	}
}

func (s *Server) authorize(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if c.Request().Header.Get(echo.HeaderAuthorization) != "Bearer "+Token {
			return c.JSON(http.StatusUnauthorized, errorBody("Unauthorized"))
		}
		return next(c)
	}
}

func (s *Server) injectFailures(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		method, path := c.Request().Method, c.Request().URL.Path
		s.mu.Lock()
		for key, queue := range s.failures {
			m, prefix, _ := strings.Cut(key, " ")
			if m != method || !strings.HasPrefix(path, prefix) || len(queue) == 0 {
				continue
			}
			f := queue[0]
			s.failures[key] = queue[1:]
			s.mu.Unlock()
			if f.message == "" {
				return c.JSON(f.status, map[string]string{})
			}
			return c.JSON(f.status, errorBody(f.message))
		}
		s.mu.Unlock()
		return next(c)
	}
}

func errorBody(msg string) map[string]string {
	return map[string]string{"error": msg}
}

func (s *Server) list(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{"tasks": s.Tasks()})
}

func (s *Server) create(c echo.Context) error {
	var req taskapi.CreateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("invalid body"))
	}
	if strings.TrimSpace(req.Title) == "" {
		return c.JSON(http.StatusBadRequest, errorBody("Title is required"))
	}

	s.mu.Lock()
	t := taskapi.Task{
		ID:            fmt.Sprintf("task-%d", s.nextID),
		Title:         req.Title,
		Duration:      req.Duration,
		Importance:    req.Importance,
		Status:        req.Status,
		ScheduledTime: req.ScheduledTime,
	}
	s.nextID++
	s.tasks = append(s.tasks, t)
	s.mu.Unlock()

	return c.JSON(http.StatusCreated, map[string]interface{}{"task": t})
}

func (s *Server) update(c echo.Context) error {
	var req taskapi.UpdateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("invalid body"))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(c.Param("id"))
	if i < 0 {
		return c.JSON(http.StatusNotFound, errorBody("Task not found"))
	}
	if req.Status != nil {
		s.tasks[i].Status = *req.Status
	}
	if req.ScheduledTime != nil {
		s.tasks[i].ScheduledTime = *req.ScheduledTime
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"task": s.tasks[i]})
}

func (s *Server) remove(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(c.Param("id"))
	if i < 0 {
		return c.JSON(http.StatusNotFound, errorBody("Task not found"))
	}
	s.tasks = append(s.tasks[:i], s.tasks[i+1:]...)
	return c.JSON(http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) getPlan(c echo.Context) error {
	s.mu.Lock()
	plan := s.plan
	s.mu.Unlock()
	if plan == nil {
		plan = json.RawMessage("null")
	}
	return c.JSON(http.StatusOK, map[string]json.RawMessage{"plan": plan})
}

// generate adds one todo task per custom prompt, or a single placeholder task.
func (s *Server) generate(c echo.Context) error {
	var req taskapi.GenerateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("invalid body"))
	}
	prompts := req.CustomPrompts
	if len(prompts) == 0 {
		prompts = []string{"Plan the day"}
	}

	s.mu.Lock()
	var created []taskapi.Task
	for _, p := range prompts {
		t := taskapi.Task{ID: fmt.Sprintf("task-%d", s.nextID), Title: p, Duration: 30, Importance: "medium", Status: "todo"}
		s.nextID++
		s.tasks = append(s.tasks, t)
		created = append(created, t)
	}
	s.mu.Unlock()

	return c.JSON(http.StatusOK, map[string]interface{}{"tasks": created})
}

// align marks nothing changed unless a plan exists, in which case it reports a
// single modification to keep the response shape realistic.
func (s *Server) align(c echo.Context) error {
	s.mu.Lock()
	hasPlan := s.plan != nil
	s.mu.Unlock()
	if !hasPlan {
		return c.JSON(http.StatusBadRequest, errorBody("No plan found. Generate a plan first."))
	}
	return c.JSON(http.StatusOK, taskapi.AlignResult{
		OK:        true,
		Message:   "Tasks aligned with plan",
		Alignment: taskapi.Alignment{Modified: 1},
	})
}

func (s *Server) clear(c echo.Context) error {
	var req struct {
		KeepIncomplete bool `json:"keepIncomplete"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("invalid body"))
	}

	s.mu.Lock()
	kept := s.tasks[:0]
	removed := 0
	for _, t := range s.tasks {
		if req.KeepIncomplete && t.Status != "done" {
			kept = append(kept, t)
			continue
		}
		removed++
	}
	s.tasks = kept
	s.mu.Unlock()

	return c.JSON(http.StatusOK, taskapi.ArchiveResult{Message: "Tasks archived", Count: removed})
}

// dictate lists the titles per status in board order.
func (s *Server) dictate(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var b taskapi.Breakdown
	var titles []string
	for _, t := range s.tasks {
		switch t.Status {
		case "backlog":
			b.Backlog++
		case "doing":
			b.Doing++
		case "done":
			b.Done++
		default:
			b.Todo++
		}
		titles = append(titles, t.Title)
	}
	text := "You have no tasks."
	if len(titles) > 0 {
		text = fmt.Sprintf("You have %d tasks: %s.", len(titles), strings.Join(titles, ", "))
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"ok":        true,
		"dictation": text,
		"taskCount": len(s.tasks),
		"breakdown": b,
	})
}

// ask echoes the question with the number of open tasks.
func (s *Server) ask(c echo.Context) error {
	var req struct {
		Question string `json:"question"`
	}
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Question) == "" {
		return c.JSON(http.StatusBadRequest, errorBody("Question is required"))
	}

	s.mu.Lock()
	open := 0
	for _, t := range s.tasks {
		if t.Status != "done" {
			open++
		}
	}
	s.mu.Unlock()

	return c.JSON(http.StatusOK, map[string]interface{}{
		"ok":       true,
		"question": req.Question,
		"answer":   fmt.Sprintf("You have %d open tasks.", open),
	})
}

func (s *Server) indexOf(id string) int {
	for i, t := range s.tasks {
		if t.ID == id {
			return i
		}
	}
	return -1
}
