package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"testing"
	"time"

	"planmyday/internal/auth"
	"planmyday/internal/cardstore"
	"planmyday/internal/errors"
	"planmyday/internal/httputil"
	"planmyday/internal/task"
	"planmyday/internal/taskapi"
	"planmyday/internal/taskapi/taskapitest"
	"planmyday/internal/usercfg"

	"github.com/golang-jwt/jwt/v4"
)

// newCLIStore returns a store printing notices to out, backed by a fake API
// seeded with the standard four tasks.
func newCLIStore(t *testing.T) (*cardstore.Store, *taskapitest.Server, *bytes.Buffer) {
	t.Helper()
	srv := taskapitest.NewServer(
		taskapi.Task{ID: "a", Title: "Answer email", Status: "todo", Duration: 15, Importance: "low"},
		taskapi.Task{ID: "b", Title: "Buy milk", Status: "todo", ScheduledTime: "17:30"},
		taskapi.Task{ID: "c", Title: "Cook dinner", Status: "doing"},
		taskapi.Task{ID: "d", Title: "Dentist", Status: "backlog", Duration: 60, Importance: "high"},
	)
	t.Cleanup(srv.Close)

	client := taskapi.New(srv.URL, auth.StaticToken(taskapitest.Token)).
		WithHTTPClient(httputil.NewRetryableClient(5*time.Second, 0))
	out := &bytes.Buffer{}
	return cardstore.New(client, cardstore.WithNotifier(cliNotifier(out))), srv, out
}

// TestListCards_IntegrationWithMockServer tests listCards against a test server
func TestListCards_IntegrationWithMockServer(t *testing.T) {
	s, _, _ := newCLIStore(t)
	var out bytes.Buffer

	if err := listCards(context.Background(), s, &out, ""); err != nil {
		t.Fatalf("listCards failed: %v", err)
	}

	got := out.String()
	for _, want := range []string{
		"Backlog\033[0m (1)",
		fmt.Sprintf("  %-12s %s  [%s]", "d", "Dentist", "1 hour · high"),
		"To Do\033[0m (2)",
		fmt.Sprintf("  %-12s %s  [%s]", "a", "Answer email", "15min · low"),
		fmt.Sprintf("  %-12s %s  [%s]", "b", "Buy milk", "at 17:30"),
		"In Progress\033[0m (1)",
		"Completed\033[0m (0)",
		"  (empty)",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q\n%s", want, got)
		}
	}
	if strings.Index(got, "Backlog") > strings.Index(got, "To Do") {
		t.Error("columns should be listed in board order")
	}
}

func TestListCards_SingleColumn(t *testing.T) {
	s, srv, _ := newCLIStore(t)
	var out bytes.Buffer

	if err := listCards(context.Background(), s, &out, "In Progress"); err != nil {
		t.Fatalf("listCards failed: %v", err)
	}
	if got := out.String(); !strings.Contains(got, "Cook dinner") || strings.Contains(got, "Dentist") {
		t.Errorf("unexpected output:\n%s", got)
	}

	out.Reset()
	srv.ResetRequests()
	if err := listCards(context.Background(), s, &out, "someday"); err == nil {
		t.Error("expected an error for an unknown column")
	}
	if n := len(srv.Requests()); n != 0 {
		t.Errorf("an unknown column should fail before fetching, got %d requests", n)
	}
}

func TestAddCard(t *testing.T) {
	s, srv, out := newCLIStore(t)

	err := addCard(context.Background(), s, task.Input{Title: "  Stretch  ", Column: task.ColumnBacklog, ScheduledTime: "7:15"})
	if err != nil {
		t.Fatalf("addCard failed: %v", err)
	}

	muts := srv.Mutations()
	if len(muts) != 1 || muts[0].Method != http.MethodPost {
		t.Fatalf("expected one POST, got %+v", muts)
	}
	want := map[string]interface{}{
		"title":         "Stretch",
		"duration":      float64(task.DefaultDuration),
		"importance":    string(task.DefaultImportance),
		"status":        "backlog",
		"scheduledTime": "7:15",
	}
	if !reflect.DeepEqual(muts[0].Body, want) {
		t.Errorf("POST body = %v, want %v", muts[0].Body, want)
	}
	if c, ok := s.Find("task-5"); !ok || c.Column != task.ColumnBacklog {
		t.Errorf("created card not reloaded from the server: %+v", c)
	}
	if !strings.Contains(out.String(), "Task created successfully") {
		t.Errorf("expected a success notice, got %q", out.String())
	}
}

func TestAddCard_Invalid(t *testing.T) {
	s, srv, out := newCLIStore(t)

	tests := []struct {
		name string
		in   task.Input
	}{
		{"empty title", task.Input{Title: " "}},
		{"bad time", task.Input{Title: "Run", ScheduledTime: "7pm"}},
		{"bad importance", task.Input{Title: "Run", Importance: "urgent"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := addCard(context.Background(), s, tt.in)
			if err == nil || !task.IsValidation(err) {
				t.Errorf("expected a validation error, got %v", err)
			}
		})
	}
	if n := len(srv.Requests()); n != 0 {
		t.Errorf("invalid input must not reach the server, got %d requests", n)
	}
	if out.Len() != 0 {
		t.Errorf("errors are not printed by the notifier, got %q", out.String())
	}
}

func TestMoveCard(t *testing.T) {
	s, srv, out := newCLIStore(t)

	if err := moveCard(context.Background(), s, "a", "backlog", "d"); err != nil {
		t.Fatalf("moveCard failed: %v", err)
	}

	muts := srv.Mutations()
	if len(muts) != 1 || muts[0].Path != "/api/tasks/a" {
		t.Fatalf("expected one PUT for a, got %+v", muts)
	}
	if !reflect.DeepEqual(muts[0].Body, map[string]interface{}{"status": "backlog"}) {
		t.Errorf("unexpected body %v", muts[0].Body)
	}
	var ids []string
	for _, c := range s.Column(task.ColumnBacklog) {
		ids = append(ids, c.ID)
	}
	if !reflect.DeepEqual(ids, []string{"a", "d"}) {
		t.Errorf("Backlog = %v, want [a d]", ids)
	}
	if !strings.Contains(out.String(), "Task status updated successfully") {
		t.Errorf("expected a success notice, got %q", out.String())
	}
}

func TestMoveCard_NoopAndErrors(t *testing.T) {
	s, srv, _ := newCLIStore(t)
	ctx := context.Background()

	if err := moveCard(ctx, s, "a", "todo", "a"); err != nil {
		t.Errorf("dropping a card before itself should succeed, got %v", err)
	}
	if err := moveCard(ctx, s, "a", "nowhere", ""); err == nil {
		t.Error("expected an error for an unknown column")
	}
	if err := moveCard(ctx, s, "zzz", "done", ""); err == nil || !strings.Contains(errors.Brief(err), `"zzz"`) {
		t.Errorf("expected a not-found error, got %v", err)
	}
	if n := len(srv.Mutations()); n != 0 {
		t.Errorf("expected no mutations, got %d", n)
	}
}

func TestScheduleCard(t *testing.T) {
	s, srv, _ := newCLIStore(t)
	ctx := context.Background()

	err := scheduleCard(ctx, s, "a", "25:00")
	if err == nil || !task.IsValidation(err) {
		t.Fatalf("expected a validation error, got %v", err)
	}
	if n := len(srv.Requests()); n != 0 {
		t.Fatalf("an invalid time must not reach the server, got %d requests", n)
	}

	if err := scheduleCard(ctx, s, "b", ""); err != nil {
		t.Fatalf("clearing the time failed: %v", err)
	}
	muts := srv.Mutations()
	if len(muts) != 1 || !reflect.DeepEqual(muts[0].Body, map[string]interface{}{"scheduledTime": ""}) {
		t.Errorf("expected an explicit empty time, got %+v", muts)
	}
	if c, _ := s.Find("b"); c.ScheduledTime != "" {
		t.Errorf("time not cleared: %q", c.ScheduledTime)
	}
}

func TestRemoveCard(t *testing.T) {
	s, srv, out := newCLIStore(t)
	ctx := context.Background()

	if err := removeCard(ctx, s, "missing"); err == nil {
		t.Fatal("expected an error for an unknown id")
	} else if errors.StatusCode(err) != http.StatusNotFound {
		t.Errorf("expected a 404, got %v", err)
	}
	if len(srv.Tasks()) != 4 {
		t.Errorf("other tasks must be left alone, got %d", len(srv.Tasks()))
	}
	if strings.Contains(out.String(), "Failed") {
		t.Errorf("error notices are not printed, got %q", out.String())
	}

	if err := removeCard(ctx, s, "c"); err != nil {
		t.Fatalf("removeCard failed: %v", err)
	}
	if _, ok := s.Find("c"); ok {
		t.Error("c should be gone")
	}
	if !strings.Contains(out.String(), "Task deleted successfully") {
		t.Errorf("expected a success notice, got %q", out.String())
	}
}

func TestMoveCard_BeforeCardElsewhere(t *testing.T) {
	s, srv, _ := newCLIStore(t)

	err := moveCard(context.Background(), s, "a", "todo", "c")
	if err == nil || !task.IsValidation(err) {
		t.Fatalf("expected a validation error, got %v", err)
	}
	if n := len(srv.Mutations()); n != 0 {
		t.Errorf("expected no mutations, got %d", n)
	}
}

func TestAskAssistant(t *testing.T) {
	s, _, _ := newCLIStore(t)
	var out bytes.Buffer

	if err := askAssistant(context.Background(), s, &out, "what is left?"); err != nil {
		t.Fatalf("askAssistant failed: %v", err)
	}
	if got := out.String(); got != "You have 4 open tasks.\n" {
		t.Errorf("unexpected answer %q", got)
	}
	if err := askAssistant(context.Background(), s, &out, " "); err == nil || !task.IsValidation(err) {
		t.Errorf("expected a validation error for a blank question, got %v", err)
	}
}

func TestDictateBoard(t *testing.T) {
	s, _, notices := newCLIStore(t)
	var out bytes.Buffer

	if err := dictateBoard(context.Background(), s, &out); err != nil {
		t.Fatalf("dictateBoard failed: %v", err)
	}
	got := out.String()
	for _, want := range []string{"You have 4 tasks:", "Backlog 1 · To Do 2 · In Progress 1 · Completed 0"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q\n%s", want, got)
		}
	}
	if !strings.Contains(notices.String(), "Generated dictation for 4 tasks") {
		t.Errorf("expected a success notice, got %q", notices.String())
	}
}

func mintToken(t *testing.T, sub string, exp time.Time) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   sub,
		Issuer:    "planmyday-test",
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return tok
}

func TestAuthStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("valid JWT", func(t *testing.T) {
		t.Setenv(auth.EnvToken, mintToken(t, "user-42", time.Now().Add(time.Hour)))
		var out bytes.Buffer
		if err := authStatus(ctx, usercfg.Config{}, &out); err != nil {
			t.Fatalf("authStatus failed: %v", err)
		}
		for _, want := range []string{"Token source: $PLANMYDAY_TOKEN", "Subject: user-42", "Issuer: planmyday-test", "Expires: ", "Session looks usable"} {
			if !strings.Contains(out.String(), want) {
				t.Errorf("output missing %q\n%s", want, out.String())
			}
		}
	})

	t.Run("expired JWT", func(t *testing.T) {
		t.Setenv(auth.EnvToken, mintToken(t, "user-42", time.Now().Add(-time.Hour)))
		var out bytes.Buffer
		if err := authStatus(ctx, usercfg.Config{}, &out); err == nil {
			t.Fatal("expected an error for an expired token")
		}
		if !strings.Contains(out.String(), "Expires: ") || strings.Contains(out.String(), "usable") {
			t.Errorf("unexpected output\n%s", out.String())
		}
	})

	t.Run("opaque token", func(t *testing.T) {
		t.Setenv(auth.EnvToken, "opaque-session")
		var out bytes.Buffer
		if err := authStatus(ctx, usercfg.Config{TokenCommand: "echo ignored"}, &out); err != nil {
			t.Fatalf("authStatus failed: %v", err)
		}
		if strings.Contains(out.String(), "Subject:") || !strings.Contains(out.String(), "usable") {
			t.Errorf("unexpected output\n%s", out.String())
		}
	})
}

func TestCLINotifier(t *testing.T) {
	var out bytes.Buffer
	n := cliNotifier(&out)

	n.Notify(cardstore.Notice{Level: cardstore.LevelSuccess, Message: "Task created successfully"})
	n.Notify(cardstore.Notice{Level: cardstore.LevelWarning, Message: "2 tasks left unaligned"})
	n.Notify(cardstore.Notice{Level: cardstore.LevelInfo, Message: "Nothing to archive"})
	n.Notify(cardstore.Notice{Level: cardstore.LevelError, Message: "Failed to create task: boom"})

	got := out.String()
	for _, want := range []string{"✅ Task created successfully", "⚠️  2 tasks left unaligned", "Nothing to archive\n"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q\n%s", want, got)
		}
	}
	if strings.Contains(got, "boom") {
		t.Error("error notices should be left to the command's error path")
	}
}

func TestCardMeta(t *testing.T) {
	c := task.Card{Duration: 90, Importance: task.ImportanceHigh, ScheduledTime: "9:05"}
	if got := cardMeta(c, false); got != "at 9:05" {
		t.Errorf("cardMeta(compact) = %q", got)
	}
	if got := cardMeta(c, true); got != "at 9:05 · 1.5 hours · high" {
		t.Errorf("cardMeta(extra) = %q", got)
	}
	if got := cardMeta(task.Card{}, true); got != "" {
		t.Errorf("cardMeta(empty) = %q", got)
	}
}
