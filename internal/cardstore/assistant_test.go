package cardstore

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"planmyday/internal/task"
	"planmyday/internal/taskapi"
)

func TestDictate(t *testing.T) {
	s, srv, rec := newServerStore(t)
	rev := s.Revision()

	d, err := s.Dictate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, d.TaskCount)
	assert.Equal(t, taskapi.Breakdown{Backlog: 1, Todo: 2, Doing: 1}, d.Breakdown)
	assert.Contains(t, d.Dictation, "A, B, C, D")
	assert.Equal(t, "Generated dictation for 4 tasks", rec.Last().Message)
	assert.Equal(t, rev, s.Revision(), "dictation must not touch the list")

	srv.FailNext(http.MethodPost, "/api/kanban-ai/dictate", http.StatusBadGateway, "model overloaded")
	_, err = s.Dictate(context.Background())
	require.Error(t, err)
	assert.Equal(t, "Failed to generate task dictation: model overloaded", rec.Last().Message)
}

func TestAsk(t *testing.T) {
	s, srv, rec := newServerStore(t)

	answer, err := s.Ask(context.Background(), "  What next?  ")
	require.NoError(t, err)
	assert.Equal(t, "You have 4 open tasks.", answer)

	muts := srv.Mutations()
	require.Len(t, muts, 1)
	assert.Equal(t, "/api/kanban-ai/ask", muts[0].Path)
	assert.Equal(t, map[string]interface{}{"question": "What next?"}, muts[0].Body)

	srv.ResetRequests()
	_, err = s.Ask(context.Background(), "   ")
	assert.ErrorIs(t, err, task.ErrEmptyQuestion)
	assert.True(t, task.IsValidation(err))
	assert.Equal(t, LevelError, rec.Last().Level)
	assert.Empty(t, srv.Requests())
}

func TestAssistant_Unsupported(t *testing.T) {
	s := New(&mockAPI{})

	_, err := s.Dictate(context.Background())
	assert.ErrorIs(t, err, errNoAssistant)
	_, err = s.Ask(context.Background(), "Anything?")
	assert.ErrorIs(t, err, errNoAssistant)
}
