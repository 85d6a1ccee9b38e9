package cardstore

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"planmyday/internal/auth"
	"planmyday/internal/dropzone"
	"planmyday/internal/httputil"
	"planmyday/internal/task"
	"planmyday/internal/taskapi"
	"planmyday/internal/taskapi/taskapitest"
)

type mockAPI struct {
	mock.Mock
}

func (m *mockAPI) Tasks(ctx context.Context) ([]taskapi.Task, error) {
	args := m.Called(ctx)
	tasks, _ := args.Get(0).([]taskapi.Task)
	return tasks, args.Error(1)
}

func (m *mockAPI) Create(ctx context.Context, req taskapi.CreateRequest) error {
	return m.Called(ctx, req).Error(0)
}

func (m *mockAPI) Update(ctx context.Context, id string, req taskapi.UpdateRequest) error {
	return m.Called(ctx, id, req).Error(0)
}

func (m *mockAPI) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func seed() []taskapi.Task {
	return []taskapi.Task{
		{ID: "a", Title: "A", Status: "todo"},
		{ID: "b", Title: "B", Status: "todo"},
		{ID: "c", Title: "C", Status: "doing"},
		{ID: "d", Title: "D", Status: "backlog"},
	}
}

func newServerStore(t *testing.T, opts ...Option) (*Store, *taskapitest.Server, *Recorder) {
	t.Helper()
	srv := taskapitest.NewServer(seed()...)
	t.Cleanup(srv.Close)

	client := taskapi.New(srv.URL, auth.StaticToken(taskapitest.Token)).
		WithHTTPClient(httputil.NewRetryableClient(5*time.Second, 0))
	rec := &Recorder{}
	s := New(client, append([]Option{WithNotifier(rec)}, opts...)...)
	require.NoError(t, s.Load(context.Background()))
	srv.ResetRequests()
	return s, srv, rec
}

func ids(cards []task.Card) []string {
	out := make([]string, len(cards))
	for i, c := range cards {
		out[i] = c.ID
	}
	return out
}

func TestLoad_MapsStatus(t *testing.T) {
	api := &mockAPI{}
	api.On("Tasks", mock.Anything).Return([]taskapi.Task{
		{ID: "x", Title: "X"},
		{ID: "y", Title: "Y", Status: "done", ScheduledTime: "8:15"},
	}, nil)

	s := New(api)
	assert.False(t, s.Loaded())
	require.NoError(t, s.Load(context.Background()))
	assert.True(t, s.Loaded())

	cards := s.Cards()
	require.Len(t, cards, 2)
	assert.Equal(t, task.ColumnTodo, cards[0].Column)
	assert.Equal(t, task.ColumnDone, cards[1].Column)
	assert.Equal(t, "8:15", cards[1].ScheduledTime)
}

func TestLoad_FailureNotifies(t *testing.T) {
	api := &mockAPI{}
	api.On("Tasks", mock.Anything).Return(nil, assert.AnError)
	rec := &Recorder{}

	err := New(api, WithNotifier(rec)).Load(context.Background())
	require.Error(t, err)
	assert.Equal(t, LevelError, rec.Last().Level)
	assert.Contains(t, rec.Last().Message, "Failed to load tasks: ")
}

// Moving a card changes only that card's position; everyone else keeps their
// relative order.
func TestMove_PreservesRelativeOrder(t *testing.T) {
	start := []string{"a", "b", "c", "d"}
	targets := append(append([]string{}, start...), dropzone.End)

	for _, moving := range start {
		for _, before := range targets {
			if before == moving {
				continue
			}
			for _, col := range task.Columns {
				api := &mockAPI{}
				api.On("Tasks", mock.Anything).Return(seed(), nil)
				s := New(api)
				require.NoError(t, s.Load(context.Background()))

				m, err := s.Move(moving, col, before)
				require.NoError(t, err)
				require.NotNil(t, m)

				got := ids(s.Cards())
				var others, othersBefore []string
				for _, id := range got {
					if id != moving {
						others = append(others, id)
					}
				}
				for _, id := range start {
					if id != moving {
						othersBefore = append(othersBefore, id)
					}
				}
				assert.Equal(t, othersBefore, others, "move %s before %q", moving, before)

				pos := indexOf(got, moving)
				if before == dropzone.End {
					assert.Equal(t, len(got)-1, pos)
				} else {
					assert.Equal(t, indexOf(got, before)-1, pos)
				}
				moved, _ := s.Find(moving)
				assert.Equal(t, col, moved.Column)
			}
		}
	}
}

func indexOf(list []string, id string) int {
	for i, v := range list {
		if v == id {
			return i
		}
	}
	return -1
}

func TestMove_SelfDropIsNoop(t *testing.T) {
	api := &mockAPI{}
	api.On("Tasks", mock.Anything).Return(seed(), nil)
	s := New(api)
	require.NoError(t, s.Load(context.Background()))
	before := s.Cards()
	rev := s.Revision()

	m, err := s.Move("b", task.ColumnDone, "b")
	require.NoError(t, err)
	assert.Nil(t, m)
	require.NoError(t, s.Commit(context.Background(), m))

	assert.Equal(t, before, s.Cards())
	assert.Equal(t, rev, s.Revision())
	api.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
}

func TestMove_UnknownCards(t *testing.T) {
	api := &mockAPI{}
	api.On("Tasks", mock.Anything).Return(seed(), nil)
	s := New(api)
	require.NoError(t, s.Load(context.Background()))

	_, err := s.Move("zzz", task.ColumnDone, dropzone.End)
	assert.Error(t, err)

	_, err = s.Move("a", task.ColumnDone, "zzz")
	assert.Error(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d"}, ids(s.Cards()))

	_, err = s.Move("a", task.Column("later"), dropzone.End)
	assert.True(t, task.IsValidation(err))
}

func TestMove_BeforeCardOfAnotherColumn(t *testing.T) {
	api := &mockAPI{}
	api.On("Tasks", mock.Anything).Return(seed(), nil)
	rec := &Recorder{}
	s := New(api, WithNotifier(rec))
	require.NoError(t, s.Load(context.Background()))
	rev := s.Revision()

	m, err := s.Move("a", task.ColumnTodo, "c")
	assert.Nil(t, m)
	assert.ErrorIs(t, err, task.ErrOtherColumn)
	assert.True(t, task.IsValidation(err))
	assert.Equal(t, LevelError, rec.Last().Level)
	assert.Equal(t, []string{"a", "b", "c", "d"}, ids(s.Cards()))
	assert.Equal(t, rev, s.Revision())

	m, err = s.Move("a", task.ColumnDoing, "c")
	require.NoError(t, err)
	assert.NotNil(t, m)
	assert.Equal(t, []string{"a", "c"}, ids(s.Column(task.ColumnDoing)))
}

func TestScenario_MoveToEndOfAnotherColumn(t *testing.T) {
	s, srv, rec := newServerStore(t)

	m, err := s.Move("b", task.ColumnDoing, dropzone.End)
	require.NoError(t, err)

	// optimistic state is visible before the request goes out
	assert.Equal(t, []string{"c", "b"}, ids(s.Column(task.ColumnDoing)))
	assert.Empty(t, srv.Requests())

	require.NoError(t, s.Commit(context.Background(), m))

	muts := srv.Mutations()
	require.Len(t, muts, 1)
	assert.Equal(t, http.MethodPut, muts[0].Method)
	assert.Equal(t, "/api/tasks/b", muts[0].Path)
	assert.Equal(t, map[string]interface{}{"status": "doing"}, muts[0].Body)

	assert.Equal(t, "Task status updated successfully", rec.Last().Message)
	card, ok := s.Find("b")
	require.True(t, ok)
	assert.Equal(t, task.ColumnDoing, card.Column)
}

func TestCreate_RoundTrip(t *testing.T) {
	s, srv, rec := newServerStore(t, WithIDGenerator(func() string { return task.TempIDPrefix + "1" }))

	m, err := s.Create(task.Input{Title: "  Read  ", Column: task.ColumnBacklog, ScheduledTime: "21:00"})
	require.NoError(t, err)
	assert.Equal(t, "tmp-1", m.CardID)

	tmp, ok := s.Find(m.CardID)
	require.True(t, ok)
	assert.True(t, tmp.Temporary())
	assert.Equal(t, "Read", tmp.Title)

	require.NoError(t, s.Commit(context.Background(), m))

	_, stillThere := s.Find(m.CardID)
	assert.False(t, stillThere, "temporary id should be replaced by the reload")

	var created *task.Card
	for _, c := range s.Column(task.ColumnBacklog) {
		if c.Title == "Read" {
			c := c
			created = &c
		}
	}
	require.NotNil(t, created)
	assert.False(t, created.Temporary())
	assert.Equal(t, task.DefaultDuration, created.Duration)
	assert.Equal(t, task.ImportanceMedium, created.Importance)
	assert.Equal(t, "21:00", created.ScheduledTime)
	assert.Equal(t, "Task created successfully", rec.Last().Message)
	assert.Len(t, srv.Tasks(), 5)
}

func TestCreate_EmptyTitleSendsNothing(t *testing.T) {
	api := &mockAPI{}
	rec := &Recorder{}
	s := New(api, WithNotifier(rec))

	m, err := s.Create(task.Input{Title: "   "})
	assert.Nil(t, m)
	assert.ErrorIs(t, err, task.ErrEmptyTitle)
	assert.Empty(t, s.Cards())
	assert.Equal(t, LevelError, rec.Last().Level)
	api.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCreate_FailureKeepsOptimisticCardByDefault(t *testing.T) {
	s, srv, rec := newServerStore(t)
	srv.FailNext(http.MethodPost, "/api/tasks", http.StatusInternalServerError, "database unavailable")

	m, err := s.Create(task.Input{Title: "Walk"})
	require.NoError(t, err)
	err = s.Commit(context.Background(), m)
	require.Error(t, err)

	assert.Equal(t, "Failed to create task: database unavailable", rec.Last().Message)
	_, ok := s.Find(m.CardID)
	assert.True(t, ok)
}

func TestCommit_RollbackRestoresPosition(t *testing.T) {
	s, srv, _ := newServerStore(t, WithRollback(true))
	srv.FailNext(http.MethodPut, "/api/tasks/a", http.StatusForbidden, "nope")

	m, err := s.Move("a", task.ColumnDone, dropzone.End)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c", "d", "a"}, ids(s.Cards()))

	require.Error(t, s.Commit(context.Background(), m))
	assert.Equal(t, []string{"a", "b", "c", "d"}, ids(s.Cards()))
	card, _ := s.Find("a")
	assert.Equal(t, task.ColumnTodo, card.Column)
}

func TestCommit_RollbackCreateAndDelete(t *testing.T) {
	s, srv, _ := newServerStore(t, WithRollback(true))
	srv.FailNext(http.MethodPost, "/api/tasks", http.StatusBadRequest, "Title too long")
	srv.FailNext(http.MethodDelete, "/api/tasks/c", http.StatusInternalServerError, "")

	m, err := s.Create(task.Input{Title: "X"})
	require.NoError(t, err)
	require.Error(t, s.Commit(context.Background(), m))
	assert.Equal(t, []string{"a", "b", "c", "d"}, ids(s.Cards()))

	m, err = s.Delete("c")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "d"}, ids(s.Cards()))
	require.Error(t, s.Commit(context.Background(), m))
	assert.Equal(t, []string{"a", "b", "c", "d"}, ids(s.Cards()))
}

func TestDelete_MissingIDSurfacesError(t *testing.T) {
	s, srv, rec := newServerStore(t)

	m, err := s.Delete("zzz")
	require.NoError(t, err)
	err = s.Commit(context.Background(), m)
	require.Error(t, err)

	assert.Equal(t, "Failed to delete task: Task not found", rec.Last().Message)
	assert.Equal(t, []string{"a", "b", "c", "d"}, ids(s.Cards()))
	assert.Len(t, srv.Tasks(), 4)
}

func TestDelete_Success(t *testing.T) {
	s, srv, rec := newServerStore(t)

	m, err := s.Delete("b")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c", "d"}, ids(s.Cards()))
	require.NoError(t, s.Commit(context.Background(), m))

	assert.Equal(t, "Task deleted successfully", rec.Last().Message)
	assert.Equal(t, []string{"a", "c", "d"}, ids(s.Cards()))
	assert.Len(t, srv.Tasks(), 3)
}

func TestUpdateScheduledTime(t *testing.T) {
	tests := []struct {
		in      string
		wantErr bool
	}{
		{"9:30", false},
		{"23:59", false},
		{"", false},
		{"24:00", true},
		{"9:60", true},
		{"abc", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			s, srv, _ := newServerStore(t)

			m, err := s.UpdateScheduledTime("a", tt.in)
			if tt.wantErr {
				assert.Nil(t, m)
				assert.ErrorIs(t, err, task.ErrInvalidTime)
				assert.Empty(t, srv.Requests())
				return
			}
			require.NoError(t, err)
			require.NoError(t, s.Commit(context.Background(), m))

			muts := srv.Mutations()
			require.Len(t, muts, 1)
			assert.Equal(t, map[string]interface{}{"scheduledTime": tt.in}, muts[0].Body)
			card, _ := s.Find("a")
			assert.Equal(t, tt.in, card.ScheduledTime)
		})
	}
}

func TestUpdateScheduledTime_RollbackRestoresTime(t *testing.T) {
	s, srv, rec := newServerStore(t, WithRollback(true))
	srv.FailNext(http.MethodPut, "/api/tasks/a", http.StatusInternalServerError, "")

	m, err := s.UpdateScheduledTime("a", "10:00")
	require.NoError(t, err)
	require.Error(t, s.Commit(context.Background(), m))

	card, _ := s.Find("a")
	assert.Equal(t, "", card.ScheduledTime)
	assert.Equal(t, "Failed to update time: HTTP 500", rec.Last().Message)
}

func TestApply(t *testing.T) {
	s, srv, _ := newServerStore(t)

	m, err := s.Move("d", task.ColumnTodo, "a")
	require.NoError(t, s.Apply(context.Background(), m, err))
	muts := srv.Mutations()
	require.Len(t, muts, 1)
	assert.Equal(t, map[string]interface{}{"status": "todo"}, muts[0].Body)
	assert.Equal(t, "todo", srv.Tasks()[3].Status)

	m, err = s.UpdateScheduledTime("a", "99:99")
	assert.Error(t, s.Apply(context.Background(), m, err))
	assert.Len(t, srv.Mutations(), 1)
}
