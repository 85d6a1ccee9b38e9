package task

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateScheduledTime(t *testing.T) {
	tests := []struct {
		in    string
		valid bool
	}{
		{"9:30", true},
		{"09:30", true},
		{"23:59", true},
		{"0:00", true},
		{"", true},
		{"24:00", false},
		{"9:60", false},
		{"abc", false},
		{"12:5", false},
		{" 9:30", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			err := ValidateScheduledTime(tt.in)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidTime)
			}
		})
	}
}

func TestInputNormalizeAndValidate(t *testing.T) {
	in := Input{Title: "  Buy milk  "}.Normalize()
	require.NoError(t, in.Validate())
	assert.Equal(t, "Buy milk", in.Title)
	assert.Equal(t, ColumnTodo, in.Column)
	assert.Equal(t, DefaultDuration, in.Duration)
	assert.Equal(t, ImportanceMedium, in.Importance)

	err := Input{Title: "   "}.Normalize().Validate()
	assert.ErrorIs(t, err, ErrEmptyTitle)
	assert.True(t, IsValidation(err))

	err = Input{Title: "x", Column: "later"}.Validate()
	assert.ErrorIs(t, err, ErrInvalidColumn)

	err = Input{Title: "x", Column: ColumnDone, Importance: "urgent"}.Validate()
	assert.ErrorIs(t, err, ErrInvalidImportance)

	err = Input{Title: "x", Column: ColumnDone, ScheduledTime: "25:00"}.Validate()
	assert.ErrorIs(t, err, ErrInvalidTime)

	assert.False(t, IsValidation(errors.New("HTTP 500")))
}

func TestParseColumn(t *testing.T) {
	for in, want := range map[string]Column{
		"backlog":     ColumnBacklog,
		"To Do":       ColumnTodo,
		"DOING":       ColumnDoing,
		"in progress": ColumnDoing,
		"completed":   ColumnDone,
	} {
		got, err := ParseColumn(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseColumn("someday")
	assert.ErrorIs(t, err, ErrInvalidColumn)
}

func TestColumnFromStatus(t *testing.T) {
	assert.Equal(t, ColumnDoing, ColumnFromStatus("doing"))
	assert.Equal(t, ColumnTodo, ColumnFromStatus(""))
	assert.Equal(t, ColumnTodo, ColumnFromStatus("archived"))
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "15min", FormatDuration(15))
	assert.Equal(t, "1 hour", FormatDuration(60))
	assert.Equal(t, "1.5 hours", FormatDuration(90))
	assert.Equal(t, "3 hours", FormatDuration(180))
	assert.Equal(t, "", FormatDuration(0))
}

func TestFilterPreservesOrder(t *testing.T) {
	cards := []Card{
		{ID: "1", Title: "Write report"},
		{ID: "2", Title: "Walk the dog"},
		{ID: "3", Title: "Buy milk"},
		{ID: "4", Title: "Weekly review"},
	}
	got := Filter(cards, "w")
	ids := make([]string, len(got))
	for i, c := range got {
		ids[i] = c.ID
	}
	assert.Equal(t, []string{"1", "2", "4"}, ids)

	assert.Len(t, Filter(cards, ""), 4)
	assert.Empty(t, Filter(cards, "zzz"))
}

func TestMatchScore(t *testing.T) {
	assert.Zero(t, MatchScore("xyz", "Buy milk"))
	assert.Greater(t, MatchScore("bm", "Buy milk"), 0)
	// contiguous prefix beats scattered letters
	assert.Greater(t, MatchScore("buy", "Buy milk"), MatchScore("buy", "bring your umbrella"))
}
