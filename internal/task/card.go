package task

import (
	"fmt"
	"strings"
)

// Column is a kanban lane. The same value is sent to the API as the task status.
type Column string

const (
	ColumnBacklog Column = "backlog"
	ColumnTodo    Column = "todo"
	ColumnDoing   Column = "doing"
	ColumnDone    Column = "done"
)

// Columns lists the lanes in board order.
var Columns = []Column{ColumnBacklog, ColumnTodo, ColumnDoing, ColumnDone}

// Title is the heading shown above the lane.
func (c Column) Title() string {
	switch c {
	case ColumnBacklog:
		return "Backlog"
	case ColumnTodo:
		return "To Do"
	case ColumnDoing:
		return "In Progress"
	case ColumnDone:
		return "Completed"
	}
	return string(c)
}

func (c Column) Valid() bool {
	for _, col := range Columns {
		if c == col {
			return true
		}
	}
	return false
}

// Index returns the lane position on the board, or -1.
func (c Column) Index() int {
	for i, col := range Columns {
		if c == col {
			return i
		}
	}
	return -1
}

// ParseColumn accepts the wire value or the lane title, case-insensitively.
func ParseColumn(s string) (Column, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	for _, col := range Columns {
		if norm == string(col) || norm == strings.ToLower(col.Title()) {
			return col, nil
		}
	}
	switch norm {
	case "in-progress", "in_progress", "inprogress":
		return ColumnDoing, nil
	case "completed", "complete":
		return ColumnDone, nil
	}
	return "", fmt.Errorf("%w: %q (want one of backlog, todo, doing, done)", ErrInvalidColumn, s)
}

// ColumnFromStatus maps a remote status to a lane; unknown or missing values land in todo.
func ColumnFromStatus(status string) Column {
	if c := Column(status); c.Valid() {
		return c
	}
	return ColumnTodo
}

type Importance string

const (
	ImportanceLow    Importance = "low"
	ImportanceMedium Importance = "medium"
	ImportanceHigh   Importance = "high"
)

var Importances = []Importance{ImportanceLow, ImportanceMedium, ImportanceHigh}

func (i Importance) Valid() bool {
	switch i {
	case ImportanceLow, ImportanceMedium, ImportanceHigh:
		return true
	}
	return false
}

// Durations are the choices offered by the add-card form, in minutes.
var Durations = []int{15, 30, 45, 60, 90, 120, 180}

const (
	DefaultDuration   = 30
	DefaultImportance = ImportanceMedium
)

// FormatDuration renders minutes the way the add-card form labels them.
func FormatDuration(minutes int) string {
	switch {
	case minutes <= 0:
		return ""
	case minutes < 60:
		return fmt.Sprintf("%dmin", minutes)
	case minutes%60 == 0:
		h := minutes / 60
		if h == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", h)
	default:
		return fmt.Sprintf("%.1f hours", float64(minutes)/60)
	}
}

// Card is one task as the board sees it.
type Card struct {
	ID            string
	Title         string
	Column        Column
	Duration      int
	Importance    Importance
	ScheduledTime string
}

// Temporary reports whether the card still carries a client-side id.
func (c Card) Temporary() bool {
	return strings.HasPrefix(c.ID, TempIDPrefix)
}

// Input is what the add-card form and `planmyday add` collect.
type Input struct {
	Title         string
	Column        Column
	Duration      int
	Importance    Importance
	ScheduledTime string
}

// Normalize trims the title and fills the form defaults for unset fields.
func (in Input) Normalize() Input {
	in.Title = strings.TrimSpace(in.Title)
	in.ScheduledTime = strings.TrimSpace(in.ScheduledTime)
	if in.Column == "" {
		in.Column = ColumnTodo
	}
	if in.Duration == 0 {
		in.Duration = DefaultDuration
	}
	if in.Importance == "" {
		in.Importance = DefaultImportance
	}
	return in
}
