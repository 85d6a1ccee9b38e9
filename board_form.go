package main

import (
	"context"
	"fmt"
	"strings"

	"planmyday/internal/cardstore"
	"planmyday/internal/errors"
	"planmyday/internal/task"

	textinput "github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

type formKind int

const (
	formAdd formKind = iota
	formTime
	formPrompt
)

// add form fields, in tab order
const (
	fieldTitle = iota
	fieldDuration
	fieldImportance
	fieldTime
	fieldCount
)

// cardForm is the modal editor shown over the board.
type cardForm struct {
	kind       formKind
	column     task.Column
	cardID     string
	cardTitle  string
	title      textinput.Model // also holds the AI prompt
	time       textinput.Model
	focus      int
	duration   int // index into task.Durations
	importance int // index into task.Importances
	err        string
}

func newFormInput(placeholder string, limit int) textinput.Model {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.CharLimit = limit
	ti.Prompt = ""
	return ti
}

func newCardForm(kind formKind) *cardForm {
	f := &cardForm{
		kind:  kind,
		title: newFormInput("What needs doing?", 200),
		time:  newFormInput("HH:MM (optional)", 5),
	}
	for i, d := range task.Durations {
		if d == task.DefaultDuration {
			f.duration = i
		}
	}
	for i, imp := range task.Importances {
		if imp == task.DefaultImportance {
			f.importance = i
		}
	}
	return f
}

func (m boardModel) openAddForm(col task.Column) (boardModel, tea.Cmd) {
	m.cancelDrag()
	f := newCardForm(formAdd)
	f.column = col
	m.form = f
	return m, f.setFocus(fieldTitle)
}

func (m boardModel) openTimeForm(c task.Card) (boardModel, tea.Cmd) {
	f := newCardForm(formTime)
	f.cardID = c.ID
	f.cardTitle = c.Title
	f.time.Placeholder = "HH:MM, empty clears"
	f.time.SetValue(c.ScheduledTime)
	m.form = f
	return m, f.setFocus(fieldTime)
}

func (m boardModel) openPromptForm() (boardModel, tea.Cmd) {
	f := newCardForm(formPrompt)
	f.title.Placeholder = "stretch; call the bank (optional)"
	f.title.CharLimit = 500
	m.form = f
	return m, f.setFocus(fieldTitle)
}

func (f *cardForm) setFocus(field int) tea.Cmd {
	f.focus = field
	f.title.Blur()
	f.time.Blur()
	switch field {
	case fieldTitle:
		return f.title.Focus()
	case fieldTime:
		return f.time.Focus()
	}
	return nil
}

func (f *cardForm) input() task.Input {
	return task.Input{
		Title:         f.title.Value(),
		Column:        f.column,
		Duration:      task.Durations[f.duration],
		Importance:    task.Importances[f.importance],
		ScheduledTime: strings.TrimSpace(f.time.Value()),
	}
}

func (m boardModel) updateForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	f := m.form
	key := msg.String()
	switch key {
	case "esc", "ctrl+c":
		m.form = nil
		return m, nil
	case "enter":
		return m.submitForm()
	case "tab", "down", "shift+tab", "up":
		if f.kind != formAdd {
			return m, nil
		}
		step := 1
		if key == "shift+tab" || key == "up" {
			step = fieldCount - 1
		}
		return m, f.setFocus((f.focus + step) % fieldCount)
	case "left", "right":
		step := 1
		if key == "left" {
			step = -1
		}
		switch f.focus {
		case fieldDuration:
			f.duration = (f.duration + step + len(task.Durations)) % len(task.Durations)
			return m, nil
		case fieldImportance:
			f.importance = (f.importance + step + len(task.Importances)) % len(task.Importances)
			return m, nil
		}
	}

	var cmd tea.Cmd
	switch f.focus {
	case fieldTitle:
		f.title, cmd = f.title.Update(msg)
	case fieldTime:
		f.time, cmd = f.time.Update(msg)
	}
	f.err = ""
	return m, cmd
}

func (m boardModel) submitForm() (tea.Model, tea.Cmd) {
	f := m.form
	switch f.kind {
	case formAdd:
		mut, err := m.store.Create(f.input())
		if err != nil {
			f.err = errors.Brief(err)
			return m, nil
		}
		m.form = nil
		return m.afterLocal(mut, nil)
	case formTime:
		mut, err := m.store.UpdateScheduledTime(f.cardID, strings.TrimSpace(f.time.Value()))
		if err != nil && task.IsValidation(err) {
			f.err = errors.Brief(err)
			return m, nil
		}
		m.form = nil
		return m.afterLocal(mut, err)
	case formPrompt:
		prompts := splitPrompts(f.title.Value())
		m.form = nil
		return m.startBulk("Generating tasks for your day…", func(ctx context.Context, s *cardstore.Store) error {
			_, err := s.Generate(ctx, prompts)
			return err
		})
	}
	m.form = nil
	return m, nil
}

// splitPrompts turns "a; b" into separate generator instructions.
func splitPrompts(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ";") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (m boardModel) formView() string {
	f := m.form
	row := func(field int, label, value string) string {
		marker := "  "
		if f.focus == field {
			marker = m.styles.helpKey.Render("▸ ")
		}
		return marker + fmt.Sprintf("%-11s %s", label, value)
	}

	var lines []string
	switch f.kind {
	case formAdd:
		lines = []string{
			m.styles.helpTitle.Render("Add to " + f.column.Title()),
			"",
			row(fieldTitle, "Title:", f.title.View()),
			row(fieldDuration, "Duration:", "‹ "+task.FormatDuration(task.Durations[f.duration])+" ›"),
			row(fieldImportance, "Importance:", "‹ "+string(task.Importances[f.importance])+" ›"),
			row(fieldTime, "Time:", f.time.View()),
			"",
			m.styles.muted.Render("enter save • tab next field • ←/→ change • esc cancel"),
		}
	case formTime:
		lines = []string{
			m.styles.helpTitle.Render("Scheduled time"),
			m.styles.muted.Render(clip(f.cardTitle, 50)),
			"",
			row(fieldTime, "Time:", f.time.View()),
			"",
			m.styles.muted.Render("enter save • empty clears • esc cancel"),
		}
	case formPrompt:
		lines = []string{
			m.styles.helpTitle.Render("Generate tasks with AI"),
			m.styles.muted.Render("Tasks are fitted around the plan stored for today."),
			"",
			row(fieldTitle, "Also:", f.title.View()),
			"",
			m.styles.muted.Render("enter generate • separate instructions with ; • esc cancel"),
		}
	}
	if f.err != "" {
		lines = append(lines, "", m.styles.error.Render(f.err))
	}
	return strings.Join(lines, "\n")
}
