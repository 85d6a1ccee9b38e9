package cardstore

import (
	"context"
	"fmt"
	"strings"

	"planmyday/internal/errors"
	"planmyday/internal/task"
	"planmyday/internal/taskapi"
)

// Assistant is the board's conversational AI endpoint. *taskapi.Client
// satisfies it.
type Assistant interface {
	Dictate(ctx context.Context) (taskapi.Dictation, error)
	Ask(ctx context.Context, question string) (taskapi.Answer, error)
}

var errNoAssistant = fmt.Errorf("task API client does not support the board assistant")

func (s *Store) assistant() (Assistant, error) {
	a, ok := s.api.(Assistant)
	if !ok {
		return nil, errNoAssistant
	}
	return a, nil
}

// Dictate returns the assistant's summary of the board. The list is not changed.
func (s *Store) Dictate(ctx context.Context) (taskapi.Dictation, error) {
	a, err := s.assistant()
	if err != nil {
		return taskapi.Dictation{}, err
	}
	d, err := a.Dictate(ctx)
	if err != nil {
		s.notify.Notify(Notice{LevelError, "Failed to generate task dictation: " + errors.Brief(err)})
		return taskapi.Dictation{}, err
	}
	s.notify.Notify(Notice{LevelSuccess, fmt.Sprintf("Generated dictation for %d tasks", d.TaskCount)})
	return d, nil
}

// Ask sends a trimmed question to the assistant. Blank questions are rejected
// before anything is sent.
func (s *Store) Ask(ctx context.Context, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", s.invalid(task.ErrEmptyQuestion)
	}
	a, err := s.assistant()
	if err != nil {
		return "", err
	}
	res, err := a.Ask(ctx, question)
	if err != nil {
		s.notify.Notify(Notice{LevelError, "Failed to get AI response: " + errors.Brief(err)})
		return "", err
	}
	return res.Answer, nil
}
