package cardstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"planmyday/internal/errors"
	"planmyday/internal/taskapi"
)

// BulkAPI covers the server-side operations that rewrite many tasks at once.
// *taskapi.Client satisfies it.
type BulkAPI interface {
	Plan(ctx context.Context) (json.RawMessage, error)
	Generate(ctx context.Context, req taskapi.GenerateRequest) ([]taskapi.Task, error)
	Align(ctx context.Context) (taskapi.AlignResult, error)
	Archive(ctx context.Context, keepIncomplete bool) (taskapi.ArchiveResult, error)
}

var errNoBulk = fmt.Errorf("task API client does not support bulk operations")

func (s *Store) bulk() (BulkAPI, error) {
	b, ok := s.api.(BulkAPI)
	if !ok {
		return nil, errNoBulk
	}
	return b, nil
}

// Generate asks the API to draft tasks that fit the stored plan, then reloads.
// Blank prompts are dropped.
func (s *Store) Generate(ctx context.Context, prompts []string) (int, error) {
	b, err := s.bulk()
	if err != nil {
		return 0, err
	}

	plan, err := b.Plan(ctx)
	if err != nil {
		s.notify.Notify(Notice{LevelError, "Failed to generate AI tasks: " + errors.Brief(err)})
		return 0, err
	}

	var valid []string
	for _, p := range prompts {
		if strings.TrimSpace(p) != "" {
			valid = append(valid, strings.TrimSpace(p))
		}
	}

	created, err := b.Generate(ctx, taskapi.GenerateRequest{
		CustomPrompts:     valid,
		ExistingPlan:      plan,
		AlignWithSchedule: true,
	})
	if err != nil {
		s.notify.Notify(Notice{LevelError, "Failed to generate AI tasks: " + errors.Brief(err)})
		return 0, err
	}

	s.notify.Notify(Notice{LevelSuccess, "AI tasks generated successfully and aligned with your schedule!"})
	return len(created), s.Load(ctx)
}

// Align reconciles tasks with the stored plan and reloads.
func (s *Store) Align(ctx context.Context) (taskapi.Alignment, error) {
	b, err := s.bulk()
	if err != nil {
		return taskapi.Alignment{}, err
	}

	res, err := b.Align(ctx)
	if err != nil {
		s.notify.Notify(Notice{LevelError, "Failed to align tasks: " + errors.Brief(err)})
		return taskapi.Alignment{}, err
	}

	s.notify.Notify(Notice{LevelSuccess, "Tasks aligned with AI plan: " + AlignmentSummary(res.Alignment)})
	if res.Alignment.Conflicts > 0 {
		s.notify.Notify(Notice{LevelWarning, fmt.Sprintf("%d conflicts detected - check your tasks", res.Alignment.Conflicts)})
	}
	return res.Alignment, s.Load(ctx)
}

// AlignmentSummary renders counts as "2 added, 1 modified", or "analyzed" when
// nothing changed.
func AlignmentSummary(a taskapi.Alignment) string {
	var actions []string
	if a.Inserted > 0 {
		actions = append(actions, fmt.Sprintf("%d added", a.Inserted))
	}
	if a.Modified > 0 {
		actions = append(actions, fmt.Sprintf("%d modified", a.Modified))
	}
	if a.Deleted > 0 {
		actions = append(actions, fmt.Sprintf("%d removed", a.Deleted))
	}
	if len(actions) == 0 {
		return "analyzed"
	}
	return strings.Join(actions, ", ")
}

// Archive clears tasks on the server (completed ones only when keepIncomplete)
// and reloads.
func (s *Store) Archive(ctx context.Context, keepIncomplete bool) (int, error) {
	b, err := s.bulk()
	if err != nil {
		return 0, err
	}

	res, err := b.Archive(ctx, keepIncomplete)
	if err != nil {
		s.notify.Notify(Notice{LevelError, "Failed to archive tasks: " + errors.Brief(err)})
		return 0, err
	}

	s.notify.Notify(Notice{LevelSuccess, fmt.Sprintf("Archived %d tasks", res.Count)})
	return res.Count, s.Load(ctx)
}
