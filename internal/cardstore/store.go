// Package cardstore holds the ordered card list behind the board and keeps it in
// step with the task API.
//
// Every mutation runs in two phases. The local phase (Create, Move,
// UpdateScheduledTime, Delete) validates, changes the in-memory list at once and
// returns a *Mutation. Commit sends that mutation and reloads the list from the
// server on success. The board renders between the two phases, which is what
// makes the change look instant.
package cardstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"planmyday/internal/dropzone"
	"planmyday/internal/errors"
	"planmyday/internal/logger"
	"planmyday/internal/task"
	"planmyday/internal/taskapi"
)

// API is the subset of the task API the store uses. *taskapi.Client satisfies it.
type API interface {
	Tasks(ctx context.Context) ([]taskapi.Task, error)
	Create(ctx context.Context, req taskapi.CreateRequest) error
	Update(ctx context.Context, id string, req taskapi.UpdateRequest) error
	Delete(ctx context.Context, id string) error
}

// Kind identifies what a Mutation does.
type Kind int

const (
	KindCreate Kind = iota
	KindMove
	KindSchedule
	KindDelete
)

func (k Kind) String() string {
	switch k {
	case KindCreate:
		return "create"
	case KindMove:
		return "move"
	case KindSchedule:
		return "schedule"
	case KindDelete:
		return "delete"
	}
	return "unknown"
}

// Mutation is a change already applied locally and not yet sent.
type Mutation struct {
	Kind   Kind
	CardID string

	create *taskapi.CreateRequest
	update *taskapi.UpdateRequest

	// state needed to undo the local change
	prev      task.Card
	prevIndex int
	hadCard   bool
}

// Store is safe for concurrent use.
type Store struct {
	api      API
	notify   Notifier
	rollback bool
	newID    func() string

	mu     sync.RWMutex
	cards  []task.Card
	loaded bool
	rev    uint64
}

type Option func(*Store)

// WithNotifier routes notices to n. The default drops them.
func WithNotifier(n Notifier) Option {
	return func(s *Store) { s.notify = n }
}

// WithRollback makes a failed Commit undo its local change.
func WithRollback(on bool) Option {
	return func(s *Store) { s.rollback = on }
}

// WithIDGenerator replaces the temporary id source.
func WithIDGenerator(f func() string) Option {
	return func(s *Store) { s.newID = f }
}

func New(api API, opts ...Option) *Store {
	s := &Store{
		api:    api,
		notify: discard{},
		newID:  func() string { return task.TempIDPrefix + uuid.NewString() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load replaces the local list with the server's.
func (s *Store) Load(ctx context.Context) error {
	tasks, err := s.api.Tasks(ctx)
	if err != nil {
		s.notify.Notify(Notice{LevelError, "Failed to load tasks: " + errors.Brief(err)})
		return err
	}
	cards := make([]task.Card, len(tasks))
	for i, t := range tasks {
		cards[i] = t.Card()
	}

	s.mu.Lock()
	s.cards = cards
	s.loaded = true
	s.rev++
	s.mu.Unlock()

	logger.Store("loaded %d cards", len(cards))
	return nil
}

// Invalidate refetches the list. It exists for callers that changed tasks
// through some other path, such as AI generation.
func (s *Store) Invalidate(ctx context.Context) error {
	return s.Load(ctx)
}

// Loaded reports whether a Load has succeeded.
func (s *Store) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// Revision increases on every change to the list.
func (s *Store) Revision() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rev
}

// Cards returns a copy of the full ordered list.
func (s *Store) Cards() []task.Card {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]task.Card(nil), s.cards...)
}

// Column returns the cards of col in list order.
func (s *Store) Column(col task.Column) []task.Card {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []task.Card
	for _, c := range s.cards {
		if c.Column == col {
			out = append(out, c)
		}
	}
	return out
}

// Find returns the card with id.
func (s *Store) Find(id string) (task.Card, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexOf(id); i >= 0 {
		return s.cards[i], true
	}
	return task.Card{}, false
}

// Create appends a card with a temporary id. Invalid input is rejected before
// anything changes.
func (s *Store) Create(in task.Input) (*Mutation, error) {
	in = in.Normalize()
	if err := in.Validate(); err != nil {
		return nil, s.invalid(err)
	}

	card := task.Card{
		ID:            s.newID(),
		Title:         in.Title,
		Column:        in.Column,
		Duration:      in.Duration,
		Importance:    in.Importance,
		ScheduledTime: in.ScheduledTime,
	}
	req := taskapi.NewCreateRequest(in)

	s.mu.Lock()
	s.cards = append(s.cards, card)
	s.rev++
	s.mu.Unlock()

	logger.Store("create %s in %s", card.ID, card.Column)
	return &Mutation{Kind: KindCreate, CardID: card.ID, create: &req}, nil
}

// Move takes the card out of the list, sets its column, and reinserts it right
// before beforeID, or at the very end when beforeID is dropzone.End. beforeID
// must be a card of target. Dropping a card before itself does nothing and
// returns a nil Mutation.
func (s *Store) Move(cardID string, target task.Column, beforeID string) (*Mutation, error) {
	if dropzone.IsNoop(cardID, dropzone.Marker{BeforeID: beforeID}) {
		return nil, nil
	}
	if !target.Valid() {
		return nil, s.invalid(fmt.Errorf("%w: %q", task.ErrInvalidColumn, target))
	}

	s.mu.RLock()
	other := false
	if at := s.indexOf(beforeID); beforeID != dropzone.End && at >= 0 {
		other = s.cards[at].Column != target
	}
	s.mu.RUnlock()
	if other {
		return nil, s.invalid(fmt.Errorf("%w: %q is not in %s", task.ErrOtherColumn, beforeID, target.Title()))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	from := s.indexOf(cardID)
	if from < 0 {
		return nil, errors.NewCardNotFoundError(cardID)
	}
	if beforeID != dropzone.End && s.indexOf(beforeID) < 0 {
		return nil, errors.NewCardNotFoundError(beforeID)
	}

	prev := s.cards[from]
	moved := prev
	moved.Column = target

	rest := make([]task.Card, 0, len(s.cards))
	rest = append(rest, s.cards[:from]...)
	rest = append(rest, s.cards[from+1:]...)

	if beforeID == dropzone.End {
		rest = append(rest, moved)
	} else {
		at := indexIn(rest, beforeID)
		rest = append(rest, task.Card{})
		copy(rest[at+1:], rest[at:])
		rest[at] = moved
	}
	s.cards = rest
	s.rev++

	logger.Store("move %s to %s before %q", cardID, target, beforeID)
	upd := taskapi.StatusUpdate(target)
	return &Mutation{Kind: KindMove, CardID: cardID, update: &upd, prev: prev, prevIndex: from, hadCard: true}, nil
}

// UpdateScheduledTime sets or clears ("") the card's time.
func (s *Store) UpdateScheduledTime(cardID, hhmm string) (*Mutation, error) {
	if err := task.ValidateScheduledTime(hhmm); err != nil {
		return nil, s.invalid(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(cardID)
	if i < 0 {
		return nil, errors.NewCardNotFoundError(cardID)
	}
	prev := s.cards[i]
	s.cards[i].ScheduledTime = hhmm
	s.rev++

	upd := taskapi.TimeUpdate(hhmm)
	return &Mutation{Kind: KindSchedule, CardID: cardID, update: &upd, prev: prev, prevIndex: i, hadCard: true}, nil
}

// Delete removes the card locally. An id the board does not know is still sent
// so the server's answer decides; the local list is left as is.
func (s *Store) Delete(cardID string) (*Mutation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := &Mutation{Kind: KindDelete, CardID: cardID, prevIndex: -1}
	if i := s.indexOf(cardID); i >= 0 {
		m.prev, m.prevIndex, m.hadCard = s.cards[i], i, true
		s.cards = append(s.cards[:i:i], s.cards[i+1:]...)
		s.rev++
	}
	return m, nil
}

// Commit sends m. On success it reloads the list; on failure it notifies and,
// with rollback enabled, undoes the local change. A nil m is a no-op.
func (s *Store) Commit(ctx context.Context, m *Mutation) error {
	if m == nil {
		return nil
	}

	var err error
	switch m.Kind {
	case KindCreate:
		err = s.api.Create(ctx, *m.create)
	case KindMove, KindSchedule:
		err = s.api.Update(ctx, m.CardID, *m.update)
	case KindDelete:
		err = s.api.Delete(ctx, m.CardID)
	default:
		return fmt.Errorf("unknown mutation kind %d", m.Kind)
	}

	if err != nil {
		logger.Store("commit %s %s failed: %v", m.Kind, m.CardID, err)
		s.notify.Notify(Notice{LevelError, failureText(m.Kind) + errors.Brief(err)})
		if s.rollback {
			s.undo(m)
		}
		return err
	}

	s.notify.Notify(Notice{LevelSuccess, successText(m.Kind)})
	return s.Load(ctx)
}

// Apply runs both phases of a mutation. The CLI uses it; the board calls the
// phases separately so it can render in between.
func (s *Store) Apply(ctx context.Context, m *Mutation, err error) error {
	if err != nil {
		return err
	}
	return s.Commit(ctx, m)
}

func (s *Store) undo(m *Mutation) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch m.Kind {
	case KindCreate:
		if i := s.indexOf(m.CardID); i >= 0 {
			s.cards = append(s.cards[:i:i], s.cards[i+1:]...)
		}
	case KindMove:
		if i := s.indexOf(m.CardID); i >= 0 {
			s.cards = append(s.cards[:i:i], s.cards[i+1:]...)
		}
		s.insertAt(m.prevIndex, m.prev)
	case KindSchedule:
		if i := s.indexOf(m.CardID); i >= 0 {
			s.cards[i].ScheduledTime = m.prev.ScheduledTime
		}
	case KindDelete:
		if m.hadCard && s.indexOf(m.CardID) < 0 {
			s.insertAt(m.prevIndex, m.prev)
		}
	}
	s.rev++
	logger.Store("rolled back %s %s", m.Kind, m.CardID)
}

func (s *Store) insertAt(i int, c task.Card) {
	if i < 0 || i > len(s.cards) {
		i = len(s.cards)
	}
	s.cards = append(s.cards, task.Card{})
	copy(s.cards[i+1:], s.cards[i:])
	s.cards[i] = c
}

func (s *Store) invalid(err error) error {
	ue := errors.NewValidationError(err)
	s.notify.Notify(Notice{LevelError, ue.Message})
	return ue
}

func (s *Store) indexOf(id string) int {
	return indexIn(s.cards, id)
}

func indexIn(cards []task.Card, id string) int {
	for i, c := range cards {
		if c.ID == id {
			return i
		}
	}
	return -1
}

func successText(k Kind) string {
	switch k {
	case KindCreate:
		return "Task created successfully"
	case KindMove:
		return "Task status updated successfully"
	case KindSchedule:
		return "Task time updated successfully"
	case KindDelete:
		return "Task deleted successfully"
	}
	return "Done"
}

func failureText(k Kind) string {
	switch k {
	case KindCreate:
		return "Failed to create task: "
	case KindMove:
		return "Failed to update task: "
	case KindSchedule:
		return "Failed to update time: "
	case KindDelete:
		return "Failed to delete task: "
	}
	return "Failed: "
}
