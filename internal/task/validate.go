package task

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// TempIDPrefix marks ids assigned locally before the server confirms a create.
const TempIDPrefix = "tmp-"

var (
	ErrEmptyTitle        = errors.New("task title is required")
	ErrInvalidTime       = errors.New("please enter time in HH:MM format")
	ErrInvalidColumn     = errors.New("invalid column")
	ErrInvalidImportance = errors.New("invalid importance")
	ErrInvalidDuration   = errors.New("duration must be a positive number of minutes")
	ErrEmptyQuestion     = errors.New("question is required")
	ErrOtherColumn       = errors.New("card to insert before is in another column")
)

var scheduledTimePattern = regexp.MustCompile(`^([0-1]?[0-9]|2[0-3]):[0-5][0-9]$`)

// ValidateScheduledTime accepts "" (clear) or a 24h HH:MM wall-clock time.
func ValidateScheduledTime(s string) error {
	if s == "" || scheduledTimePattern.MatchString(s) {
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidTime, s)
}

// Validate checks a normalized input before anything is sent.
func (in Input) Validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return ErrEmptyTitle
	}
	if !in.Column.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidColumn, in.Column)
	}
	if in.Duration < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidDuration, in.Duration)
	}
	if in.Importance != "" && !in.Importance.Valid() {
		return fmt.Errorf("%w: %q (want low, medium or high)", ErrInvalidImportance, in.Importance)
	}
	return ValidateScheduledTime(in.ScheduledTime)
}

// IsValidation reports whether err came from client-side input checks.
func IsValidation(err error) bool {
	for _, target := range []error{ErrEmptyTitle, ErrInvalidTime, ErrInvalidColumn, ErrInvalidImportance, ErrInvalidDuration, ErrEmptyQuestion, ErrOtherColumn} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
