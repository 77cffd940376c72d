package student

import (
	"fmt"
	"strings"
	"time"
)

// Student is a registered student. ID is the client-facing business id; the
// storage layer keeps its own surrogate key.
type Student struct {
	ID        int
	FirstName string
	LastName  string
	BirthDate time.Time
}

// Age returns the student's age in whole years at now. A student whose
// birthday has not yet come this year is one year younger. An unset birth
// date yields 0.
func (s Student) Age(now time.Time) int {
	if s.BirthDate.IsZero() {
		return 0
	}
	b := s.BirthDate.UTC()
	n := now.UTC()

	age := n.Year() - b.Year()
	// time.Date normalises Feb 29 to Mar 1 in non-leap years.
	birthday := time.Date(n.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	today := time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, time.UTC)
	if today.Before(birthday) {
		age--
	}
	if age < 0 {
		return 0
	}
	return age
}

// Validate checks the fields a caller must supply when registering a student.
// now bounds the birth date.
func (s Student) Validate(now time.Time) error {
	if s.ID <= 0 {
		return fmt.Errorf("%w: id must be positive", ErrInvalidInput)
	}
	if strings.TrimSpace(s.FirstName) == "" {
		return fmt.Errorf("%w: first name is required", ErrInvalidInput)
	}
	if strings.TrimSpace(s.LastName) == "" {
		return fmt.Errorf("%w: last name is required", ErrInvalidInput)
	}
	if s.BirthDate.After(now) {
		return fmt.Errorf("%w: birth date %s", ErrFutureDate, s.BirthDate.Format(time.DateOnly))
	}
	return nil
}

// normalize trims names and strips the clock from the birth date.
func (s Student) normalize() Student {
	s.FirstName = strings.TrimSpace(s.FirstName)
	s.LastName = strings.TrimSpace(s.LastName)
	if !s.BirthDate.IsZero() {
		b := s.BirthDate.UTC()
		s.BirthDate = time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	}
	return s
}
