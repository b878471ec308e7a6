// Package policy implements the cancellation grace-window rule. The deadline
// is computed in a fixed platform timezone so that it stays authoritative
// regardless of the caller's locale or clock.
package policy

import (
	"fmt"
	"time"
)

const (
	// DefaultTimezone anchors all deadline arithmetic.
	DefaultTimezone = "America/Sao_Paulo"
	// DefaultGraceHours is the contractual "antecedência mínima de 24 horas".
	DefaultGraceHours = 24

	dateLayout     = "2006-01-02"
	timeLayout     = "15:04"
	dateTimeLayout = "2006-01-02 15:04"
)

// GracePolicy evaluates whether a cancellation or reschedule request falls
// inside the free-of-charge window before an appointment.
type GracePolicy struct {
	loc   *time.Location
	grace time.Duration
}

// NewGracePolicy loads the timezone and fixes the grace duration. Empty
// arguments fall back to the platform defaults.
func NewGracePolicy(timezone string, graceHours int) (*GracePolicy, error) {
	if timezone == "" {
		timezone = DefaultTimezone
	}
	if graceHours <= 0 {
		graceHours = DefaultGraceHours
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("load policy timezone %q: %w", timezone, err)
	}
	return &GracePolicy{loc: loc, grace: time.Duration(graceHours) * time.Hour}, nil
}

// WithinGracePeriod reports whether now still precedes the grace deadline of
// the appointment starting at date ("2006-01-02") and horario ("HH:mm").
// The boundary is inclusive: a request placed exactly at the deadline is
// still within the window. When now lands on the deadline's calendar day the
// check reduces to a lexicographic "HH:mm" comparison, valid because both
// operands are zero-padded 24-hour strings. Unparseable input fails closed.
func (p *GracePolicy) WithinGracePeriod(date, horario string, now time.Time) bool {
	start, err := time.ParseInLocation(dateTimeLayout, date+" "+horario, p.loc)
	if err != nil {
		return false
	}

	deadline := start.Add(-p.grace)
	nowLocal := now.In(p.loc)

	if nowLocal.Format(dateLayout) == deadline.Format(dateLayout) {
		return nowLocal.Format(timeLayout) <= deadline.Format(timeLayout)
	}
	return nowLocal.Before(deadline)
}

// RequiresJustification is the inverse convenience: out-of-grace requests
// must carry a reason (and optionally evidence) and go through admin review.
func (p *GracePolicy) RequiresJustification(date, horario string, now time.Time) bool {
	return !p.WithinGracePeriod(date, horario, now)
}

// StartTime resolves the appointment start instant in the platform
// timezone.
func (p *GracePolicy) StartTime(date, horario string) (time.Time, error) {
	start, err := time.ParseInLocation(dateTimeLayout, date+" "+horario, p.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse appointment schedule %q %q: %w", date, horario, err)
	}
	return start, nil
}

// Location exposes the policy timezone for callers that format instants.
func (p *GracePolicy) Location() *time.Location {
	return p.loc
}
