package scheduler

import (
	"fmt"
	"strings"
	"time"

	"medication-reminder-bot/internal/domain"
)

// Trigger computes the next run of a recurring job strictly after a given time.
type Trigger interface {
	Next(after time.Time) time.Time
	String() string
}

// Daily fires once per calendar day at a wall-clock time in a location.
type Daily struct {
	hour, minute int
	loc          *time.Location
}

func NewDaily(hour, minute int, loc *time.Location) (Daily, error) {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return Daily{}, domain.ErrInvalidArgument
	}
	if loc == nil {
		loc = time.UTC
	}
	return Daily{hour: hour, minute: minute, loc: loc}, nil
}

// ParseDaily parses an "HH:MM" wall-clock time.
func ParseDaily(s string, loc *time.Location) (Daily, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return Daily{}, fmt.Errorf("%w: daily time %q", domain.ErrInvalidArgument, s)
	}
	return NewDaily(t.Hour(), t.Minute(), loc)
}

func (d Daily) Next(after time.Time) time.Time {
	t := after.In(d.loc)
	next := time.Date(t.Year(), t.Month(), t.Day(), d.hour, d.minute, 0, 0, d.loc)
	if !next.After(t) {
		// time.Date normalizes day overflow and DST gaps
		next = time.Date(t.Year(), t.Month(), t.Day()+1, d.hour, d.minute, 0, 0, d.loc)
	}
	return next
}

func (d Daily) String() string {
	return fmt.Sprintf("daily@%02d:%02d %s", d.hour, d.minute, d.loc)
}

// Every fires at a fixed interval.
type Every time.Duration

func (e Every) Next(after time.Time) time.Time { return after.Add(time.Duration(e)) }

func (e Every) String() string { return "every " + time.Duration(e).String() }
