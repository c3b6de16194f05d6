// Package mailbox lists and downloads transaction alert emails.
package mailbox

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// RawMessage is the RFC 822 content of one email.
type RawMessage struct {
	ID   string
	Data []byte
}

// Source provides message ids matching a query and their raw content.
type Source interface {
	ListMessageIDs(ctx context.Context, q Query) ([]string, error)
	RawMessage(ctx context.Context, id string) (RawMessage, error)
}

const searchDateLayout = "2006/01/02"

// Query selects messages from one sender inside the half-open date window
// [After, Before).
type Query struct {
	Sender string
	After  time.Time
	Before time.Time
}

// String renders the query in Gmail search syntax.
func (q Query) String() string {
	var parts []string
	if q.Sender != "" {
		parts = append(parts, "from:"+q.Sender)
	}
	if !q.After.IsZero() {
		parts = append(parts, "after:"+q.After.Format(searchDateLayout))
	}
	if !q.Before.IsZero() {
		parts = append(parts, "before:"+q.Before.Format(searchDateLayout))
	}
	return strings.Join(parts, " ")
}

// MonthRange returns the first day of t's month and the first day of the
// following month.
func MonthRange(t time.Time) (time.Time, time.Time) {
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	return first, first.AddDate(0, 1, 0)
}

// ParseMonth parses a YYYY-MM month in the given location.
func ParseMonth(s string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation("2006-01", s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("ParseMonth: %q is not YYYY-MM: %w", s, err)
	}
	return t, nil
}

// ParseDay parses a YYYY-MM-DD date in the given location.
func ParseDay(s string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(time.DateOnly, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("ParseDay: %q is not YYYY-MM-DD: %w", s, err)
	}
	return t, nil
}
