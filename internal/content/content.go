// Package content supplies the passages the bot delivers: a curated rotation of
// references, and a Provider that resolves a reference in a given Bible version.
package content

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Passage is the resolved text of one curated item.
type Passage struct {
	Reference string // human form, e.g. "John 3:16"
	Text      string
	VersionID string
	Copyright string
}

// Version is one entry of the provider's catalog.
type Version struct {
	ID           string
	Abbreviation string
	Name         string
	Language     string // ISO 639-3, e.g. "eng"
	Description  string
}

// Provider resolves passages. Implementations return *Error for every failure
// a caller must classify.
type Provider interface {
	Fetch(ctx context.Context, versionID, reference string) (Passage, error)
	Versions(ctx context.Context) ([]Version, error)
}

type Kind int

const (
	// Unavailable is transient: network failure, timeout, 5xx.
	Unavailable Kind = iota
	// RateLimited is transient; RetryAfter may hint when to come back.
	RateLimited
	// NotFound means the version or reference does not exist. It is a
	// configuration problem of whoever asked for it, not a transient failure.
	NotFound
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "not_found"
	case RateLimited:
		return "rate_limited"
	default:
		return "unavailable"
	}
}

type Error struct {
	Kind       Kind
	Status     int // HTTP status when known
	RetryAfter time.Duration
	Err        error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("content %s (http %d): %v", e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("content %s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf classifies err. Anything that is not an *Error (including context
// deadline errors) is Unavailable.
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return Unavailable
}
