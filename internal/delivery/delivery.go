// Package delivery defines how a composed passage reaches a recipient.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Message is a rendered, channel-ready text. Format names the markup of Text
// ("HTML" or "" for plain).
type Message struct {
	Text   string
	Format string
}

// Channel sends a message to one recipient. A nil error means the platform
// accepted the message.
type Channel interface {
	Send(ctx context.Context, recipientID string, msg Message) error
}

type Kind int

const (
	// Unavailable is transient: the platform or network failed.
	Unavailable Kind = iota
	// RateLimited is transient; RetryAfter may carry the platform's hint.
	RateLimited
	// Unreachable is permanent until the recipient acts: blocked the bot,
	// deleted the account, or the chat no longer exists.
	Unreachable
)

func (k Kind) String() string {
	switch k {
	case Unreachable:
		return "unreachable"
	case RateLimited:
		return "rate_limited"
	default:
		return "unavailable"
	}
}

type Error struct {
	Kind       Kind
	RetryAfter time.Duration
	Err        error
}

func (e *Error) Error() string { return fmt.Sprintf("delivery %s: %v", e.Kind, e.Err) }

func (e *Error) Unwrap() error { return e.Err }

// KindOf classifies err; anything that is not an *Error is Unavailable.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return Unavailable
}
