package adapter

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"dailyverse/internal/delivery"
)

var reRetryAfter = regexp.MustCompile(`(?i)retry after (\d+)`)

// Descriptions Telegram returns for chats the bot can never reach again
// without the user acting first.
var unreachableMarkers = []string{
	"bot was blocked by the user",
	"user is deactivated",
	"chat not found",
	"bot was kicked",
	"bot can't initiate conversation",
	"peer_id_invalid",
	"have no rights to send a message",
}

// classify maps a Bot API error onto the delivery taxonomy.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var de *delivery.Error
	if errors.As(err, &de) {
		return de
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &delivery.Error{Kind: delivery.Unavailable, Err: err}
	}
	if errors.Is(err, tele.ErrBlockedByUser) || errors.Is(err, tele.ErrUserIsDeactivated) || errors.Is(err, tele.ErrChatNotFound) {
		return &delivery.Error{Kind: delivery.Unreachable, Err: err}
	}

	code := 0
	var te *tele.Error
	if errors.As(err, &te) {
		code = te.Code
	}
	kind, retry := classifyText(code, err.Error())
	return &delivery.Error{Kind: kind, RetryAfter: retry, Err: err}
}

// classifyText decides from the HTTP-ish error code and the description.
// A 403 is always permanent; flood control carries its retry hint in the text.
func classifyText(code int, desc string) (delivery.Kind, time.Duration) {
	lower := strings.ToLower(desc)
	if m := reRetryAfter.FindStringSubmatch(lower); m != nil || code == 429 || strings.Contains(lower, "too many requests") {
		var retry time.Duration
		if m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				retry = time.Duration(n) * time.Second
			}
		}
		return delivery.RateLimited, retry
	}
	if code == 403 {
		return delivery.Unreachable, 0
	}
	for _, marker := range unreachableMarkers {
		if strings.Contains(lower, marker) {
			return delivery.Unreachable, 0
		}
	}
	return delivery.Unavailable, 0
}
