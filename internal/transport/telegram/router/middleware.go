package router

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	logx "dailyverse/pkg/logx"
)

// DefaultHandlerTimeout bounds a handler when its command sets no Timeout.
const DefaultHandlerTimeout = 30 * time.Second

const failureReply = "⚠️ Something went wrong. Please try again later."

type HandlerFunc func(ctx context.Context, req *Request) error

type Middleware func(next HandlerFunc) HandlerFunc

// Chain wraps h so that m[0] runs first.
func Chain(h HandlerFunc, m ...Middleware) HandlerFunc {
	for i := len(m) - 1; i >= 0; i-- {
		h = m[i](h)
	}
	return h
}

// pipeline is the middleware stack every command and callback runs behind.
func (m *CommandManager) pipeline(h HandlerFunc, timeout time.Duration) HandlerFunc {
	return Chain(h,
		logOutcome(m.log),
		replyOnFailure(),
		recoverPanic(),
		withDeadline(timeout),
	)
}

func withDeadline(d time.Duration) Middleware {
	if d <= 0 {
		d = DefaultHandlerTimeout
	}
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) error {
			cctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()
			return next(cctx, req)
		}
	}
}

// recoverPanic turns a handler panic into an error so the worker survives.
func recoverPanic() Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) (err error) {
			defer func() {
				if r := recover(); r != nil {
					req.Logger.Error("handler panic", logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
					err = fmt.Errorf("panic: %v", r)
				}
			}()
			return next(ctx, req)
		}
	}
}

// replyOnFailure tells the user something broke when a handler returns an
// error without having answered. Shutdown cancellations stay silent.
func replyOnFailure() Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) error {
			err := next(ctx, req)
			if err == nil || errors.Is(err, context.Canceled) || req.Adapter == nil {
				return err
			}
			rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			if _, rerr := req.Reply(rctx, failureReply, nil); rerr != nil {
				req.Logger.Debug("failure reply not sent", logx.Err(rerr))
			}
			return err
		}
	}
}

func logOutcome(fallback logx.Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) error {
			log := req.Logger
			if log.IsZero() {
				log = fallback
			}
			start := time.Now()
			err := next(ctx, req)
			took := time.Since(start)

			fields := []logx.Field{logx.String("kind", string(req.Update.Kind)), logx.Duration("took", took)}
			switch {
			case err != nil:
				log.Warn("handler failed", append(fields, logx.Err(err))...)
			case took >= 750*time.Millisecond:
				log.Info("handler slow", fields...)
			default:
				log.Debug("handler done", fields...)
			}
			return err
		}
	}
}
