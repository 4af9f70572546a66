package adapter

import (
	"context"
	"errors"
	"time"

	rtsup "dailyverse/internal/runtime/supervisor"
	kit "dailyverse/internal/transport"
	logx "dailyverse/pkg/logx"
)

// Start begins long polling and forwards updates to out until Stop or ctx
// ends. A second call while running is a no-op.
func (a *Adapter) Start(ctx context.Context, out chan<- kit.Update) error {
	a.runMu.Lock()
	defer a.runMu.Unlock()
	if a.sup != nil {
		return nil
	}
	a.out.Store(&out)
	// The poll loop is restarted on failure; it never takes the app down.
	a.sup = rtsup.New(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError(false))

	a.sup.Go0("updates.dropped", func(c context.Context) { a.reportDropped(c, cap(out)) })
	a.sup.Go0("poll.stop", a.stopPollingOnCancel)
	a.sup.GoRestart("poll", func(context.Context) error {
		a.log.Info("polling started")
		a.bot.Start()
		a.log.Info("polling stopped")
		return nil
	},
		rtsup.WithRestartBackoff(500*time.Millisecond, 10*time.Second),
		rtsup.WithStopOnCleanExit(false),
	)
	return nil
}

func (a *Adapter) reportDropped(ctx context.Context, capacity int) {
	t := time.NewTicker(5 * time.Second)
	defer t.Stop()
	for {
		done := false
		select {
		case <-ctx.Done():
			done = true
		case <-t.C:
		}
		if n := a.dropped.Swap(0); n > 0 {
			a.log.Warn("updates dropped, consumer too slow", logx.Uint64("count", n), logx.Int("capacity", capacity))
		}
		if done {
			return
		}
	}
}

// stopPollingOnCancel stops telebot once the supervisor is cancelled.
// bot.Stop blocks until the poll loop acknowledges, which never happens
// while the loop sits in restart backoff, so the wait is capped.
func (a *Adapter) stopPollingOnCancel(ctx context.Context) {
	<-ctx.Done()
	done := make(chan struct{})
	go func() {
		a.bot.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		a.log.Debug("telebot stop not acknowledged")
	}
}

// Stop cancels polling and waits briefly for it to wind down. A long poll
// still parked in getUpdates is abandoned rather than waited out.
func (a *Adapter) Stop(ctx context.Context) error {
	a.runMu.Lock()
	sup := a.sup
	a.sup = nil
	a.out.Store(nil)
	a.runMu.Unlock()
	if sup == nil {
		return nil
	}

	sup.Cancel()
	wctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := sup.Wait(wctx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			a.log.Warn("telegram stop timed out", logx.Err(err))
			return nil
		}
		a.log.Debug("telegram stopped with error", logx.Err(err))
	}
	return nil
}
