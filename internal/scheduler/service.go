package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"dailyverse/internal/content"
	"dailyverse/internal/delivery"
	"dailyverse/internal/eventbus"
	"dailyverse/internal/schedule"
	logx "dailyverse/pkg/logx"
)

// Options tune the sweep. Zero values take the documented defaults.
type Options struct {
	Tick           string        // default "* * * * *"
	CatchUp        time.Duration // delivery window after the slot; default one minute
	Workers        int           // concurrent recipients per sweep; default 4
	RequestTimeout time.Duration // per provider/channel call; default 20s
	BackoffBase    time.Duration // NotFound hold-off; default 15m
	BackoffMax     time.Duration // default 24h
	DefaultVersion string        // used by Quote for unregistered recipients
}

func (o Options) withDefaults() Options {
	if strings.TrimSpace(o.Tick) == "" {
		o.Tick = DefaultTick
	}
	if o.CatchUp <= 0 {
		o.CatchUp = defaultWindow
	}
	if o.Workers <= 0 {
		o.Workers = 4
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = 20 * time.Second
	}
	if o.BackoffBase <= 0 {
		o.BackoffBase = 15 * time.Minute
	}
	if o.BackoffMax < o.BackoffBase {
		o.BackoffMax = max(24*time.Hour, o.BackoffBase)
	}
	return o
}

type Service struct {
	store    schedule.Store
	provider content.Provider
	channel  delivery.Channel
	bus      eventbus.Bus
	log      logx.Logger
	now      func() time.Time

	mu      sync.Mutex
	opts    Options
	sched   cron.Schedule
	c       *cron.Cron
	entry   cron.EntryID
	running bool
	runCtx  context.Context
	last    SweepReport
	sweeps  uint64
	prevAt  time.Time // instant of the latest sweep that listed the store

	backoff  backoffStore
	zones    sync.Map // tz name -> zoneResult
	reported sync.Map // recipient id -> last published issue
}

type zoneResult struct {
	loc *time.Location
	err error
}

func New(opts Options, store schedule.Store, provider content.Provider, channel delivery.Channel, bus eventbus.Bus, log logx.Logger) (*Service, error) {
	if store == nil || provider == nil || channel == nil {
		return nil, errors.New("scheduler: store, provider and channel are required")
	}
	opts = opts.withDefaults()
	sched, _, err := ParseTick(opts.Tick)
	if err != nil {
		return nil, err
	}
	if bus == nil {
		bus = eventbus.New()
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		store:    store,
		provider: provider,
		channel:  channel,
		bus:      bus,
		log:      log,
		now:      time.Now,
		opts:     opts,
		sched:    sched,
	}, nil
}

func (s *Service) options() Options {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opts
}

// Apply swaps sweep options at runtime. A changed tick reschedules the loop.
func (s *Service) Apply(opts Options) error {
	opts = opts.withDefaults()
	sched, _, err := ParseTick(opts.Tick)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tickChanged := opts.Tick != s.opts.Tick
	s.opts = opts
	s.sched = sched
	if tickChanged && s.running {
		s.c.Remove(s.entry)
		s.entry = s.c.Schedule(sched, s.job())
		s.log.Info("sweep tick changed", logx.String("tick", opts.Tick))
	}
	return nil
}

// Start runs the sweep on every tick until Stop. Ticks never overlap: a tick
// that fires while the previous sweep is still running is skipped.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}
	cl := logx.CronLogger{L: s.log}
	s.c = cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	s.runCtx = ctx
	s.entry = s.c.Schedule(s.sched, s.job())
	s.c.Start()
	s.running = true
	s.log.Info("sweep loop started", logx.String("tick", s.opts.Tick), logx.Time("next", s.sched.Next(s.now())))
	return nil
}

func (s *Service) job() cron.Job {
	return cron.FuncJob(func() {
		s.mu.Lock()
		ctx := s.runCtx
		s.mu.Unlock()
		if ctx == nil || ctx.Err() != nil {
			return
		}
		s.Sweep(ctx, s.now())
	})
}

// Stop halts the loop and waits for an in-flight sweep, bounded by ctx.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	c := s.c
	s.running = false
	s.mu.Unlock()

	done := c.Stop()
	select {
	case <-done.Done():
		s.log.Info("sweep loop stopped")
		return nil
	case <-ctx.Done():
		s.log.Warn("sweep loop stop timed out", logx.Err(ctx.Err()))
		return ctx.Err()
	}
}

// Sweep evaluates every stored recipient at now and delivers to the due ones.
// Per-recipient failures are contained; the report counts them.
func (s *Service) Sweep(ctx context.Context, now time.Time) SweepReport {
	opts := s.options()
	start := time.Now()
	rep := SweepReport{At: now.UTC()}

	recs, err := s.store.List(ctx)
	if err != nil {
		rep.Err = err.Error()
		s.log.Error("sweep: list schedules failed", logx.Err(err))
		s.finish(rep, start)
		return rep
	}
	rep.Evaluated = len(recs)
	from := s.advance(now, opts.CatchUp)

	var counters sweepCounters
	var g errgroup.Group
	g.SetLimit(opts.Workers)
	for _, rec := range recs {
		rec := rec
		g.Go(func() error {
			s.evaluate(ctx, now, from, rec, opts, &counters)
			return nil
		})
	}
	_ = g.Wait()

	counters.fill(&rep)
	s.finish(rep, start)
	return rep
}

// advance records now as the latest observed tick and returns the lower
// bound of this sweep's delivery window. A slot between two observed ticks
// is never lost to a skipped tick in between.
func (s *Service) advance(now time.Time, window time.Duration) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.prevAt
	if now.After(prev) {
		s.prevAt = now
	}
	if !prev.Before(now) {
		prev = time.Time{}
	}
	return windowStart(now, prev, window)
}

func (s *Service) finish(rep SweepReport, start time.Time) {
	rep.Took = time.Since(start)
	s.mu.Lock()
	s.last = rep
	s.sweeps++
	s.mu.Unlock()

	if rep.Due > 0 || rep.Err != "" {
		s.log.Info("sweep finished",
			logx.Int("evaluated", rep.Evaluated), logx.Int("due", rep.Due),
			logx.Int("delivered", rep.Delivered), logx.Int("failed", rep.Failed),
			logx.Duration("took", rep.Took))
	} else {
		s.log.Trace("sweep finished", logx.Int("evaluated", rep.Evaluated), logx.Any("not_due", rep.NotDue))
	}
	s.bus.Publish(eventbus.Event{Type: eventbus.SweepFinished, Data: rep})
}

func (s *Service) evaluate(ctx context.Context, now, from time.Time, rec schedule.Record, opts Options, counters *sweepCounters) {
	log := s.log.With(logx.String("recipient", rec.RecipientID), logx.String("tz", rec.Timezone))
	defer func() {
		if r := recover(); r != nil {
			counters.notDue(skipPanicked)
			log.Error("sweep: recipient panicked", logx.Any("panic", r))
		}
	}()

	loc, err := s.location(rec.Timezone)
	if err != nil {
		counters.notDue(skipConfigError)
		log.Warn("sweep: invalid timezone; recipient skipped", logx.Err(err))
		s.reportIssue(eventbus.RecipientConfigError, rec.RecipientID, "timezone "+rec.Timezone+": "+err.Error())
		return
	}
	ev := Evaluate(rec.TimeOfDay, loc, now)

	if held, until := s.backoff.open(now, rec.RecipientID); held {
		counters.notDue(skipBackoff)
		log.Trace("sweep: recipient in backoff", logx.Time("until", until))
		return
	}
	if reason := dueAt(rec, ev, from); reason != due {
		counters.notDue(reason)
		return
	}

	counters.due.Add(1)
	log = log.With(logx.String("local_date", ev.LocalDate.String()))
	if err := s.deliver(ctx, rec, ev, opts, log); err != nil {
		counters.failed.Add(1)
		return
	}
	counters.delivered.Add(1)
}

// deliver fetches, sends and, only after a confirmed send, records the delivery.
func (s *Service) deliver(ctx context.Context, rec schedule.Record, ev Evaluation, opts Options, log logx.Logger) error {
	item := content.At(rec.RotationCursor)
	log = log.With(logx.String("ref", item.Reference), logx.String("version", rec.ContentVersion))

	fctx, cancel := context.WithTimeout(ctx, opts.RequestTimeout)
	passage, err := s.provider.Fetch(fctx, rec.ContentVersion, item.Reference)
	cancel()
	if err != nil {
		switch content.KindOf(err) {
		case content.NotFound:
			until := s.backoff.fail(ev.Now, rec.RecipientID, opts.BackoffBase, opts.BackoffMax)
			log.Warn("delivery: passage not found for registration; backing off", logx.Err(err), logx.Time("until", until))
			s.reportIssue(eventbus.RecipientConfigError, rec.RecipientID, fmt.Sprintf("version %s cannot serve %s", rec.ContentVersion, item.Reference))
		default:
			log.Warn("delivery: content fetch failed; will retry", logx.Err(err))
		}
		return err
	}

	msg := delivery.Compose(passage, s.versionLabel(ctx, rec.ContentVersion, opts.RequestTimeout))
	sctx, cancel := context.WithTimeout(ctx, opts.RequestTimeout)
	err = s.channel.Send(sctx, rec.RecipientID, msg)
	cancel()
	if err != nil {
		if delivery.KindOf(err) == delivery.Unreachable {
			s.markUnreachable(ctx, rec.RecipientID, err, log)
			return err
		}
		log.Warn("delivery: send failed; will retry", logx.Err(err))
		return err
	}

	s.backoff.clear(rec.RecipientID)
	n := len(content.Curated())
	err = s.store.Update(ctx, rec.RecipientID, func(cur *schedule.Record, found bool) error {
		if !found {
			// Unregistered while the message was in flight.
			return schedule.ErrNoChange
		}
		cur.MarkDelivered(ev.LocalDate, n, s.now().UTC())
		return nil
	})
	if err != nil {
		log.Error("delivery: sent but state not saved", logx.Err(err))
		return err
	}
	log.Info("delivery: passage delivered")
	return nil
}

func (s *Service) markUnreachable(ctx context.Context, id string, cause error, log logx.Logger) {
	reason := cause.Error()
	var de *delivery.Error
	if errors.As(cause, &de) && de.Err != nil {
		reason = de.Err.Error()
	}
	err := s.store.Update(ctx, id, func(cur *schedule.Record, found bool) error {
		if !found || cur.Unreachable() {
			return schedule.ErrNoChange
		}
		cur.MarkUnreachable(reason, s.now().UTC())
		return nil
	})
	if err != nil {
		log.Error("delivery: could not flag unreachable recipient", logx.Err(err))
		return
	}
	log.Warn("delivery: recipient unreachable; excluded until re-registration", logx.String("reason", reason))
	s.reportIssue(eventbus.RecipientUnreachable, id, reason)
}

// reportIssue publishes a recipient issue once per distinct reason.
func (s *Service) reportIssue(kind, id, reason string) {
	key := kind + "\x00" + reason
	if prev, ok := s.reported.Swap(id, key); ok && prev == key {
		return
	}
	s.bus.Publish(eventbus.Event{Type: kind, Data: eventbus.RecipientIssue{RecipientID: id, Reason: reason}})
}

func (s *Service) location(name string) (*time.Location, error) {
	if v, ok := s.zones.Load(name); ok {
		z := v.(zoneResult)
		return z.loc, z.err
	}
	loc, err := LoadZone(name)
	s.zones.Store(name, zoneResult{loc: loc, err: err})
	return loc, err
}

// LoadZone resolves an IANA zone name. The empty name and "Local" are rejected
// so a schedule never depends on the host's zone.
func LoadZone(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.EqualFold(name, "local") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTimezone, name)
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTimezone, err)
	}
	return loc, nil
}

func (s *Service) versionLabel(ctx context.Context, id string, timeout time.Duration) string {
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	vs, err := s.provider.Versions(cctx)
	if err != nil {
		return id
	}
	for _, v := range vs {
		if v.ID == id {
			if v.Abbreviation != "" {
				return v.Abbreviation
			}
			return v.Name
		}
	}
	return id
}

// Status reports loop state for operators.
func (s *Service) Status(ctx context.Context) Status {
	s.mu.Lock()
	st := Status{
		Running:   s.running,
		Tick:      s.opts.Tick,
		LastSweep: s.last,
		Sweeps:    s.sweeps,
	}
	if s.sched != nil {
		st.NextTick = s.sched.Next(s.now())
	}
	s.mu.Unlock()

	st.BackedOff = s.backoff.active(s.now())
	if recs, err := s.store.List(ctx); err == nil {
		st.Recipients = len(recs)
	}
	return st
}
