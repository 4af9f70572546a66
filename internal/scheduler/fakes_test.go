package scheduler

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"dailyverse/internal/content"
	"dailyverse/internal/delivery"
	"dailyverse/internal/eventbus"
	"dailyverse/internal/schedule"
	"dailyverse/internal/storage"
	logx "dailyverse/pkg/logx"
)

type fakeProvider struct {
	mu          sync.Mutex
	versionsErr error
	fetchErr    error
	fetches     int
}

func (p *fakeProvider) Versions(ctx context.Context) ([]content.Version, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.versionsErr != nil {
		return nil, p.versionsErr
	}
	return []content.Version{
		{ID: "kjv-id", Abbreviation: "KJV", Name: "King James Version", Language: "eng"},
		{ID: "web-id", Abbreviation: "WEB", Name: "World English Bible", Language: "eng"},
	}, nil
}

func (p *fakeProvider) Fetch(ctx context.Context, version, ref string) (content.Passage, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fetches++
	if p.fetchErr != nil {
		return content.Passage{}, p.fetchErr
	}
	return content.Passage{Reference: ref, Text: "text of " + ref, VersionID: version}, nil
}

func (p *fakeProvider) setFetchErr(err error) {
	p.mu.Lock()
	p.fetchErr = err
	p.mu.Unlock()
}

func (p *fakeProvider) fetchCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fetches
}

type sentMessage struct {
	to  string
	msg delivery.Message
}

type fakeChannel struct {
	mu    sync.Mutex
	err   error
	calls int
	sent  []sentMessage
}

func (c *fakeChannel) Send(ctx context.Context, to string, msg delivery.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, sentMessage{to: to, msg: msg})
	return nil
}

func (c *fakeChannel) setErr(err error) {
	c.mu.Lock()
	c.err = err
	c.mu.Unlock()
}

func (c *fakeChannel) sentTo(id string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, s := range c.sent {
		if s.to == id {
			n++
		}
	}
	return n
}

func (c *fakeChannel) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

type harness struct {
	svc    *Service
	store  schedule.Store
	path   string
	prov   *fakeProvider
	ch     *fakeChannel
	events <-chan eventbus.Event
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()
	path := filepath.Join(t.TempDir(), "schedules.json")
	st, err := storage.Open(storage.Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = st.Close() })

	bus := eventbus.New()
	events, unsub := bus.Subscribe(64)
	t.Cleanup(unsub)

	prov := &fakeProvider{}
	ch := &fakeChannel{}
	if opts.DefaultVersion == "" {
		opts.DefaultVersion = "kjv-id"
	}
	svc, err := New(opts, st, prov, ch, bus, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	svc.now = func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) }
	return &harness{svc: svc, store: st, path: path, prov: prov, ch: ch, events: events}
}

func (h *harness) register(t *testing.T, id, version, tod, tz string) schedule.Record {
	t.Helper()
	rec, err := h.svc.Register(context.Background(), id, version, tod, tz)
	if err != nil {
		t.Fatalf("Register(%s): %v", id, err)
	}
	return rec
}

func (h *harness) get(t *testing.T, id string) schedule.Record {
	t.Helper()
	rec, ok, err := h.store.Get(context.Background(), id)
	if err != nil || !ok {
		t.Fatalf("Get(%s): ok=%v err=%v", id, ok, err)
	}
	return rec
}

func (h *harness) bytes(t *testing.T) []byte {
	t.Helper()
	b, err := os.ReadFile(h.path)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

// drain returns the buffered events of the given type.
func (h *harness) drain(kind string) []eventbus.RecipientIssue {
	var out []eventbus.RecipientIssue
	for {
		select {
		case e := <-h.events:
			if e.Type == kind {
				out = append(out, e.Data.(eventbus.RecipientIssue))
			}
		default:
			return out
		}
	}
}

func utc(y int, m time.Month, d, h, mi int) time.Time {
	return time.Date(y, m, d, h, mi, 0, 0, time.UTC)
}

func date(y int, m time.Month, d int) schedule.Date {
	return schedule.Date{Year: y, Month: m, Day: d}
}

var errBoom = errors.New("boom")
