package logx

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	operatorMaxRunes   = 3500
	operatorValueRunes = 300
)

// operatorSink is a zerolog LevelWriter that queues formatted lines for the
// operator chat. Writes never block; lines over the rate or queue limit are
// counted and reported with the next line that gets through.
type operatorSink struct {
	sender Sender
	queue  chan string

	mu     sync.Mutex
	chatID int64
	min    zerolog.Level
	lim    *rate.Limiter

	dropped atomic.Int64

	runOnce sync.Once
	cancel  context.CancelFunc
	done    chan struct{}
}

func newOperatorSink(sender Sender) *operatorSink {
	return &operatorSink{
		sender: sender,
		queue:  make(chan string, 64),
		min:    zerolog.WarnLevel,
		lim:    rate.NewLimiter(1, 1),
		done:   make(chan struct{}),
	}
}

func (o *operatorSink) configure(cfg TelegramConfig) {
	rps := max(1, cfg.RatePerSec)
	o.mu.Lock()
	o.min = parseLevel(cfg.MinLevel, zerolog.WarnLevel)
	o.lim = rate.NewLimiter(rate.Limit(rps), rps)
	o.mu.Unlock()
}

func (o *operatorSink) setTarget(chatID int64) {
	o.mu.Lock()
	o.chatID = chatID
	o.mu.Unlock()
}

func (o *operatorSink) target() int64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.chatID
}

func (o *operatorSink) start() {
	o.runOnce.Do(func() {
		ctx, cancel := context.WithCancel(context.Background())
		o.mu.Lock()
		o.cancel = cancel
		o.mu.Unlock()
		go o.run(ctx)
	})
}

func (o *operatorSink) stop() {
	o.mu.Lock()
	cancel := o.cancel
	o.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-o.done
}

func (o *operatorSink) run(ctx context.Context) {
	defer close(o.done)
	for {
		select {
		case <-ctx.Done():
			return
		case line := <-o.queue:
			chatID := o.target()
			if chatID == 0 {
				continue
			}
			sctx, cancel := context.WithTimeout(ctx, 10*time.Second)
			_ = o.sender.SendOperatorText(sctx, chatID, line)
			cancel()
		}
	}
}

func (o *operatorSink) Write(p []byte) (int, error) {
	return o.WriteLevel(zerolog.InfoLevel, p)
}

func (o *operatorSink) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	o.mu.Lock()
	chatID, minLvl, lim := o.chatID, o.min, o.lim
	o.mu.Unlock()

	if chatID == 0 || level < minLvl {
		return len(p), nil
	}
	if !lim.Allow() {
		o.dropped.Add(1)
		return len(p), nil
	}
	line := formatOperatorLine(p)
	if n := o.dropped.Swap(0); n > 0 {
		line += fmt.Sprintf("\n(+%d earlier lines suppressed)", n)
	}
	select {
	case o.queue <- line:
	default:
		o.dropped.Add(1)
	}
	return len(p), nil
}

// formatOperatorLine renders one JSON log line as a short chat message:
// a level badge, the component, the message, then the remaining fields in
// key order.
func formatOperatorLine(p []byte) string {
	raw := strings.TrimSpace(string(p))
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return clipRunes(raw, operatorMaxRunes)
	}

	var b strings.Builder
	lvl, _ := m[zerolog.LevelFieldName].(string)
	switch lvl {
	case "error", "fatal", "panic":
		b.WriteString("🔴 ")
	case "warn":
		b.WriteString("⚠️ ")
	}
	b.WriteString(strings.ToUpper(lvl))
	if comp, ok := m["comp"].(string); ok && comp != "" {
		b.WriteString(" [" + comp + "]")
	}
	if msg, _ := m[zerolog.MessageFieldName].(string); msg != "" {
		b.WriteString("\n" + msg)
	}

	skip := map[string]bool{
		zerolog.LevelFieldName:     true,
		zerolog.MessageFieldName:   true,
		zerolog.TimestampFieldName: true,
		zerolog.CallerFieldName:    true,
		"comp":                     true,
		"stack":                    true,
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		if !skip[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteString("\n" + k + ": " + clipRunes(fmt.Sprint(m[k]), operatorValueRunes))
	}
	return clipRunes(b.String(), operatorMaxRunes)
}

func clipRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-1]) + "…"
}
