package scheduler

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultTick fires at the top of every minute.
const DefaultTick = "* * * * *"

var tickParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ParseTick parses the sweep trigger.
//
// Supported forms:
//   - Cron: "* * * * *", "*/5 * * * *", "@hourly"
//   - Aligned interval: "1m", "5m", "15m" (whole minutes dividing an hour),
//     rewritten to the equivalent cron so ticks stay on wall-clock minutes.
//
// A "cron:" prefix forces cron parsing. Empty means DefaultTick.
func ParseTick(raw string) (cron.Schedule, string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		s = DefaultTick
	}
	if strings.HasPrefix(strings.ToLower(s), "cron:") {
		s = strings.TrimSpace(s[len("cron:"):])
		if s == "" {
			return nil, "", fmt.Errorf("cron expression required after 'cron:'")
		}
	} else if !strings.ContainsAny(s, " \t") && !strings.HasPrefix(s, "@") {
		d, err := time.ParseDuration(s)
		if err != nil {
			return nil, "", fmt.Errorf("invalid tick %q (use cron like '* * * * *' or an interval like '5m')", raw)
		}
		s, err = alignedCron(d)
		if err != nil {
			return nil, "", err
		}
	}
	sched, err := tickParser.Parse(s)
	if err != nil {
		return nil, "", fmt.Errorf("invalid tick %q: %w", raw, err)
	}
	return sched, s, nil
}

func alignedCron(d time.Duration) (string, error) {
	if d < time.Minute || d%time.Minute != 0 {
		return "", fmt.Errorf("tick interval %s must be whole minutes", d)
	}
	m := int(d / time.Minute)
	switch {
	case m == 1:
		return DefaultTick, nil
	case m < 60 && 60%m == 0:
		return fmt.Sprintf("*/%d * * * *", m), nil
	case m == 60:
		return "0 * * * *", nil
	}
	return "", fmt.Errorf("tick interval %s must divide an hour", d)
}
