package systemd

import "testing"

func TestNotifyOutsideSystemdIsNoop(t *testing.T) {
	t.Setenv("NOTIFY_SOCKET", "")
	t.Setenv("WATCHDOG_USEC", "")

	for name, fn := range map[string]func() (bool, error){
		"ready":    Ready,
		"stopping": Stopping,
		"watchdog": Watchdog,
		"status":   func() (bool, error) { return Status("ok") },
	} {
		sent, err := fn()
		if sent || err != nil {
			t.Errorf("%s: sent=%v err=%v", name, sent, err)
		}
	}
	if d := WatchdogInterval(); d != 0 {
		t.Errorf("WatchdogInterval = %v", d)
	}
}
