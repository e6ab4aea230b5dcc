package fix

import "time"

// Clock supplies wall-clock time and periodic ticks to the session's timer
// supervision. Ticks never mutate session state themselves; they only raise
// timer events the session loop consumes, so every liveness transition stays
// inside the one place that owns session state. Tests substitute a manual
// clock to drive heartbeat escalation deterministically.
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) Ticker
}

type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type systemClock struct{}

// SystemClock returns the real-time Clock used by default.
func SystemClock() Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time {
	return time.Now()
}

func (systemClock) NewTicker(d time.Duration) Ticker {
	return &systemTicker{ticker: time.NewTicker(d)}
}

type systemTicker struct {
	ticker *time.Ticker
}

func (t *systemTicker) C() <-chan time.Time {
	return t.ticker.C
}

func (t *systemTicker) Stop() {
	t.ticker.Stop()
}
