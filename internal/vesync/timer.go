package vesync

import "time"

// Timer tracks a device countdown timer locally. The cloud reports the
// remaining seconds at fetch time; Remaining extrapolates from there so
// callers see a live countdown without another round trip.
type Timer struct {
	ID     int
	Total  int
	Action string

	remainAtFetch int
	fetchedAt     time.Time
}

func newTimer(id, total, remain int, action string) *Timer {
	return &Timer{
		ID:            id,
		Total:         total,
		Action:        action,
		remainAtFetch: remain,
		fetchedAt:     time.Now(),
	}
}

// Remaining returns the seconds left on the timer, floored at zero.
func (t *Timer) Remaining() int {
	elapsed := int(time.Since(t.fetchedAt).Seconds())
	remain := t.remainAtFetch - elapsed
	if remain < 0 {
		return 0
	}
	return remain
}

// Done reports whether the timer has run out.
func (t *Timer) Done() bool {
	return t.Remaining() == 0
}
