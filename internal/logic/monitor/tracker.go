package monitor

import "sync"

// Tracker remembers, per server, the highest notification threshold already
// sent so usage warnings are staged monotonically and never repeat. It is
// shared between the scheduler loop and the bot command path, so all access
// goes through its mutex.
type Tracker struct {
	mu           sync.Mutex
	lastNotified map[string]int
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		lastNotified: make(map[string]int),
	}
}

// Evaluate scans thresholds in ascending order and returns the first
// threshold t with usagePercent >= t and t > lastNotified(serverName),
// recording it as the new lastNotified. When usage jumps past several
// thresholds between polls, successive calls walk them one at a time from
// the smallest upward; a single call never skips ahead to the highest.
func (t *Tracker) Evaluate(serverName string, usagePercent float64, thresholds []int) (int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	last := t.lastNotified[serverName]

	for _, threshold := range thresholds {
		if usagePercent >= float64(threshold) && last < threshold {
			t.lastNotified[serverName] = threshold

			return threshold, true
		}
	}

	return 0, false
}

// LastNotified returns the last threshold notified for the server, if any.
func (t *Tracker) LastNotified(serverName string) (int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	last, ok := t.lastNotified[serverName]

	return last, ok
}

// Reset clears the staging state for a server. Called only once the server
// is confirmed destroyed.
func (t *Tracker) Reset(serverName string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.lastNotified, serverName)
}

// Prune drops state for servers that no longer exist in the directory and
// returns the names that were removed.
func (t *Tracker) Prune(known map[string]struct{}) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var removed []string

	for name := range t.lastNotified {
		if _, ok := known[name]; !ok {
			delete(t.lastNotified, name)
			removed = append(removed, name)
		}
	}

	return removed
}
