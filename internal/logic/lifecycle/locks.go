package lifecycle

import "sync"

// nameLocks serializes operations per server name so a scheduled destroy and
// a manual /stop racing on the same server never interleave, while work on
// different servers proceeds independently. Entries are never freed; fleet
// sizes here are a handful of servers.
type nameLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newNameLocks() *nameLocks {
	return &nameLocks{
		locks: make(map[string]*sync.Mutex),
	}
}

// acquire locks the mutex for name and returns the matching unlock.
func (l *nameLocks) acquire(name string) func() {
	l.mu.Lock()

	nameMu, ok := l.locks[name]
	if !ok {
		nameMu = &sync.Mutex{}
		l.locks[name] = nameMu
	}

	l.mu.Unlock()

	nameMu.Lock()

	return nameMu.Unlock
}
