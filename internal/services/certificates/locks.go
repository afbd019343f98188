package certificates

import (
	"sync"

	"github.com/google/uuid"
)

// keyedLocks hands out one mutex per certificate id. Entries are kept for
// the process lifetime; the map is bounded by the working set of active
// certificates.
type keyedLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

func (k *keyedLocks) get(id uuid.UUID) *sync.Mutex {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.locks == nil {
		k.locks = make(map[uuid.UUID]*sync.Mutex)
	}
	l, ok := k.locks[id]
	if !ok {
		l = &sync.Mutex{}
		k.locks[id] = l
	}
	return l
}
