package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

type entry struct {
	mu      sync.Mutex
	session *Session
}

// Store keeps sessions in memory and expires them after a period of inactivity.
type Store struct {
	cache *cache.Cache
	clock Clock
	mu    sync.Mutex // serialises get-or-create
}

// NewStore creates a store. A zero cleanupInterval disables the background
// janitor; expired sessions are then only dropped on access.
func NewStore(ttl, cleanupInterval time.Duration, clock Clock) *Store {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Store{cache: cache.New(ttl, cleanupInterval), clock: clock}
}

// Acquire returns the session with id locked for exclusive use, creating a
// fresh one when id is empty or unknown. release must be called exactly once.
func (st *Store) Acquire(id string) (s *Session, release func()) {
	st.mu.Lock()
	e := st.lookup(id)
	if e == nil {
		e = &entry{session: New(uuid.NewString(), st.clock.Now())}
	}
	// refresh the expiry on every access
	st.cache.SetDefault(e.session.ID, e)
	st.mu.Unlock()

	e.mu.Lock()
	return e.session, e.mu.Unlock
}

// Get returns a snapshot of the session.
func (st *Store) Get(id string) (*Session, bool) {
	st.mu.Lock()
	e := st.lookup(id)
	st.mu.Unlock()
	if e == nil {
		return nil, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session.clone(), true
}

// Len is the number of live sessions.
func (st *Store) Len() int {
	return st.cache.ItemCount()
}

func (st *Store) lookup(id string) *entry {
	if id == "" {
		return nil
	}
	v, ok := st.cache.Get(id)
	if !ok {
		return nil
	}
	return v.(*entry)
}
