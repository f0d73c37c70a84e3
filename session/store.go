package session

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// idFloor is the auto-id minter's starting value.
const idFloor = 1000

// Store tracks sessions by id plus the "latest" pointer. It has no
// on-disk backing: sessions live only for the process lifetime.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
	latestID string
	counter  int
}

// NewStore returns an empty Store ready for use.
func NewStore() *Store {
	return &Store{sessions: make(map[string]*Session), counter: idFloor}
}

// Create adds a new, empty session under id. It returns ErrExists if id
// is already live and ErrReservedID if id is the reserved "latest" alias.
func (st *Store) Create(id string, now time.Time) (*Session, error) {
	if id == LatestAlias {
		return nil, ErrReservedID
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, ok := st.sessions[id]; ok {
		return nil, ErrExists
	}
	s := newSession(id, now)
	st.sessions[id] = s
	return s, nil
}

// CreateAuto mints a fresh id and creates a session under it in one
// locked step, so no other caller can observe or steal the minted id
// before the session exists. Ids come from a monotonically increasing
// counter starting at idFloor, advancing past any collision.
func (st *Store) CreateAuto(now time.Time) *Session {
	st.mu.Lock()
	defer st.mu.Unlock()
	for {
		id := fmt.Sprintf("%d", st.counter)
		st.counter++
		if _, ok := st.sessions[id]; ok {
			continue
		}
		s := newSession(id, now)
		st.sessions[id] = s
		return s
	}
}

// Get resolves id, including the "latest" alias, to a live Session. It
// returns nil if no such session exists.
func (st *Store) Get(id string) *Session {
	st.mu.Lock()
	defer st.mu.Unlock()
	if id == LatestAlias {
		id = st.latestID
		if id == "" {
			return nil
		}
	}
	return st.sessions[id]
}

// Delete removes the session named id. It returns ErrNotFound if absent.
// If id was the latest pointer, the pointer is cleared.
func (st *Store) Delete(id string) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, ok := st.sessions[id]; !ok {
		return ErrNotFound
	}
	delete(st.sessions, id)
	if st.latestID == id {
		st.latestID = ""
	}
	return nil
}

// SetLatest marks id as the most recently interacted-with session. The
// caller must already hold a reference confirming id is live.
func (st *Store) SetLatest(id string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.latestID = id
}

// LatestID returns the current latest pointer, or "" if unset.
func (st *Store) LatestID() string {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.latestID
}

// List returns every live session id, sorted for deterministic readdir
// output, plus whether the "latest" alias should also be listed.
func (st *Store) List() (ids []string, hasLatest bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	ids = make([]string, 0, len(st.sessions))
	for id := range st.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, st.latestID != ""
}
