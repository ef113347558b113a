package session

import (
	"sort"
	"sync"

	"github.com/Cardinal-Cryptography/aleph-node/pkg/gomel"
)

// SessionMap keeps the committees of known sessions, so that justifications made in older sessions can be verified.
type SessionMap struct {
	mx       sync.RWMutex
	sessions map[gomel.SessionID]*gomel.Session
}

// NewSessionMap returns an empty map.
func NewSessionMap() *SessionMap {
	return &SessionMap{sessions: make(map[gomel.SessionID]*gomel.Session)}
}

// Add registers the session. A session registered again replaces the previous entry.
func (sm *SessionMap) Add(s *gomel.Session) {
	sm.mx.Lock()
	defer sm.mx.Unlock()
	sm.sessions[s.ID] = s
}

// Get returns the session with the given id, or nil if it is unknown.
func (sm *SessionMap) Get(id gomel.SessionID) *gomel.Session {
	sm.mx.RLock()
	defer sm.mx.RUnlock()
	return sm.sessions[id]
}

// PruneBelow removes all the sessions with ids lower than the given one and returns their ids in increasing order.
func (sm *SessionMap) PruneBelow(id gomel.SessionID) []gomel.SessionID {
	sm.mx.Lock()
	defer sm.mx.Unlock()
	var pruned []gomel.SessionID
	for sid := range sm.sessions {
		if sid < id {
			pruned = append(pruned, sid)
			delete(sm.sessions, sid)
		}
	}
	sort.Slice(pruned, func(i, j int) bool { return pruned[i] < pruned[j] })
	return pruned
}

// Verify checks the justification against the committee of its session. Justifications of unknown sessions are rejected.
func (sm *SessionMap) Verify(j *gomel.Justification) bool {
	return j.Verify(sm.Get(j.Session))
}
