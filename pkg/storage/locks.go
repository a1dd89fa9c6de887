package storage

import (
	"sync"

	"github.com/google/uuid"
)

// AgentLocks serializes load, change, save cycles per agent inside one
// process. An entry lives only while someone holds or waits on it.
type AgentLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*agentLock
}

type agentLock struct {
	mu   sync.Mutex
	refs int
}

func NewAgentLocks() *AgentLocks {
	return &AgentLocks{locks: make(map[uuid.UUID]*agentLock)}
}

// Lock blocks until the agent's lock is held and returns the release func.
func (l *AgentLocks) Lock(id uuid.UUID) (unlock func()) {
	l.mu.Lock()
	e, ok := l.locks[id]
	if !ok {
		e = &agentLock{}
		l.locks[id] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()

		l.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}
