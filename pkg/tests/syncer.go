package tests

import (
	"sync"

	"github.com/Cardinal-Cryptography/aleph-node/pkg/gomel"
)

// FetchRequest is a request recorded by the Syncer.
type FetchRequest struct {
	Pid    uint16
	Hashes []*gomel.Hash
}

// Syncer records all the requests made to it.
type Syncer struct {
	mx      sync.Mutex
	fetches []FetchRequest
	tips    []int
}

// RequestFetch records the request.
func (s *Syncer) RequestFetch(pid uint16, hashes []*gomel.Hash) {
	s.mx.Lock()
	defer s.mx.Unlock()
	s.fetches = append(s.fetches, FetchRequest{pid, hashes})
}

// RequestTip records the request.
func (s *Syncer) RequestTip(round int) {
	s.mx.Lock()
	defer s.mx.Unlock()
	s.tips = append(s.tips, round)
}

// Multicast ignores the unit.
func (s *Syncer) Multicast(gomel.Unit) {}

// Fetches returns the recorded fetch requests.
func (s *Syncer) Fetches() []FetchRequest {
	s.mx.Lock()
	defer s.mx.Unlock()
	return append([]FetchRequest(nil), s.fetches...)
}

// Tips returns the rounds of the recorded tip requests.
func (s *Syncer) Tips() []int {
	s.mx.Lock()
	defer s.mx.Unlock()
	return append([]int(nil), s.tips...)
}
