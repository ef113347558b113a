package tests

import (
	"errors"
	"sync"

	"github.com/Cardinal-Cryptography/aleph-node/pkg/gomel"
)

// ErrCrash is returned by a sink that was told to fail, simulating a crash of the node.
var ErrCrash = errors.New("simulated crash")

// Sink collects finalized blocks.
type Sink struct {
	mx             sync.Mutex
	blocks         []gomel.BlockRef
	justifications []*gomel.Justification
	failAt         uint64
}

// NewSink creates an empty sink.
func NewSink() *Sink {
	return &Sink{}
}

// FailAt makes the sink return ErrCrash, once, instead of accepting the block with the given number.
func (s *Sink) FailAt(number uint64) {
	s.mx.Lock()
	defer s.mx.Unlock()
	s.failAt = number
}

// OnFinalized records the finalized block.
func (s *Sink) OnFinalized(h gomel.BlockHash, j *gomel.Justification) error {
	s.mx.Lock()
	defer s.mx.Unlock()
	if s.failAt != 0 && j.Height() == s.failAt {
		s.failAt = 0
		return ErrCrash
	}
	s.blocks = append(s.blocks, gomel.BlockRef{Hash: h, Number: j.Height()})
	s.justifications = append(s.justifications, j)
	return nil
}

// Blocks returns the finalized blocks in the order of finalization.
func (s *Sink) Blocks() []gomel.BlockRef {
	s.mx.Lock()
	defer s.mx.Unlock()
	return append([]gomel.BlockRef(nil), s.blocks...)
}

// Justifications returns the justifications delivered with the finalized blocks.
func (s *Sink) Justifications() []*gomel.Justification {
	s.mx.Lock()
	defer s.mx.Unlock()
	return append([]*gomel.Justification(nil), s.justifications...)
}

// Height returns the number of the last finalized block.
func (s *Sink) Height() uint64 {
	s.mx.Lock()
	defer s.mx.Unlock()
	if len(s.blocks) == 0 {
		return 0
	}
	return s.blocks[len(s.blocks)-1].Number
}

// ReportingSink is a sink that also reports the last finalized height, like a backend that tracks finality itself.
type ReportingSink struct {
	*Sink
}

// LastFinalized returns the number of the last finalized block.
func (rs ReportingSink) LastFinalized() uint64 {
	return rs.Height()
}
