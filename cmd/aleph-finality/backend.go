package main

import (
	"context"
	"encoding/binary"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/sha3"

	"github.com/Cardinal-Cryptography/aleph-node/pkg/config"
	"github.com/Cardinal-Cryptography/aleph-node/pkg/gomel"
	"github.com/Cardinal-Cryptography/aleph-node/pkg/logging"
)

// localChain stands in for a blockchain when the committee runs on its own.
// Every block exists and is imported, and its hash encodes its number.
// It proposes at most config.MaxDataBranchLength blocks above the finalized one.
type localChain struct {
	mx        sync.Mutex
	proposed  uint64
	finalized uint64
	log       zerolog.Logger
}

func newLocalChain(finalized uint64, log zerolog.Logger) *localChain {
	return &localChain{
		proposed:  finalized,
		finalized: finalized,
		log:       log.With().Str(logging.Where, "chain").Logger(),
	}
}

func blockAt(number uint64) gomel.BlockRef {
	var h gomel.BlockHash
	binary.BigEndian.PutUint64(h[:8], number)
	sum := sha3.Sum256(h[:8])
	copy(h[8:], sum[:len(h)-8])
	return gomel.BlockRef{Hash: h, Number: number}
}

func (c *localChain) ProposeNextBlock(context.Context) (*gomel.BlockRef, error) {
	c.mx.Lock()
	defer c.mx.Unlock()
	if c.proposed < c.finalized {
		c.proposed = c.finalized
	}
	if c.proposed >= c.finalized+config.MaxDataBranchLength {
		return nil, nil
	}
	c.proposed++
	b := blockAt(c.proposed)
	return &b, nil
}

func (c *localChain) IsImported(h gomel.BlockHash) bool {
	return blockAt(binary.BigEndian.Uint64(h[:8])).Hash == h
}

func (c *localChain) ImportBlockAndWait(_ context.Context, h gomel.BlockHash) error {
	if !c.IsImported(h) {
		return gomel.NewDataError("unknown block " + h.Short())
	}
	return nil
}

func (c *localChain) OnFinalized(h gomel.BlockHash, j *gomel.Justification) error {
	c.mx.Lock()
	defer c.mx.Unlock()
	c.finalized = j.Height()
	c.log.Info().
		Uint32(logging.Session, uint32(j.Session)).
		Uint64(logging.Height, j.Height()).
		Str(logging.Hash, h.Short()).
		Msg(logging.BlockFinalized)
	return nil
}

func (c *localChain) LastFinalized() uint64 {
	c.mx.Lock()
	defer c.mx.Unlock()
	return c.finalized
}
