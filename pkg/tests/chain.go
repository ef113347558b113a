package tests

import (
	"context"
	"encoding/binary"
	"sync"

	"golang.org/x/crypto/sha3"

	"github.com/Cardinal-Cryptography/aleph-node/pkg/gomel"
)

// BlockAt returns the reference to the block with the given number in the test chain.
func BlockAt(number uint64) gomel.BlockRef {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, number)
	return gomel.BlockRef{Hash: sha3.Sum256(buf), Number: number}
}

// Chain is a blockchain backend of a single node. Blocks 1..length exist, a prefix of them is imported.
type Chain struct {
	mx         sync.Mutex
	numbers    map[gomel.BlockHash]uint64
	imported   uint64
	proposed   uint64
	autoImport bool
	changed    chan struct{}
}

// NewChain creates a chain of the given length with the first imported blocks already imported.
func NewChain(length, imported uint64) *Chain {
	c := &Chain{
		numbers:  make(map[gomel.BlockHash]uint64, length),
		imported: imported,
		changed:  make(chan struct{}),
	}
	for i := uint64(1); i <= length; i++ {
		c.numbers[BlockAt(i).Hash] = i
	}
	return c
}

// AutoImport makes ImportBlockAndWait import the requested block immediately.
func (c *Chain) AutoImport() *Chain {
	c.mx.Lock()
	defer c.mx.Unlock()
	c.autoImport = true
	return c
}

// Grow imports the next k blocks.
func (c *Chain) Grow(k uint64) {
	c.mx.Lock()
	defer c.mx.Unlock()
	c.importUpTo(c.imported + k)
}

func (c *Chain) importUpTo(number uint64) {
	if number <= c.imported {
		return
	}
	c.imported = number
	close(c.changed)
	c.changed = make(chan struct{})
}

// Imported returns the number of the highest imported block.
func (c *Chain) Imported() uint64 {
	c.mx.Lock()
	defer c.mx.Unlock()
	return c.imported
}

// ProposeNextBlock proposes the block after the previously proposed one, as long as it is imported.
func (c *Chain) ProposeNextBlock(context.Context) (*gomel.BlockRef, error) {
	c.mx.Lock()
	defer c.mx.Unlock()
	if c.proposed >= c.imported {
		return nil, nil
	}
	c.proposed++
	b := BlockAt(c.proposed)
	return &b, nil
}

// IsImported checks whether the block is imported.
func (c *Chain) IsImported(h gomel.BlockHash) bool {
	c.mx.Lock()
	defer c.mx.Unlock()
	n, ok := c.numbers[h]
	return ok && n <= c.imported
}

// ImportBlockAndWait waits until the block is imported.
func (c *Chain) ImportBlockAndWait(ctx context.Context, h gomel.BlockHash) error {
	for {
		c.mx.Lock()
		n, ok := c.numbers[h]
		if !ok {
			c.mx.Unlock()
			return gomel.NewDataError("unknown block " + h.Short())
		}
		if c.autoImport {
			c.importUpTo(n)
		}
		if n <= c.imported {
			c.mx.Unlock()
			return nil
		}
		changed := c.changed
		c.mx.Unlock()
		select {
		case <-changed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
