package gomel

import "encoding/base64"

// HashLength is the size of hashes of units and blocks.
const HashLength = 32

// SessionID is used as a unique identifier of a session, i.e. an epoch with a fixed committee.
type SessionID uint32

// Signature of a unit, or of a justification digest.
type Signature []byte

// BlockHash identifies a block of the underlying blockchain.
type BlockHash [HashLength]byte

// Short returns a shortened version of the block hash for easy viewing.
func (h BlockHash) Short() string {
	return base64.StdEncoding.EncodeToString(h[:8])
}

// BlockRef is a reference to a block proposed by a unit: its hash together with its number.
type BlockRef struct {
	Hash   BlockHash
	Number uint64
}

// UnitChecker is a function that performs a check on a Unit before Insert.
type UnitChecker func(Unit, Dag) error

// InsertHook is a function that performs some additional action on a unit before or after Insert.
type InsertHook func(Unit)

// ForkHook is called every time a dag records new evidence of a fork.
type ForkHook func(*ForkEvidence)
