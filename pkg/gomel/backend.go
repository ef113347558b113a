package gomel

import "context"

// BlockBackend is the part of the blockchain backend consumed by consensus and finalization.
type BlockBackend interface {
	// ProposeNextBlock returns the block this process should propose in its next unit, or nil if none is ready.
	ProposeNextBlock(ctx context.Context) (*BlockRef, error)
	// IsImported checks whether the block has been imported by the backend.
	IsImported(BlockHash) bool
	// ImportBlockAndWait blocks until the block is imported or the context is done.
	ImportBlockAndWait(ctx context.Context, block BlockHash) error
}

// FinalizationSink receives finalized blocks, exactly once per block, in order.
type FinalizationSink interface {
	OnFinalized(BlockHash, *Justification) error
}

// FinalizedReporter is optionally implemented by a FinalizationSink that knows the highest block it has finalized.
// It is consulted on restart to reconcile the backup with the backend.
type FinalizedReporter interface {
	LastFinalized() uint64
}
