package gomel

// Batch is the output of a single step of the ordering: the next slice of the agreed total order.
type Batch struct {
	Session SessionID
	// Index is the position of this batch in the sequence of batches of the session.
	Index uint64
	// Round is the round of the head that determined this batch.
	Round int
	// Head is the hash of the timing unit of this batch.
	Head Hash
	// Blocks are the proposed blocks in order, deduplicated, with empty units and fork losers skipped.
	Blocks []BlockRef
	// Units are all the units composing this batch, in order.
	Units []Unit
}
