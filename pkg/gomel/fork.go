package gomel

// ForkEvidence is a proof that a creator produced two different units on the same round.
// HashA is always the lexicographically smaller hash, so that every observer produces identical evidence.
type ForkEvidence struct {
	Session SessionID
	Creator uint16
	Round   int
	HashA   Hash
	HashB   Hash
}

// NewForkEvidence builds evidence out of two forked units.
func NewForkEvidence(u, v BaseUnit) *ForkEvidence {
	a, b := u.Hash(), v.Hash()
	if b.LessThan(a) {
		a, b = b, a
	}
	return &ForkEvidence{
		Session: u.Session(),
		Creator: u.Creator(),
		Round:   u.Round(),
		HashA:   *a,
		HashB:   *b,
	}
}
