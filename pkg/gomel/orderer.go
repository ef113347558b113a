package gomel

// Orderer is the per-session consensus instance as seen by the dissemination layer.
// Every incoming message is dispatched to one of its methods.
type Orderer interface {
	// AddPreunits adds preunits received from the given process.
	AddPreunits(uint16, ...Preunit) []error
	// UnitsByHash returns the units with the given hashes, nil for unknown ones.
	UnitsByHash(...*Hash) []Unit
	// UnitsAbove returns all units at or above the given round, parents before children.
	UnitsAbove(int) []Unit
	// Justifications returns at most limit stored justifications of heights at or above from, in order of height.
	Justifications(from uint64, limit int) []*Justification
	// HandleJustifications processes justifications received from the given process.
	HandleJustifications(uint16, []*Justification)
	// HandleShare processes a signature share received from the given process.
	HandleShare(uint16, *JustificationShare)
}

// JustificationShare is a signature of a single authority over the digest of a justification.
type JustificationShare struct {
	Session SessionID
	Round   int
	Block   BlockRef
	Share   SignatureShare
}

// Digest returns the signed bytes.
func (js *JustificationShare) Digest() []byte {
	return JustificationDigest(js.Session, js.Round, js.Block)
}
