package gomel

// Preunit represents a unit which does not (yet) belong to a dag, so either just created or transferred through the network.
type Preunit interface {
	BaseUnit
	// SetSignature sets a signature of this preunit.
	SetSignature(Signature)
}

// NoParents returns a slice of given length containing nil at each position.
// It is the correct slice of parent hashes for a dealing unit.
func NoParents(nProc uint16) []*Hash {
	return make([]*Hash, nProc)
}
