package gomel

// BaseUnit defines the most general interface for units.
type BaseUnit interface {
	// Creator is the id of the process that created this unit.
	Creator() uint16
	// Round of this unit. Dealing units have round 0, every other unit is one round above its parents.
	Round() int
	// Session in which this unit was created.
	Session() SessionID
	// ParentHashes returns hashes of the parents of this unit, indexed by creator. Absent parents are nil.
	ParentHashes() []*Hash
	// Data is the reference to the block proposed by this unit, or nil for an empty unit.
	Data() *BlockRef
	// Signature of this unit.
	Signature() Signature
	// Hash value of this unit.
	Hash() *Hash
}

// Nickname of a unit is a short name, for the purpose of quick identification by a human.
func Nickname(bu BaseUnit) string {
	return bu.Hash().Short()
}

// ID is a pair (Round, Creator) encoded as a single number.
// Forks share their ID.
func ID(round int, creator, nProc uint16) uint64 {
	return uint64(creator) + uint64(nProc)*uint64(round)
}

// DecodeID that is a single number into a pair (Round, Creator).
func DecodeID(id uint64, nProc uint16) (int, uint16) {
	return int(id / uint64(nProc)), uint16(id % uint64(nProc))
}

// UnitID returns ID of the given BaseUnit.
func UnitID(u BaseUnit) uint64 {
	return ID(u.Round(), u.Creator(), uint16(len(u.ParentHashes())))
}

// Equal checks if two units are the same.
func Equal(u, v BaseUnit) bool {
	return u.Creator() == v.Creator() && u.Round() == v.Round() && *u.Hash() == *v.Hash()
}

// NParents returns the number of parents referenced by the given unit.
func NParents(bu BaseUnit) int {
	n := 0
	for _, h := range bu.ParentHashes() {
		if h != nil {
			n++
		}
	}
	return n
}
