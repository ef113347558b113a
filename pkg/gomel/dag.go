// Package gomel defines all the interfaces representing basic components of the consensus and finality subsystem.
//
// The main components defined in this package are:
//  1. The unit and preunit representing the information produced by a single authority in a single round of the protocol.
//  2. The dag, containing all the units created by authorities and representing the partial order between them.
//  3. The random source used by the extender to pick heads without any additional communication.
//  4. The batches, justifications and fork evidence flowing out of the ordering towards finalization.
//  5. The interfaces of the blockchain backend consumed and fed by finalization.
package gomel

// Dag is the main data structure of the consensus protocol. It is built of units partially ordered by "is-parent-of" relation.
type Dag interface {
	// DecodeParents returns a slice of parents of the given preunit, or UnknownParents if some are not in the dag.
	DecodeParents(Preunit) ([]Unit, error)
	// BuildUnit constructs a new unit from the preunit and the slice of parents.
	BuildUnit(Preunit, []Unit) Unit
	// Check runs on the given unit a series of UnitCheckers added to the dag with AddCheck.
	Check(Unit) error
	// Insert puts into the dag a unit that passed Check. Returns fork evidence if the unit is a fork.
	Insert(Unit) *ForkEvidence
	// UnitsOnRound returns all units on a given round of the dag.
	UnitsOnRound(int) SlottedUnits
	// MaximalUnitsPerProcess returns a collection of units containing, for each process, all maximal units created by that process.
	MaximalUnitsPerProcess() SlottedUnits
	// MaxRound returns the highest round of a unit in the dag, or -1 for an empty dag.
	MaxRound() int
	// IsRoundComplete checks whether units created by a quorum of processes are present on the given round.
	IsRoundComplete(int) bool
	// GetUnit returns a unit with the given hash, if present in the dag, or nil otherwise.
	GetUnit(*Hash) Unit
	// GetUnits returns slice of units associated with given hashes, in the same order.
	// If no unit with a particular hash exists in the dag, the result contains a nil at that position.
	GetUnits([]*Hash) []Unit
	// GetByID returns the units associated with the given ID. There will be more than one only in the case of forks.
	GetByID(uint64) []Unit
	// ParentsOf returns hashes of the parents of the unit with the given hash.
	ParentsOf(*Hash) []*Hash
	// Forks returns all the evidence of forks gathered so far.
	Forks() []*ForkEvidence
	// IsQuorum checks if the given number of processes is enough to form a quorum.
	IsQuorum(uint16) bool
	// NProc returns the number of processes that shares this dag.
	NProc() uint16
	// Session returns the identifier of the session this dag belongs to.
	Session() SessionID
	// AddCheck extends the list of UnitCheckers that are used during adding a unit.
	AddCheck(UnitChecker)
	// BeforeInsert adds an action to perform before insert.
	BeforeInsert(InsertHook)
	// AfterInsert adds an action to perform after insert.
	AfterInsert(InsertHook)
	// OnFork adds an action to perform when a fork is recorded.
	OnFork(ForkHook)
}

// Faulty is the maximal number of Byzantine processes tolerated among nProcesses.
func Faulty(nProcesses uint16) uint16 {
	if nProcesses == 0 {
		return 0
	}
	return (nProcesses - 1) / 3
}

// IsQuorum checks if subsetSize forms a quorum amongst all nProcesses.
func IsQuorum(nProcesses, subsetSize uint16) bool {
	return subsetSize >= MinimalQuorum(nProcesses)
}

// MinimalQuorum is the minimal possible size of a subset forming a quorum within nProcesses.
func MinimalQuorum(nProcesses uint16) uint16 {
	return nProcesses - Faulty(nProcesses)
}
