package gomel

// Adder represents a mechanism for adding units to a dag.
// Units with missing parents are buffered until the parents arrive.
type Adder interface {
	// AddOwnUnit adds to the dag a unit produced by the creator (blocks until the unit is added).
	AddOwnUnit(Preunit) (Unit, error)
	// AddPreunits adds preunits received from the given process to the underlying dag.
	// The returned slice is either nil (all added) or contains an error for every preunit, in order.
	AddPreunits(uint16, ...Preunit) []error
	// Close stops the adder, dropping all buffered preunits.
	Close()
}

// AddResult classifies the outcome of adding a single preunit.
type AddResult int

const (
	// Added means the unit is in the dag.
	Added AddResult = iota
	// AlreadyKnown means the unit was in the dag, or waiting for its parents, before.
	AlreadyKnown
	// BufferedMissingParents means the unit waits for some of its parents to arrive.
	BufferedMissingParents
	// Invalid means the unit was rejected.
	Invalid
)

// ResultOf maps an error returned by AddPreunits to the outcome it stands for.
func ResultOf(err error) AddResult {
	switch err.(type) {
	case nil:
		return Added
	case *DuplicateUnit, *DuplicatePreunit:
		return AlreadyKnown
	case *UnknownParents:
		return BufferedMissingParents
	default:
		return Invalid
	}
}

func (r AddResult) String() string {
	switch r {
	case Added:
		return "added"
	case AlreadyKnown:
		return "already known"
	case BufferedMissingParents:
		return "buffered"
	default:
		return "invalid"
	}
}
