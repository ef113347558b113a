package gomel

// Extender extends the partial order of the dag to a linear order and produces batches of ordered units.
type Extender interface {
	// NextRound tries to pick the next head and returns a suspended computation responsible for ordering units
	// for that round. Returns nil if it cannot be decided yet.
	NextRound() TimingRound
}

// TimingRound represents a particular round of voting and associated ordering of units.
type TimingRound interface {
	// Head returns the timing unit selected for this round.
	Head() Unit
	// OrderedUnits establishes the linear ordering of the units in this timing round and returns them.
	OrderedUnits() []Unit
}
