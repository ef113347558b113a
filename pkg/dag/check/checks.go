// Package check implements the unit checkers used by the dag to validate units before they are inserted.
package check

import (
	"github.com/Cardinal-Cryptography/aleph-node/pkg/gomel"
)

// BasicCorrectness checks the basic structure of a unit:
//  1. a dealing unit has no parents,
//  2. any other unit has a predecessor created by its creator,
//  3. any other unit has parents created by a quorum of processes.
func BasicCorrectness(u gomel.Unit, dag gomel.Dag) error {
	parents := u.Parents()
	if len(parents) != int(dag.NProc()) {
		return gomel.NewComplianceError("wrong number of parents")
	}
	nParents := uint16(gomel.NParents(u))
	if gomel.Dealing(u) {
		if nParents > 0 {
			return gomel.NewComplianceError("dealing unit with parents")
		}
		return nil
	}
	if gomel.Predecessor(u) == nil {
		return gomel.NewComplianceError("missing predecessor")
	}
	if !dag.IsQuorum(nParents) {
		return gomel.NewComplianceError("not enough parents")
	}
	return nil
}

// RoundConsistency checks that the round of a unit is exactly one more than the round of each of its parents,
// and that each parent sits in the slot of its creator.
func RoundConsistency(u gomel.Unit, _ gomel.Dag) error {
	for pid, p := range u.Parents() {
		if p == nil {
			continue
		}
		if p.Creator() != uint16(pid) {
			return gomel.NewComplianceError("parent in a wrong slot")
		}
		if p.Round()+1 != u.Round() {
			return gomel.NewComplianceError("round is not one more than the round of a parent")
		}
	}
	return nil
}

// SameSession checks that the unit and all its parents belong to the session of the dag.
func SameSession(u gomel.Unit, dag gomel.Dag) error {
	if u.Session() != dag.Session() {
		return gomel.NewDataError("unit from a different session")
	}
	return nil
}

// Default is the list of checks every dag uses.
func Default() []gomel.UnitChecker {
	return []gomel.UnitChecker{SameSession, BasicCorrectness, RoundConsistency}
}
