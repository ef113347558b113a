package unit

import (
	"github.com/Cardinal-Cryptography/aleph-node/pkg/gomel"
)

// unitInDag is a unit built on top of its parents, with the floor precomputed
// so that it can be read concurrently once inserted.
type unitInDag struct {
	gomel.Preunit
	parents []gomel.Unit
	floor   [][]gomel.Unit
}

// New creates a new unit based on the given preunit and a list of parents indexed by creator.
func New(pu gomel.Preunit, parents []gomel.Unit) gomel.Unit {
	u := &unitInDag{
		Preunit: pu,
		parents: parents,
	}
	u.computeFloor()
	return u
}

func (u *unitInDag) Parents() []gomel.Unit {
	return u.parents
}

func (u *unitInDag) Floor(pid uint16) []gomel.Unit {
	if int(pid) >= len(u.floor) {
		return nil
	}
	return u.floor[pid]
}

func (u *unitInDag) AboveWithinProc(v gomel.Unit) bool {
	if u.Creator() != v.Creator() {
		return false
	}
	var w gomel.Unit = u
	for w != nil && w.Round() > v.Round() {
		w = gomel.Predecessor(w)
	}
	return w != nil && gomel.Equal(w, v)
}

func (u *unitInDag) computeFloor() {
	u.floor = make([][]gomel.Unit, len(u.parents))
	if gomel.Dealing(u) {
		return
	}
	for pid := range u.parents {
		u.floor[pid] = gomel.MaximalByPid(u.parents, uint16(pid))
	}
}
