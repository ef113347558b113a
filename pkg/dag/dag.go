// Package dag implements the unit store: an in-memory causal graph of units of a single session.
package dag

import (
	"sync"

	"github.com/Cardinal-Cryptography/aleph-node/pkg/dag/unit"
	"github.com/Cardinal-Cryptography/aleph-node/pkg/gomel"
)

type dag struct {
	session     gomel.SessionID
	nProcesses  uint16
	units       *unitBag
	roundUnits  *fiberMap
	maxUnits    gomel.SlottedUnits
	maxRound    int
	forks       []*gomel.ForkEvidence
	checks      []gomel.UnitChecker
	preInsert   []gomel.InsertHook
	postInsert  []gomel.InsertHook
	forkHandles []gomel.ForkHook
	mx          sync.RWMutex
}

// New constructs a dag for the given session, validating units with the given checks.
func New(session *gomel.Session, checks ...gomel.UnitChecker) gomel.Dag {
	n := session.NProc()
	return &dag{
		session:    session.ID,
		nProcesses: n,
		units:      newUnitBag(),
		roundUnits: newFiberMap(n, 10),
		maxUnits:   newSlottedUnits(n),
		maxRound:   -1,
		checks:     checks,
	}
}

func (dag *dag) AddCheck(check gomel.UnitChecker) {
	dag.checks = append(dag.checks, check)
}

func (dag *dag) BeforeInsert(hook gomel.InsertHook) {
	dag.preInsert = append(dag.preInsert, hook)
}

func (dag *dag) AfterInsert(hook gomel.InsertHook) {
	dag.postInsert = append(dag.postInsert, hook)
}

func (dag *dag) OnFork(hook gomel.ForkHook) {
	dag.forkHandles = append(dag.forkHandles, hook)
}

// DecodeParents returns the parents of the given preunit indexed by creator.
// Returns UnknownParents if some of them are not present in the dag.
func (dag *dag) DecodeParents(pu gomel.Preunit) ([]gomel.Unit, error) {
	hashes := pu.ParentHashes()
	if len(hashes) != int(dag.nProcesses) {
		return nil, gomel.NewDataError("wrong number of parents")
	}
	parents, unknown := dag.units.get(hashes)
	if unknown > 0 {
		return nil, gomel.NewUnknownParents(unknown)
	}
	return parents, nil
}

func (dag *dag) BuildUnit(pu gomel.Preunit, parents []gomel.Unit) gomel.Unit {
	return unit.New(pu, parents)
}

func (dag *dag) Check(u gomel.Unit) error {
	for _, check := range dag.checks {
		if err := check(u, dag); err != nil {
			return err
		}
	}
	return nil
}

// Insert puts the unit in the dag. If another unit of the same creator is already present
// on the same round, the unit is still inserted, and the evidence of the fork is recorded and returned.
func (dag *dag) Insert(u gomel.Unit) *gomel.ForkEvidence {
	for _, hook := range dag.preInsert {
		hook(u)
	}
	var evidence *gomel.ForkEvidence
	dag.mx.Lock()
	others := dag.roundUnits.add(u)
	if len(others) > 0 {
		evidence = gomel.NewForkEvidence(gomel.Canonical(others), u)
		dag.forks = append(dag.forks, evidence)
	}
	dag.units.add(u)
	dag.updateMaximal(u)
	if u.Round() > dag.maxRound {
		dag.maxRound = u.Round()
	}
	dag.mx.Unlock()
	if evidence != nil {
		for _, hook := range dag.forkHandles {
			hook(evidence)
		}
	}
	for _, hook := range dag.postInsert {
		hook(u)
	}
	return evidence
}

func (dag *dag) updateMaximal(u gomel.Unit) {
	creator := u.Creator()
	maxByCreator := dag.maxUnits.Get(creator)
	newMaxByCreator := make([]gomel.Unit, 0, len(maxByCreator)+1)
	// u is not below any unit of its creator already in the dag, as all units in the dag have their parents in it
	for _, v := range maxByCreator {
		if !gomel.Above(u, v) {
			newMaxByCreator = append(newMaxByCreator, v)
		}
	}
	newMaxByCreator = append(newMaxByCreator, u)
	dag.maxUnits.Set(creator, newMaxByCreator)
}

// UnitsOnRound returns the units at the requested round, indexed by their creator ids.
func (dag *dag) UnitsOnRound(round int) gomel.SlottedUnits {
	if res, ok := dag.roundUnits.getFiber(round); ok {
		return res
	}
	return newSlottedUnits(dag.nProcesses)
}

// IsRoundComplete checks whether units of a quorum of creators are known on the given round.
func (dag *dag) IsRoundComplete(round int) bool {
	creators := uint16(0)
	dag.UnitsOnRound(round).Iterate(func(units []gomel.Unit) bool {
		if len(units) > 0 {
			creators++
		}
		return true
	})
	return dag.IsQuorum(creators)
}

func (dag *dag) MaximalUnitsPerProcess() gomel.SlottedUnits {
	return dag.maxUnits
}

func (dag *dag) MaxRound() int {
	dag.mx.RLock()
	defer dag.mx.RUnlock()
	return dag.maxRound
}

func (dag *dag) GetUnit(hash *gomel.Hash) gomel.Unit {
	if hash == nil {
		return nil
	}
	return dag.units.getOne(hash)
}

func (dag *dag) GetUnits(hashes []*gomel.Hash) []gomel.Unit {
	result, _ := dag.units.get(hashes)
	return result
}

func (dag *dag) GetByID(id uint64) []gomel.Unit {
	round, creator := gomel.DecodeID(id, dag.nProcesses)
	return dag.UnitsOnRound(round).Get(creator)
}

// ParentsOf returns the hashes of parents of the unit with the given hash, or nil if the unit is unknown.
func (dag *dag) ParentsOf(hash *gomel.Hash) []*gomel.Hash {
	u := dag.GetUnit(hash)
	if u == nil {
		return nil
	}
	return u.ParentHashes()
}

func (dag *dag) Forks() []*gomel.ForkEvidence {
	dag.mx.RLock()
	defer dag.mx.RUnlock()
	result := make([]*gomel.ForkEvidence, len(dag.forks))
	copy(result, dag.forks)
	return result
}

func (dag *dag) IsQuorum(number uint16) bool {
	return gomel.IsQuorum(dag.nProcesses, number)
}

func (dag *dag) NProc() uint16 {
	return dag.nProcesses
}

func (dag *dag) Session() gomel.SessionID {
	return dag.session
}
