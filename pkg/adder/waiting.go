package adder

import (
	"strconv"
	"time"

	"github.com/Cardinal-Cryptography/aleph-node/pkg/gomel"
	"github.com/Cardinal-Cryptography/aleph-node/pkg/logging"
)

// waitingPreunit is a struct that keeps a single preunit waiting to be added to dag.
type waitingPreunit struct {
	pu             gomel.Preunit
	id             uint64
	source         uint16            // pid of the process that sent us this preunit
	missingParents int               // number of preunit's parents that we've never seen
	waitingParents int               // number of preunit's parents that are waiting in adder
	children       []*waitingPreunit // list of other preunits that have this preunit as parent
	failed         bool
	unresolved     bool // counted in the limit of its source
	unit           gomel.Unit
	err            error
	done           chan struct{} // closed when the preunit leaves the adder, only for own units
}

// ready waitingPreunit is one without any waiting or missing parents.
func ready(wp *waitingPreunit) bool {
	return wp.waitingParents == 0 && wp.missingParents == 0
}

// missingPreunit is a unit we have never seen, needed as a parent by some waiting preunits.
type missingPreunit struct {
	neededBy  []*waitingPreunit
	round     int
	requested time.Time
	attempts  int
}

// addToWaiting puts the preunit as a waitingPreunit in the buffer zone.
// This method must be called under mutex!
func (ad *adder) addToWaiting(pu gomel.Preunit, source uint16) (*waitingPreunit, error) {
	if wp, ok := ad.waiting[*pu.Hash()]; ok {
		return nil, gomel.NewDuplicatePreunit(wp.pu)
	}
	if u := ad.dag.GetUnit(pu.Hash()); u != nil {
		return nil, gomel.NewDuplicateUnit(u)
	}
	if source != ad.conf.Pid && ad.unresolved[source] >= ad.conf.WaitingLimit && !ad.parentsInDag(pu) {
		return nil, gomel.NewDataError("too many preunits from process " + strconv.Itoa(int(source)) + " wait for their parents")
	}
	id := gomel.UnitID(pu)
	if others := ad.waitingByID[id]; len(others) > 0 {
		ad.log.Warn().Int(logging.Round, pu.Round()).Uint16(logging.Creator, pu.Creator()).Uint16(logging.PID, source).Msg(logging.ForkDetected)
	}
	wp := &waitingPreunit{pu: pu, id: id, source: source}
	ad.waiting[*pu.Hash()] = wp
	ad.waitingByID[id] = append(ad.waitingByID[id], wp)
	ad.checkParents(wp)
	ad.checkIfMissing(wp)
	if !ready(wp) {
		wp.unresolved = true
		ad.unresolved[source]++
	}
	return wp, nil
}

// parentsInDag tells whether all parents of the preunit are already in the dag.
func (ad *adder) parentsInDag(pu gomel.Preunit) bool {
	for _, h := range pu.ParentHashes() {
		if h != nil && ad.dag.GetUnit(h) == nil {
			return false
		}
	}
	return true
}

// resolve takes the preunit out of the limit of its source.
// This method must be called under mutex!
func (ad *adder) resolve(wp *waitingPreunit) {
	if !wp.unresolved {
		return
	}
	wp.unresolved = false
	if ad.unresolved[wp.source]--; ad.unresolved[wp.source] <= 0 {
		delete(ad.unresolved, wp.source)
	}
}

// checkParents finds out which parents of a newly created waitingPreunit are in dag,
// which are waiting, and which are missing.
func (ad *adder) checkParents(wp *waitingPreunit) {
	for _, h := range wp.pu.ParentHashes() {
		if h == nil || ad.dag.GetUnit(h) != nil {
			continue
		}
		if par, ok := ad.waiting[*h]; ok {
			wp.waitingParents++
			par.children = append(par.children, wp)
			continue
		}
		wp.missingParents++
		mp, ok := ad.missing[*h]
		if !ok {
			mp = &missingPreunit{round: wp.pu.Round() - 1}
			ad.missing[*h] = mp
		}
		mp.neededBy = append(mp.neededBy, wp)
	}
}

// checkIfMissing takes over the children of a newly created waitingPreunit that was registered as missing.
func (ad *adder) checkIfMissing(wp *waitingPreunit) {
	mp, ok := ad.missing[*wp.pu.Hash()]
	if !ok {
		return
	}
	wp.children = append(wp.children, mp.neededBy...)
	for _, ch := range mp.neededBy {
		ch.missingParents--
		ch.waitingParents++
	}
	delete(ad.missing, *wp.pu.Hash())
}

// remove waitingPreunit from the buffer zone and notify its children.
// Children of a failed preunit can never be added, so they fail as well.
// This method must be called under mutex!
func (ad *adder) remove(wp *waitingPreunit) {
	delete(ad.waiting, *wp.pu.Hash())
	ad.resolve(wp)
	if wp.missingParents > 0 {
		ad.forgetMissing(wp)
	}
	siblings := ad.waitingByID[wp.id]
	for i, other := range siblings {
		if other == wp {
			siblings = append(siblings[:i], siblings[i+1:]...)
			break
		}
	}
	if len(siblings) == 0 {
		delete(ad.waitingByID, wp.id)
	} else {
		ad.waitingByID[wp.id] = siblings
	}
	if wp.done != nil {
		close(wp.done)
	}
	for _, ch := range wp.children {
		if ch.failed {
			continue
		}
		if wp.failed {
			ch.failed = true
			ch.err = gomel.NewDataError("parent " + gomel.Nickname(wp.pu) + " was rejected")
			ad.remove(ch)
			continue
		}
		ch.waitingParents--
		if ready(ch) {
			ad.pushReady(ch)
		}
	}
}

// forgetMissing drops a removed preunit from the missing units it was waiting for.
// Missing units nobody waits for any more are no longer fetched.
// This method must be called under mutex!
func (ad *adder) forgetMissing(wp *waitingPreunit) {
	for _, h := range wp.pu.ParentHashes() {
		if h == nil {
			continue
		}
		mp, ok := ad.missing[*h]
		if !ok {
			continue
		}
		for i, other := range mp.neededBy {
			if other == wp {
				mp.neededBy = append(mp.neededBy[:i], mp.neededBy[i+1:]...)
				break
			}
		}
		if len(mp.neededBy) == 0 {
			delete(ad.missing, *h)
		}
	}
}
