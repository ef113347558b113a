package linear

import (
	"sort"

	"github.com/Cardinal-Cryptography/aleph-node/pkg/gomel"
)

// orderedSet remembers what the previous timing rounds already contained.
type orderedSet struct {
	// hashes of all the units below some previous head
	units map[gomel.Hash]bool
	// ids of (creator, round) pairs already emitted
	ids map[uint64]bool
}

func newOrderedSet() *orderedSet {
	return &orderedSet{
		units: make(map[gomel.Hash]bool),
		ids:   make(map[uint64]bool),
	}
}

type timingRound struct {
	head    gomel.Unit
	ordered *orderedSet
	units   []gomel.Unit
}

func (tr *timingRound) Head() gomel.Unit {
	return tr.head
}

// OrderedUnits returns the units below the head that are not below any previous head,
// sorted by round, creator and hash. Of units sharing creator and round only the first one
// in this order is kept, and only if no unit of that creator and round was emitted before.
func (tr *timingRound) OrderedUnits() []gomel.Unit {
	if tr.units != nil {
		return tr.units
	}
	var collected []gomel.Unit
	var dfs func(gomel.Unit)
	dfs = func(u gomel.Unit) {
		tr.ordered.units[*u.Hash()] = true
		collected = append(collected, u)
		for _, p := range u.Parents() {
			if p != nil && !tr.ordered.units[*p.Hash()] {
				dfs(p)
			}
		}
	}
	if !tr.ordered.units[*tr.head.Hash()] {
		dfs(tr.head)
	}

	sort.Slice(collected, func(i, j int) bool {
		return less(collected[i], collected[j])
	})
	tr.units = make([]gomel.Unit, 0, len(collected))
	for _, u := range collected {
		id := gomel.UnitID(u)
		if tr.ordered.ids[id] {
			continue
		}
		tr.ordered.ids[id] = true
		tr.units = append(tr.units, u)
	}
	return tr.units
}

func less(u, v gomel.Unit) bool {
	if u.Round() != v.Round() {
		return u.Round() < v.Round()
	}
	if u.Creator() != v.Creator() {
		return u.Creator() < v.Creator()
	}
	return u.Hash().LessThan(v.Hash())
}

// Blocks returns the blocks proposed by the given units, in order, skipping empty units and repetitions.
func Blocks(units []gomel.Unit) []gomel.BlockRef {
	seen := make(map[gomel.BlockHash]bool)
	var result []gomel.BlockRef
	for _, u := range units {
		data := u.Data()
		if data == nil || seen[data.Hash] {
			continue
		}
		seen[data.Hash] = true
		result = append(result, *data)
	}
	return result
}
