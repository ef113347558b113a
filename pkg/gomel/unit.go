package gomel

// Unit that belongs to the dag.
type Unit interface {
	BaseUnit
	// Parents of this unit, indexed by creator. Absent parents are nil.
	Parents() []Unit
	// AboveWithinProc checks if this unit is above the given unit produced by the same creator.
	AboveWithinProc(Unit) bool
	// Floor returns a slice of maximal units created by the given process that are below this unit.
	Floor(uint16) []Unit
}

// Above checks if u is above v.
func Above(u, v Unit) bool {
	if v == nil || u == nil {
		return false
	}
	if Equal(u, v) {
		return true
	}
	if u.Round() <= v.Round() {
		return false
	}
	for _, w := range u.Floor(v.Creator()) {
		if w.AboveWithinProc(v) {
			return true
		}
	}
	return false
}

// MaximalByPid computes all maximal units produced by pid present in parents and their floors.
func MaximalByPid(parents []Unit, pid uint16) []Unit {
	var maximal []Unit
	for _, parent := range parents {
		if parent == nil {
			continue
		}
		candidates := parent.Floor(pid)
		if parent.Creator() == pid {
			candidates = []Unit{parent}
		}
		for _, w := range candidates {
			found, ri := false, -1
			for ix, v := range maximal {
				if Above(w, v) {
					found = true
					ri = ix
					// w cannot replace another element, that would be a proof of self-forking below w
					break
				}
				if Above(v, w) {
					found = true
					break
				}
			}
			if !found {
				maximal = append(maximal, w)
			} else if ri >= 0 {
				maximal[ri] = w
			}
		}
	}
	return maximal
}

// Predecessor of a unit is one of its parents, the one created by the same process as the given unit.
func Predecessor(u Unit) Unit {
	return u.Parents()[u.Creator()]
}

// Dealing checks if u is a dealing unit.
func Dealing(u BaseUnit) bool {
	return u.Round() == 0
}

// ToHashes converts a list of units to a list of hashes.
func ToHashes(units []Unit) []*Hash {
	result := make([]*Hash, len(units))
	for i, u := range units {
		if u != nil {
			result[i] = u.Hash()
		}
	}
	return result
}

// Canonical picks, among forked units sharing creator and round, the one with the lexicographically smallest hash.
func Canonical(units []Unit) Unit {
	var result Unit
	for _, u := range units {
		if result == nil || u.Hash().LessThan(result.Hash()) {
			result = u
		}
	}
	return result
}
