package linear

import (
	"bytes"
	"sort"

	"golang.org/x/crypto/sha3"

	"github.com/Cardinal-Cryptography/aleph-node/pkg/gomel"
)

// commonRandomPermutation orders the candidates for the head of a given round.
// The prefix of the permutation contains units of crpFixedPrefix processes, sorted by their hashes.
// The suffix contains units of the remaining processes, sorted by priorities derived from the random source.
type commonRandomPermutation struct {
	dag            gomel.Dag
	rs             gomel.RandomSource
	crpFixedPrefix uint16
}

func newCommonRandomPermutation(dag gomel.Dag, rs gomel.RandomSource, crpFixedPrefix uint16) *commonRandomPermutation {
	return &commonRandomPermutation{
		dag:            dag,
		rs:             rs,
		crpFixedPrefix: crpFixedPrefix,
	}
}

// iterate calls f on the candidates of the given round in the permutation order, until f returns false.
// The suffix is computed only when f accepted the whole prefix.
// Returns false when the random bytes needed for the suffix are not available yet.
func (crp *commonRandomPermutation) iterate(round int, f func(gomel.Unit) bool) bool {
	prefix, suffix := splitProcesses(crp.dag.NProc(), crp.crpFixedPrefix, round)

	for _, u := range defaultPermutation(crp.dag, round, prefix) {
		if !f(u) {
			return true
		}
	}

	perm, ok := randomPermutation(crp.rs, crp.dag, round, suffix)
	if !ok {
		return false
	}
	for _, u := range perm {
		if !f(u) {
			return true
		}
	}
	return true
}

func splitProcesses(nProc, prefixLen uint16, round int) ([]uint16, []uint16) {
	if prefixLen > nProc {
		prefixLen = nProc
	}
	pids := make([]uint16, nProc)
	for pid := range pids {
		pids[pid] = uint16((pid + round) % int(nProc))
	}
	return pids[:prefixLen], pids[prefixLen:]
}

func defaultPermutation(dag gomel.Dag, round int, pids []uint16) []gomel.Unit {
	var permutation []gomel.Unit
	su := dag.UnitsOnRound(round)
	for _, pid := range pids {
		permutation = append(permutation, su.Get(pid)...)
	}
	sort.Slice(permutation, func(i, j int) bool {
		return permutation[i].Hash().LessThan(permutation[j].Hash())
	})
	return permutation
}

func randomPermutation(rs gomel.RandomSource, dag gomel.Dag, round int, pids []uint16) ([]gomel.Unit, bool) {
	var permutation []gomel.Unit
	priority := make(map[gomel.Hash][]byte)
	su := dag.UnitsOnRound(round)

	for _, pid := range pids {
		units := su.Get(pid)
		if len(units) == 0 {
			continue
		}
		randomBytes := rs.RandomBytes(pid, round)
		if randomBytes == nil {
			return nil, false
		}
		rbLen := len(randomBytes)
		for _, u := range units {
			randomBytes = append(randomBytes[:rbLen], u.Hash()[:]...)
			p := make([]byte, gomel.HashLength)
			sha3.ShakeSum128(p, randomBytes)
			priority[*u.Hash()] = p
		}
		permutation = append(permutation, units...)
	}

	sort.Slice(permutation, func(i, j int) bool {
		c := bytes.Compare(priority[*permutation[i].Hash()], priority[*permutation[j].Hash()])
		if c == 0 {
			return permutation[i].Hash().LessThan(permutation[j].Hash())
		}
		return c < 0
	})
	return permutation, true
}
