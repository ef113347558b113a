package tests

import (
	"pgregory.net/rapid"

	"github.com/Cardinal-Cryptography/aleph-node/pkg/dag/unit"
	"github.com/Cardinal-Cryptography/aleph-node/pkg/gomel"
)

// RandomPreunits draws a random valid history of the committee: signed preunits listed so that
// parents always precede their children. Every creator produces units on consecutive rounds, below maxRound,
// each with its predecessor and a random quorum of units of the previous round as parents.
func RandomPreunits(t *rapid.T, c *Committee, maxRound int) []gomel.Preunit {
	return randomHistory(t, c, maxRound, -1)
}

// RandomForkingPreunits draws a random history like RandomPreunits, in which the given creator
// produces up to three variants of some of its units. Children pick one of the variants as a parent at random.
func RandomForkingPreunits(t *rapid.T, c *Committee, maxRound int, forker uint16) []gomel.Preunit {
	return randomHistory(t, c, maxRound, int(forker))
}

func randomHistory(t *rapid.T, c *Committee, maxRound int, forker int) []gomel.Preunit {
	n := c.Session.NProc()
	quorum := int(c.Session.Quorum())
	next := make([]int, n)
	// all the variants of every creator, per round
	byRound := make(map[int][][]*gomel.Hash)
	var result []gomel.Preunit

	pick := func(variants []*gomel.Hash) *gomel.Hash {
		if len(variants) == 1 {
			return variants[0]
		}
		return variants[rapid.IntRange(0, len(variants)-1).Draw(t, "variant")]
	}

	steps := rapid.IntRange(int(n)*maxRound/2, int(n)*maxRound*2).Draw(t, "steps")
	for step := 0; step < steps; step++ {
		pid := uint16(rapid.IntRange(0, int(n)-1).Draw(t, "creator"))
		round := next[pid]
		if round >= maxRound {
			continue
		}
		parents := gomel.NoParents(n)
		if round > 0 {
			prev := byRound[round-1]
			count := 0
			for i := range prev {
				if len(prev[i]) > 0 {
					count++
				}
			}
			if count < quorum {
				continue
			}
			parents[pid] = pick(prev[pid])
			chosen := 1
			for _, other := range rapid.Permutation(AllCreators(n)).Draw(t, "parents") {
				if other == pid || len(prev[other]) == 0 {
					continue
				}
				if chosen < quorum || rapid.Bool().Draw(t, "extra") {
					parents[other] = pick(prev[other])
					chosen++
				}
			}
		}
		var data *gomel.BlockRef
		if rapid.IntRange(0, 4).Draw(t, "empty") > 0 {
			b := BlockAt(uint64(rapid.IntRange(1, maxRound+1).Draw(t, "block")))
			data = &b
		}
		if byRound[round] == nil {
			byRound[round] = make([][]*gomel.Hash, n)
		}
		pu := c.Sign(unit.NewPreunit(c.Session.ID, pid, round, parents, data, nil))
		byRound[round][pid] = append(byRound[round][pid], pu.Hash())
		result = append(result, pu)
		if int(pid) == forker {
			for len(byRound[round][pid]) < 3 && rapid.Bool().Draw(t, "fork") {
				// blocks above maxRound+1 are never proposed by anyone else, so every variant has a distinct hash
				b := BlockAt(uint64(maxRound + 1 + len(byRound[round][pid])))
				variant := c.Sign(unit.NewPreunit(c.Session.ID, pid, round, parents, &b, nil))
				byRound[round][pid] = append(byRound[round][pid], variant.Hash())
				result = append(result, variant)
			}
		}
		next[pid]++
	}
	return result
}

// Shuffle draws a random order of preunits that still lists parents before their children.
func Shuffle(t *rapid.T, pus []gomel.Preunit) []gomel.Preunit {
	added := make(map[gomel.Hash]bool)
	remaining := append([]gomel.Preunit(nil), pus...)
	result := make([]gomel.Preunit, 0, len(pus))
	for len(remaining) > 0 {
		var ready []int
		for i, pu := range remaining {
			ok := true
			for _, h := range pu.ParentHashes() {
				if h != nil && !added[*h] {
					ok = false
					break
				}
			}
			if ok {
				ready = append(ready, i)
			}
		}
		k := ready[rapid.IntRange(0, len(ready)-1).Draw(t, "next")]
		added[*remaining[k].Hash()] = true
		result = append(result, remaining[k])
		remaining = append(remaining[:k], remaining[k+1:]...)
	}
	return result
}
