package tests

import (
	"github.com/Cardinal-Cryptography/aleph-node/pkg/dag"
	"github.com/Cardinal-Cryptography/aleph-node/pkg/dag/check"
	"github.com/Cardinal-Cryptography/aleph-node/pkg/dag/unit"
	"github.com/Cardinal-Cryptography/aleph-node/pkg/gomel"
)

// DataFunc decides which block a unit of the given creator on the given round proposes.
type DataFunc func(creator uint16, round int) *gomel.BlockRef

// RoundData makes every unit on round r propose the block number r+1.
func RoundData(_ uint16, round int) *gomel.BlockRef {
	b := BlockAt(uint64(round) + 1)
	return &b
}

// EmptyData makes every unit empty.
func EmptyData(uint16, int) *gomel.BlockRef {
	return nil
}

// NewDag creates an empty dag of the committee's session with the default checks.
func NewDag(c *Committee) gomel.Dag {
	return dag.New(c.Session, check.Default()...)
}

// NewPreunit builds a signed preunit of the creator on the given round,
// with the canonical units of all processes on the previous round as parents.
func NewPreunit(d gomel.Dag, c *Committee, creator uint16, round int, data *gomel.BlockRef) gomel.Preunit {
	parents := gomel.NoParents(d.NProc())
	if round > 0 {
		parents = gomel.ToHashes(Canonicals(d, round-1))
	}
	return c.Sign(unit.NewPreunit(d.Session(), creator, round, parents, data, nil))
}

// Canonicals returns, for every process, its canonical unit on the given round, or nil if there is none.
func Canonicals(d gomel.Dag, round int) []gomel.Unit {
	result := make([]gomel.Unit, d.NProc())
	for pid := range result {
		if units := d.UnitsOnRound(round).Get(uint16(pid)); len(units) > 0 {
			result[pid] = gomel.Canonical(units)
		}
	}
	return result
}

// AddUnit checks the preunit and inserts it directly into the dag.
func AddUnit(d gomel.Dag, pu gomel.Preunit) (gomel.Unit, error) {
	if u := d.GetUnit(pu.Hash()); u != nil {
		return u, gomel.NewDuplicateUnit(u)
	}
	parents, err := d.DecodeParents(pu)
	if err != nil {
		return nil, err
	}
	u := d.BuildUnit(pu, parents)
	if err := d.Check(u); err != nil {
		return nil, err
	}
	d.Insert(u)
	return u, nil
}

// BuildRounds adds units of the given creators on all rounds below upTo that they have not produced yet.
// Every unit has all the canonical units of the previous round as parents.
func BuildRounds(d gomel.Dag, c *Committee, creators []uint16, upTo int, data DataFunc) ([]gomel.Unit, error) {
	var result []gomel.Unit
	for round := 0; round < upTo; round++ {
		for _, creator := range creators {
			if len(d.UnitsOnRound(round).Get(creator)) > 0 {
				continue
			}
			u, err := AddUnit(d, NewPreunit(d, c, creator, round, data(creator, round)))
			if err != nil {
				return nil, err
			}
			result = append(result, u)
		}
	}
	return result, nil
}

// AllCreators returns the pids of all committee members.
func AllCreators(n uint16) []uint16 {
	result := make([]uint16, n)
	for i := range result {
		result[i] = uint16(i)
	}
	return result
}

// Fork adds a second unit of the creator on the round, with the same parents as the first one but different data.
func Fork(d gomel.Dag, c *Committee, creator uint16, round int) (gomel.Unit, error) {
	existing := d.UnitsOnRound(round).Get(creator)
	if len(existing) == 0 {
		return nil, gomel.NewDataError("nothing to fork")
	}
	first := existing[0]
	data := BlockAt(uint64(round) + 1)
	data.Hash[0] ^= 0xff
	data.Hash[1] ^= byte(len(existing))
	pu := c.Sign(unit.NewPreunit(d.Session(), creator, round, first.ParentHashes(), &data, nil))
	return AddUnit(d, pu)
}

// ToPreunits strips units of their dag context, as if they were received from the network.
func ToPreunits(units []gomel.Unit) []gomel.Preunit {
	result := make([]gomel.Preunit, len(units))
	for i, u := range units {
		result[i] = unit.NewPreunit(u.Session(), u.Creator(), u.Round(), u.ParentHashes(), u.Data(), u.Signature())
	}
	return result
}
