// Package creator contains the component producing units of this process.
package creator

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/Cardinal-Cryptography/aleph-node/pkg/config"
	"github.com/Cardinal-Cryptography/aleph-node/pkg/dag/unit"
	"github.com/Cardinal-Cryptography/aleph-node/pkg/gomel"
	"github.com/Cardinal-Cryptography/aleph-node/pkg/logging"
)

// BlockProposer supplies the blocks proposed in new units.
type BlockProposer interface {
	ProposeNextBlock(ctx context.Context) (*gomel.BlockRef, error)
}

// Creator decides, based only on the state of the dag, whether this process can produce its next unit,
// and builds that unit. The next unit is always one round above the last unit of this process present in the dag,
// with the canonical units of the previous round as parents.
type Creator struct {
	dag      gomel.Dag
	proposer BlockProposer
	pid      uint16
	key      gomel.PrivateKey
	log      zerolog.Logger
}

// New constructs a creator of units of the process described by conf.
func New(dag gomel.Dag, proposer BlockProposer, conf *config.Config, log zerolog.Logger) *Creator {
	return &Creator{
		dag:      dag,
		proposer: proposer,
		pid:      conf.Pid,
		key:      conf.PrivateKey,
		log:      log,
	}
}

// NextRound returns the round of the next unit of this process.
func (cr *Creator) NextRound() int {
	round := -1
	for _, u := range cr.dag.MaximalUnitsPerProcess().Get(cr.pid) {
		if u.Round() > round {
			round = u.Round()
		}
	}
	return round + 1
}

// parents returns the canonical units of all processes on the given round,
// or nil if they do not form a quorum or do not contain a unit of this process.
func (cr *Creator) parents(round int) []gomel.Unit {
	result := make([]gomel.Unit, cr.dag.NProc())
	count := uint16(0)
	su := cr.dag.UnitsOnRound(round)
	for pid := range result {
		if units := su.Get(uint16(pid)); len(units) > 0 {
			result[pid] = gomel.Canonical(units)
			count++
		}
	}
	if result[cr.pid] == nil || !cr.dag.IsQuorum(count) {
		return nil
	}
	return result
}

// MaybeCreateUnit returns the next unit of this process, or nil if there are not enough parents for it yet.
// The proposer is asked for a block only when the unit is going to be created.
// It does not add the unit anywhere, so two calls without adding the result in between return units of the same round.
func (cr *Creator) MaybeCreateUnit(ctx context.Context) (gomel.Preunit, error) {
	round := cr.NextRound()
	parents := gomel.NoParents(cr.dag.NProc())
	if round > 0 {
		units := cr.parents(round - 1)
		if units == nil {
			cr.log.Debug().Int(logging.Round, round).Msg(logging.NotEnoughParents)
			return nil, nil
		}
		parents = gomel.ToHashes(units)
	}
	data, err := cr.proposer.ProposeNextBlock(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "proposing block")
	}
	pu := unit.NewPreunit(cr.dag.Session(), cr.pid, round, parents, data, nil)
	pu.SetSignature(cr.key.Sign(pu.Hash()))
	return pu, nil
}
