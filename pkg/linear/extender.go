// Package linear implements the algorithm for extending the partial order of the dag into a linear order.
package linear

import (
	"github.com/rs/zerolog"

	"github.com/Cardinal-Cryptography/aleph-node/pkg/config"
	"github.com/Cardinal-Cryptography/aleph-node/pkg/gomel"
	"github.com/Cardinal-Cryptography/aleph-node/pkg/logging"
)

// Extender picks heads, one per round, and builds the timing rounds they determine.
// It is not safe for concurrent use: NextRound and OrderedUnits of the returned rounds
// must be called from a single goroutine each, and the rounds must be ordered in the order they were returned.
type Extender struct {
	dag             gomel.Dag
	decider         *superMajorityDecider
	crp             *commonRandomPermutation
	orderStartRound int
	currentTU       gomel.Unit
	ordered         *orderedSet
	log             zerolog.Logger
}

// NewExtender constructs an extender working on the given dag.
func NewExtender(dag gomel.Dag, rs gomel.RandomSource, conf *config.Config, log zerolog.Logger) *Extender {
	return &Extender{
		dag:             dag,
		decider:         newSuperMajorityDecider(dag, rs),
		crp:             newCommonRandomPermutation(dag, rs, conf.CRPFixedPrefix),
		orderStartRound: conf.OrderStartRound,
		ordered:         newOrderedSet(),
		log:             log,
	}
}

// NextRound tries to pick a head for the round following the round of the last head.
// Returns nil if the head cannot be decided yet.
func (ext *Extender) NextRound() gomel.TimingRound {
	dagMaxRound := ext.dag.MaxRound()
	round := ext.orderStartRound
	if ext.currentTU != nil {
		round = ext.currentTU.Round() + 1
	}
	if dagMaxRound < round+firstDecidingRound {
		return nil
	}

	var head gomel.Unit
	ext.crp.iterate(round, func(uc gomel.Unit) bool {
		decision, _ := ext.decider.decideUnitIsPopular(uc, dagMaxRound)
		switch decision {
		case popular:
			head = uc
			ext.log.Info().
				Int(logging.Round, round).
				Uint16(logging.Creator, uc.Creator()).
				Str(logging.Hash, gomel.Nickname(uc)).
				Msg(logging.NewTimingUnit)
			return false
		case unpopular:
			return true
		default:
			return false
		}
	})
	if head == nil {
		return nil
	}
	ext.currentTU = head
	return &timingRound{head: head, ordered: ext.ordered}
}
