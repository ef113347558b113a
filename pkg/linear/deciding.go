package linear

import (
	"github.com/Cardinal-Cryptography/aleph-node/pkg/gomel"
)

const (
	firstDecidingRound = 3
)

type superMajorityDecider struct {
	*unanimousVoter
}

func newSuperMajorityDecider(dag gomel.Dag, rs gomel.RandomSource) *superMajorityDecider {
	return &superMajorityDecider{newUnanimousVoter(dag, rs)}
}

// decideUnitIsPopular decides if uc is popular, i.e. if it can be used as a head.
// Returns the decision and the round on which it was made, or undecided and -1.
func (smd *superMajorityDecider) decideUnitIsPopular(uc gomel.Unit, dagMaxRound int) (vote, int) {
	maxDecisionRound := smd.maximalRoundAtWhichWeCanDecide(uc, dagMaxRound)

	for round := uc.Round() + firstDecidingRound; round <= maxDecisionRound; round++ {
		decision := undecided
		smd.dag.UnitsOnRound(round).Iterate(func(units []gomel.Unit) bool {
			for _, v := range units {
				if d := smd.decide(uc, v); d != undecided {
					decision = d
					return false
				}
			}
			return true
		})
		if decision != undecided {
			return decision, round
		}
	}
	return undecided, -1
}

func (smd *superMajorityDecider) decide(uc, u gomel.Unit) vote {
	if u.Round()-uc.Round() < firstDecidingRound {
		return undecided
	}
	result := smd.decideUsingSuperMajorityOfVotes(uc, u)
	if result != undecided && result == smd.commonVote(uc, u.Round()) {
		return result
	}
	return undecided
}

func (smd *superMajorityDecider) decideUsingSuperMajorityOfVotes(uc, u gomel.Unit) vote {
	commonVote := smd.lazyCommonVote(uc, u.Round()-1)
	var votes votingResult
	result := voteUsingParents(uc, u, func(uc, parent gomel.Unit) (vote, bool) {
		v := smd.vote(uc, parent)
		if v == undecided {
			v = commonVote()
		}
		switch v {
		case popular:
			votes.popular++
		case unpopular:
			votes.unpopular++
		default:
			// no quorum possible even if all the remaining parents agree
			test := votes
			remaining := smd.dag.NProc() - parent.Creator() - 1
			test.popular += remaining
			test.unpopular += remaining
			return v, superMajority(smd.dag, test) == undecided
		}
		return v, superMajority(smd.dag, votes) != undecided
	})
	return superMajority(smd.dag, result)
}

// maximalRoundAtWhichWeCanDecide is the highest round whose units may decide about uc.
// Beyond the deterministic prefix of the common vote we need the coin of the round above, hence the margin.
func (smd *superMajorityDecider) maximalRoundAtWhichWeCanDecide(uc gomel.Unit, dagMaxRound int) int {
	if dagMaxRound-uc.Round() <= commonVoteDeterministicPrefix {
		return dagMaxRound
	}
	return dagMaxRound - 2
}
