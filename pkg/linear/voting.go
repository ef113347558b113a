package linear

import (
	"github.com/Cardinal-Cryptography/aleph-node/pkg/gomel"
)

type vote int

const (
	popular vote = iota
	unpopular
	undecided
)

const (
	firstVotingRound = 1
	// The common vote is fixed for this many rounds above the candidate. Only later the coin is tossed.
	commonVoteDeterministicPrefix = 10
	// The round above the candidate on which the common vote is unpopular.
	unpopularCommonVoteRound = 3
)

type votingResult struct {
	popular   uint16
	unpopular uint16
}

// unanimousVoter computes votes of units in the dag on the popularity of candidates for head.
// A unit one round above the candidate votes popular iff it is above the candidate.
// A unit higher up votes the way all its parents vote, or takes the common vote if they disagree.
type unanimousVoter struct {
	dag        gomel.Dag
	rs         gomel.RandomSource
	votingMemo map[[2]gomel.Hash]vote
}

func newUnanimousVoter(dag gomel.Dag, rs gomel.RandomSource) *unanimousVoter {
	return &unanimousVoter{
		dag:        dag,
		rs:         rs,
		votingMemo: make(map[[2]gomel.Hash]vote),
	}
}

func (uv *unanimousVoter) vote(uc, u gomel.Unit) (result vote) {
	r := u.Round() - uc.Round()
	if r < firstVotingRound {
		return undecided
	}
	key := [2]gomel.Hash{*uc.Hash(), *u.Hash()}
	if cached, ok := uv.votingMemo[key]; ok {
		return cached
	}
	defer func() {
		if result != undecided {
			uv.votingMemo[key] = result
		}
	}()

	if r == firstVotingRound {
		return uv.initialVote(uc, u)
	}

	commonVote := uv.lazyCommonVote(uc, u.Round()-1)
	result = undecided
	first := true
	voteUsingParents(uc, u, func(uc, parent gomel.Unit) (vote, bool) {
		v := uv.vote(uc, parent)
		if v == undecided {
			v = commonVote()
		}
		if v == undecided {
			return v, false
		}
		if first {
			result, first = v, false
			return v, false
		}
		if result != v {
			result = undecided
			return v, true
		}
		return v, false
	})
	if result == undecided {
		return commonVote()
	}
	return result
}

func (uv *unanimousVoter) lazyCommonVote(uc gomel.Unit, round int) func() vote {
	initialized := false
	var value vote
	return func() vote {
		if !initialized {
			value = uv.commonVote(uc, round)
			initialized = true
		}
		return value
	}
}

func (uv *unanimousVoter) initialVote(uc, u gomel.Unit) vote {
	if gomel.Above(u, uc) {
		return popular
	}
	return unpopular
}

// commonVote is the default vote of units on the given round about the popularity of uc.
func (uv *unanimousVoter) commonVote(uc gomel.Unit, round int) vote {
	r := round - uc.Round()
	if r <= firstVotingRound {
		return undecided
	}
	if r <= commonVoteDeterministicPrefix {
		if r == unpopularCommonVoteRound {
			return unpopular
		}
		return popular
	}
	bytes := uv.rs.RandomBytes(uc.Creator(), round+1)
	if len(bytes) == 0 {
		return undecided
	}
	if bytes[0]&1 == 0 {
		return popular
	}
	return unpopular
}

// superMajority returns the vote cast by a quorum, or undecided if there is none.
func superMajority(dag gomel.Dag, votes votingResult) vote {
	if dag.IsQuorum(votes.popular) {
		return popular
	}
	if dag.IsQuorum(votes.unpopular) {
		return unpopular
	}
	return undecided
}

// voteUsingParents asks the voter about every parent of u, in the order of creators, until it says to finish.
// All the units one round below u that are below u are its parents, so these are exactly the votes u can see.
func voteUsingParents(uc, u gomel.Unit, voter func(uc, parent gomel.Unit) (vote, bool)) (votes votingResult) {
	for _, parent := range u.Parents() {
		if parent == nil {
			continue
		}
		v, finish := voter(uc, parent)
		switch v {
		case popular:
			votes.popular++
		case unpopular:
			votes.unpopular++
		}
		if finish {
			break
		}
	}
	return votes
}
