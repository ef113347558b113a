// Package unit implements the units and preunits stored in the dag.
package unit

import (
	"github.com/Cardinal-Cryptography/aleph-node/pkg/gomel"
)

type preunit struct {
	session   gomel.SessionID
	creator   uint16
	round     int
	parents   []*gomel.Hash
	data      *gomel.BlockRef
	signature gomel.Signature
	hash      gomel.Hash
}

// NewPreunit constructs a new preunit with given contents. The hash is computed immediately.
func NewPreunit(session gomel.SessionID, creator uint16, round int, parents []*gomel.Hash, data *gomel.BlockRef, signature gomel.Signature) gomel.Preunit {
	pu := &preunit{
		session:   session,
		creator:   creator,
		round:     round,
		parents:   parents,
		data:      data,
		signature: signature,
	}
	pu.hash = *gomel.UnitHash(session, creator, round, parents, data)
	return pu
}

func (pu *preunit) Session() gomel.SessionID {
	return pu.session
}

func (pu *preunit) Creator() uint16 {
	return pu.creator
}

func (pu *preunit) Round() int {
	return pu.round
}

func (pu *preunit) ParentHashes() []*gomel.Hash {
	return pu.parents
}

func (pu *preunit) Data() *gomel.BlockRef {
	return pu.data
}

func (pu *preunit) Signature() gomel.Signature {
	return pu.signature
}

func (pu *preunit) SetSignature(sig gomel.Signature) {
	pu.signature = sig
}

func (pu *preunit) Hash() *gomel.Hash {
	return &pu.hash
}
