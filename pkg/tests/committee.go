// Package tests contains helpers shared by the tests of other packages:
// local committees, dag builders, a test chain and a collecting finalization sink.
package tests

import (
	"time"

	"github.com/Cardinal-Cryptography/aleph-node/pkg/config"
	"github.com/Cardinal-Cryptography/aleph-node/pkg/crypto/signing"
	"github.com/Cardinal-Cryptography/aleph-node/pkg/gomel"
)

// Committee is a local committee with all the private keys known.
type Committee struct {
	Session *gomel.Session
	Keys    []gomel.PrivateKey
}

// NewCommittee generates keys for a committee of n members and a session with the given id.
func NewCommittee(id gomel.SessionID, n uint16) *Committee {
	pubs := make([]gomel.PublicKey, n)
	privs := make([]gomel.PrivateKey, n)
	for i := range pubs {
		pub, priv, err := signing.GenerateKeys()
		if err != nil {
			panic(err)
		}
		pubs[i], privs[i] = pub, priv
	}
	return &Committee{
		Session: &gomel.Session{ID: id, Keys: pubs},
		Keys:    privs,
	}
}

// WithSession returns the same committee bound to another session.
func (c *Committee) WithSession(id gomel.SessionID) *Committee {
	return &Committee{
		Session: &gomel.Session{ID: id, Keys: c.Session.Keys, Addresses: c.Session.Addresses},
		Keys:    c.Keys,
	}
}

// Sign signs the preunit with the key of its creator.
func (c *Committee) Sign(pu gomel.Preunit) gomel.Preunit {
	pu.SetSignature(c.Keys[pu.Creator()].Sign(pu.Hash()))
	return pu
}

// Justify builds a justification of the block signed by the first quorum of members.
func (c *Committee) Justify(block gomel.BlockRef, round int) *gomel.Justification {
	j := &gomel.Justification{Session: c.Session.ID, Round: round, Block: block}
	digest := j.Digest()
	for pid := uint16(0); pid < c.Session.Quorum(); pid++ {
		j.AddShare(gomel.SignatureShare{Pid: pid, Signature: c.Keys[pid].SignBytes(digest)})
	}
	return j
}

// Config returns a configuration of the given member with intervals short enough for tests.
func (c *Committee) Config(pid uint16, addresses []string) *config.Config {
	cnf := config.New(
		&config.Member{Pid: pid, PrivateKey: c.Keys[pid]},
		&config.Committee{PublicKeys: c.Session.Keys, Addresses: addresses},
	)
	cnf.CreateDelay = 5 * time.Millisecond
	cnf.FetchInterval = 100 * time.Millisecond
	cnf.Timeout = 500 * time.Millisecond
	cnf.JustificationInterval = 50 * time.Millisecond
	cnf.CatchUpInterval = 100 * time.Millisecond
	cnf.HandoffTimeout = time.Second
	cnf.LogFile = "stdout"
	return cnf
}
