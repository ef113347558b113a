package gomel

import "golang.org/x/crypto/sha3"

// Session is an epoch with a fixed committee of authorities.
// Authority indices are positions in Keys.
type Session struct {
	ID   SessionID
	Keys []PublicKey
	// Addresses of the authorities, indexed like Keys. Empty means the addresses do not change.
	Addresses []string
}

// NProc returns the size of the committee.
func (s *Session) NProc() uint16 {
	return uint16(len(s.Keys))
}

// Faulty returns the number of faulty authorities the session tolerates.
func (s *Session) Faulty() uint16 {
	return Faulty(s.NProc())
}

// Quorum returns the minimal number of authorities forming a quorum.
func (s *Session) Quorum() uint16 {
	return MinimalQuorum(s.NProc())
}

// Contains checks whether pid is an authority of this session.
func (s *Session) Contains(pid uint16) bool {
	return pid < s.NProc()
}

// Seed digests the keys of the committee, so that sessions with different committees get different randomness.
func (s *Session) Seed() []byte {
	h := sha3.New256()
	for _, k := range s.Keys {
		h.Write([]byte(k.Encode()))
	}
	return h.Sum(nil)
}
