// Package random contains implementations of the common randomness used when picking heads.
//
// All the sources here derive the bytes from data every honest process knows at the start of a session,
// so no additional communication is needed. NewKeyed binds the bytes to a key, such as the seed of the committee.
//
// The bytes are predictable: anyone knowing the session and the key can compute the priorities of every round
// before it starts. Safety does not depend on it, since every honest process orders the same dag in the same way.
// Liveness does: an adversary controlling the network who knows the order in advance can delay the units that
// would be picked as heads and stall ordering for as long as it keeps doing so. Sources that reveal their bytes
// only after a round is built, such as a threshold coin over the units, satisfy gomel.RandomSource as well
// and can be passed to the extender instead.
package random

import (
	"encoding/binary"
	"sync"

	"golang.org/x/crypto/sha3"

	"github.com/Cardinal-Cryptography/aleph-node/pkg/gomel"
)

const (
	domain = "aleph-random"
	// Size is the number of bytes returned by the sources in this package.
	Size = 32
)

type keyed struct {
	session gomel.SessionID
	key     []byte
	mx      sync.Mutex
	cache   map[uint64][]byte
}

// New returns a deterministic random source bound to the given session.
func New(session gomel.SessionID) gomel.RandomSource {
	return NewKeyed(session, nil)
}

// NewKeyed returns a random source bound to the given session, with the key mixed into every output.
func NewKeyed(session gomel.SessionID, key []byte) gomel.RandomSource {
	return &keyed{
		session: session,
		key:     append([]byte(nil), key...),
		cache:   make(map[uint64][]byte),
	}
}

func (rs *keyed) RandomBytes(pid uint16, round int) []byte {
	if round < 0 {
		return nil
	}
	id := uint64(round)<<16 | uint64(pid)
	rs.mx.Lock()
	defer rs.mx.Unlock()
	if b, ok := rs.cache[id]; ok {
		return append([]byte(nil), b...)
	}
	var buf [14]byte
	binary.LittleEndian.PutUint32(buf[0:], uint32(rs.session))
	binary.LittleEndian.PutUint16(buf[4:], pid)
	binary.LittleEndian.PutUint64(buf[6:], uint64(round))

	h := sha3.NewShake256()
	h.Write([]byte(domain))
	h.Write(rs.key)
	h.Write(buf[:])
	result := make([]byte, Size)
	h.Read(result)
	rs.cache[id] = result
	return append([]byte(nil), result...)
}
