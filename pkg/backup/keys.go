package backup

import (
	"encoding/binary"

	"github.com/Cardinal-Cryptography/aleph-node/pkg/gomel"
)

// Key prefixes. All integers in keys are big endian, so that iteration follows their order.
const (
	codeUnit          byte = 'u'
	codeBatch         byte = 'b'
	codeFork          byte = 'f'
	codeJustification byte = 'j'
	codeAcked         byte = 'a'
)

func sessionPrefix(code byte, session gomel.SessionID) []byte {
	key := make([]byte, 5, 64)
	key[0] = code
	binary.BigEndian.PutUint32(key[1:], uint32(session))
	return key
}

func unitKey(u gomel.BaseUnit) []byte {
	key := sessionPrefix(codeUnit, u.Session())
	key = binary.BigEndian.AppendUint32(key, uint32(u.Round()))
	key = binary.BigEndian.AppendUint16(key, u.Creator())
	return append(key, u.Hash()[:]...)
}

func batchKey(session gomel.SessionID, index uint64) []byte {
	return binary.BigEndian.AppendUint64(sessionPrefix(codeBatch, session), index)
}

func forkKey(ev *gomel.ForkEvidence) []byte {
	key := sessionPrefix(codeFork, ev.Session)
	key = binary.BigEndian.AppendUint32(key, uint32(ev.Round))
	key = binary.BigEndian.AppendUint16(key, ev.Creator)
	key = append(key, ev.HashA[:]...)
	return append(key, ev.HashB[:]...)
}

func justificationKey(height uint64) []byte {
	key := make([]byte, 1, 9)
	key[0] = codeJustification
	return binary.BigEndian.AppendUint64(key, height)
}

func ackedKey() []byte {
	return []byte{codeAcked}
}
