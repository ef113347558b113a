package gomel

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"

	"golang.org/x/crypto/sha3"
)

// Hash is a type storing hash values, usually used to identify units.
type Hash [HashLength]byte

// Short returns a shortened version of the hash for easy viewing.
func (h *Hash) Short() string {
	return base64.StdEncoding.EncodeToString(h[:8])
}

// LessThan checks if h is less than k in lexicographic order.
// This is used to create a linear order on hashes.
func (h *Hash) LessThan(k *Hash) bool {
	return bytes.Compare(h[:], k[:]) < 0
}

// ZeroHash stands for an absent parent.
var ZeroHash Hash

// CombineHashes computes hash from sequence of hashes.
func CombineHashes(hashes []*Hash) *Hash {
	var (
		result Hash
		data   bytes.Buffer
	)
	for _, h := range hashes {
		if h != nil {
			data.Write(h[:])
		} else {
			data.Write(ZeroHash[:])
		}
	}
	sha3.ShakeSum128(result[:], data.Bytes())
	return &result
}

// UnitHash computes the hash of a unit with the given contents.
// Parents are given as a slice indexed by creator, with nil marking an absent parent.
func UnitHash(session SessionID, creator uint16, round int, parents []*Hash, data *BlockRef) *Hash {
	var (
		result Hash
		buf    bytes.Buffer
	)
	header := make([]byte, 12)
	binary.LittleEndian.PutUint32(header[0:4], uint32(session))
	binary.LittleEndian.PutUint16(header[4:6], creator)
	binary.LittleEndian.PutUint32(header[6:10], uint32(round))
	binary.LittleEndian.PutUint16(header[10:12], uint16(len(parents)))
	buf.Write(header)
	buf.Write(CombineHashes(parents)[:])
	if data == nil {
		buf.WriteByte(0)
	} else {
		buf.WriteByte(1)
		buf.Write(data.Hash[:])
		number := make([]byte, 8)
		binary.LittleEndian.PutUint64(number, data.Number)
		buf.Write(number)
	}
	sha3.ShakeSum128(result[:], buf.Bytes())
	return &result
}
