package gomel

import (
	"encoding/binary"
	"sort"
)

// SignatureShare is a signature of a justification digest made by a single authority.
type SignatureShare struct {
	Pid       uint16
	Signature Signature
}

// Justification is a durable proof that a block was finalized.
// It is a set of signatures over the digest made by a quorum of the session committee.
type Justification struct {
	Session SessionID
	// Round of the head that ordered the block.
	Round int
	Block BlockRef
	// Signatures sorted by Pid, at most one per authority.
	Signatures []SignatureShare
}

// Height of a justification is the number of the justified block.
func (j *Justification) Height() uint64 {
	return j.Block.Number
}

// Digest returns the bytes that authorities sign to justify a block.
func (j *Justification) Digest() []byte {
	return JustificationDigest(j.Session, j.Round, j.Block)
}

// AddShare adds a signature share keeping the slice sorted. Returns false if the pid already signed.
func (j *Justification) AddShare(share SignatureShare) bool {
	i := sort.Search(len(j.Signatures), func(i int) bool { return j.Signatures[i].Pid >= share.Pid })
	if i < len(j.Signatures) && j.Signatures[i].Pid == share.Pid {
		return false
	}
	j.Signatures = append(j.Signatures, SignatureShare{})
	copy(j.Signatures[i+1:], j.Signatures[i:])
	j.Signatures[i] = share
	return true
}

// Verify checks that the justification carries valid signatures of a quorum of the given session committee.
func (j *Justification) Verify(s *Session) bool {
	if s == nil || s.ID != j.Session {
		return false
	}
	digest := j.Digest()
	valid := uint16(0)
	last := -1
	for _, share := range j.Signatures {
		if int(share.Pid) <= last || !s.Contains(share.Pid) {
			return false
		}
		last = int(share.Pid)
		if !s.Keys[share.Pid].VerifyBytes(digest, share.Signature) {
			return false
		}
		valid++
	}
	return IsQuorum(s.NProc(), valid)
}

// JustificationDigest returns the bytes signed by authorities to justify the given block.
func JustificationDigest(session SessionID, round int, block BlockRef) []byte {
	data := make([]byte, 0, 4+4+HashLength+8+len(justificationTag))
	data = append(data, justificationTag...)
	data = binary.LittleEndian.AppendUint32(data, uint32(session))
	data = binary.LittleEndian.AppendUint32(data, uint32(round))
	data = append(data, block.Hash[:]...)
	data = binary.LittleEndian.AppendUint64(data, block.Number)
	return data
}

const justificationTag = "aleph-justification"
