package encoding

import (
	"encoding/binary"
	"io"

	"github.com/Cardinal-Cryptography/aleph-node/pkg/gomel"
)

type encoder struct {
	io.Writer
}

// newEncoder creates an encoder writing to w.
// Units are encoded in the following format:
//  1. Protocol version, 1 byte.
//  2. Session id, 4 bytes.
//  3. Creator id, 2 bytes.
//  4. Round, 4 bytes.
//  5. Number of processes, 2 bytes.
//  6. Bitmap of present parents, one bit per process.
//  7. Hashes of present parents, 32 bytes each, in the order of creators.
//  8. Data flag, 1 byte. If set, the block hash (32 bytes) and the block number (8 bytes) follow.
//  9. Signature length, 2 bytes, and the signature.
//
// All integer values are little endian.
func newEncoder(w io.Writer) *encoder {
	return &encoder{w}
}

func (e *encoder) encodeUnit(unit gomel.BaseUnit) error {
	parents := unit.ParentHashes()
	nProc := len(parents)
	nPresent := 0
	for _, h := range parents {
		if h != nil {
			nPresent++
		}
	}
	size := 1 + 4 + 2 + 4 + 2 + bitmapSize(nProc) + nPresent*gomel.HashLength + 1 + 2 + len(unit.Signature())
	if unit.Data() != nil {
		size += gomel.HashLength + 8
	}
	data := make([]byte, 0, size)
	data = append(data, Version)
	data = binary.LittleEndian.AppendUint32(data, uint32(unit.Session()))
	data = binary.LittleEndian.AppendUint16(data, unit.Creator())
	data = binary.LittleEndian.AppendUint32(data, uint32(unit.Round()))
	data = binary.LittleEndian.AppendUint16(data, uint16(nProc))
	bitmap := make([]byte, bitmapSize(nProc))
	for i, h := range parents {
		if h != nil {
			bitmap[i/8] |= 1 << (uint(i) % 8)
		}
	}
	data = append(data, bitmap...)
	for _, h := range parents {
		if h != nil {
			data = append(data, h[:]...)
		}
	}
	if block := unit.Data(); block != nil {
		data = append(data, 1)
		data = append(data, block.Hash[:]...)
		data = binary.LittleEndian.AppendUint64(data, block.Number)
	} else {
		data = append(data, 0)
	}
	data = binary.LittleEndian.AppendUint16(data, uint16(len(unit.Signature())))
	data = append(data, unit.Signature()...)
	_, err := e.Write(data)
	return err
}

// encodeChunk writes the number of units followed by the units sorted by rounds,
// so that parents always precede their children.
func (e *encoder) encodeChunk(units []gomel.Unit) error {
	err := e.encodeUint32(uint32(len(units)))
	if err != nil {
		return err
	}
	for _, u := range sortByRound(units) {
		err = e.encodeUnit(u)
		if err != nil {
			return err
		}
	}
	return nil
}

// encodeJustification writes a justification in the following format:
//  1. Protocol version, 1 byte.
//  2. Session id, 4 bytes.
//  3. Round, 4 bytes.
//  4. Block hash, 32 bytes, and block number, 8 bytes.
//  5. Number of signatures, 2 bytes.
//  6. For every signature: the pid (2 bytes), the signature length (2 bytes) and the signature.
func (e *encoder) encodeJustification(j *gomel.Justification) error {
	data := make([]byte, 0, 1+4+4+gomel.HashLength+8+2+len(j.Signatures)*(4+64))
	data = append(data, Version)
	data = binary.LittleEndian.AppendUint32(data, uint32(j.Session))
	data = binary.LittleEndian.AppendUint32(data, uint32(j.Round))
	data = append(data, j.Block.Hash[:]...)
	data = binary.LittleEndian.AppendUint64(data, j.Block.Number)
	data = binary.LittleEndian.AppendUint16(data, uint16(len(j.Signatures)))
	for _, share := range j.Signatures {
		data = binary.LittleEndian.AppendUint16(data, share.Pid)
		data = binary.LittleEndian.AppendUint16(data, uint16(len(share.Signature)))
		data = append(data, share.Signature...)
	}
	_, err := e.Write(data)
	return err
}

func (e *encoder) encodeUint32(i uint32) error {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, i)
	_, err := e.Write(buf)
	return err
}

func bitmapSize(nProc int) int {
	return (nProc + 7) / 8
}
