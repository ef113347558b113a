package encoding

import (
	"encoding/binary"
	"io"

	"github.com/Cardinal-Cryptography/aleph-node/pkg/config"
	"github.com/Cardinal-Cryptography/aleph-node/pkg/dag/unit"
	"github.com/Cardinal-Cryptography/aleph-node/pkg/gomel"
)

const maxSignatureLength = 1024

type decoder struct {
	io.Reader
}

// newDecoder creates a decoder reading from r. It reads only as much data as needed.
func newDecoder(r io.Reader) *decoder {
	return &decoder{r}
}

func (d *decoder) decodeVersion() error {
	v, err := d.decodeByte()
	if err != nil {
		return err
	}
	if v != Version {
		return gomel.NewVersionError(v, Version)
	}
	return nil
}

func (d *decoder) decodePreunit() (gomel.Preunit, error) {
	if err := d.decodeVersion(); err != nil {
		return nil, err
	}
	session, err := d.decodeUint32()
	if err != nil {
		return nil, err
	}
	creator, err := d.decodeUint16()
	if err != nil {
		return nil, err
	}
	round, err := d.decodeUint32()
	if err != nil {
		return nil, err
	}
	nProc, err := d.decodeUint16()
	if err != nil {
		return nil, err
	}
	bitmap := make([]byte, bitmapSize(int(nProc)))
	if _, err = io.ReadFull(d, bitmap); err != nil {
		return nil, err
	}
	parents := make([]*gomel.Hash, nProc)
	for i := range parents {
		if bitmap[i/8]&(1<<(uint(i)%8)) == 0 {
			continue
		}
		parents[i] = &gomel.Hash{}
		if _, err = io.ReadFull(d, parents[i][:]); err != nil {
			return nil, err
		}
	}
	flag, err := d.decodeByte()
	if err != nil {
		return nil, err
	}
	var data *gomel.BlockRef
	switch flag {
	case 0:
	case 1:
		data = &gomel.BlockRef{}
		if _, err = io.ReadFull(d, data.Hash[:]); err != nil {
			return nil, err
		}
		if data.Number, err = d.decodeUint64(); err != nil {
			return nil, err
		}
	default:
		return nil, gomel.NewDataError("unknown data flag")
	}
	signature, err := d.decodeSignature()
	if err != nil {
		return nil, err
	}
	return unit.NewPreunit(gomel.SessionID(session), creator, int(round), parents, data, signature), nil
}

func (d *decoder) decodeChunk() ([]gomel.Preunit, error) {
	k, err := d.decodeUint32()
	if err != nil {
		return nil, err
	}
	if k > config.MaxUnitsInChunk {
		return nil, gomel.NewDataError("chunk contains too many units")
	}
	result := make([]gomel.Preunit, k)
	for i := range result {
		result[i], err = d.decodePreunit()
		if err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (d *decoder) decodeJustification() (*gomel.Justification, error) {
	if err := d.decodeVersion(); err != nil {
		return nil, err
	}
	session, err := d.decodeUint32()
	if err != nil {
		return nil, err
	}
	round, err := d.decodeUint32()
	if err != nil {
		return nil, err
	}
	j := &gomel.Justification{Session: gomel.SessionID(session), Round: int(round)}
	if _, err = io.ReadFull(d, j.Block.Hash[:]); err != nil {
		return nil, err
	}
	if j.Block.Number, err = d.decodeUint64(); err != nil {
		return nil, err
	}
	n, err := d.decodeUint16()
	if err != nil {
		return nil, err
	}
	j.Signatures = make([]gomel.SignatureShare, n)
	for i := range j.Signatures {
		if j.Signatures[i].Pid, err = d.decodeUint16(); err != nil {
			return nil, err
		}
		if j.Signatures[i].Signature, err = d.decodeSignature(); err != nil {
			return nil, err
		}
	}
	return j, nil
}

func (d *decoder) decodeSignature() (gomel.Signature, error) {
	sigLen, err := d.decodeUint16()
	if err != nil {
		return nil, err
	}
	if sigLen > maxSignatureLength {
		return nil, gomel.NewDataError("signature too long")
	}
	signature := make(gomel.Signature, sigLen)
	if _, err = io.ReadFull(d, signature); err != nil {
		return nil, err
	}
	return signature, nil
}

func (d *decoder) decodeByte() (byte, error) {
	buf := make([]byte, 1)
	_, err := io.ReadFull(d, buf)
	return buf[0], err
}

func (d *decoder) decodeUint16() (uint16, error) {
	buf := make([]byte, 2)
	if _, err := io.ReadFull(d, buf); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(buf), nil
}

func (d *decoder) decodeUint32() (uint32, error) {
	buf := make([]byte, 4)
	if _, err := io.ReadFull(d, buf); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf), nil
}

func (d *decoder) decodeUint64() (uint64, error) {
	buf := make([]byte, 8)
	if _, err := io.ReadFull(d, buf); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf), nil
}
