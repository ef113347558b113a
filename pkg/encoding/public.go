// Package encoding implements the stable, versioned binary formats of units and justifications.
package encoding

import (
	"bytes"
	"sort"

	"github.com/Cardinal-Cryptography/aleph-node/pkg/gomel"
)

// Version of the binary formats. Data encoded with a different version is rejected with a VersionError.
const Version byte = 1

// EncodeUnit encodes a unit to a slice of bytes.
func EncodeUnit(unit gomel.BaseUnit) ([]byte, error) {
	var buf bytes.Buffer
	if err := newEncoder(&buf).encodeUnit(unit); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodePreunit decodes the given data into a preunit. Complementary to EncodeUnit.
func DecodePreunit(data []byte) (gomel.Preunit, error) {
	return newDecoder(bytes.NewReader(data)).decodePreunit()
}

// EncodeUnits encodes a slice of units, parents before children.
func EncodeUnits(units []gomel.Unit) ([]byte, error) {
	var buf bytes.Buffer
	if err := newEncoder(&buf).encodeChunk(units); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodePreunits decodes data produced by EncodeUnits.
func DecodePreunits(data []byte) ([]gomel.Preunit, error) {
	return newDecoder(bytes.NewReader(data)).decodeChunk()
}

// EncodeJustification encodes a justification to a slice of bytes.
func EncodeJustification(j *gomel.Justification) ([]byte, error) {
	var buf bytes.Buffer
	if err := newEncoder(&buf).encodeJustification(j); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeJustification decodes data produced by EncodeJustification.
func DecodeJustification(data []byte) (*gomel.Justification, error) {
	return newDecoder(bytes.NewReader(data)).decodeJustification()
}

// sortByRound returns a copy of units sorted by round, then creator.
func sortByRound(units []gomel.Unit) []gomel.Unit {
	result := make([]gomel.Unit, len(units))
	copy(result, units)
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].Round() != result[j].Round() {
			return result[i].Round() < result[j].Round()
		}
		return result[i].Creator() < result[j].Creator()
	})
	return result
}
