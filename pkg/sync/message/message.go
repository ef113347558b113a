// Package message defines the messages exchanged by committee members and their wire envelope.
//
// Every message is framed as: protocol version (1 byte), message code (1 byte),
// body length (4 bytes, little endian) and the CBOR encoded body.
// Units and justifications inside bodies use the stable binary formats of the encoding package.
package message

import (
	"encoding/binary"
	"io"

	"github.com/fxamacker/cbor/v2"
	"github.com/pkg/errors"

	"github.com/Cardinal-Cryptography/aleph-node/pkg/encoding"
	"github.com/Cardinal-Cryptography/aleph-node/pkg/gomel"
)

// Version of the protocol. Messages with another version are rejected.
const Version = encoding.Version

// MaxSize is the maximal size of a message body.
const MaxSize = 64 << 20

// Code identifies the type of a message.
type Code byte

// Message codes.
const (
	NewUnit Code = iota + 1
	RequestUnits
	ResponseUnits
	RequestTip
	RequestJustifications
	Justifications
	SignatureShare
)

var codeNames = map[Code]string{
	NewUnit:               "new_unit",
	RequestUnits:          "request_units",
	ResponseUnits:         "response_units",
	RequestTip:            "request_tip",
	RequestJustifications: "request_justifications",
	Justifications:        "justifications",
	SignatureShare:        "signature_share",
}

func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return "unknown"
}

// Units is the body of NewUnit and ResponseUnits. Units are encoded with encoding.EncodeUnits.
type Units struct {
	Units []byte `cbor:"1,keyasint"`
}

// Hashes is the body of RequestUnits.
type Hashes struct {
	Hashes []gomel.Hash `cbor:"1,keyasint"`
}

// Tip is the body of RequestTip.
type Tip struct {
	Round int `cbor:"1,keyasint"`
}

// From is the body of RequestJustifications.
type From struct {
	Height uint64 `cbor:"1,keyasint"`
}

// JustificationList is the body of Justifications. Each justification is encoded with encoding.EncodeJustification.
type JustificationList struct {
	Justifications [][]byte `cbor:"1,keyasint"`
}

// Share is the body of SignatureShare.
type Share struct {
	Session   uint32          `cbor:"1,keyasint"`
	Round     int             `cbor:"2,keyasint"`
	Block     gomel.BlockHash `cbor:"3,keyasint"`
	Number    uint64          `cbor:"4,keyasint"`
	Pid       uint16          `cbor:"5,keyasint"`
	Signature []byte          `cbor:"6,keyasint"`
}

// Write encodes the body and writes the framed message. It does not flush.
func Write(w io.Writer, code Code, body interface{}) error {
	data, err := cbor.Marshal(body)
	if err != nil {
		return errors.Wrapf(err, "encoding %s", code)
	}
	var header [6]byte
	header[0] = Version
	header[1] = byte(code)
	binary.LittleEndian.PutUint32(header[2:], uint32(len(data)))
	if _, err = w.Write(header[:]); err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// Read reads a framed message and returns its code and raw body.
// A message of a different protocol version results in a VersionError.
func Read(r io.Reader) (Code, []byte, error) {
	var header [6]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return 0, nil, err
	}
	if header[0] != Version {
		return 0, nil, gomel.NewVersionError(header[0], Version)
	}
	code := Code(header[1])
	if _, ok := codeNames[code]; !ok {
		return 0, nil, gomel.NewDataError("unknown message code")
	}
	size := binary.LittleEndian.Uint32(header[2:])
	if size > MaxSize {
		return 0, nil, gomel.NewDataError("message too big")
	}
	data := make([]byte, size)
	if _, err := io.ReadFull(r, data); err != nil {
		return 0, nil, err
	}
	return code, data, nil
}

// Decode decodes a raw body read with Read.
func Decode(data []byte, body interface{}) error {
	return cbor.Unmarshal(data, body)
}

// Expect reads a message, checks that it has the given code and decodes its body.
func Expect(r io.Reader, code Code, body interface{}) error {
	got, data, err := Read(r)
	if err != nil {
		return err
	}
	if got != code {
		return gomel.NewDataError("unexpected message " + got.String() + ", wanted " + code.String())
	}
	return Decode(data, body)
}

// EncodeUnits builds a Units body.
func EncodeUnits(units []gomel.Unit) (*Units, error) {
	data, err := encoding.EncodeUnits(units)
	if err != nil {
		return nil, err
	}
	return &Units{Units: data}, nil
}

// Preunits decodes the units of the body.
func (u *Units) Preunits() ([]gomel.Preunit, error) {
	return encoding.DecodePreunits(u.Units)
}

// EncodeJustifications builds a JustificationList body.
func EncodeJustifications(js []*gomel.Justification) (*JustificationList, error) {
	result := &JustificationList{Justifications: make([][]byte, 0, len(js))}
	for _, j := range js {
		data, err := encoding.EncodeJustification(j)
		if err != nil {
			return nil, err
		}
		result.Justifications = append(result.Justifications, data)
	}
	return result, nil
}

// Decoded decodes all the justifications of the body.
func (jl *JustificationList) Decoded() ([]*gomel.Justification, error) {
	result := make([]*gomel.Justification, 0, len(jl.Justifications))
	for _, data := range jl.Justifications {
		j, err := encoding.DecodeJustification(data)
		if err != nil {
			return nil, err
		}
		result = append(result, j)
	}
	return result, nil
}

// NewShare builds a Share body.
func NewShare(js *gomel.JustificationShare) *Share {
	return &Share{
		Session:   uint32(js.Session),
		Round:     js.Round,
		Block:     js.Block.Hash,
		Number:    js.Block.Number,
		Pid:       js.Share.Pid,
		Signature: js.Share.Signature,
	}
}

// JustificationShare converts the body back.
func (s *Share) JustificationShare() *gomel.JustificationShare {
	return &gomel.JustificationShare{
		Session: gomel.SessionID(s.Session),
		Round:   s.Round,
		Block:   gomel.BlockRef{Hash: s.Block, Number: s.Number},
		Share:   gomel.SignatureShare{Pid: s.Pid, Signature: s.Signature},
	}
}
