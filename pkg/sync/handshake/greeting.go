// Package handshake implements the protocol for identifying the peer.
//
// Every connection starts with a greeting: the pid of the dialer, the session it belongs to,
// an id of the sync and a signature over all of these made with the dialer's key.
// A greeting for another session, or one that does not verify, drops the connection.
package handshake

import (
	"encoding/binary"
	"io"

	"github.com/Cardinal-Cryptography/aleph-node/pkg/gomel"
	"github.com/Cardinal-Cryptography/aleph-node/pkg/network"
)

const (
	greetingTag     = "aleph-greeting"
	headerSize      = 2 + 4 + 4 + 2
	maxSignatureLen = 1024
)

func greetingBytes(pid uint16, session gomel.SessionID, sid uint32) []byte {
	data := make([]byte, 0, len(greetingTag)+10)
	data = append(data, greetingTag...)
	data = binary.LittleEndian.AppendUint16(data, pid)
	data = binary.LittleEndian.AppendUint32(data, uint32(session))
	data = binary.LittleEndian.AppendUint32(data, sid)
	return data
}

// Greet sends a signed greeting to the given conn.
func Greet(conn network.Connection, key gomel.PrivateKey, pid uint16, session gomel.SessionID, sid uint32) error {
	sig := key.SignBytes(greetingBytes(pid, session, sid))
	data := make([]byte, headerSize, headerSize+len(sig))
	binary.LittleEndian.PutUint16(data[0:], pid)
	binary.LittleEndian.PutUint32(data[2:], uint32(session))
	binary.LittleEndian.PutUint32(data[6:], sid)
	binary.LittleEndian.PutUint16(data[10:], uint16(len(sig)))
	data = append(data, sig...)
	if _, err := conn.Write(data); err != nil {
		return err
	}
	return conn.Flush()
}

// AcceptGreeting reads a greeting, checks that it comes from a member of the given session and returns the pid and sync id.
func AcceptGreeting(conn network.Connection, session *gomel.Session) (pid uint16, sid uint32, err error) {
	var header [headerSize]byte
	if _, err = io.ReadFull(conn, header[:]); err != nil {
		return
	}
	pid = binary.LittleEndian.Uint16(header[0:])
	sessionID := gomel.SessionID(binary.LittleEndian.Uint32(header[2:]))
	sid = binary.LittleEndian.Uint32(header[6:])
	sigLen := binary.LittleEndian.Uint16(header[10:])
	if sigLen > maxSignatureLen {
		err = gomel.NewDataError("greeting signature too long")
		return
	}
	sig := make(gomel.Signature, sigLen)
	if _, err = io.ReadFull(conn, sig); err != nil {
		return
	}
	if sessionID != session.ID {
		err = gomel.NewDataError("greeting for another session")
		return
	}
	if !session.Contains(pid) {
		err = gomel.NewDataError("greeting from a stranger")
		return
	}
	if !session.Keys[pid].VerifyBytes(greetingBytes(pid, sessionID, sid), sig) {
		err = gomel.NewDataError("greeting with a wrong signature")
	}
	return
}
