// Package network defines the connections between committee members used by the sync protocols,
// independently of the transport. Implementations live in subpackages.
package network

import (
	"errors"
	"time"
)

// Connection represents a connection between two processes.
type Connection interface {
	Read([]byte) (int, error)
	Write([]byte) (int, error)
	// Flush sends all the buffered writes.
	Flush() error
	Close() error
	// TimeoutAfter sets the deadline for all the following reads and writes.
	TimeoutAfter(time.Duration)
}

// Server is responsible for establishing connections with committee members, identified by their pids,
// and for accepting connections from them.
type Server interface {
	// Dial connects to the committee member identified by pid.
	Dial(pid uint16, timeout time.Duration) (Connection, error)
	// Listen waits for an incoming connection for at most timeout.
	Listen(timeout time.Duration) (Connection, error)
	// SetAddresses replaces the address book, indexed by pids. Called when the committee changes.
	SetAddresses([]string)
	// Stop closes the server. Dial and Listen return ErrStopped afterwards.
	Stop()
}

var (
	// ErrStopped is returned by a stopped server.
	ErrStopped = errors.New("network server stopped")
	// ErrUnknownPeer is returned when dialing a pid without an address.
	ErrUnknownPeer = errors.New("no address for the peer")
	// ErrTimeout is returned by Listen when no connection arrived in time.
	ErrTimeout = errors.New("listen timeout")
)
