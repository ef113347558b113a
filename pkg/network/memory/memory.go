// Package memory implements network.Server with in-process pipes.
// Nodes can be disconnected and reconnected, which makes it suitable for testing.
package memory

import (
	"net"
	"sync"
	"time"

	"github.com/Cardinal-Cryptography/aleph-node/pkg/network"
)

// Network is a set of nodes that can reach each other, identified by their addresses.
type Network struct {
	mx    sync.RWMutex
	nodes map[string]*server
	down  map[string]bool
}

// New creates an empty network.
func New() *Network {
	return &Network{
		nodes: make(map[string]*server),
		down:  make(map[string]bool),
	}
}

// Server creates a node reachable at the given address, dialing others using addresses indexed by pids.
func (n *Network) Server(addr string, addresses []string) network.Server {
	s := &server{
		net:       n,
		addr:      addr,
		addresses: addresses,
		incoming:  make(chan net.Conn, 64),
		quit:      make(chan struct{}),
	}
	n.mx.Lock()
	defer n.mx.Unlock()
	n.nodes[addr] = s
	return s
}

// Disconnect cuts the node off: it can neither dial nor be dialed.
func (n *Network) Disconnect(addr string) {
	n.mx.Lock()
	defer n.mx.Unlock()
	n.down[addr] = true
}

// Reconnect reverts Disconnect.
func (n *Network) Reconnect(addr string) {
	n.mx.Lock()
	defer n.mx.Unlock()
	delete(n.down, addr)
}

// Traffic returns the traffic of the node at the given address.
func (n *Network) Traffic(addr string) *network.Traffic {
	n.mx.RLock()
	defer n.mx.RUnlock()
	if s, ok := n.nodes[addr]; ok {
		return &s.traffic
	}
	return nil
}

func (n *Network) route(from, to string) (*server, bool) {
	n.mx.RLock()
	defer n.mx.RUnlock()
	if n.down[from] || n.down[to] {
		return nil, false
	}
	s, ok := n.nodes[to]
	return s, ok
}

type server struct {
	net       *Network
	addr      string
	addresses []string
	incoming  chan net.Conn
	traffic   network.Traffic
	quit      chan struct{}
	mx        sync.RWMutex
	stopped   bool
}

func (s *server) Dial(pid uint16, timeout time.Duration) (network.Connection, error) {
	s.mx.RLock()
	if s.stopped {
		s.mx.RUnlock()
		return nil, network.ErrStopped
	}
	if int(pid) >= len(s.addresses) {
		s.mx.RUnlock()
		return nil, network.ErrUnknownPeer
	}
	to := s.addresses[pid]
	s.mx.RUnlock()

	remote, ok := s.net.route(s.addr, to)
	if !ok {
		return nil, &net.OpError{Op: "dial", Net: "memory", Err: network.ErrUnknownPeer}
	}
	local, other := net.Pipe()
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case remote.incoming <- other:
		return network.NewConn(local, &s.traffic), nil
	case <-remote.quit:
		local.Close()
		other.Close()
		return nil, network.ErrStopped
	case <-timer.C:
		local.Close()
		other.Close()
		return nil, &net.OpError{Op: "dial", Net: "memory", Err: network.ErrTimeout}
	}
}

func (s *server) Listen(timeout time.Duration) (network.Connection, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case link := <-s.incoming:
		return network.NewConn(link, &s.traffic), nil
	case <-s.quit:
		return nil, network.ErrStopped
	case <-timer.C:
		return nil, network.ErrTimeout
	}
}

func (s *server) SetAddresses(addresses []string) {
	s.mx.Lock()
	defer s.mx.Unlock()
	s.addresses = addresses
}

func (s *server) Stop() {
	s.mx.Lock()
	defer s.mx.Unlock()
	if s.stopped {
		return
	}
	s.stopped = true
	close(s.quit)
}
