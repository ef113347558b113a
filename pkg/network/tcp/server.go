// Package tcp implements network.Server on top of TCP connections.
package tcp

import (
	"net"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/Cardinal-Cryptography/aleph-node/pkg/logging"
	"github.com/Cardinal-Cryptography/aleph-node/pkg/network"
)

type server struct {
	ln        *net.TCPListener
	addresses []string
	traffic   network.Traffic
	mx        sync.RWMutex
	stopped   bool
	log       zerolog.Logger
}

// NewServer starts listening on localAddr. Connections are dialed using remoteAddrs, indexed by pids.
func NewServer(localAddr string, remoteAddrs []string, log zerolog.Logger) (network.Server, error) {
	localTCP, err := net.ResolveTCPAddr("tcp", localAddr)
	if err != nil {
		return nil, errors.Wrapf(err, "resolving %s", localAddr)
	}
	ln, err := net.ListenTCP("tcp", localTCP)
	if err != nil {
		return nil, errors.Wrapf(err, "listening on %s", localAddr)
	}
	return &server{
		ln:        ln,
		addresses: remoteAddrs,
		log:       log.With().Int(logging.Service, logging.NetworkService).Logger(),
	}, nil
}

// Addr returns the address the server listens on.
func Addr(s network.Server) net.Addr {
	if srv, ok := s.(*server); ok {
		return srv.ln.Addr()
	}
	return nil
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
	addr := s.addresses[pid]
	s.mx.RUnlock()

	link, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, errors.Wrapf(err, "dialing %d", pid)
	}
	return network.NewConn(link, &s.traffic), nil
}

func (s *server) Listen(timeout time.Duration) (network.Connection, error) {
	s.mx.RLock()
	stopped := s.stopped
	s.mx.RUnlock()
	if stopped {
		return nil, network.ErrStopped
	}
	s.ln.SetDeadline(time.Now().Add(timeout))
	link, err := s.ln.AcceptTCP()
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return nil, network.ErrTimeout
		}
		return nil, err
	}
	s.log.Debug().Msg(logging.ConnectionReceived)
	return network.NewConn(link, &s.traffic), nil
}

func (s *server) SetAddresses(addresses []string) {
	s.mx.Lock()
	defer s.mx.Unlock()
	s.addresses = addresses
}

func (s *server) Stop() {
	s.mx.Lock()
	if s.stopped {
		s.mx.Unlock()
		return
	}
	s.stopped = true
	s.mx.Unlock()
	s.ln.Close()
	s.log.Info().
		Uint64(logging.Sent, s.traffic.Sent.Load()).
		Uint64(logging.Recv, s.traffic.Recv.Load()).
		Msg(logging.ServiceStopped)
}
