// Package sync implements the dissemination of units, justifications and signature shares among committee members.
//
// Every message travels over a fresh connection that starts with a signed greeting.
// Incoming connections are served by a fixed pool of listeners. Outgoing messages are queued per peer
// on worker pools and retried with exponential backoff; a request for a peer that
// stays unreachable is eventually dropped, and so is everything queued when the service stops.
package sync

import (
	"context"
	"time"

	"github.com/gammazero/workerpool"
	lru "github.com/hashicorp/golang-lru"
	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"
	"go.uber.org/atomic"

	"github.com/Cardinal-Cryptography/aleph-node/pkg/config"
	"github.com/Cardinal-Cryptography/aleph-node/pkg/gomel"
	"github.com/Cardinal-Cryptography/aleph-node/pkg/logging"
	"github.com/Cardinal-Cryptography/aleph-node/pkg/metrics"
	"github.com/Cardinal-Cryptography/aleph-node/pkg/network"
	"github.com/Cardinal-Cryptography/aleph-node/pkg/sync/handshake"
	"github.com/Cardinal-Cryptography/aleph-node/pkg/sync/message"
)

const (
	receivedCacheSize = 1 << 14
	// outgoing messages queued per committee member before new ones are dropped
	queuePerPeer = 256
	// concurrent exchanges with a single committee member
	workersPerPeer = 4
)

type responseHandler func(pid uint16, conn network.Connection) error

// Service sends and receives all the messages of a single session.
type Service struct {
	pid       uint16
	session   *gomel.Session
	key       gomel.PrivateKey
	orderer   gomel.Orderer
	netserv   network.Server
	timeout   time.Duration
	interval  time.Duration
	retries   uint64
	chunk     int
	listeners *listenerPool
	out       []*workerpool.WorkerPool
	received  *lru.Cache
	sid       atomic.Uint32
	// members that sent a message of another protocol version
	mismatched []atomic.Bool
	mismatches atomic.Uint32
	failures   chan error
	ctx        context.Context
	cancel     context.CancelFunc
	log        zerolog.Logger
}

// NewService constructs a sync service of the given session. Received messages are dispatched to the orderer.
func NewService(session *gomel.Session, orderer gomel.Orderer, netserv network.Server, conf *config.Config, log zerolog.Logger) *Service {
	received, _ := lru.New(receivedCacheSize)
	ctx, cancel := context.WithCancel(context.Background())
	s := &Service{
		pid:      conf.Pid,
		session:  session,
		key:      conf.PrivateKey,
		orderer:  orderer,
		netserv:  netserv,
		timeout:  conf.Timeout,
		interval: conf.FetchInterval,
		retries:  conf.FetchRetries,
		chunk:    conf.CatchUpBatch,
		out:      make([]*workerpool.WorkerPool, session.NProc()),
		received: received,
		failures: make(chan error, 1),
		ctx:      ctx,
		cancel:   cancel,
		log:      log.With().Int(logging.Service, logging.SyncService).Logger(),
	}
	s.mismatched = make([]atomic.Bool, session.NProc())
	for pid := range s.out {
		if uint16(pid) != s.pid {
			s.out[pid] = workerpool.New(workersPerPeer)
		}
	}
	s.listeners = newListenerPool(conf.SyncWorkers, s.in)
	return s
}

// Start starts serving incoming connections.
func (s *Service) Start() error {
	s.listeners.start()
	s.log.Info().Msg(logging.ServiceStarted)
	return nil
}

// Stop drops all the queued messages and waits for the running exchanges to finish.
func (s *Service) Stop() {
	s.cancel()
	s.listeners.stop()
	for _, out := range s.out {
		if out != nil {
			out.Stop()
		}
	}
	s.log.Info().Msg(logging.ServiceStopped)
}

// Failures delivers a VersionError once more than Faulty members were found speaking another protocol version.
// One of them is honest then, so this member cannot take part in the session any more.
func (s *Service) Failures() <-chan error {
	return s.failures
}

func (s *Service) versionMismatch(pid uint16, err error, where string) {
	s.log.Error().Uint16(logging.PID, pid).Str(logging.Where, where).Msg(err.Error())
	if int(pid) >= len(s.mismatched) || !s.mismatched[pid].CompareAndSwap(false, true) {
		return
	}
	if s.mismatches.Inc() == uint32(s.session.Faulty())+1 {
		select {
		case s.failures <- err:
		default:
		}
	}
}

// Multicast sends the unit to all other committee members.
func (s *Service) Multicast(u gomel.Unit) {
	body, err := message.EncodeUnits([]gomel.Unit{u})
	if err != nil {
		s.log.Error().Str(logging.Where, "sync.Multicast").Msg(err.Error())
		return
	}
	s.received.Add(*u.Hash(), struct{}{})
	s.toOthers(message.NewUnit, body, nil)
}

// RequestFetch asks the given committee member for the units with the given hashes.
func (s *Service) RequestFetch(pid uint16, hashes []*gomel.Hash) {
	body := &message.Hashes{Hashes: make([]gomel.Hash, 0, len(hashes))}
	for _, h := range hashes {
		if h != nil {
			body.Hashes = append(body.Hashes, *h)
		}
	}
	s.send(pid, message.RequestUnits, body, s.receiveUnits)
}

// RequestTip asks all other committee members for their units at or above the given round.
func (s *Service) RequestTip(round int) {
	s.toOthers(message.RequestTip, &message.Tip{Round: round}, s.receiveUnits)
}

// RequestJustifications asks the given committee member for justifications starting at the given height.
func (s *Service) RequestJustifications(pid uint16, from uint64) {
	s.send(pid, message.RequestJustifications, &message.From{Height: from}, s.receiveJustifications)
}

// SendJustifications pushes justifications to the given committee member.
func (s *Service) SendJustifications(pid uint16, js []*gomel.Justification) {
	body, err := message.EncodeJustifications(js)
	if err != nil {
		s.log.Error().Str(logging.Where, "sync.SendJustifications").Msg(err.Error())
		return
	}
	s.send(pid, message.Justifications, body, nil)
}

// BroadcastShare sends the signature share to all other committee members.
func (s *Service) BroadcastShare(share *gomel.JustificationShare) {
	s.toOthers(message.SignatureShare, message.NewShare(share), nil)
}

func (s *Service) toOthers(code message.Code, body interface{}, response responseHandler) {
	for pid := uint16(0); pid < s.session.NProc(); pid++ {
		if pid != s.pid {
			s.send(pid, code, body, response)
		}
	}
}

// send queues the exchange with the given peer. Every peer has its own queue, so an unreachable peer
// never holds back the others. It never blocks: when the queue is too long the message is dropped.
func (s *Service) send(pid uint16, code message.Code, body interface{}, response responseHandler) {
	if s.ctx.Err() != nil || int(pid) >= len(s.out) || s.out[pid] == nil {
		return
	}
	out := s.out[pid]
	if out.WaitingQueueSize() >= queuePerPeer {
		s.log.Warn().Uint16(logging.PID, pid).Str(logging.Where, "sync.send").Msg("queue full, dropping " + code.String())
		return
	}
	out.Submit(func() {
		if s.ctx.Err() != nil {
			return
		}
		backoff, err := retry.NewExponential(s.interval)
		if err != nil {
			s.log.Error().Str(logging.Where, "sync.send.backoff").Msg(err.Error())
			return
		}
		err = retry.Do(s.ctx, retry.WithMaxRetries(s.retries, backoff), func(ctx context.Context) error {
			if err := s.exchange(pid, code, body, response); err != nil {
				if _, ok := err.(*gomel.VersionError); ok {
					s.versionMismatch(pid, err, "sync.send."+code.String())
					return err
				}
				return retry.RetryableError(err)
			}
			return nil
		})
		if _, ok := err.(*gomel.VersionError); !ok && err != nil && s.ctx.Err() == nil {
			s.log.Warn().Uint16(logging.PID, pid).Str(logging.Where, "sync.send."+code.String()).Msg(err.Error())
		}
	})
}

func (s *Service) exchange(pid uint16, code message.Code, body interface{}, response responseHandler) error {
	conn, err := s.netserv.Dial(pid, s.timeout)
	if err != nil {
		return err
	}
	defer conn.Close()
	conn.TimeoutAfter(s.timeout)
	if err = handshake.Greet(conn, s.key, s.pid, s.session.ID, s.sid.Inc()); err != nil {
		return err
	}
	if err = message.Write(conn, code, body); err != nil {
		return err
	}
	if err = conn.Flush(); err != nil {
		return err
	}
	metrics.MessageSent(code.String())
	s.log.Debug().Uint16(logging.PID, pid).Str(logging.Where, code.String()).Msg(logging.ConnectionEstablished)
	if response == nil {
		return nil
	}
	return response(pid, conn)
}

func (s *Service) receiveUnits(pid uint16, conn network.Connection) error {
	var body message.Units
	if err := message.Expect(conn, message.ResponseUnits, &body); err != nil {
		return err
	}
	metrics.MessageReceived(message.ResponseUnits.String())
	preunits, err := body.Preunits()
	if err != nil || len(preunits) == 0 {
		return err
	}
	errs := s.orderer.AddPreunits(pid, preunits...)
	logging.AddingErrors(errs, len(preunits), s.log.With().Uint16(logging.PID, pid).Logger())
	return nil
}

func (s *Service) receiveJustifications(pid uint16, conn network.Connection) error {
	var body message.JustificationList
	if err := message.Expect(conn, message.Justifications, &body); err != nil {
		return err
	}
	metrics.MessageReceived(message.Justifications.String())
	js, err := body.Decoded()
	if err != nil || len(js) == 0 {
		return err
	}
	s.orderer.HandleJustifications(pid, js)
	return nil
}
