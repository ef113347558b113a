// Package session runs the consensus of consecutive sessions of the committee.
//
// Each session has its own dag, creator, extender and dissemination service, and all of them
// share the finalizer, which outlives sessions. Blocks ordered but not finalized when a session
// ends are carried over and finalized first by the next session.
package session

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"

	"github.com/Cardinal-Cryptography/aleph-node/pkg/backup"
	"github.com/Cardinal-Cryptography/aleph-node/pkg/config"
	"github.com/Cardinal-Cryptography/aleph-node/pkg/finalizer"
	"github.com/Cardinal-Cryptography/aleph-node/pkg/gomel"
	"github.com/Cardinal-Cryptography/aleph-node/pkg/logging"
	"github.com/Cardinal-Cryptography/aleph-node/pkg/metrics"
	"github.com/Cardinal-Cryptography/aleph-node/pkg/network"
)

// Carryover is handed over from an ended session to the next one.
type Carryover struct {
	// Session that produced this carryover.
	Session gomel.SessionID
	// Last is the justification of the highest finalized block, nil if nothing was finalized yet.
	Last *gomel.Justification
	// Pending are the blocks ordered but not finalized, in order.
	Pending []finalizer.Entry
}

// Manager starts and ends sessions. At most one session is active at a time.
type Manager struct {
	conf     *config.Config
	backend  gomel.BlockBackend
	store    *backup.Store
	netserv  network.Server
	fin      *finalizer.Finalizer
	sessions *SessionMap
	mx       sync.Mutex
	active   *instance
	last     *gomel.SessionID
	log      zerolog.Logger
}

// NewManager constructs a session manager. Blocks finalized before a restart but not delivered to the sink
// are delivered here.
func NewManager(conf *config.Config, backend gomel.BlockBackend, sink gomel.FinalizationSink, store *backup.Store,
	netserv network.Server, log zerolog.Logger) (*Manager, error) {
	fin, err := finalizer.New(backend, sink, store, log)
	if err != nil {
		return nil, err
	}
	return &Manager{
		conf:     conf,
		backend:  backend,
		store:    store,
		netserv:  netserv,
		fin:      fin,
		sessions: NewSessionMap(),
		log:      log.With().Int(logging.Service, logging.SessionService).Logger(),
	}, nil
}

// Height returns the height of the last finalized block.
func (m *Manager) Height() uint64 {
	return m.fin.Height()
}

// Sessions returns the committees of the sessions started by this manager and not pruned yet.
func (m *Manager) Sessions() *SessionMap {
	return m.sessions
}

// StartSession starts the consensus of the given session. Blocks of the carryover are finalized first.
// Sessions older than the previous one are removed from the backup.
// The session stops on its own when ctx is done or when one of its activities fails; EndSession must be called anyway.
func (m *Manager) StartSession(ctx context.Context, session *gomel.Session, carry *Carryover) error {
	m.mx.Lock()
	defer m.mx.Unlock()
	if m.active != nil {
		return gomel.NewConfigError("session " + strconv.Itoa(int(m.active.session.ID)) + " is still active")
	}
	if m.last != nil && session.ID < *m.last {
		return gomel.NewConfigError("session " + strconv.Itoa(int(session.ID)) + " started after session " + strconv.Itoa(int(*m.last)))
	}
	if !session.Contains(m.conf.Pid) {
		return gomel.NewConfigError("process " + strconv.Itoa(int(m.conf.Pid)) + " is not a member of session " + strconv.Itoa(int(session.ID)))
	}
	m.sessions.Add(session)
	if session.ID > 0 {
		for _, id := range m.sessions.PruneBelow(session.ID - 1) {
			if err := m.store.PruneSession(id); err != nil {
				return err
			}
			m.log.Info().Uint32(logging.Session, uint32(id)).Msg(logging.SessionPruned)
		}
	}

	log := m.log.With().Uint32(logging.Session, uint32(session.ID)).Logger()
	inst := newInstance(session, *m.conf, m.backend, m.store, m.fin, m.sessions, m.netserv, log)
	if carry != nil {
		m.fin.Push(carry.Pending...)
		if carry.Last != nil {
			inst.catchUp.offer([]*gomel.Justification{carry.Last})
		}
	}
	if err := inst.restore(); err != nil {
		inst.stop()
		return err
	}
	if err := inst.start(ctx); err != nil {
		inst.stop()
		return err
	}
	m.active = inst
	id := session.ID
	m.last = &id
	metrics.SessionStarted(uint32(id))
	log.Info().Uint64(logging.Height, m.fin.Height()).Msg(logging.SessionStarted)
	return nil
}

// Done returns a channel closed when the activities of the active session have stopped,
// either because of EndSession or because one of them failed. Nil when no session is active.
func (m *Manager) Done() <-chan struct{} {
	m.mx.Lock()
	defer m.mx.Unlock()
	if m.active == nil {
		return nil
	}
	return m.active.done
}

// EndSession stops creating units in the active session, lets the finalizer work through the blocks ordered so far
// for at most HandoffTimeout, tears the session down and returns what the next session has to take over.
func (m *Manager) EndSession(ctx context.Context) (*Carryover, error) {
	m.mx.Lock()
	inst := m.active
	m.active = nil
	m.mx.Unlock()
	if inst == nil {
		return nil, gomel.NewConfigError("no active session")
	}

	inst.stopCreator()
	m.handoff(ctx, inst)

	var result *multierror.Error
	if err := inst.stop(); err != nil {
		result = multierror.Append(result, err)
	}
	carry := &Carryover{Session: inst.session.ID, Pending: m.fin.Drop()}
	last, err := m.store.LastJustification()
	if err != nil {
		result = multierror.Append(result, err)
	}
	carry.Last = last
	metrics.SessionEnded()
	inst.log.Info().
		Uint64(logging.Height, m.fin.Height()).
		Int(logging.Size, len(carry.Pending)).
		Msg(logging.SessionEnded)
	return carry, result.ErrorOrNil()
}

// handoff waits until the finalizer has nothing queued, the session failed, or the handoff time is over.
func (m *Manager) handoff(ctx context.Context, inst *instance) {
	ctx, cancel := context.WithTimeout(ctx, m.conf.HandoffTimeout)
	defer cancel()
	ticker := time.NewTicker(m.conf.JustificationInterval)
	defer ticker.Stop()
	for len(m.fin.Pending()) > 0 {
		select {
		case <-ticker.C:
		case <-inst.done:
			return
		case <-ctx.Done():
			return
		}
	}
}
