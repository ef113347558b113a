// Package aggregator gathers signatures of committee members over finalized blocks into justifications.
package aggregator

import (
	"context"
	"errors"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/rs/zerolog"

	"github.com/Cardinal-Cryptography/aleph-node/pkg/config"
	"github.com/Cardinal-Cryptography/aleph-node/pkg/gomel"
	"github.com/Cardinal-Cryptography/aleph-node/pkg/logging"
	"github.com/Cardinal-Cryptography/aleph-node/pkg/metrics"
)

const completedCacheSize = 1024

// ErrSuperseded is returned by Justify when the block got finalized by other means while its shares were gathered.
var ErrSuperseded = errors.New("block finalized without the gathered justification")

// Network is the part of the sync service used by the aggregator.
type Network interface {
	BroadcastShare(*gomel.JustificationShare)
	SendJustifications(uint16, []*gomel.Justification)
}

// gathering collects shares over a single digest.
type gathering struct {
	j          *gomel.Justification
	ready      chan struct{}
	started    time.Time
	superseded bool
}

func (g *gathering) result() (*gomel.Justification, error) {
	if g.superseded {
		return nil, ErrSuperseded
	}
	return g.j, nil
}

// Aggregator produces justifications of blocks: every committee member signs the block,
// broadcasts its share and waits for the shares of a quorum.
type Aggregator struct {
	session   *gomel.Session
	pid       uint16
	key       gomel.PrivateKey
	net       Network
	interval  time.Duration
	mx        sync.Mutex
	gathering map[string]*gathering
	completed *lru.Cache
	log       zerolog.Logger
}

// New constructs an aggregator for the given session.
func New(session *gomel.Session, net Network, conf *config.Config, log zerolog.Logger) *Aggregator {
	completed, _ := lru.New(completedCacheSize)
	return &Aggregator{
		session:   session,
		pid:       conf.Pid,
		key:       conf.PrivateKey,
		net:       net,
		interval:  conf.JustificationInterval,
		gathering: make(map[string]*gathering),
		completed: completed,
		log:       log.With().Int(logging.Service, logging.AggregatorService).Logger(),
	}
}

// Justify signs the block, broadcasts the share and waits until shares of a quorum are gathered.
// The share is rebroadcast every JustificationInterval.
func (ag *Aggregator) Justify(ctx context.Context, round int, block gomel.BlockRef) (*gomel.Justification, error) {
	share := &gomel.JustificationShare{Session: ag.session.ID, Round: round, Block: block}
	share.Share = gomel.SignatureShare{Pid: ag.pid, Signature: ag.key.SignBytes(share.Digest())}

	ag.mx.Lock()
	g := ag.get(share)
	ag.add(g, share.Share)
	ag.mx.Unlock()

	ticker := time.NewTicker(ag.interval)
	defer ticker.Stop()
	for {
		select {
		case <-g.ready:
			return g.result()
		default:
		}
		ag.net.BroadcastShare(share)
		select {
		case <-g.ready:
			return g.result()
		case <-ticker.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// HandleShare adds a share received from another committee member.
// A share for an already justified block is answered with the justification.
func (ag *Aggregator) HandleShare(source uint16, share *gomel.JustificationShare) {
	if share.Session != ag.session.ID || !ag.session.Contains(share.Share.Pid) ||
		!ag.session.Keys[share.Share.Pid].VerifyBytes(share.Digest(), share.Share.Signature) {
		ag.log.Warn().Uint16(logging.PID, source).Uint64(logging.Height, share.Block.Number).Msg(logging.JustificationRejected)
		return
	}
	if j, ok := ag.completed.Get(string(share.Digest())); ok {
		ag.net.SendJustifications(source, []*gomel.Justification{j.(*gomel.Justification)})
		return
	}
	ag.log.Debug().Uint16(logging.PID, share.Share.Pid).Uint64(logging.Height, share.Block.Number).Msg(logging.ShareReceived)
	ag.mx.Lock()
	defer ag.mx.Unlock()
	ag.add(ag.get(share), share.Share)
}

// Offer completes the gathering of the justified block with a justification obtained elsewhere.
// The justification must be verified by the caller.
func (ag *Aggregator) Offer(j *gomel.Justification) {
	key := string(j.Digest())
	ag.mx.Lock()
	defer ag.mx.Unlock()
	if g, ok := ag.gathering[key]; ok {
		g.j = j
		ag.complete(key, g)
		return
	}
	ag.completed.Add(key, j)
}

// Prune abandons the gatherings of blocks at or below the given height. Their Justify calls return ErrSuperseded.
func (ag *Aggregator) Prune(height uint64) {
	ag.mx.Lock()
	defer ag.mx.Unlock()
	for key, g := range ag.gathering {
		if g.j.Height() <= height {
			g.superseded = true
			close(g.ready)
			delete(ag.gathering, key)
		}
	}
}

// get returns the gathering for the digest of the share, creating it if needed. Must be called under mutex.
func (ag *Aggregator) get(share *gomel.JustificationShare) *gathering {
	key := string(share.Digest())
	g, ok := ag.gathering[key]
	if !ok {
		g = &gathering{
			j:       &gomel.Justification{Session: share.Session, Round: share.Round, Block: share.Block},
			ready:   make(chan struct{}),
			started: time.Now(),
		}
		if done, ok := ag.completed.Get(key); ok {
			g.j = done.(*gomel.Justification)
			close(g.ready)
			return g
		}
		ag.gathering[key] = g
	}
	return g
}

// add adds a verified share and completes the gathering once a quorum signed. Must be called under mutex.
func (ag *Aggregator) add(g *gathering, share gomel.SignatureShare) {
	select {
	case <-g.ready:
		return
	default:
	}
	if !g.j.AddShare(share) {
		return
	}
	if gomel.IsQuorum(ag.session.NProc(), uint16(len(g.j.Signatures))) {
		ag.complete(string(g.j.Digest()), g)
		metrics.JustificationGathered(time.Since(g.started).Seconds())
		ag.log.Info().Uint64(logging.Height, g.j.Height()).Int(logging.Size, len(g.j.Signatures)).Msg(logging.JustificationReady)
	}
}

func (ag *Aggregator) complete(key string, g *gathering) {
	select {
	case <-g.ready:
	default:
		close(g.ready)
	}
	delete(ag.gathering, key)
	ag.completed.Add(key, g.j)
}
