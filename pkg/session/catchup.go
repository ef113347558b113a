package session

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"

	"github.com/Cardinal-Cryptography/aleph-node/pkg/aggregator"
	"github.com/Cardinal-Cryptography/aleph-node/pkg/finalizer"
	"github.com/Cardinal-Cryptography/aleph-node/pkg/gomel"
	"github.com/Cardinal-Cryptography/aleph-node/pkg/logging"
	"github.com/Cardinal-Cryptography/aleph-node/pkg/metrics"
)

const incomingJustifications = 32

var errLagging = errors.New("finalized height did not advance")

// requester asks committee members for justifications.
type requester interface {
	RequestJustifications(pid uint16, from uint64)
}

// catchUp brings a member that lags behind up to the finalized height of the committee.
// Justifications received from peers are verified and applied in order of height, skipping the ordering entirely.
type catchUp struct {
	session  *gomel.Session
	pid      uint16
	fin      *finalizer.Finalizer
	sessions *SessionMap
	agg      *aggregator.Aggregator
	net      requester
	round    func() int
	interval time.Duration
	attempts int
	incoming chan []*gomel.Justification
	next     uint16
	log      zerolog.Logger
}

func newCatchUp(session *gomel.Session, pid uint16, fin *finalizer.Finalizer, sessions *SessionMap, agg *aggregator.Aggregator,
	net requester, round func() int, interval time.Duration, attempts int, log zerolog.Logger) *catchUp {
	return &catchUp{
		session:  session,
		pid:      pid,
		fin:      fin,
		sessions: sessions,
		agg:      agg,
		net:      net,
		round:    round,
		interval: interval,
		attempts: attempts,
		incoming: make(chan []*gomel.Justification, incomingJustifications),
		next:     pid,
		log:      log.With().Int(logging.Service, logging.CatchUpService).Logger(),
	}
}

// offer queues justifications to be applied. Justifications at or below the finalized height are ignored,
// and so is everything when the queue is full.
func (c *catchUp) offer(js []*gomel.Justification) {
	height := c.fin.Height()
	fresh := make([]*gomel.Justification, 0, len(js))
	for _, j := range js {
		if j != nil && j.Height() > height {
			fresh = append(fresh, j)
		}
	}
	if len(fresh) == 0 {
		return
	}
	select {
	case c.incoming <- fresh:
	default:
		c.log.Debug().Int(logging.Size, len(fresh)).Msg("justifications dropped, queue full")
	}
}

// apply finalizes the blocks of verified justifications until the context is done.
func (c *catchUp) apply(ctx context.Context) error {
	for {
		select {
		case js := <-c.incoming:
			if err := c.applyAll(ctx, js); err != nil {
				return err
			}
		case <-ctx.Done():
			return nil
		}
	}
}

func (c *catchUp) applyAll(ctx context.Context, js []*gomel.Justification) error {
	finalizer.SortByHeight(js)
	for _, j := range js {
		if j.Height() <= c.fin.Height() {
			continue
		}
		if !c.sessions.Verify(j) {
			c.log.Warn().Uint32(logging.Session, uint32(j.Session)).Uint64(logging.Height, j.Height()).Msg(logging.JustificationRejected)
			continue
		}
		if j.Session == c.session.ID {
			c.agg.Offer(j)
		}
		if err := c.fin.FinalizeJustified(ctx, j); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if gomel.IsFatal(err) {
				return err
			}
			c.log.Error().Str(logging.Where, "catchUp.FinalizeJustified").Uint64(logging.Height, j.Height()).Msg(err.Error())
			return nil
		}
		metrics.CaughtUp()
		c.agg.Prune(c.fin.Height())
	}
	return nil
}

// watch asks peers for justifications at the start and whenever the finalized height stalls
// while there is something to finalize or the dag keeps growing.
func (c *catchUp) watch(ctx context.Context) error {
	if c.session.NProc() < 2 {
		return nil
	}
	height, round := c.fin.Height(), c.round()
	c.request(ctx)
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return nil
		}
		h, r := c.fin.Height(), c.round()
		lagging := h == height && (r > round || len(c.fin.Pending()) > 0)
		height, round = h, r
		if lagging {
			c.request(ctx)
			height, round = c.fin.Height(), c.round()
		}
	}
}

// request asks consecutive peers for justifications above the finalized height, with exponential backoff,
// until the height advances or the attempts run out.
func (c *catchUp) request(ctx context.Context) {
	from := c.fin.Height()
	backoff, err := retry.NewExponential(c.interval)
	if err != nil {
		c.log.Error().Str(logging.Where, "catchUp.backoff").Msg(err.Error())
		return
	}
	retries := uint64(0)
	if c.attempts > 1 {
		retries = uint64(c.attempts - 1)
	}
	c.log.Debug().Uint64(logging.Height, from).Msg(logging.CatchUpStarted)
	err = retry.Do(ctx, retry.WithMaxRetries(retries, backoff), func(context.Context) error {
		if c.fin.Height() > from {
			return nil
		}
		c.net.RequestJustifications(c.nextPeer(), from+1)
		return retry.RetryableError(errLagging)
	})
	if err == nil {
		c.log.Info().Uint64(logging.Height, c.fin.Height()).Msg(logging.CatchUpFinished)
	}
}

func (c *catchUp) nextPeer() uint16 {
	c.next = (c.next + 1) % c.session.NProc()
	if c.next == c.pid {
		c.next = (c.next + 1) % c.session.NProc()
	}
	return c.next
}
