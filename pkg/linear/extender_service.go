package linear

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/Cardinal-Cryptography/aleph-node/pkg/config"
	"github.com/Cardinal-Cryptography/aleph-node/pkg/gomel"
	"github.com/Cardinal-Cryptography/aleph-node/pkg/logging"
	"github.com/Cardinal-Cryptography/aleph-node/pkg/metrics"
)

// ExtenderService is a component working on a dag that extends the partial order of units defined by the dag to a linear order.
// ExtenderService should be notified, by the means of its Notify method, when it should try to perform its task.
// If successful, ExtenderService collects all the units belonging to the newest timing round, and sends them as a batch to the output channel.
type ExtenderService struct {
	extender     *Extender
	session      gomel.SessionID
	pid          uint16
	output       chan<- gomel.Batch
	trigger      chan struct{}
	timingRounds chan gomel.TimingRound
	quit         chan struct{}
	index        uint64
	mx           sync.RWMutex
	closed       bool
	wg           sync.WaitGroup
	log          zerolog.Logger
}

// NewExtenderService constructs an extender working on the given dag and sending batches to the given output.
func NewExtenderService(dag gomel.Dag, rs gomel.RandomSource, conf *config.Config, output chan<- gomel.Batch, log zerolog.Logger) *ExtenderService {
	logger := log.With().Int(logging.Service, logging.ExtenderService).Logger()
	ext := &ExtenderService{
		extender:     NewExtender(dag, rs, conf, logger),
		session:      dag.Session(),
		pid:          conf.Pid,
		output:       output,
		trigger:      make(chan struct{}, 1),
		timingRounds: make(chan gomel.TimingRound, 10),
		quit:         make(chan struct{}),
		log:          logger,
	}

	ext.wg.Add(2)
	go ext.timingUnitDecider()
	go ext.roundSorter()
	ext.log.Info().Msg(logging.ServiceStarted)
	return ext
}

// Close stops the extender. Batches not yet taken from the output are dropped.
func (ext *ExtenderService) Close() {
	ext.mx.Lock()
	if ext.closed {
		ext.mx.Unlock()
		return
	}
	ext.closed = true
	close(ext.trigger)
	close(ext.quit)
	ext.mx.Unlock()
	ext.wg.Wait()
	ext.log.Info().Msg(logging.ServiceStopped)
}

// Notify ExtenderService to attempt choosing next timing units.
func (ext *ExtenderService) Notify() {
	ext.mx.RLock()
	defer ext.mx.RUnlock()
	if ext.closed {
		return
	}
	select {
	case ext.trigger <- struct{}{}:
	default:
	}
}

// timingUnitDecider tries to pick the next timing unit after receiving notification on trigger channel.
// For each picked timing unit, it sends a timing round to the timingRounds channel.
func (ext *ExtenderService) timingUnitDecider() {
	defer ext.wg.Done()
	defer close(ext.timingRounds)
	for range ext.trigger {
		for round := ext.extender.NextRound(); round != nil; round = ext.extender.NextRound() {
			select {
			case ext.timingRounds <- round:
			case <-ext.quit:
				return
			}
		}
	}
}

// roundSorter takes newly picked timing rounds from the timingRounds channel,
// establishes the linear order on their units and sends the resulting batches to output.
func (ext *ExtenderService) roundSorter() {
	defer ext.wg.Done()
	for round := range ext.timingRounds {
		batch := ext.makeBatch(round)
		select {
		case ext.output <- batch:
		case <-ext.quit:
			return
		}
		metrics.BatchEmitted(batch.Round)
		for _, u := range batch.Units {
			ext.log.Debug().
				Uint16(logging.Creator, u.Creator()).
				Int(logging.Round, u.Round()).
				Msg(logging.UnitOrdered)
			if u.Creator() == ext.pid {
				ext.log.Info().Int(logging.Round, u.Round()).Msg(logging.OwnUnitOrdered)
			}
		}
		ext.log.Info().
			Uint64(logging.Index, batch.Index).
			Int(logging.Round, batch.Round).
			Int(logging.Size, len(batch.Blocks)).
			Msg(logging.LinearOrderExtended)
	}
}

func (ext *ExtenderService) makeBatch(round gomel.TimingRound) gomel.Batch {
	units := round.OrderedUnits()
	batch := gomel.Batch{
		Session: ext.session,
		Index:   ext.index,
		Round:   round.Head().Round(),
		Head:    *round.Head().Hash(),
		Blocks:  Blocks(units),
		Units:   units,
	}
	ext.index++
	return batch
}
