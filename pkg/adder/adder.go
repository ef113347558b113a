// Package adder implements the buffer zone in front of the dag: preunits wait there
// until all their parents are present, and are then added to the dag by a single goroutine.
package adder

import (
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Cardinal-Cryptography/aleph-node/pkg/config"
	"github.com/Cardinal-Cryptography/aleph-node/pkg/gomel"
	"github.com/Cardinal-Cryptography/aleph-node/pkg/logging"
	"github.com/Cardinal-Cryptography/aleph-node/pkg/metrics"
)

// adder is a buffer zone where preunits wait to be added to dag. A preunit with
// missing parents is waiting until all the parents are available. Then it's considered
// 'ready' and put on the ready queue, from where it's picked by the inserting goroutine.
// Adding a unit consists of:
// a) DecodeParents
// b) BuildUnit
// c) Check
// d) Insert
type adder struct {
	dag         gomel.Dag
	keys        []gomel.PublicKey
	conf        *config.Config
	syncer      gomel.Syncer
	waiting     map[gomel.Hash]*waitingPreunit
	waitingByID map[uint64][]*waitingPreunit
	missing     map[gomel.Hash]*missingPreunit
	unresolved  map[uint16]int
	ready       []*waitingPreunit
	signal      chan struct{}
	quit        chan struct{}
	active      bool
	mx          sync.Mutex
	wg          sync.WaitGroup
	log         zerolog.Logger
}

// New constructs a new adder feeding the given dag. The syncer is used to fetch missing parents, it may be nil.
func New(dag gomel.Dag, conf *config.Config, syncer gomel.Syncer, log zerolog.Logger) gomel.Adder {
	ad := &adder{
		dag:         dag,
		keys:        conf.PublicKeys,
		conf:        conf,
		syncer:      syncer,
		waiting:     make(map[gomel.Hash]*waitingPreunit),
		waitingByID: make(map[uint64][]*waitingPreunit),
		missing:     make(map[gomel.Hash]*missingPreunit),
		unresolved:  make(map[uint16]int),
		signal:      make(chan struct{}, 1),
		quit:        make(chan struct{}),
		active:      true,
		log:         log.With().Int(logging.Service, logging.AdderService).Logger(),
	}
	ad.wg.Add(1)
	go ad.insertLoop()
	if syncer != nil {
		ad.wg.Add(1)
		go ad.refetchLoop()
	}
	ad.log.Info().Msg(logging.ServiceStarted)
	return ad
}

// Close stops the adder. All buffered preunits are dropped.
func (ad *adder) Close() {
	ad.mx.Lock()
	if !ad.active {
		ad.mx.Unlock()
		return
	}
	ad.active = false
	close(ad.quit)
	ad.mx.Unlock()
	ad.wg.Wait()

	ad.mx.Lock()
	defer ad.mx.Unlock()
	for _, wp := range ad.waiting {
		if wp.done != nil {
			wp.err = gomel.NewDataError("adder closed")
			close(wp.done)
		}
	}
	dropped := len(ad.waiting)
	ad.waiting = make(map[gomel.Hash]*waitingPreunit)
	ad.waitingByID = make(map[uint64][]*waitingPreunit)
	ad.missing = make(map[gomel.Hash]*missingPreunit)
	ad.unresolved = make(map[uint16]int)
	ad.ready = nil
	metrics.SetBuffered(0)
	ad.log.Info().Int(logging.Size, dropped).Msg(logging.ServiceStopped)
}

// AddOwnUnit adds a unit created by this process and waits until it is in the dag.
func (ad *adder) AddOwnUnit(pu gomel.Preunit) (gomel.Unit, error) {
	ad.mx.Lock()
	if !ad.active {
		ad.mx.Unlock()
		return nil, gomel.NewDataError("adder closed")
	}
	wp, err := ad.addToWaiting(pu, ad.conf.Pid)
	if err != nil {
		ad.mx.Unlock()
		return nil, err
	}
	wp.done = make(chan struct{})
	if wp.missingParents > 0 {
		// own units are built on top of units already in the dag
		wp.failed = true
		wp.err = gomel.NewUnknownParents(wp.missingParents)
		ad.remove(wp)
	} else if ready(wp) {
		ad.pushReady(wp)
	}
	done := wp.done
	ad.mx.Unlock()

	<-done
	return wp.unit, wp.err
}

// AddPreunits checks basic correctness of a slice of preunits and then adds correct ones to the buffer zone.
// Returned slice can have the following members:
//
//	DataError - if creator, session or signature are wrong
//	DuplicateUnit, DuplicatePreunit - if such a unit is already in dag/waiting
//	UnknownParents - in that case the preunit is normally added and processed, error is returned only for log purpose.
func (ad *adder) AddPreunits(source uint16, preunits ...gomel.Preunit) []error {
	ad.log.Debug().Int(logging.Size, len(preunits)).Uint16(logging.PID, source).Msg(logging.AddUnits)
	var errors []error
	getErrors := func() []error {
		if errors == nil {
			errors = make([]error, len(preunits))
		}
		return errors
	}
	hashes := make([]*gomel.Hash, len(preunits))
	for i, pu := range preunits {
		hashes[i] = pu.Hash()
	}
	alreadyInDag := ad.dag.GetUnits(hashes)

	failed := make([]bool, len(preunits))
	for i, pu := range preunits {
		if alreadyInDag[i] != nil {
			getErrors()[i] = gomel.NewDuplicateUnit(alreadyInDag[i])
			failed[i] = true
			metrics.UnitDuplicate()
			continue
		}
		if err := ad.checkCorrectness(pu); err != nil {
			ad.log.Warn().Int(logging.Round, pu.Round()).Uint16(logging.Creator, pu.Creator()).Uint16(logging.PID, source).Msg(err.Error())
			getErrors()[i] = err
			failed[i] = true
			metrics.UnitInvalid()
		}
	}

	ad.mx.Lock()
	defer ad.mx.Unlock()
	if !ad.active {
		return nil
	}
	for i, pu := range preunits {
		if failed[i] {
			continue
		}
		wp, err := ad.addToWaiting(pu, source)
		if err != nil {
			getErrors()[i] = err
			if gomel.ResultOf(err) == gomel.Invalid {
				ad.log.Warn().Int(logging.Round, pu.Round()).Uint16(logging.Creator, pu.Creator()).Uint16(logging.PID, source).Msg(err.Error())
				metrics.UnitInvalid()
			} else {
				metrics.UnitDuplicate()
			}
			continue
		}
		if wp.missingParents > 0 {
			ad.log.Debug().Int(logging.Round, pu.Round()).Uint16(logging.Creator, pu.Creator()).Uint16(logging.PID, source).Int(logging.Size, wp.missingParents).Msg(logging.UnknownParents)
			getErrors()[i] = gomel.NewUnknownParents(wp.missingParents)
			metrics.UnitBuffered()
			ad.fetchMissing(wp)
			continue
		}
		if ready(wp) {
			ad.pushReady(wp)
		}
	}
	metrics.SetBuffered(len(ad.waiting))
	return errors
}

// checkCorrectness checks very basic correctness of the given preunit: creator, session and signature.
func (ad *adder) checkCorrectness(pu gomel.Preunit) error {
	if pu.Creator() >= ad.dag.NProc() {
		return gomel.NewDataError("invalid creator")
	}
	if pu.Session() != ad.dag.Session() {
		return gomel.NewDataError("invalid session - expected " + strconv.Itoa(int(ad.dag.Session())) +
			", but received " + strconv.Itoa(int(pu.Session())) + " instead")
	}
	if !ad.keys[pu.Creator()].Verify(pu) {
		return gomel.NewDataError("invalid signature")
	}
	return nil
}

// pushReady puts a ready preunit on the queue of the inserting goroutine.
// This method must be called under mutex!
func (ad *adder) pushReady(wp *waitingPreunit) {
	ad.resolve(wp)
	ad.ready = append(ad.ready, wp)
	select {
	case ad.signal <- struct{}{}:
	default:
	}
}

// insertLoop is the only place where units are inserted into the dag.
func (ad *adder) insertLoop() {
	defer ad.wg.Done()
	for {
		select {
		case <-ad.signal:
		case <-ad.quit:
			return
		}
		for {
			ad.mx.Lock()
			if len(ad.ready) == 0 || !ad.active {
				ad.mx.Unlock()
				break
			}
			wp := ad.ready[0]
			ad.ready[0] = nil
			ad.ready = ad.ready[1:]
			ad.mx.Unlock()

			ad.handleReady(wp)

			ad.mx.Lock()
			if ad.active {
				ad.remove(wp)
				metrics.SetBuffered(len(ad.waiting))
			}
			ad.mx.Unlock()
		}
	}
}

// handleReady takes a waitingPreunit that is ready and adds it to the dag.
func (ad *adder) handleReady(wp *waitingPreunit) {
	log := ad.log.With().Int(logging.Round, wp.pu.Round()).Uint16(logging.Creator, wp.pu.Creator()).Uint16(logging.PID, wp.source).Logger()

	// 1. Decode Parents
	parents, err := ad.dag.DecodeParents(wp.pu)
	if err != nil {
		log.Error().Str(logging.Where, "DecodeParents").Msg(err.Error())
		wp.fail(err)
		return
	}

	// 2. Build Unit
	freeUnit := ad.dag.BuildUnit(wp.pu, parents)

	// 3. Check
	if err = ad.dag.Check(freeUnit); err != nil {
		log.Error().Str(logging.Where, "Check").Msg(err.Error())
		wp.fail(err)
		metrics.UnitInvalid()
		return
	}

	// 4. Insert
	if fork := ad.dag.Insert(freeUnit); fork != nil {
		log.Warn().Str(logging.Hash, fork.HashA.Short()).Msg(logging.ForkDetected)
		metrics.ForkRecorded()
	}
	wp.unit = freeUnit
	metrics.UnitAdded()
	metrics.SetMaxRound(ad.dag.MaxRound())
	log.Debug().Msg(logging.UnitAdded)
}

func (wp *waitingPreunit) fail(err error) {
	wp.failed = true
	wp.err = err
}

// refetchLoop periodically asks other processes for units that are still missing.
func (ad *adder) refetchLoop() {
	defer ad.wg.Done()
	ticker := time.NewTicker(ad.conf.FetchInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			ad.refetch()
		case <-ad.quit:
			return
		}
	}
}
