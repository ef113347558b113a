package session

import (
	"context"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/Cardinal-Cryptography/aleph-node/pkg/adder"
	"github.com/Cardinal-Cryptography/aleph-node/pkg/aggregator"
	"github.com/Cardinal-Cryptography/aleph-node/pkg/backup"
	"github.com/Cardinal-Cryptography/aleph-node/pkg/config"
	"github.com/Cardinal-Cryptography/aleph-node/pkg/creator"
	"github.com/Cardinal-Cryptography/aleph-node/pkg/dag"
	"github.com/Cardinal-Cryptography/aleph-node/pkg/finalizer"
	"github.com/Cardinal-Cryptography/aleph-node/pkg/gomel"
	"github.com/Cardinal-Cryptography/aleph-node/pkg/linear"
	"github.com/Cardinal-Cryptography/aleph-node/pkg/logging"
	"github.com/Cardinal-Cryptography/aleph-node/pkg/network"
	"github.com/Cardinal-Cryptography/aleph-node/pkg/random"
	"github.com/Cardinal-Cryptography/aleph-node/pkg/sync"
)

// instance is the consensus of a single session. It implements gomel.Orderer for the sync service.
type instance struct {
	session  *gomel.Session
	conf     *config.Config
	store    *backup.Store
	fin      *finalizer.Finalizer
	dag      gomel.Dag
	adder    gomel.Adder
	sync     *sync.Service
	creator  *creator.Service
	extender *linear.ExtenderService
	agg      *aggregator.Aggregator
	catchUp  *catchUp
	batches  chan gomel.Batch
	failures chan error

	cancel      context.CancelFunc
	stopCreator context.CancelFunc
	done        chan struct{}
	err         error
	log         zerolog.Logger
}

func newInstance(session *gomel.Session, conf config.Config, backend gomel.BlockBackend, store *backup.Store,
	fin *finalizer.Finalizer, sessions *SessionMap, netserv network.Server, log zerolog.Logger) *instance {
	conf.NProc = session.NProc()
	conf.PublicKeys = session.Keys
	if len(session.Addresses) > 0 {
		conf.Addresses = session.Addresses
	}
	inst := &instance{
		session:  session,
		conf:     &conf,
		store:    store,
		fin:      fin,
		batches:  make(chan gomel.Batch, conf.BatchBuffer),
		failures: make(chan error, 1),
		done:     make(chan struct{}),
		log:      log,
	}
	inst.dag = dag.New(session, conf.Checks...)
	inst.sync = sync.NewService(session, inst, netserv, inst.conf, log)
	inst.adder = adder.New(inst.dag, inst.conf, inst.sync, log)
	inst.agg = aggregator.New(session, inst.sync, inst.conf, log)
	inst.extender = linear.NewExtenderService(inst.dag, random.NewKeyed(session.ID, session.Seed()), inst.conf, inst.batches, log)
	inst.creator = creator.NewService(inst.dag, inst.adder, backend, store.SaveUnit, inst.sync.Multicast, inst.conf, log)
	inst.catchUp = newCatchUp(session, conf.Pid, fin, sessions, inst.agg, inst.sync, inst.dag.MaxRound,
		conf.CatchUpInterval, conf.MaxJustificationAttempts, log)

	inst.dag.AddCheck(inst.persist)
	inst.dag.AfterInsert(inst.creator.Notify)
	inst.dag.AfterInsert(func(gomel.Unit) { inst.extender.Notify() })
	inst.dag.OnFork(inst.recordFork)
	return inst
}

// restore adds the units of this session saved before a restart. Own units are added before the creator
// starts, so that it never creates a second unit on a round it already produced a unit on.
func (inst *instance) restore() error {
	pus, err := inst.store.LoadUnits(inst.session.ID)
	if err != nil || len(pus) == 0 {
		return err
	}
	lastOwn := -1
	for i, pu := range pus {
		if pu.Creator() == inst.conf.Pid {
			lastOwn = i
		}
	}
	if lastOwn < 0 {
		logging.AddingErrors(inst.adder.AddPreunits(inst.conf.Pid, pus...), len(pus), inst.log)
	} else {
		if lastOwn > 0 {
			logging.AddingErrors(inst.adder.AddPreunits(inst.conf.Pid, pus[:lastOwn]...), lastOwn, inst.log)
		}
		if _, err := inst.adder.AddOwnUnit(pus[lastOwn]); err != nil {
			return gomel.NewDataError("restoring own unit " + gomel.Nickname(pus[lastOwn]) + ": " + err.Error())
		}
		if rest := pus[lastOwn+1:]; len(rest) > 0 {
			logging.AddingErrors(inst.adder.AddPreunits(inst.conf.Pid, rest...), len(rest), inst.log)
		}
	}
	inst.log.Info().Int(logging.Size, len(pus)).Int(logging.Round, inst.dag.MaxRound()).Msg(logging.BackupLoaded)
	return nil
}

// start runs the activities of the session. They all stop together, when the context is done or when one of them fails.
func (inst *instance) start(parent context.Context) error {
	if err := inst.sync.Start(); err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(parent)
	inst.cancel = cancel
	g, ctx := errgroup.WithContext(ctx)
	creatorCtx, stopCreator := context.WithCancel(ctx)
	inst.stopCreator = stopCreator

	g.Go(func() error { return inst.creator.Run(creatorCtx) })
	g.Go(func() error { return inst.fin.Run(ctx, inst.batches, inst.agg) })
	g.Go(func() error { return inst.catchUp.apply(ctx) })
	g.Go(func() error { return inst.catchUp.watch(ctx) })
	g.Go(func() error {
		select {
		case err := <-inst.failures:
			return err
		case err := <-inst.sync.Failures():
			return err
		case <-ctx.Done():
			return nil
		}
	})
	go func() {
		inst.err = g.Wait()
		stopCreator()
		if inst.err != nil {
			inst.log.Error().Str(logging.Where, "session").Msg(inst.err.Error())
		}
		close(inst.done)
	}()
	return nil
}

// stop tears all the activities down and waits for them.
func (inst *instance) stop() error {
	if inst.cancel != nil {
		inst.cancel()
		<-inst.done
	}
	inst.sync.Stop()
	inst.adder.Close()
	inst.extender.Close()
	var result *multierror.Error
	if inst.err != nil {
		result = multierror.Append(result, inst.err)
	}
	select {
	case err := <-inst.failures:
		result = multierror.Append(result, err)
	default:
	}
	return result.ErrorOrNil()
}

// persist saves units of other processes as the last check before they are inserted, so that every unit
// served to peers survives a restart. Own units are saved by the creator before they reach the adder.
func (inst *instance) persist(u gomel.Unit, _ gomel.Dag) error {
	if u.Creator() == inst.conf.Pid {
		return nil
	}
	if err := inst.store.SaveUnit(u); err != nil {
		inst.fail(err)
		return err
	}
	return nil
}

func (inst *instance) recordFork(ev *gomel.ForkEvidence) {
	if err := inst.store.SaveFork(ev); err != nil {
		inst.fail(err)
	}
}

func (inst *instance) fail(err error) {
	select {
	case inst.failures <- err:
	default:
	}
}

func (inst *instance) AddPreunits(source uint16, pus ...gomel.Preunit) []error {
	return inst.adder.AddPreunits(source, pus...)
}

func (inst *instance) UnitsByHash(hashes ...*gomel.Hash) []gomel.Unit {
	return inst.dag.GetUnits(hashes)
}

func (inst *instance) UnitsAbove(round int) []gomel.Unit {
	if round < 0 {
		round = 0
	}
	var result []gomel.Unit
	for r := round; r <= inst.dag.MaxRound(); r++ {
		inst.dag.UnitsOnRound(r).Iterate(func(units []gomel.Unit) bool {
			result = append(result, units...)
			return true
		})
	}
	return result
}

func (inst *instance) Justifications(from uint64, limit int) []*gomel.Justification {
	js, err := inst.store.Justifications(from, limit)
	if err != nil {
		inst.log.Error().Str(logging.Where, "session.Justifications").Msg(err.Error())
		return nil
	}
	return js
}

func (inst *instance) HandleJustifications(_ uint16, js []*gomel.Justification) {
	inst.catchUp.offer(js)
}

// HandleShare passes the share to the aggregator. A member still gathering shares of a block finalized here
// is sent the justification.
func (inst *instance) HandleShare(source uint16, share *gomel.JustificationShare) {
	height := share.Block.Number
	if height > inst.fin.Height() {
		inst.agg.HandleShare(source, share)
		return
	}
	js, err := inst.store.Justifications(height, 1)
	if err != nil || len(js) == 0 || js[0].Height() != height {
		return
	}
	inst.sync.SendJustifications(source, js)
}
