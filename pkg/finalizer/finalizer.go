// Package finalizer turns ordered batches into finalized blocks.
//
// Every batch is persisted before anything else happens to it. Its blocks are then finalized one by one:
// the finalizer waits until the block is imported, gathers a justification and delivers the block
// to the finalization sink. A block waiting for import holds back only the blocks queued after it,
// never the receiving of new batches.
package finalizer

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/ef-ds/deque"
	"github.com/rs/zerolog"
	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"

	"github.com/Cardinal-Cryptography/aleph-node/pkg/backup"
	"github.com/Cardinal-Cryptography/aleph-node/pkg/gomel"
	"github.com/Cardinal-Cryptography/aleph-node/pkg/logging"
	"github.com/Cardinal-Cryptography/aleph-node/pkg/metrics"
)

// Justifier produces the justification of a block ordered at the given round.
type Justifier interface {
	Justify(ctx context.Context, round int, block gomel.BlockRef) (*gomel.Justification, error)
}

// Entry is a block ordered by the extender and not finalized yet.
type Entry struct {
	Round int
	Block gomel.BlockRef
}

// Finalizer owns the finalized height. It outlives sessions.
type Finalizer struct {
	backend gomel.BlockBackend
	sink    gomel.FinalizationSink
	store   *backup.Store
	height  atomic.Uint64
	mx      sync.Mutex
	queueMx sync.Mutex
	queue   deque.Deque
	signal  chan struct{}
	log     zerolog.Logger
}

// New constructs a finalizer. Justifications persisted but not delivered before a restart are delivered first.
func New(backend gomel.BlockBackend, sink gomel.FinalizationSink, store *backup.Store, log zerolog.Logger) (*Finalizer, error) {
	f := &Finalizer{
		backend: backend,
		sink:    sink,
		store:   store,
		signal:  make(chan struct{}, 1),
		log:     log.With().Int(logging.Service, logging.FinalizerService).Logger(),
	}
	if err := f.recover(); err != nil {
		return nil, err
	}
	return f, nil
}

// recover reconciles the backup with the sink: justifications above the acknowledged height
// are delivered, unless the sink reports it already has them.
func (f *Finalizer) recover() error {
	acked, err := f.store.Acked()
	if err != nil {
		return err
	}
	f.height.Store(acked)
	js, err := f.store.Justifications(acked+1, int(^uint(0)>>1))
	if err != nil {
		return err
	}
	reporter, _ := f.sink.(gomel.FinalizedReporter)
	for _, j := range js {
		if reporter != nil && reporter.LastFinalized() >= j.Height() {
			if err := f.store.Ack(j.Height()); err != nil {
				return err
			}
			f.height.Store(j.Height())
			continue
		}
		if err := f.deliver(j); err != nil {
			return err
		}
	}
	f.log.Info().Uint64(logging.Height, f.height.Load()).Int(logging.Size, len(js)).Msg(logging.BackupLoaded)
	return nil
}

// Height returns the height of the last finalized block.
func (f *Finalizer) Height() uint64 {
	return f.height.Load()
}

// Finalize persists the justification and delivers its block to the sink.
// Justifications at or below the finalized height are ignored.
func (f *Finalizer) Finalize(j *gomel.Justification) error {
	f.mx.Lock()
	defer f.mx.Unlock()
	if j.Height() <= f.height.Load() {
		return nil
	}
	if err := f.store.SaveJustification(j); err != nil {
		return err
	}
	return f.deliver(j)
}

// FinalizeJustified waits until the justified block is imported and finalizes it.
func (f *Finalizer) FinalizeJustified(ctx context.Context, j *gomel.Justification) error {
	if j.Height() <= f.height.Load() {
		return nil
	}
	if err := f.awaitImport(ctx, j.Block); err != nil {
		return err
	}
	return f.Finalize(j)
}

func (f *Finalizer) deliver(j *gomel.Justification) error {
	if err := f.sink.OnFinalized(j.Block.Hash, j); err != nil {
		return err
	}
	if err := f.store.Ack(j.Height()); err != nil {
		return err
	}
	f.height.Store(j.Height())
	metrics.Finalized(j.Height())
	f.log.Info().Uint64(logging.Height, j.Height()).Uint32(logging.Session, uint32(j.Session)).Msg(logging.BlockFinalized)
	return nil
}

func (f *Finalizer) awaitImport(ctx context.Context, block gomel.BlockRef) error {
	if f.backend.IsImported(block.Hash) {
		return nil
	}
	f.log.Info().Uint64(logging.Height, block.Number).Msg(logging.BlockNotImported)
	return f.backend.ImportBlockAndWait(ctx, block.Hash)
}

// Push queues entries for finalization.
func (f *Finalizer) Push(entries ...Entry) {
	f.queueMx.Lock()
	for _, e := range entries {
		f.queue.PushBack(e)
	}
	f.queueMx.Unlock()
	select {
	case f.signal <- struct{}{}:
	default:
	}
}

// Pending returns the queued entries that are not finalized yet, in order.
func (f *Finalizer) Pending() []Entry {
	f.queueMx.Lock()
	defer f.queueMx.Unlock()
	height := f.height.Load()
	var result []Entry
	for i := 0; i < f.queue.Len(); i++ {
		e, _ := f.queue.PopFront()
		f.queue.PushBack(e)
		if entry := e.(Entry); entry.Block.Number > height {
			result = append(result, entry)
		}
	}
	return result
}

// Drop clears the queue and returns the entries that are not finalized yet.
func (f *Finalizer) Drop() []Entry {
	pending := f.Pending()
	f.queueMx.Lock()
	defer f.queueMx.Unlock()
	f.queue = deque.Deque{}
	return pending
}

// Run persists incoming batches and finalizes their blocks until the context is done or the batches channel is closed.
// Errors returned are either durability errors or errors of the sink.
func (f *Finalizer) Run(ctx context.Context, batches <-chan gomel.Batch, justifier Justifier) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for {
			select {
			case batch, ok := <-batches:
				if !ok {
					return nil
				}
				if err := f.OnBatch(batch); err != nil {
					return err
				}
			case <-ctx.Done():
				return nil
			}
		}
	})
	g.Go(func() error {
		for {
			entry, ok := f.front()
			if !ok {
				select {
				case <-f.signal:
					continue
				case <-ctx.Done():
					return nil
				}
			}
			if err := f.finalizeEntry(ctx, entry, justifier); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
			f.popFront()
		}
	})
	return g.Wait()
}

// OnBatch persists the batch and queues its blocks.
func (f *Finalizer) OnBatch(batch gomel.Batch) error {
	if err := f.store.SaveBatch(&batch); err != nil {
		return err
	}
	entries := make([]Entry, len(batch.Blocks))
	for i, block := range batch.Blocks {
		entries[i] = Entry{Round: batch.Round, Block: block}
	}
	f.Push(entries...)
	return nil
}

func (f *Finalizer) finalizeEntry(ctx context.Context, entry Entry, justifier Justifier) error {
	if entry.Block.Number <= f.height.Load() {
		return nil
	}
	if err := f.awaitImport(ctx, entry.Block); err != nil {
		var de *gomel.DataError
		if errors.As(err, &de) {
			// the backend will never import it
			f.log.Warn().Uint64(logging.Height, entry.Block.Number).Str(logging.Hash, entry.Block.Hash.Short()).Msg(err.Error())
			return nil
		}
		return err
	}
	j, err := justifier.Justify(ctx, entry.Round, entry.Block)
	if err != nil {
		if entry.Block.Number <= f.height.Load() {
			// finalized meanwhile by a justification from another member
			return nil
		}
		return err
	}
	return f.Finalize(j)
}

func (f *Finalizer) front() (Entry, bool) {
	f.queueMx.Lock()
	defer f.queueMx.Unlock()
	e, ok := f.queue.Front()
	if !ok {
		return Entry{}, false
	}
	return e.(Entry), true
}

func (f *Finalizer) popFront() {
	f.queueMx.Lock()
	defer f.queueMx.Unlock()
	f.queue.PopFront()
}

// SortByHeight sorts justifications by the height of the justified blocks.
func SortByHeight(js []*gomel.Justification) {
	sort.Slice(js, func(i, k int) bool { return js[i].Height() < js[k].Height() })
}
