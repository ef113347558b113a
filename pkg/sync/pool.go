package sync

import (
	"sync"

	"go.uber.org/atomic"
)

// listenerPool is a pool of workers that repeat the same work until stopped.
// The work is expected to return after a bounded time, e.g. a Listen with a timeout.
type listenerPool struct {
	size int
	work func()
	wg   sync.WaitGroup
	quit atomic.Bool
}

func newListenerPool(size int, work func()) *listenerPool {
	return &listenerPool{
		size: size,
		work: work,
	}
}

func (p *listenerPool) start() {
	p.wg.Add(p.size)
	for i := 0; i < p.size; i++ {
		go func() {
			defer p.wg.Done()
			for !p.quit.Load() {
				p.work()
			}
		}()
	}
}

func (p *listenerPool) stop() {
	p.quit.Store(true)
	p.wg.Wait()
}
