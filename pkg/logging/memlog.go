package logging

import (
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Cardinal-Cryptography/aleph-node/pkg/gomel"
)

type memLog struct {
	interval time.Duration
	quit     chan struct{}
	wg       sync.WaitGroup
	log      zerolog.Logger
}

// NewService returns a service that logs the memory taken by the process and the number of goroutines
// every n seconds. For n equal to 0 it logs nothing.
func NewService(n int, log zerolog.Logger) gomel.Service {
	return &memLog{
		interval: time.Duration(n) * time.Second,
		quit:     make(chan struct{}),
		log:      log.With().Int(Service, MemLogService).Logger(),
	}
}

func (s *memLog) Start() error {
	if s.interval <= 0 {
		return nil
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		var stats runtime.MemStats
		for {
			select {
			case <-s.quit:
				return
			case <-ticker.C:
				runtime.ReadMemStats(&stats)
				s.log.Info().
					Uint64(Memory, stats.Sys).
					Uint64(Size, stats.HeapAlloc).
					Int(Index, runtime.NumGoroutine()).
					Msg(MemoryUsage)
			}
		}
	}()
	s.log.Info().Msg(ServiceStarted)
	return nil
}

func (s *memLog) Stop() {
	close(s.quit)
	s.wg.Wait()
}
