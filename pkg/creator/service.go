package creator

import (
	"context"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/Cardinal-Cryptography/aleph-node/pkg/config"
	"github.com/Cardinal-Cryptography/aleph-node/pkg/gomel"
	"github.com/Cardinal-Cryptography/aleph-node/pkg/logging"
)

// Service runs the creator in a loop. It tries to create a unit whenever it is notified about a new unit in the dag,
// saves it, adds it to the dag and sends it to other processes.
// Consecutive units are created at least conf.CreateDelay apart.
type Service struct {
	creator *Creator
	adder   gomel.Adder
	save    func(gomel.BaseUnit) error
	send    func(gomel.Unit)
	limiter *rate.Limiter
	belt    chan struct{}
	log     zerolog.Logger
}

// NewService constructs the creator service. A created unit is passed to save before it is added to the dag,
// and to send after. A unit that could not be saved is never added, and a fatal error returned by save stops the service.
func NewService(dag gomel.Dag, adder gomel.Adder, proposer BlockProposer, save func(gomel.BaseUnit) error, send func(gomel.Unit),
	conf *config.Config, log zerolog.Logger) *Service {
	logger := log.With().Int(logging.Service, logging.CreatorService).Logger()
	limit := rate.Inf
	if conf.CreateDelay > 0 {
		limit = rate.Every(conf.CreateDelay)
	}
	return &Service{
		creator: New(dag, proposer, conf, logger),
		adder:   adder,
		save:    save,
		send:    send,
		limiter: rate.NewLimiter(limit, 1),
		belt:    make(chan struct{}, 1),
		log:     logger,
	}
}

// Notify wakes the service up. Meant to be called after every insert to the dag.
func (s *Service) Notify(gomel.Unit) {
	select {
	case s.belt <- struct{}{}:
	default:
	}
}

// Run creates units until the context is done.
func (s *Service) Run(ctx context.Context) error {
	s.log.Info().Msg(logging.ServiceStarted)
	defer s.log.Info().Msg(logging.ServiceStopped)
	for {
		created, err := s.step(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if gomel.IsFatal(err) {
				return err
			}
			s.log.Error().Str(logging.Where, "creator.step").Msg(err.Error())
		}
		if created || err != nil {
			if s.limiter.Wait(ctx) != nil {
				return nil
			}
			continue
		}
		select {
		case <-s.belt:
		case <-ctx.Done():
			return nil
		}
	}
}

func (s *Service) step(ctx context.Context) (bool, error) {
	pu, err := s.creator.MaybeCreateUnit(ctx)
	if err != nil || pu == nil {
		return false, err
	}
	if err := s.save(pu); err != nil {
		return false, err
	}
	u, err := s.adder.AddOwnUnit(pu)
	if err != nil {
		return false, err
	}
	ev := s.log.Info().Int(logging.Round, u.Round())
	if data := u.Data(); data != nil {
		ev = ev.Uint64(logging.Height, data.Number)
	}
	ev.Msg(logging.UnitCreated)
	s.send(u)
	return true, nil
}
