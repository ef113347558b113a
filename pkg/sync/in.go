package sync

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/Cardinal-Cryptography/aleph-node/pkg/config"
	"github.com/Cardinal-Cryptography/aleph-node/pkg/gomel"
	"github.com/Cardinal-Cryptography/aleph-node/pkg/logging"
	"github.com/Cardinal-Cryptography/aleph-node/pkg/metrics"
	"github.com/Cardinal-Cryptography/aleph-node/pkg/network"
	"github.com/Cardinal-Cryptography/aleph-node/pkg/sync/handshake"
	"github.com/Cardinal-Cryptography/aleph-node/pkg/sync/message"
)

// in serves a single incoming connection.
func (s *Service) in() {
	conn, err := s.netserv.Listen(s.timeout)
	if err != nil {
		if err == network.ErrStopped {
			select {
			case <-s.ctx.Done():
			case <-time.After(s.timeout):
			}
		} else if err != network.ErrTimeout {
			s.log.Error().Str(logging.Where, "sync.in.Listen").Msg(err.Error())
		}
		return
	}
	defer conn.Close()
	conn.TimeoutAfter(s.timeout)
	pid, _, err := handshake.AcceptGreeting(conn, s.session)
	if err != nil {
		s.log.Debug().Str(logging.Where, "sync.in.AcceptGreeting").Msg(err.Error())
		return
	}
	log := s.log.With().Uint16(logging.PID, pid).Logger()
	log.Debug().Msg(logging.ConnectionReceived)
	code, data, err := message.Read(conn)
	if err != nil {
		if _, ok := err.(*gomel.VersionError); ok {
			s.versionMismatch(pid, err, "sync.in.Read")
		} else {
			log.Warn().Str(logging.Where, "sync.in.Read").Msg(err.Error())
		}
		return
	}
	metrics.MessageReceived(code.String())
	if err = s.handle(pid, code, data, conn, log); err != nil {
		log.Error().Str(logging.Where, "sync.in."+code.String()).Msg(err.Error())
	}
}

func (s *Service) handle(pid uint16, code message.Code, data []byte, conn network.Connection, log zerolog.Logger) error {
	switch code {
	case message.NewUnit:
		var body message.Units
		if err := message.Decode(data, &body); err != nil {
			return err
		}
		preunits, err := body.Preunits()
		if err != nil {
			return err
		}
		fresh := preunits[:0]
		for _, pu := range preunits {
			if seen, _ := s.received.ContainsOrAdd(*pu.Hash(), struct{}{}); !seen {
				fresh = append(fresh, pu)
			}
		}
		if len(fresh) > 0 {
			logging.AddingErrors(s.orderer.AddPreunits(pid, fresh...), len(fresh), log)
		}
		return nil

	case message.RequestUnits:
		var body message.Hashes
		if err := message.Decode(data, &body); err != nil {
			return err
		}
		hashes := make([]*gomel.Hash, len(body.Hashes))
		for i := range body.Hashes {
			hashes[i] = &body.Hashes[i]
		}
		log.Debug().Int(logging.Size, len(hashes)).Msg(logging.FetchReceived)
		return s.respondUnits(conn, known(s.orderer.UnitsByHash(hashes...)))

	case message.RequestTip:
		var body message.Tip
		if err := message.Decode(data, &body); err != nil {
			return err
		}
		units := s.orderer.UnitsAbove(body.Round)
		if len(units) > config.MaxUnitsInChunk {
			units = units[:config.MaxUnitsInChunk]
		}
		log.Info().Int(logging.Round, body.Round).Int(logging.Size, len(units)).Msg(logging.TipRequested)
		return s.respondUnits(conn, units)

	case message.RequestJustifications:
		var body message.From
		if err := message.Decode(data, &body); err != nil {
			return err
		}
		response, err := message.EncodeJustifications(s.orderer.Justifications(body.Height, s.chunk))
		if err != nil {
			return err
		}
		return s.respond(conn, message.Justifications, response)

	case message.Justifications:
		var body message.JustificationList
		if err := message.Decode(data, &body); err != nil {
			return err
		}
		js, err := body.Decoded()
		if err != nil {
			return err
		}
		s.orderer.HandleJustifications(pid, js)
		return nil

	case message.SignatureShare:
		var body message.Share
		if err := message.Decode(data, &body); err != nil {
			return err
		}
		share := body.JustificationShare()
		if share.Share.Pid != pid {
			return gomel.NewDataError("share relayed by another member")
		}
		s.orderer.HandleShare(pid, share)
		return nil

	default:
		return gomel.NewDataError("unsolicited " + code.String())
	}
}

func (s *Service) respondUnits(conn network.Connection, units []gomel.Unit) error {
	body, err := message.EncodeUnits(units)
	if err != nil {
		return err
	}
	return s.respond(conn, message.ResponseUnits, body)
}

func (s *Service) respond(conn network.Connection, code message.Code, body interface{}) error {
	if err := message.Write(conn, code, body); err != nil {
		return err
	}
	if err := conn.Flush(); err != nil {
		return err
	}
	metrics.MessageSent(code.String())
	return nil
}

func known(units []gomel.Unit) []gomel.Unit {
	result := units[:0]
	for _, u := range units {
		if u != nil {
			result = append(result, u)
		}
	}
	return result
}
