package adder

import (
	"time"

	"github.com/Cardinal-Cryptography/aleph-node/pkg/gomel"
	"github.com/Cardinal-Cryptography/aleph-node/pkg/logging"
)

// fetchMissing is called on a freshly created waitingPreunit that has some missing parents.
// The parents are requested from the process that sent the preunit. If too many units are missing,
// the whole tip is requested instead.
// This method must be called under mutex!
func (ad *adder) fetchMissing(wp *waitingPreunit) {
	if ad.syncer == nil || wp.source == ad.conf.Pid {
		return
	}
	now := time.Now()
	var toRequest []*gomel.Hash
	for _, h := range wp.pu.ParentHashes() {
		if h == nil {
			continue
		}
		mp, ok := ad.missing[*h]
		if !ok || now.Sub(mp.requested) < ad.conf.FetchInterval {
			continue
		}
		mp.requested = now
		mp.attempts++
		toRequest = append(toRequest, h)
	}
	if len(ad.missing) > ad.conf.TipAbove {
		ad.requestTip()
		return
	}
	if len(toRequest) > 0 {
		ad.log.Debug().Uint16(logging.PID, wp.source).Int(logging.Size, len(toRequest)).Msg(logging.FetchSent)
		ad.syncer.RequestFetch(wp.source, toRequest)
	}
}

// refetch asks for units that have been missing for longer than FetchInterval.
// Every next attempt goes to the next process, so that a single silent peer cannot stall the adder.
func (ad *adder) refetch() {
	ad.mx.Lock()
	if !ad.active || len(ad.missing) == 0 {
		ad.mx.Unlock()
		return
	}
	if len(ad.missing) > ad.conf.TipAbove {
		ad.requestTip()
		ad.mx.Unlock()
		return
	}
	now := time.Now()
	nProc := int(ad.dag.NProc())
	requests := make(map[uint16][]*gomel.Hash)
	for h, mp := range ad.missing {
		if now.Sub(mp.requested) < ad.conf.FetchInterval {
			continue
		}
		source := mp.neededBy[0].source
		pid := uint16((int(source) + mp.attempts) % nProc)
		if pid == ad.conf.Pid {
			mp.attempts++
			pid = uint16((int(source) + mp.attempts) % nProc)
		}
		mp.requested = now
		mp.attempts++
		hash := h
		requests[pid] = append(requests[pid], &hash)
	}
	ad.mx.Unlock()

	for pid, hashes := range requests {
		ad.log.Debug().Uint16(logging.PID, pid).Int(logging.Size, len(hashes)).Msg(logging.FetchSent)
		ad.syncer.RequestFetch(pid, hashes)
	}
}

// requestTip asks all processes for their units above the lowest round at which something is missing.
// This method must be called under mutex!
func (ad *adder) requestTip() {
	round := -1
	for _, mp := range ad.missing {
		if round == -1 || mp.round < round {
			round = mp.round
		}
		mp.requested = time.Now()
	}
	if round < 0 {
		round = 0
	}
	ad.log.Info().Int(logging.Round, round).Int(logging.Size, len(ad.missing)).Msg(logging.TipRequested)
	ad.syncer.RequestTip(round)
}
