package logging

import (
	"github.com/rs/zerolog"

	"github.com/Cardinal-Cryptography/aleph-node/pkg/gomel"
)

// AddingErrors summarizes the result of AddPreunits for size preunits.
// Rejected units are logged one by one, the other outcomes are counted.
func AddingErrors(errs []error, size int, log zerolog.Logger) {
	if len(errs) == 0 {
		log.Debug().Int(Size, size).Msg(ReadyToAdd)
		return
	}
	var counts [gomel.Invalid + 1]int
	missing := 0
	for _, err := range errs {
		result := gomel.ResultOf(err)
		counts[result]++
		switch e := err.(type) {
		case *gomel.UnknownParents:
			missing += e.Amount
		case *gomel.ComplianceError, *gomel.DataError:
			log.Warn().Str(Where, "AddPreunits").Msg(err.Error())
		default:
			if result == gomel.Invalid {
				log.Error().Str(Where, "AddPreunits").Msg(err.Error())
			}
		}
	}
	if n := counts[gomel.AlreadyKnown]; n > 0 {
		log.Debug().Int(Size, n).Msg(DuplicatedUnits)
	}
	if n := counts[gomel.BufferedMissingParents]; n > 0 {
		log.Debug().Int(Size, n).Int(Index, missing).Msg(UnknownParents)
	}
	if n := counts[gomel.Added]; n > 0 {
		log.Debug().Int(Size, n).Msg(ReadyToAdd)
	}
}
