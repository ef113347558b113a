// Package metrics defines the prometheus collectors of a consensus node and the http endpoint exposing them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace         = "aleph"
	subsystemDag      = "dag"
	subsystemSync     = "sync"
	subsystemOrdering = "ordering"
	subsystemFinality = "finality"
	subsystemSession  = "session"
	labelResult       = "result"
	labelMessage      = "message"
	resultAdded       = "added"
	resultDuplicate   = "duplicate"
	resultBuffered    = "buffered"
	resultInvalid     = "invalid"
)

var (
	unitsAdded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystemDag,
		Name:      "units_total",
		Help:      "preunits handed to the adder, by the outcome of adding them",
	}, []string{labelResult})

	forks = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystemDag,
		Name:      "forks_total",
		Help:      "fork evidence recorded",
	})

	bufferedUnits = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystemDag,
		Name:      "buffered_units",
		Help:      "preunits waiting for their parents",
	})

	maxRound = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystemDag,
		Name:      "max_round",
		Help:      "the highest round of a unit in the dag",
	})

	messagesSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystemSync,
		Name:      "messages_sent_total",
		Help:      "messages sent to peers, by message type",
	}, []string{labelMessage})

	messagesReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystemSync,
		Name:      "messages_received_total",
		Help:      "messages received from peers, by message type",
	}, []string{labelMessage})

	batches = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystemOrdering,
		Name:      "batches_total",
		Help:      "batches emitted by the extender",
	})

	orderedRound = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystemOrdering,
		Name:      "round",
		Help:      "the round of the last chosen head",
	})

	finalizedHeight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystemFinality,
		Name:      "finalized_height",
		Help:      "the last finalized height",
	})

	justificationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: subsystemFinality,
		Name:      "justification_seconds",
		Help:      "time between signing a block and gathering its justification",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
	})

	catchUps = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystemFinality,
		Name:      "catch_up_justifications_total",
		Help:      "justifications applied by the catch-up",
	})

	activeSession = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystemSession,
		Name:      "active",
		Help:      "the id of the running session, -1 when none",
	})
)

// UnitAdded records a successfully added unit.
func UnitAdded() { unitsAdded.WithLabelValues(resultAdded).Inc() }

// UnitDuplicate records a preunit that was already known.
func UnitDuplicate() { unitsAdded.WithLabelValues(resultDuplicate).Inc() }

// UnitBuffered records a preunit buffered because of missing parents.
func UnitBuffered() { unitsAdded.WithLabelValues(resultBuffered).Inc() }

// UnitInvalid records a dropped preunit.
func UnitInvalid() { unitsAdded.WithLabelValues(resultInvalid).Inc() }

// ForkRecorded records a new piece of fork evidence.
func ForkRecorded() { forks.Inc() }

// SetBuffered sets the number of preunits waiting for parents.
func SetBuffered(n int) { bufferedUnits.Set(float64(n)) }

// SetMaxRound sets the highest known round.
func SetMaxRound(r int) { maxRound.Set(float64(r)) }

// MessageSent records an outgoing message of the given type.
func MessageSent(msg string) { messagesSent.WithLabelValues(msg).Inc() }

// MessageReceived records an incoming message of the given type.
func MessageReceived(msg string) { messagesReceived.WithLabelValues(msg).Inc() }

// BatchEmitted records a batch produced for the given round.
func BatchEmitted(round int) {
	batches.Inc()
	orderedRound.Set(float64(round))
}

// Finalized sets the finalized height.
func Finalized(height uint64) { finalizedHeight.Set(float64(height)) }

// JustificationGathered observes the time a justification took, in seconds.
func JustificationGathered(seconds float64) { justificationDuration.Observe(seconds) }

// CaughtUp records a justification applied by the catch-up.
func CaughtUp() { catchUps.Inc() }

// SessionStarted sets the active session.
func SessionStarted(id uint32) { activeSession.Set(float64(id)) }

// SessionEnded marks that no session is running.
func SessionEnded() { activeSession.Set(-1) }
