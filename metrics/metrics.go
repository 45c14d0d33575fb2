// Package metrics exposes the Prometheus counters and gauges the core
// increments at the points spec.md §7 calls for a "counter increment (left
// to the implementer)": dropped/malformed frames, transport session
// outcomes, and address-claim outcomes. Grounded on
// runZeroInc-sockstats/pkg/exporter/exporter.go's use of
// github.com/prometheus/client_golang/prometheus.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// FramesIn counts frames accepted from the driver by the data-link
	// layer (spec.md §4.2 step 1).
	FramesIn = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "isobus",
		Subsystem: "datalink",
		Name:      "frames_in_total",
		Help:      "CAN frames read from the driver and decoded to a PDU.",
	})

	// FramesDropped counts frames discarded because they are neither
	// global nor addressed to the claimed address (spec.md §4.2 step 1,
	// §7 "Malformed frames are dropped with a debug log and a counter
	// increment").
	FramesDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "isobus",
		Subsystem: "datalink",
		Name:      "frames_dropped_total",
		Help:      "Frames dropped by the mandatory global-or-mine filter.",
	})

	// FramesOut counts frames written to the driver, across single-frame
	// sends and TP/ETP DT bursts.
	FramesOut = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "isobus",
		Subsystem: "datalink",
		Name:      "frames_out_total",
		Help:      "CAN frames written to the driver.",
	})

	// PdusDroppedTooLarge counts send() calls for a PDU exceeding ETP's
	// 117,440,505-byte cap (spec.md §4.2 "above that -> log and drop").
	PdusDroppedTooLarge = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "isobus",
		Subsystem: "datalink",
		Name:      "pdus_dropped_too_large_total",
		Help:      "Outbound PDUs dropped for exceeding the ETP size cap.",
	})

	// TPSessionsOpened/Completed/Aborted track the Transport Protocol
	// session lifecycle (spec.md §4.3).
	TPSessionsOpened = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "isobus", Subsystem: "tp", Name: "sessions_opened_total",
		Help: "Transport Protocol sessions opened, inbound and outbound.",
	})
	TPSessionsCompleted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "isobus", Subsystem: "tp", Name: "sessions_completed_total",
		Help: "Transport Protocol sessions that reached EoMA/last-DT.",
	})
	TPSessionsAborted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "isobus", Subsystem: "tp", Name: "sessions_aborted_total",
		Help: "Transport Protocol sessions aborted, by timeout or peer Abort.",
	})

	// ETPSessionsOpened/Completed/Aborted mirror the TP counters for the
	// Extended Transport Protocol (spec.md §4.4).
	ETPSessionsOpened = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "isobus", Subsystem: "etp", Name: "sessions_opened_total",
		Help: "Extended Transport Protocol sessions opened.",
	})
	ETPSessionsCompleted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "isobus", Subsystem: "etp", Name: "sessions_completed_total",
		Help: "Extended Transport Protocol sessions that reached EoMA.",
	})
	ETPSessionsAborted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "isobus", Subsystem: "etp", Name: "sessions_aborted_total",
		Help: "Extended Transport Protocol sessions aborted.",
	})

	// AddressClaimOutcomes counts terminal address-claim results by
	// outcome label ("claimed", "unable", "lost_arbitration") (spec.md
	// §4.5, §7).
	AddressClaimOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "isobus", Subsystem: "netmgr", Name: "address_claim_outcomes_total",
		Help: "Address-claim attempts by terminal outcome.",
	}, []string{"outcome"})

	// WorkingSetState publishes the working-set's current state as a
	// gauge so it can be scraped without a separate introspection API
	// (spec.md §3 "VT Working-Set state").
	WorkingSetState = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "isobus", Subsystem: "workingset", Name: "state",
		Help: "Current VT working-set state, as its integer enum value.",
	})
)

// MustRegisterAll registers every OpenIsobus collector with reg. Embedding
// applications call this once against their own registry (or
// prometheus.DefaultRegisterer); the core never registers itself
// implicitly, matching the library-not-daemon shape spec.md §1 describes.
func MustRegisterAll(reg prometheus.Registerer) {
	reg.MustRegister(
		FramesIn, FramesDropped, FramesOut, PdusDroppedTooLarge,
		TPSessionsOpened, TPSessionsCompleted, TPSessionsAborted,
		ETPSessionsOpened, ETPSessionsCompleted, ETPSessionsAborted,
		AddressClaimOutcomes, WorkingSetState,
	)
}
