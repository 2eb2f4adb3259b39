package camera

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Capture outcomes recorded by captureResults.
const (
	outcomeSuccess       = "success"
	outcomeCaptureFailed = "capture_failed"
	outcomeBufferFull    = "buffer_exhausted"
	outcomeReadError     = "read_error"
	outcomeReaderClosed  = "reader_closed"
	outcomeTornDown      = "torn_down"
	outcomeSubmitError   = "submit_error"
	outcomeCanceled      = "canceled"
	outcomeUnavailable   = "unavailable"
)

var (
	captureRequests = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "stillcam",
		Subsystem: "camera",
		Name:      "capture_requests_total",
		Help:      "Still capture requests accepted while previewing",
	})

	captureResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stillcam",
		Subsystem: "camera",
		Name:      "capture_results_total",
		Help:      "Still capture results by outcome",
	}, []string{"outcome"})

	convergenceTimeouts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "stillcam",
		Subsystem: "camera",
		Name:      "convergence_timeouts_total",
		Help:      "Pre-capture sequences that hit the convergence timeout",
	})

	convergenceSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "stillcam",
		Subsystem: "camera",
		Name:      "convergence_seconds",
		Help:      "Time from the pre-capture trigger until stills were issued",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 0.75, 1, 1.5, 2},
	})

	pendingCaptures = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "stillcam",
		Subsystem: "camera",
		Name:      "pending_captures",
		Help:      "Captures waiting for an image",
	})

	cameraState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "stillcam",
		Subsystem: "camera",
		Name:      "state",
		Help:      "1 for the current camera state, 0 otherwise",
	}, []string{"state"})
)

var allStates = []State{StateClosed, StateOpened, StatePreviewing, StateAwaitingConvergence}

// recordState flips the state gauge to s.
func recordState(s State) {
	for _, st := range allStates {
		v := 0.0
		if st == s {
			v = 1
		}
		cameraState.WithLabelValues(string(st)).Set(v)
	}
}

func recordResult(outcome string) {
	captureResults.WithLabelValues(outcome).Inc()
}
