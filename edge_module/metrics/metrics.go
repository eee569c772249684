package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Loop metrics
	LoopCyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edgepoll_loop_cycles_total",
			Help: "Total number of poll cycles run",
		},
		[]string{"loop"},
	)

	LoopReadErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edgepoll_loop_read_errors_total",
			Help: "Total number of failed or empty register reads",
		},
		[]string{"loop"},
	)

	LoopTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edgepoll_loop_transitions_total",
			Help: "Total number of alert state changes",
		},
		[]string{"loop", "state"}, // state: alert, clear
	)

	LoopCoilErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edgepoll_loop_coil_errors_total",
			Help: "Total number of failed coil writes",
		},
		[]string{"loop"},
	)

	LoopScaledValue = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "edgepoll_loop_scaled_value",
			Help: "Last scaled reading",
		},
		[]string{"loop"},
	)

	LoopAlertActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "edgepoll_loop_alert_active",
			Help: "1 while the loop is in alert",
		},
		[]string{"loop"},
	)

	// Hub metrics
	HubMessagesSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edgepoll_hub_messages_sent_total",
			Help: "Total number of messages published to the edge hub",
		},
		[]string{"output", "status"}, // status: success, failed
	)

	HubMessagesReceivedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edgepoll_hub_messages_received_total",
			Help: "Total number of messages received from the edge hub",
		},
		[]string{"input"},
	)

	HubSendDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "edgepoll_hub_send_duration_seconds",
			Help:    "Time taken for the broker to acknowledge a message",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
	)

	// Pulse metrics
	PulsesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edgepoll_pulses_total",
			Help: "Total number of coil pulses",
		},
		[]string{"status"}, // status: success, failed
	)

	// Journal metrics
	JournalRowsCleanedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "edgepoll_journal_rows_cleaned_total",
			Help: "Total number of alert journal rows removed by retention",
		},
	)
)

// Bool maps a flag to a gauge value.
func Bool(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
