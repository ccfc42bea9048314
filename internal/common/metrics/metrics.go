package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"booking-assistant/internal/booking/slots"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)

	BookingTurns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booking_turns_total",
			Help: "Conversation turns handled, by classified intent",
		},
		[]string{"intent"},
	)

	BookingTurnDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "booking_turn_duration_seconds",
			Help:    "Time spent handling one conversation turn",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"intent"},
	)

	BookingPhaseTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booking_phase_transitions_total",
			Help: "Booking state machine transitions",
		},
		[]string{"from", "to"},
	)

	BookingCollaboratorCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booking_collaborator_calls_total",
			Help: "Calls to external collaborators by outcome",
		},
		[]string{"collaborator", "outcome"},
	)
)

// TransitionCounter counts phase transitions reported by the slot manager.
type TransitionCounter struct{}

func (TransitionCounter) OnTransition(_ context.Context, t slots.Transition) {
	BookingPhaseTransitions.WithLabelValues(string(t.From), string(t.To)).Inc()
}
