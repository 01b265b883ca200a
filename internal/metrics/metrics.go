package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
)

// Outcome labels for scheduler operations.
const (
	OutcomeOK          = "ok"
	OutcomeValidation  = "validation"
	OutcomeConflict    = "conflict"
	OutcomeNotFound    = "not_found"
	OutcomePersistence = "persistence"
)

// Metrics holds the scheduler metrics
type Metrics struct {
	Operations       *prometheus.CounterVec
	OperationLatency *prometheus.HistogramVec
	Conflicts        *prometheus.CounterVec
}

// New creates the scheduler metrics and registers them on reg.
func New(reg prometheus.Registerer, namespace string) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		Operations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "operations_total",
			Help:      "Total number of scheduler operations by outcome",
		}, []string{"operation", "outcome"}),
		OperationLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "operation_duration_seconds",
			Help:      "Duration of scheduler operations",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"operation"}),
		Conflicts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "slot_conflicts_total",
			Help:      "Bookings and updates rejected because the slot was taken or locked",
		}, []string{"reason"}),
	}
}

// Observe records one finished operation. A nil receiver is a no-op.
func (m *Metrics) Observe(operation string, start time.Time, err error) {
	if m == nil {
		return
	}

	outcome := Outcome(err)
	m.Operations.WithLabelValues(operation, outcome).Inc()
	m.OperationLatency.WithLabelValues(operation).Observe(time.Since(start).Seconds())

	if outcome == OutcomeConflict {
		reason := "slot_taken"
		if errors.Is(err, appointment.ErrSlotBeingBooked) {
			reason = "slot_locked"
		}
		m.Conflicts.WithLabelValues(reason).Inc()
	}
}

// Outcome classifies err into one of the outcome labels.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, appointment.ErrSchedulingConflict):
		return OutcomeConflict
	case errors.Is(err, appointment.ErrValidation):
		return OutcomeValidation
	case errors.Is(err, appointment.ErrAppointmentNotFound),
		errors.Is(err, appointment.ErrPatientNotFound),
		errors.Is(err, appointment.ErrDoctorNotFound):
		return OutcomeNotFound
	default:
		return OutcomePersistence
	}
}
