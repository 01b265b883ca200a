package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/metrics"
	"github.com/hackgods/clinic-scheduling/internal/store"
)

// Scheduler is the subset of *appointment.Service the handlers call.
type Scheduler interface {
	CheckAvailability(ctx context.Context, doctorID int64, date appointment.Date, tm appointment.ClockTime, excludeID int64) (bool, error)
	BookAppointment(ctx context.Context, req appointment.BookRequest) (*appointment.Appointment, error)
	UpdateAppointment(ctx context.Context, id int64, req appointment.UpdateRequest) (*appointment.Appointment, error)
	CancelAppointment(ctx context.Context, id int64) (bool, error)
	GetAppointment(ctx context.Context, id int64) (*appointment.AppointmentDetail, error)
	ListAppointments(ctx context.Context, f appointment.ListFilter) ([]appointment.AppointmentDetail, error)
	StatusSummary(ctx context.Context) (appointment.StatusSummary, error)
	ListPatients(ctx context.Context) ([]appointment.Patient, error)
	ListDoctors(ctx context.Context) ([]appointment.Doctor, error)
	AddPatient(ctx context.Context, name string) (*appointment.Patient, error)
	AddDoctor(ctx context.Context, name, specialization string) (*appointment.Doctor, error)
}

type RouterConfig struct {
	Scheduler Scheduler
	Probes    []store.Probe
	Logger    zerolog.Logger
	// Metrics and Gatherer are optional; /metrics is only mounted with a Gatherer.
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
	Env      string
	Version  string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Apply middleware
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(RecoverMiddleware(cfg.Logger))

	// Health endpoints
	health := NewHealthHandler(cfg.Probes, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	h := &Handler{
		svc:      cfg.Scheduler,
		metrics:  cfg.Metrics,
		validate: newValidator(),
		log:      cfg.Logger,
	}

	r.Route("/patients", func(r chi.Router) {
		r.Get("/", h.listPatients)
		r.Post("/", h.createPatient)
	})
	r.Route("/doctors", func(r chi.Router) {
		r.Get("/", h.listDoctors)
		r.Post("/", h.createDoctor)
	})

	// Appointment endpoints
	r.Route("/appointments", func(r chi.Router) {
		r.Get("/", h.listAppointments)
		r.Post("/", h.bookAppointment)
		r.Get("/availability", h.checkAvailability)
		r.Get("/summary", h.statusSummary)
		r.Get("/{id}", h.getAppointment)
		r.Put("/{id}", h.updateAppointment)
		r.Post("/{id}/cancel", h.cancelAppointment)
	})

	return r
}
