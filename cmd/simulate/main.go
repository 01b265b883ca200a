package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-scheduling/internal/api"
	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/logging"
)

type SimConfig struct {
	APIBaseURL   string
	Duration     time.Duration
	Workers      int
	BookingRatio float64
	CancelRatio  float64
	UpdateRatio  float64
	ReadRatio    float64
	Days         int
	FirstDate    appointment.Date
	SlotMinutes  int
	SlotsPerDay  int
}

// SlotPool is the fixed set of slots workers compete for, plus the
// appointment ids created so far.
type SlotPool struct {
	Patients []int64
	Slots    []appointment.Slot

	mu           sync.RWMutex
	appointments []int64
}

func (p *SlotPool) AddAppointment(id int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.appointments = append(p.appointments, id)
}

func (p *SlotPool) RandomAppointment(rng *rand.Rand) (int64, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if len(p.appointments) == 0 {
		return 0, false
	}
	return p.appointments[rng.Intn(len(p.appointments))], true
}

type Simulator struct {
	config  SimConfig
	pool    *SlotPool
	client  *http.Client
	metrics Metrics
	log     zerolog.Logger
}

func main() {
	_ = godotenv.Load()
	logger := logging.New(os.Stdout, getEnv("APP_ENV", "dev"), getEnv("LOG_LEVEL", "info"))

	cfg, err := loadConfig()
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	logger.Info().
		Dur("duration", cfg.Duration).
		Int("workers", cfg.Workers).
		Float64("booking", cfg.BookingRatio).
		Float64("cancel", cfg.CancelRatio).
		Float64("update", cfg.UpdateRatio).
		Float64("read", cfg.ReadRatio).
		Msg("simulator starting")

	sim := &Simulator{
		config: cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		log:    logger,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	pool, err := sim.loadSlotPool(ctx)
	cancel()
	if err != nil {
		logger.Fatal().Err(err).Msg("load slot pool")
	}
	sim.pool = pool

	logger.Info().Int("patients", len(pool.Patients)).Int("slots", len(pool.Slots)).Msg("slot pool loaded")

	sim.Run()
	sim.PrintReport()

	verifyCtx, cancelVerify := context.WithTimeout(context.Background(), time.Minute)
	defer cancelVerify()
	if err := sim.VerifyNoDoubleBooking(verifyCtx); err != nil {
		logger.Fatal().Err(err).Msg("double booking detected")
	}
	logger.Info().Msg("no slot holds more than one active appointment")
}

func loadConfig() (SimConfig, error) {
	first, err := appointment.ParseDate(getEnv("SIM_FIRST_DATE", appointment.DateOf(time.Now().AddDate(0, 0, 1)).String()))
	if err != nil {
		return SimConfig{}, fmt.Errorf("SIM_FIRST_DATE: %w", err)
	}

	cfg := SimConfig{
		APIBaseURL:   getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:     getDuration("SIM_DURATION", 30*time.Second),
		Workers:      getInt("SIM_WORKERS", 10),
		BookingRatio: getFloat("SIM_BOOKING_RATIO", 0.5),
		CancelRatio:  getFloat("SIM_CANCEL_RATIO", 0.15),
		UpdateRatio:  getFloat("SIM_UPDATE_RATIO", 0.15),
		ReadRatio:    getFloat("SIM_READ_RATIO", 0.2),
		Days:         getInt("SIM_DAYS", 2),
		FirstDate:    first,
		SlotMinutes:  getInt("SIM_SLOT_MINUTES", 30),
		SlotsPerDay:  getInt("SIM_SLOTS_PER_DAY", 8),
	}

	// Normalize ratios
	total := cfg.BookingRatio + cfg.CancelRatio + cfg.UpdateRatio + cfg.ReadRatio
	if total > 0 {
		cfg.BookingRatio /= total
		cfg.CancelRatio /= total
		cfg.UpdateRatio /= total
		cfg.ReadRatio /= total
	}

	switch {
	case cfg.Workers <= 0:
		return SimConfig{}, fmt.Errorf("SIM_WORKERS must be > 0")
	case cfg.Duration <= 0:
		return SimConfig{}, fmt.Errorf("SIM_DURATION must be > 0")
	case cfg.Days <= 0 || cfg.SlotsPerDay <= 0 || cfg.SlotMinutes <= 0:
		return SimConfig{}, fmt.Errorf("SIM_DAYS, SIM_SLOTS_PER_DAY and SIM_SLOT_MINUTES must be > 0")
	case 9*60+cfg.SlotsPerDay*cfg.SlotMinutes > 24*60:
		return SimConfig{}, fmt.Errorf("slots do not fit in one day")
	}

	return cfg, nil
}

// loadSlotPool reads patients and doctors from the API and lays out a
// grid of slots starting 09:00 on each simulated day.
func (s *Simulator) loadSlotPool(ctx context.Context) (*SlotPool, error) {
	var patients []api.PatientResponse
	if err := s.getJSON(ctx, "/patients", &patients); err != nil {
		return nil, fmt.Errorf("load patients: %w", err)
	}
	var doctors []api.DoctorResponse
	if err := s.getJSON(ctx, "/doctors", &doctors); err != nil {
		return nil, fmt.Errorf("load doctors: %w", err)
	}
	if len(patients) == 0 {
		return nil, fmt.Errorf("no patients loaded, run cmd/seed first")
	}
	if len(doctors) == 0 {
		return nil, fmt.Errorf("no doctors loaded, run cmd/seed first")
	}

	pool := &SlotPool{}
	for _, p := range patients {
		pool.Patients = append(pool.Patients, p.ID)
	}
	for _, d := range doctors {
		for day := 0; day < s.config.Days; day++ {
			for i := 0; i < s.config.SlotsPerDay; i++ {
				pool.Slots = append(pool.Slots, appointment.Slot{
					DoctorID: d.ID,
					Date:     s.config.FirstDate.AddDays(day),
					Time:     appointment.ClockTimeFromMinutes(9*60 + i*s.config.SlotMinutes),
				})
			}
		}
	}

	return pool, nil
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	s.log.Info().Dur("duration", s.config.Duration).Int("workers", s.config.Workers).Msg("starting simulation")

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	s.log.Info().Msg("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		r := rng.Float64()
		switch {
		case r < s.config.BookingRatio:
			s.doBooking(ctx, rng)
		case r < s.config.BookingRatio+s.config.CancelRatio:
			s.doCancel(ctx, rng)
		case r < s.config.BookingRatio+s.config.CancelRatio+s.config.UpdateRatio:
			s.doUpdate(ctx, rng)
		default:
			if rng.Intn(2) == 0 {
				s.doAvailability(ctx, rng)
			} else {
				s.doReadByID(ctx, rng)
			}
		}
	}
}

func (s *Simulator) randomSlot(rng *rand.Rand) appointment.Slot {
	return s.pool.Slots[rng.Intn(len(s.pool.Slots))]
}

func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	slot := s.randomSlot(rng)
	body := api.BookAppointmentRequest{
		PatientID: s.pool.Patients[rng.Intn(len(s.pool.Patients))],
		DoctorID:  slot.DoctorID,
		Date:      slot.Date.String(),
		Time:      slot.Time.String(),
	}

	var created api.AppointmentResponse
	start := time.Now()
	code, err := s.send(ctx, http.MethodPost, "/appointments", body, &created)
	latency := time.Since(start)

	success := err == nil && code == http.StatusCreated
	if success && created.ID != 0 {
		s.pool.AddAppointment(created.ID)
	}
	s.metrics.Booking.Record(latency, success, err == nil && code == http.StatusConflict)
}

func (s *Simulator) doCancel(ctx context.Context, rng *rand.Rand) {
	id, ok := s.pool.RandomAppointment(rng)
	if !ok {
		return
	}

	start := time.Now()
	code, err := s.send(ctx, http.MethodPost, fmt.Sprintf("/appointments/%d/cancel", id), nil, nil)
	s.metrics.Cancel.Record(time.Since(start), err == nil && code == http.StatusOK, false)
}

// doUpdate moves an existing appointment to another random slot.
func (s *Simulator) doUpdate(ctx context.Context, rng *rand.Rand) {
	id, ok := s.pool.RandomAppointment(rng)
	if !ok {
		return
	}
	slot := s.randomSlot(rng)
	body := api.UpdateAppointmentRequest{
		PatientID: s.pool.Patients[rng.Intn(len(s.pool.Patients))],
		DoctorID:  slot.DoctorID,
		Date:      slot.Date.String(),
		Time:      slot.Time.String(),
		Status:    string(appointment.StatusScheduled),
	}

	start := time.Now()
	code, err := s.send(ctx, http.MethodPut, fmt.Sprintf("/appointments/%d", id), body, nil)
	s.metrics.Update.Record(time.Since(start), err == nil && code == http.StatusOK, err == nil && code == http.StatusConflict)
}

func (s *Simulator) doAvailability(ctx context.Context, rng *rand.Rand) {
	slot := s.randomSlot(rng)
	path := fmt.Sprintf("/appointments/availability?doctor_id=%d&date=%s&time=%s", slot.DoctorID, slot.Date, slot.Time)

	start := time.Now()
	code, err := s.send(ctx, http.MethodGet, path, nil, nil)
	s.metrics.Availability.Record(time.Since(start), err == nil && code == http.StatusOK, false)
}

func (s *Simulator) doReadByID(ctx context.Context, rng *rand.Rand) {
	id, ok := s.pool.RandomAppointment(rng)
	if !ok {
		return
	}

	start := time.Now()
	code, err := s.send(ctx, http.MethodGet, fmt.Sprintf("/appointments/%d", id), nil, nil)
	s.metrics.ReadByID.Record(time.Since(start), err == nil && code == http.StatusOK, false)
}

// VerifyNoDoubleBooking pages through every appointment and fails if two
// non-cancelled appointments share a slot.
func (s *Simulator) VerifyNoDoubleBooking(ctx context.Context) error {
	const pageSize = 500

	held := make(map[string]int64)
	for offset := 0; ; offset += pageSize {
		var page []api.AppointmentResponse
		path := fmt.Sprintf("/appointments?limit=%d&offset=%d", pageSize, offset)
		if err := s.getJSON(ctx, path, &page); err != nil {
			return err
		}

		for _, a := range page {
			status, err := appointment.ParseStatus(a.Status)
			if err != nil || !status.OccupiesSlot() {
				continue
			}
			key := fmt.Sprintf("%d/%s/%s", a.DoctorID, a.Date, a.Time)
			if other, dup := held[key]; dup {
				return fmt.Errorf("slot %s held by appointments %d and %d", key, other, a.ID)
			}
			held[key] = a.ID
		}

		if len(page) < pageSize {
			return nil
		}
	}
}

func (s *Simulator) getJSON(ctx context.Context, path string, out any) error {
	code, err := s.send(ctx, http.MethodGet, path, nil, out)
	if err != nil {
		return err
	}
	if code != http.StatusOK {
		return fmt.Errorf("GET %s: unexpected status %d", path, code)
	}
	return nil
}

// send issues one request and decodes a 2xx JSON body into out when set.
func (s *Simulator) send(ctx context.Context, method, path string, body, out any) (int, error) {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewReader(raw)
	}

	var req *http.Request
	var err error
	if reader != nil {
		req, err = http.NewRequestWithContext(ctx, method, s.config.APIBaseURL+path, reader)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, s.config.APIBaseURL+path, nil)
	}
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode %s %s: %w", method, path, err)
		}
	}
	return resp.StatusCode, nil
}

// Helper functions

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
