// Package scheduler fires stored reminders at or after their due time.
//
// A single dispatcher goroutine sleeps until the nearest due time (or
// one tick, whichever comes first), claims due reminders and hands them
// to a worker pool. Workers deliver with a bounded retry budget; a
// reminder is removed from the store on success or once the budget is
// exhausted. Firing early is never acceptable; firing late is.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"rmndr/internal/store"
)

// DeliverFunc sends the reminder text to its owner.
type DeliverFunc func(ctx context.Context, ownerID, text string) error

// Config controls the dispatch loop and retry policy.
type Config struct {
	Workers   int
	Tick      time.Duration
	QueueSize int

	// RetryMax is the delivery attempt budget per firing.
	RetryMax int

	RetryBase     time.Duration
	RetryMaxDelay time.Duration
	RetryJitter   float64 // 0.2 = 20%
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.Tick <= 0 {
		c.Tick = time.Second
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 64
	}
	if c.RetryMax <= 0 {
		c.RetryMax = 100
	}
	if c.RetryBase <= 0 {
		c.RetryBase = 500 * time.Millisecond
	}
	if c.RetryMaxDelay <= 0 {
		c.RetryMaxDelay = 15 * time.Second
	}
	if c.RetryJitter <= 0 {
		c.RetryJitter = 0.2
	}
	return c
}

type jobKey struct {
	owner, id string
}

// Service is the reminder dispatcher. Construct with New, then Start.
type Service struct {
	cfg     Config
	jobs    store.Store
	deliver DeliverFunc
	log     zerolog.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	queue   chan store.Reminder
	wake    chan struct{}
	wg      sync.WaitGroup

	cron *cron.Cron

	// inflight guards against dispatching a reminder twice while a
	// worker is still delivering (or retrying) it.
	imu      sync.Mutex
	inflight map[jobKey]struct{}

	// now is swapped out in tests.
	now func() time.Time
}

func New(cfg Config, jobs store.Store, deliver DeliverFunc, log zerolog.Logger) *Service {
	return &Service{
		cfg:      cfg.withDefaults(),
		jobs:     jobs,
		deliver:  deliver,
		log:      log.With().Str("component", "scheduler").Logger(),
		wake:     make(chan struct{}, 1),
		inflight: map[jobKey]struct{}{},
		now:      time.Now,
	}
}

// Schedule persists the reminder and nudges the dispatcher so a due
// time earlier than the current sleep target is picked up immediately.
func (s *Service) Schedule(ctx context.Context, r store.Reminder) error {
	if err := s.jobs.Put(ctx, r); err != nil {
		return err
	}
	s.Wake()
	return nil
}

// Wake makes the dispatcher re-evaluate the nearest due time.
func (s *Service) Wake() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return errors.New("scheduler already started")
	}

	runCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.queue = make(chan store.Reminder, s.cfg.QueueSize)
	s.running = true

	for i := 0; i < s.cfg.Workers; i++ {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.worker(runCtx)
		}()
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.dispatch(runCtx)
	}()

	s.startMaintenance()

	s.log.Info().Int("workers", s.cfg.Workers).Dur("tick", s.cfg.Tick).Msg("scheduler started")
	return nil
}

// Stop halts dispatching and waits for in-flight deliveries, bounded by
// ctx. Reminders still pending stay in the store for the next start.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	cancel := s.cancel
	s.mu.Unlock()

	if s.cron != nil {
		s.cron.Stop()
	}
	cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// dispatch is the single wake/sleep loop. It never fires a reminder
// before its due time; everything due now is claimed in one query.
func (s *Service) dispatch(ctx context.Context) {
	for {
		d := s.nextWait(ctx)
		timer := time.NewTimer(d)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-s.wake:
			timer.Stop()
		case <-timer.C:
		}
		s.dispatchDue(ctx)
	}
}

// minWait floors the dispatcher sleep. An overdue job stays in the
// store while a worker delivers it, so a zero wait would spin the loop
// hot for the whole delivery.
const minWait = 10 * time.Millisecond

// nextWait returns how long to sleep: until the nearest due time,
// clamped between minWait and one tick.
func (s *Service) nextWait(ctx context.Context) time.Duration {
	next, ok, err := s.jobs.NextDue(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("next due lookup failed")
		return s.cfg.Tick
	}
	if !ok {
		return s.cfg.Tick
	}
	d := time.Until(next)
	if d < minWait {
		return minWait
	}
	if d > s.cfg.Tick {
		return s.cfg.Tick
	}
	return d
}

func (s *Service) dispatchDue(ctx context.Context) {
	due, err := s.jobs.Due(ctx, s.now(), s.cfg.QueueSize)
	if err != nil {
		s.log.Warn().Err(err).Msg("due query failed")
		return
	}
	for _, r := range due {
		k := jobKey{r.Owner, r.ID}
		s.imu.Lock()
		if _, busy := s.inflight[k]; busy {
			s.imu.Unlock()
			continue
		}
		s.inflight[k] = struct{}{}
		s.imu.Unlock()

		select {
		case s.queue <- r:
		case <-ctx.Done():
			s.release(k)
			return
		}
	}
}

func (s *Service) release(k jobKey) {
	s.imu.Lock()
	delete(s.inflight, k)
	s.imu.Unlock()
}

func (s *Service) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case r := <-s.queue:
			s.fire(ctx, r)
		}
	}
}

// fire delivers one reminder, retrying transient failures up to the
// budget. The attempt counter lives here only: it resets on restart,
// which keeps delivery best-effort at-least-once.
func (s *Service) fire(ctx context.Context, r store.Reminder) {
	k := jobKey{r.Owner, r.ID}
	defer s.release(k)

	var err error
	for attempt := 1; attempt <= s.cfg.RetryMax; attempt++ {
		err = s.deliver(ctx, r.Owner, r.Text)
		if err == nil {
			break
		}
		if attempt == s.cfg.RetryMax {
			break
		}

		delay := backoffDelay(s.cfg, attempt)
		s.log.Debug().Err(err).Str("owner", r.Owner).Str("id", r.ID).
			Int("attempt", attempt).Dur("delay", delay).Msg("delivery retry scheduled")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			// Leave the reminder stored; the next start re-fires it.
			return
		case <-timer.C:
		}
	}

	if err != nil {
		// Terminal for this reminder only; the scheduler keeps serving.
		s.log.Error().Err(err).Str("owner", r.Owner).Str("id", r.ID).
			Int("attempts", s.cfg.RetryMax).Msg("delivery abandoned after retry budget")
	} else {
		s.log.Info().Str("owner", r.Owner).Str("id", r.ID).Msg("reminder delivered")
	}

	if _, derr := s.jobs.DeleteOne(ctx, r.Owner, r.ID); derr != nil {
		s.log.Warn().Err(derr).Str("owner", r.Owner).Str("id", r.ID).Msg("post-delivery delete failed")
	}
}
