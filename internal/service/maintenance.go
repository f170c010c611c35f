package service

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/baedrik/skulls2/internal/cache"
)

// Checkpointer runs storage housekeeping.
type Checkpointer interface {
	Checkpoint(ctx context.Context) error
}

// MaintenanceConfig holds the scheduler settings.
type MaintenanceConfig struct {
	// Interval is how often maintenance runs. Default: 10 minutes.
	Interval time.Duration
	// Timeout bounds one run. Default: 1 minute.
	Timeout time.Duration
}

// MaintenanceReport describes one run.
type MaintenanceReport struct {
	Checkpointed  bool      `json:"checkpointed"`
	PurgedEntries int       `json:"purged_entries"`
	RanAt         time.Time `json:"ran_at"`
	Error         string    `json:"error,omitempty"`
}

// MaintenanceScheduler periodically checkpoints the store and drops
// expired cache entries.
type MaintenanceScheduler struct {
	store  Checkpointer
	cache  cache.Cache
	config MaintenanceConfig

	mu        sync.Mutex
	ticker    *time.Ticker
	stopCh    chan struct{}
	stopOnce  sync.Once
	isRunning bool
	last      *MaintenanceReport
}

// NewMaintenanceScheduler creates a scheduler. Either target may be nil.
func NewMaintenanceScheduler(store Checkpointer, c cache.Cache, config MaintenanceConfig) *MaintenanceScheduler {
	if config.Interval <= 0 {
		config.Interval = 10 * time.Minute
	}
	if config.Timeout <= 0 {
		config.Timeout = time.Minute
	}
	return &MaintenanceScheduler{
		store:  store,
		cache:  c,
		config: config,
		stopCh: make(chan struct{}),
	}
}

// Start begins the periodic runs.
func (s *MaintenanceScheduler) Start() {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = true
	s.ticker = time.NewTicker(s.config.Interval)
	s.mu.Unlock()

	log.Printf("[MaintenanceScheduler] Started - Interval: %v", s.config.Interval)
	go s.run()
}

func (s *MaintenanceScheduler) run() {
	for {
		select {
		case <-s.ticker.C:
			s.RunNow()
		case <-s.stopCh:
			log.Printf("[MaintenanceScheduler] Stopped")
			return
		}
	}
}

// RunNow performs one maintenance pass.
func (s *MaintenanceScheduler) RunNow() MaintenanceReport {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Timeout)
	defer cancel()

	report := MaintenanceReport{RanAt: time.Now()}
	if s.store != nil {
		if err := s.store.Checkpoint(ctx); err != nil {
			log.Printf("[MaintenanceScheduler] Checkpoint error: %v", err)
			report.Error = err.Error()
		} else {
			report.Checkpointed = true
		}
	}
	if p, ok := s.cache.(cache.Purger); ok {
		report.PurgedEntries = p.Purge()
	}
	if report.PurgedEntries > 0 {
		log.Printf("[MaintenanceScheduler] Purged %d expired cache entries", report.PurgedEntries)
	}

	s.mu.Lock()
	s.last = &report
	s.mu.Unlock()
	return report
}

// LastReport returns the most recent run, if any.
func (s *MaintenanceScheduler) LastReport() *MaintenanceReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Stop stops the scheduler.
func (s *MaintenanceScheduler) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.ticker != nil {
			s.ticker.Stop()
		}
		close(s.stopCh)
		s.isRunning = false
	})
}
