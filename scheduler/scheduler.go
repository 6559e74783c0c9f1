// Package scheduler provides automated reference reloads and health monitoring
// for the lab reference API. It runs cron-based reloads, accepts on-demand
// reloads from the file watcher and coordinates snapshot swaps with the data
// container using dependency injection.
package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/giygas/labref-api/errors"
	"github.com/giygas/labref-api/interfaces"
	"github.com/giygas/labref-api/loader"
	"github.com/giygas/labref-api/logging"
	"github.com/giygas/labref-api/metrics"
)

// Compile-time checks
var (
	_ interfaces.Scheduler = (*Scheduler)(nil)
	_ interfaces.Reloader  = (*Scheduler)(nil)
)

// Reload triggers, used as the metrics label
const (
	TriggerStartup  = "startup"
	TriggerSchedule = "schedule"
	TriggerWatch    = "watch"
	TriggerManual   = "manual"
	TriggerQueued   = "queued"
)

// staleWarning is how old a snapshot may get before the monitor complains
const staleWarning = 25 * time.Hour

// Scheduler handles reference reloads and health monitoring using dependency injection
type Scheduler struct {
	dataStore interfaces.DataStore
	loader    interfaces.Loader
	schedule  string
	scheduler *gocron.Scheduler

	mu      sync.Mutex
	job     *gocron.Job
	lastErr error

	// set by every request; a reload that finds it set after finishing
	// loads again so changes made mid-load are not lost
	pending atomic.Bool

	monitorEvery time.Duration
	stop         chan struct{}
	stopOnce     sync.Once
	wg           sync.WaitGroup
}

// NewScheduler creates a new scheduler instance with injected dependencies.
// schedule is a cron expression; an empty one disables periodic reloads.
func NewScheduler(dataStore interfaces.DataStore, l interfaces.Loader, schedule string) *Scheduler {
	return &Scheduler{
		dataStore:    dataStore,
		loader:       l,
		schedule:     schedule,
		scheduler:    gocron.NewScheduler(time.Local),
		monitorEvery: time.Hour,
		stop:         make(chan struct{}),
	}
}

// Start performs the initial load, schedules reloads and starts health monitoring
func (s *Scheduler) Start() error {
	if err := s.reload(context.Background(), TriggerStartup); err != nil {
		logging.Error("Failed to perform initial reference load", "error", err)
		return errors.Wrap(err, "initial reference load failed")
	}

	if s.schedule != "" {
		job, err := s.scheduler.Cron(s.schedule).Do(func() {
			if err := s.reload(context.Background(), TriggerSchedule); err != nil {
				logging.Error("Failed to reload references", "error", err)
			}
		})
		if err != nil {
			logging.Error("Failed to schedule reloads", "schedule", s.schedule, "error", err)
			return errors.Wrapf(err, "failed to schedule reloads %q", s.schedule)
		}

		s.mu.Lock()
		s.job = job
		s.mu.Unlock()

		s.scheduler.StartAsync()
	}

	s.startHealthMonitoring()

	return nil
}

// Stop stops scheduled reloads and the health monitor
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		s.scheduler.Stop()
		close(s.stop)
	})
	s.wg.Wait()
}

// Reload rebuilds the snapshot now
func (s *Scheduler) Reload(ctx context.Context) error {
	return s.reload(ctx, TriggerManual)
}

// ReloadFor rebuilds the snapshot now and labels the reload with trigger
func (s *Scheduler) ReloadFor(ctx context.Context, trigger string) error {
	return s.reload(ctx, trigger)
}

// NextRun returns the next scheduled reload, zero when none is scheduled
func (s *Scheduler) NextRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.job == nil {
		return time.Time{}
	}
	return s.job.NextRun()
}

// LastError returns the error of the latest reload, nil after a success
func (s *Scheduler) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// reload builds a snapshot and swaps it in. A failed load keeps serving the
// previous snapshot. A request arriving while another reload runs is queued:
// the running reload loads once more when it finishes.
func (s *Scheduler) reload(ctx context.Context, trigger string) error {
	s.pending.Store(true)
	if !s.dataStore.BeginUpdate() {
		logging.Info("Reload already in progress, queued", "trigger", trigger)
		return nil
	}

	for {
		s.pending.Store(false)
		err := s.load(ctx, trigger)
		s.dataStore.EndUpdate()
		if !s.pending.Load() || !s.dataStore.BeginUpdate() {
			return err
		}
		trigger = TriggerQueued
	}
}

// load runs one snapshot build. Caller holds the update flag.
func (s *Scheduler) load(ctx context.Context, trigger string) error {
	logging.Info("Starting reference reload", "trigger", trigger, "location", s.loader.Location())
	start := time.Now()

	snapshot, err := s.loader.LoadSnapshot(ctx)
	metrics.ObserveReload(trigger, start, err)

	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()

	if err != nil {
		logging.Error("Failed to load references", "trigger", trigger, "error", err)
		return errors.Wrap(err, "failed to load references")
	}

	if snapshot.Report != nil {
		loader.LogReport(snapshot.Report)
	}

	// Atomic update using injected data store
	s.dataStore.UpdateData(snapshot)

	studies := 0
	tests := 0
	if snapshot.Report != nil {
		studies = snapshot.Report.Studies
		tests = snapshot.Report.Tests
	}
	metrics.SetSnapshotItems(len(snapshot.Catalogs), len(snapshot.Biomaterials), studies, tests)

	logging.Info("Reference reload completed",
		"trigger", trigger,
		"duration", time.Since(start).String(),
		"catalogs", len(snapshot.Catalogs),
		"studies", studies,
	)

	return nil
}

// startHealthMonitoring warns when the snapshot has not been refreshed
func (s *Scheduler) startHealthMonitoring() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.monitorEvery)
		defer ticker.Stop()

		for {
			select {
			case <-s.stop:
				return
			case <-ticker.C:
				lastUpdate := s.dataStore.GetLastUpdated()
				if time.Since(lastUpdate) > staleWarning {
					logging.Warn("References haven't been reloaded in over 25 hours", "last_update", lastUpdate)
				}
			}
		}
	}()
}
