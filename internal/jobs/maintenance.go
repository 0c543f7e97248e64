package jobs

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/Ananth-NQI/poputky-backend/internal/services"
)

// ListingDeactivator retires listings whose day has passed
type ListingDeactivator interface {
	DeactivateListingsBefore(ctx context.Context, day time.Time) (int64, error)
}

// MaintenanceJob runs the scheduled housekeeping tasks
type MaintenanceJob struct {
	listings      ListingDeactivator
	sessions      services.Sweeper // nil when the session backend expires keys itself
	loc           *time.Location
	cleanupHour   int
	sweepInterval time.Duration

	mu      sync.Mutex
	stop    chan struct{}
	wg      sync.WaitGroup
	running bool
	now     func() time.Time
}

// NewMaintenanceJob creates the job scheduler
func NewMaintenanceJob(listings ListingDeactivator, sessions services.Sweeper, loc *time.Location, cleanupHour int, sweepInterval time.Duration) *MaintenanceJob {
	if loc == nil {
		loc = time.Local
	}
	return &MaintenanceJob{
		listings:      listings,
		sessions:      sessions,
		loc:           loc,
		cleanupHour:   cleanupHour,
		sweepInterval: sweepInterval,
		now:           time.Now,
	}
}

// Start begins all scheduled jobs
func (j *MaintenanceJob) Start() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.running {
		log.Println("Maintenance jobs already running")
		return
	}
	j.running = true
	j.stop = make(chan struct{})

	log.Println("Starting scheduled maintenance jobs...")
	j.wg.Add(1)
	go j.scheduleListingCleanup()
	if j.sessions != nil && j.sweepInterval > 0 {
		j.wg.Add(1)
		go j.scheduleSessionSweep()
	}
}

// Stop halts all scheduled jobs and waits for them to return
func (j *MaintenanceJob) Stop() {
	j.mu.Lock()
	if !j.running {
		j.mu.Unlock()
		return
	}
	j.running = false
	close(j.stop)
	j.mu.Unlock()

	log.Println("Stopping scheduled maintenance jobs...")
	j.wg.Wait()
}

// LISTING CLEANUP - Runs every day at cleanupHour
func (j *MaintenanceJob) scheduleListingCleanup() {
	defer j.wg.Done()
	for {
		now := j.now().In(j.loc)
		duration := nextDailyRun(now, j.cleanupHour).Sub(now)
		log.Printf("Next listing cleanup scheduled in %v", duration)

		timer := time.NewTimer(duration)
		select {
		case <-j.stop:
			timer.Stop()
			return
		case <-timer.C:
		}

		if _, err := j.CleanupListings(context.Background()); err != nil {
			log.Printf("❌ Listing cleanup failed: %v", err)
		}
	}
}

// CleanupListings deactivates every listing dated before today
func (j *MaintenanceJob) CleanupListings(ctx context.Context) (int64, error) {
	today := services.StartOfDay(j.now(), j.loc)
	n, err := j.listings.DeactivateListingsBefore(ctx, today)
	if err != nil {
		return 0, err
	}
	log.Printf("✅ Deactivated %d past listings", n)
	return n, nil
}

// SESSION SWEEP - Runs every sweepInterval
func (j *MaintenanceJob) scheduleSessionSweep() {
	defer j.wg.Done()
	ticker := time.NewTicker(j.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-j.stop:
			return
		case <-ticker.C:
			if n, err := j.sessions.Sweep(context.Background()); err != nil {
				log.Printf("❌ Session sweep failed: %v", err)
			} else if n > 0 {
				log.Printf("Swept %d expired sessions", n)
			}
		}
	}
}

// nextDailyRun returns the next time at hour:00 strictly after now
func nextDailyRun(now time.Time, hour int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
