package jobs

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Scheduler enqueues recurring jobs at fixed intervals. The retention
// purges run through it from the worker command.
type Scheduler struct {
	queue     *Queue
	schedules map[string]*Schedule
	stopChan  chan struct{}
	wg        sync.WaitGroup
	mu        sync.RWMutex
}

// Schedule defines a recurring job schedule
type Schedule struct {
	ID       string
	Queue    string
	Type     string
	Payload  map[string]interface{}
	Interval time.Duration
	LastRun  time.Time
	NextRun  time.Time
}

// NewScheduler creates a new interval scheduler
func NewScheduler(queue *Queue) *Scheduler {
	return &Scheduler{
		queue:     queue,
		schedules: make(map[string]*Schedule),
		stopChan:  make(chan struct{}),
	}
}

// Add registers a recurring job schedule. The first run happens one
// interval after the scheduler starts.
func (s *Scheduler) Add(schedule *Schedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if schedule.ID == "" {
		schedule.ID = uuid.New().String()
	}
	if schedule.Interval <= 0 {
		return fmt.Errorf("interval must be positive")
	}
	if schedule.Queue == "" {
		schedule.Queue = QueueDefault
	}
	if schedule.Type == "" {
		return fmt.Errorf("job type is required")
	}

	schedule.NextRun = time.Now().Add(schedule.Interval)
	s.schedules[schedule.ID] = schedule
	log.Printf("Added schedule %s: %s every %v", schedule.ID, schedule.Type, schedule.Interval)

	return nil
}

// Schedules returns all registered schedules
func (s *Scheduler) Schedules() []*Schedule {
	s.mu.RLock()
	defer s.mu.RUnlock()

	schedules := make([]*Schedule, 0, len(s.schedules))
	for _, schedule := range s.schedules {
		schedules = append(schedules, schedule)
	}
	return schedules
}

// Start starts the scheduler loop
func (s *Scheduler) Start(ctx context.Context) {
	s.wg.Add(1)
	go s.run(ctx)
	log.Printf("Scheduler started")
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	close(s.stopChan)
	s.wg.Wait()
	log.Printf("Scheduler stopped")
}

// run is the main scheduler loop
func (s *Scheduler) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.checkSchedules(ctx, now)
		}
	}
}

// checkSchedules enqueues due scheduled jobs
func (s *Scheduler) checkSchedules(ctx context.Context, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, schedule := range s.schedules {
		if now.Before(schedule.NextRun) {
			continue
		}

		job := NewJob(schedule.Type, schedule.Payload)
		job.Queue = schedule.Queue
		if err := s.queue.Enqueue(ctx, job); err != nil {
			log.Printf("Failed to enqueue scheduled job %s: %v", schedule.ID, err)
			continue
		}

		schedule.LastRun = now
		schedule.NextRun = now.Add(schedule.Interval)
		log.Printf("Enqueued scheduled job %s (type: %s), next run at %v",
			schedule.ID, schedule.Type, schedule.NextRun)
	}
}

// Every is a helper to build a schedule with a fixed interval
func Every(interval time.Duration, jobType string, payload map[string]interface{}) *Schedule {
	return &Schedule{
		ID:       uuid.New().String(),
		Queue:    QueueDefault,
		Type:     jobType,
		Payload:  payload,
		Interval: interval,
	}
}
