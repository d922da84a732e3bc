package scheduler

import (
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// CachePurger removes cached photos resolved before cutoff.
type CachePurger interface {
	PurgeCachedPhotos(cutoff time.Time) (int64, error)
}

// Scheduler keeps the photo cache bounded by purging expired entries once at
// startup and then every interval.
type Scheduler struct {
	purger   CachePurger
	logger   *logrus.Logger
	ttl      time.Duration
	interval time.Duration
	now      func() time.Time
	stopChan chan struct{}
	wg       sync.WaitGroup
	jobMutex sync.Mutex // Ensures purges never overlap
}

// NewScheduler creates a new scheduler
func NewScheduler(purger CachePurger, ttl, interval time.Duration, logger *logrus.Logger) *Scheduler {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
		logger.SetLevel(logrus.InfoLevel)
	}
	if interval <= 0 {
		interval = time.Hour
	}

	return &Scheduler{
		purger:   purger,
		logger:   logger,
		ttl:      ttl,
		interval: interval,
		now:      time.Now,
		stopChan: make(chan struct{}),
	}
}

// Start runs the startup purge and begins the periodic ones
func (s *Scheduler) Start() {
	s.wg.Add(1)
	go s.runScheduler()
}

func (s *Scheduler) runScheduler() {
	defer s.wg.Done()

	s.logger.Info("Running startup cache purge")
	s.RunPurge()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.RunPurge()
		}
	}
}

// RunPurge deletes cached photos older than the TTL and returns how many
// were removed. A non-positive TTL keeps everything.
func (s *Scheduler) RunPurge() int64 {
	if s.ttl <= 0 {
		return 0
	}

	s.jobMutex.Lock()
	defer s.jobMutex.Unlock()

	cutoff := s.now().Add(-s.ttl)
	purged, err := s.purger.PurgeCachedPhotos(cutoff)
	if err != nil {
		s.logger.WithError(err).Error("Cache purge failed")
		return 0
	}

	entry := s.logger.WithFields(logrus.Fields{
		"cutoff": cutoff,
		"purged": purged,
	})
	if purged > 0 {
		entry.Info("Purged expired photos from cache")
	} else {
		entry.Debug("No expired photos in cache")
	}
	return purged
}

// Stop gracefully stops the scheduler
func (s *Scheduler) Stop() {
	close(s.stopChan)
	s.wg.Wait()
}
