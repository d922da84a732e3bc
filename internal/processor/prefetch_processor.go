package processor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"acmreport/server/config"
	"acmreport/server/internal/models"
	"acmreport/server/internal/photos"
	"acmreport/server/internal/queue"
)

// PhotoResolver resolves a single photo reference.
type PhotoResolver interface {
	Resolve(ctx context.Context, ref models.PhotoReference) (*photos.EmbeddedPhoto, error)
}

// PrefetchProcessor resolves queued photo references ahead of report
// compilation so the resolver cache is warm when a report is requested.
type PrefetchProcessor struct {
	resolver PhotoResolver
	logger   *logrus.Logger
	config   *config.Config
	queue    *queue.PhotoQueue
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewPrefetchProcessor creates a new prefetch processor instance
func NewPrefetchProcessor(resolver PhotoResolver, queue *queue.PhotoQueue, config *config.Config, logger *logrus.Logger) *PrefetchProcessor {
	ctx, cancel := context.WithCancel(context.Background())
	return &PrefetchProcessor{
		resolver: resolver,
		queue:    queue,
		config:   config,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start subscribes the processor to the queue
func (p *PrefetchProcessor) Start() {
	p.queue.Subscribe(p.processBatch)
}

// Stop cancels in-flight resolutions and pending retries
func (p *PrefetchProcessor) Stop() {
	p.cancel()
}

func (p *PrefetchProcessor) processBatch(batch []models.PhotoReference) error {
	failed := 0
	for _, ref := range batch {
		if err := p.resolveWithRetry(ref); err != nil {
			failed++
		}
	}

	if failed > 0 {
		return fmt.Errorf("failed to resolve %d of %d photos", failed, len(batch))
	}
	p.logger.Debugf("Prefetched batch of %d photos", len(batch))
	return nil
}

// resolveWithRetry retries temporary failures only; permanent ones return at once.
func (p *PrefetchProcessor) resolveWithRetry(ref models.PhotoReference) error {
	maxRetries := p.config.Prefetch.MaxRetries
	delay := time.Duration(p.config.Prefetch.RetryDelay) * time.Second

	var err error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			p.logger.Infof("Retrying photo resolution, attempt %d of %d", attempt, maxRetries)
			select {
			case <-p.ctx.Done():
				return p.ctx.Err()
			case <-time.After(delay):
			}
		}

		_, err = p.resolver.Resolve(p.ctx, ref)
		if err == nil {
			return nil
		}

		var decodeErr *photos.AssetDecodeError
		if !errors.As(err, &decodeErr) || !decodeErr.Temporary {
			return err
		}
	}

	return fmt.Errorf("failed to resolve photo after %d attempts: %w", maxRetries+1, err)
}
