package queue

import (
	"errors"
	"sync"

	"acmreport/server/internal/models"

	"github.com/sirupsen/logrus"
)

var (
	ErrQueueFull   = errors.New("queue is full")
	ErrQueueClosed = errors.New("queue is closed")
)

// PhotoQueue is an in-memory queue of photo reference batches waiting to be resolved.
type PhotoQueue struct {
	items    chan []models.PhotoReference
	done     chan struct{}
	maxSize  int
	closed   bool
	mu       sync.RWMutex
	logger   *logrus.Logger
	handlers []func([]models.PhotoReference) error
}

// NewPhotoQueue creates a queue holding at most bufferSize pending batches
func NewPhotoQueue(bufferSize int, logger *logrus.Logger) *PhotoQueue {
	if logger == nil {
		logger = logrus.New()
	}
	return &PhotoQueue{
		items:    make(chan []models.PhotoReference, bufferSize),
		done:     make(chan struct{}),
		maxSize:  bufferSize,
		logger:   logger,
		handlers: make([]func([]models.PhotoReference) error, 0),
	}
}

// Push adds a batch of references. References of kind none are dropped and an
// empty batch is ignored.
func (q *PhotoQueue) Push(refs ...models.PhotoReference) error {
	batch := make([]models.PhotoReference, 0, len(refs))
	for _, ref := range refs {
		if !ref.IsNone() {
			batch = append(batch, ref)
		}
	}

	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	if len(batch) == 0 {
		return nil
	}

	// Never blocks the caller
	select {
	case q.items <- batch:
		q.logger.WithField("batch_size", len(batch)).Debug("Pushed photo batch to queue")
		return nil
	default:
		return ErrQueueFull
	}
}

// Subscribe adds a handler function that will be called for each batch
func (q *PhotoQueue) Subscribe(handler func([]models.PhotoReference) error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers = append(q.handlers, handler)
}

// Start begins processing items in the queue
func (q *PhotoQueue) Start() {
	go q.process()
}

func (q *PhotoQueue) process() {
	for {
		select {
		case <-q.done:
			return
		case batch, ok := <-q.items:
			if !ok {
				return
			}
			q.processBatch(batch)
		}
	}
}

func (q *PhotoQueue) processBatch(batch []models.PhotoReference) {
	q.mu.RLock()
	handlers := q.handlers
	q.mu.RUnlock()

	for _, handler := range handlers {
		if err := handler(batch); err != nil {
			q.logger.WithError(err).Error("Handler failed to process photo batch")
		}
	}
}

// Close stops the queue and prevents new items from being added
func (q *PhotoQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}

	q.closed = true
	close(q.done)
	close(q.items)
	return nil
}

// Len returns the current number of batches in the queue
func (q *PhotoQueue) Len() int {
	return len(q.items)
}

// IsClosed returns whether the queue has been closed
func (q *PhotoQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
