package queue

import (
	"sync"
	"testing"
	"time"

	"acmreport/server/internal/models"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestNewPhotoQueue(t *testing.T) {
	logger := logrus.New()
	q := NewPhotoQueue(10, logger)
	assert.NotNil(t, q)
	assert.Equal(t, 10, q.maxSize)
	assert.False(t, q.IsClosed())
}

func TestPhotoQueue_Push(t *testing.T) {
	logger := logrus.New()
	q := NewPhotoQueue(2, logger)
	ref := models.PhotoFromURL("https://example.com/a.jpg")

	// Test successful push
	err := q.Push(ref)
	assert.NoError(t, err)
	assert.Equal(t, 1, q.Len())

	// Batches with only empty references are ignored
	err = q.Push(models.NoPhoto(), models.NoPhoto())
	assert.NoError(t, err)
	assert.Equal(t, 1, q.Len())

	// Test queue full
	assert.NoError(t, q.Push(ref))
	err = q.Push(ref)
	assert.Equal(t, ErrQueueFull, err)

	// Test closed queue
	q.Close()
	err = q.Push(ref)
	assert.Equal(t, ErrQueueClosed, err)
}

func TestPhotoQueue_Subscribe(t *testing.T) {
	logger := logrus.New()
	q := NewPhotoQueue(10, logger)

	var processed []models.PhotoReference
	var mu sync.Mutex

	q.Subscribe(func(refs []models.PhotoReference) error {
		mu.Lock()
		processed = append(processed, refs...)
		mu.Unlock()
		return nil
	})

	q.Start()
	defer q.Close()

	err := q.Push(
		models.PhotoFromURL("https://example.com/1.jpg"),
		models.NoPhoto(),
		models.PhotoFromURL("https://example.com/2.jpg"),
	)
	assert.NoError(t, err)

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(processed) == 2
	}, time.Second, 10*time.Millisecond)

	mu.Lock()
	assert.Equal(t, "https://example.com/1.jpg", processed[0].Value)
	assert.Equal(t, "https://example.com/2.jpg", processed[1].Value)
	mu.Unlock()
}

func TestPhotoQueue_Close(t *testing.T) {
	logger := logrus.New()
	q := NewPhotoQueue(10, logger)

	// Test first close
	err := q.Close()
	assert.NoError(t, err)
	assert.True(t, q.IsClosed())

	// Test second close (should be no-op)
	err = q.Close()
	assert.NoError(t, err)
}

func TestPhotoQueue_ProcessBatch(t *testing.T) {
	logger := logrus.New()
	q := NewPhotoQueue(10, logger)

	var wg sync.WaitGroup
	processedBatches := 0
	var mu sync.Mutex

	// Add multiple handlers
	for i := 0; i < 3; i++ {
		wg.Add(1)
		q.Subscribe(func(refs []models.PhotoReference) error {
			mu.Lock()
			processedBatches++
			mu.Unlock()
			wg.Done()
			return nil
		})
	}

	q.Start()
	defer q.Close()

	err := q.Push(models.PhotoFromEmbedded("AAAA"))
	assert.NoError(t, err)

	// Wait for all handlers
	wg.Wait()

	mu.Lock()
	assert.Equal(t, 3, processedBatches)
	mu.Unlock()
}
