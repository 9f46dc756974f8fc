package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"claimboard/internal/logger"
)

// ErrQueueFull is returned by Submit when the pool cannot take more work
var ErrQueueFull = errors.New("worker pool queue full (backpressure)")

// ErrPoolClosed is returned by Submit after Shutdown
var ErrPoolClosed = errors.New("worker pool is shut down")

// ChangeTask announces that a leaderboard entry changed
type ChangeTask struct {
	EntryID string
	Reason  string // "claim" or "create"
}

// ChangeRecorder is where tasks end up; RedisRepository implements it
type ChangeRecorder interface {
	RecordChange(ctx context.Context, entryID string) error
}

// WorkerPool runs change notifications off the request path
type WorkerPool struct {
	jobs        chan ChangeTask
	workerCount int
	recorder    ChangeRecorder
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	metrics     *PoolMetrics
	taskTimeout time.Duration

	closeMu sync.RWMutex
	closed  bool
}

// PoolMetrics tracks worker pool performance
type PoolMetrics struct {
	mu              sync.RWMutex
	processed       int64
	failed          int64
	backpressure    int64
	totalProcessing time.Duration
}

// NewWorkerPool creates a new worker pool
func NewWorkerPool(workerCount, queueSize int, recorder ChangeRecorder) *WorkerPool {
	ctx, cancel := context.WithCancel(context.Background())

	return &WorkerPool{
		jobs:        make(chan ChangeTask, queueSize),
		workerCount: workerCount,
		recorder:    recorder,
		ctx:         ctx,
		cancel:      cancel,
		metrics:     &PoolMetrics{},
		taskTimeout: 5 * time.Second,
	}
}

// Start initializes and starts all worker goroutines
func (wp *WorkerPool) Start() {
	for i := 1; i <= wp.workerCount; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}

	logger.Success("Worker pool started with %d workers and queue size %d", wp.workerCount, cap(wp.jobs))
}

func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	for {
		select {
		case <-wp.ctx.Done():
			return

		case task, ok := <-wp.jobs:
			if !ok {
				return
			}
			wp.processTask(id, task)
		}
	}
}

func (wp *WorkerPool) processTask(workerID int, task ChangeTask) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Worker #%d panic recovered: %v (entry: %s)", workerID, r, task.EntryID)
			wp.metrics.incrementFailed()
		}
	}()

	startTime := time.Now()

	ctx, cancel := context.WithTimeout(wp.ctx, wp.taskTimeout)
	defer cancel()

	err := wp.recorder.RecordChange(ctx, task.EntryID)

	processingTime := time.Since(startTime)

	if err != nil {
		logger.Error("Worker #%d failed to record %s change for %s: %v (took %v)",
			workerID, task.Reason, task.EntryID, err, processingTime)
		wp.metrics.incrementFailed()
		return
	}

	wp.metrics.recordSuccess(processingTime)
}

// Submit queues a task without blocking
func (wp *WorkerPool) Submit(task ChangeTask) error {
	wp.closeMu.RLock()
	defer wp.closeMu.RUnlock()

	if wp.closed {
		return ErrPoolClosed
	}

	select {
	case wp.jobs <- task:
		return nil
	default:
		logger.Warning("Backpressure: queue full, dropping change notification for entry %s", task.EntryID)
		wp.metrics.incrementBackpressure()
		return ErrQueueFull
	}
}

// Shutdown stops accepting work and waits for queued tasks to finish
func (wp *WorkerPool) Shutdown(timeout time.Duration) error {
	wp.closeMu.Lock()
	if wp.closed {
		wp.closeMu.Unlock()
		return nil
	}
	wp.closed = true
	close(wp.jobs)
	wp.closeMu.Unlock()

	done := make(chan struct{})
	go func() {
		wp.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		wp.cancel()
		wp.printMetrics()
		return nil

	case <-time.After(timeout):
		wp.cancel() // Force cancel remaining operations
		logger.Warning("Worker pool shutdown timed out after %v", timeout)
		return fmt.Errorf("shutdown timeout exceeded")
	}
}

// Snapshot is a point-in-time copy of the pool counters
type Snapshot struct {
	Processed          int64  `json:"processed"`
	Failed             int64  `json:"failed"`
	BackpressureEvents int64  `json:"backpressure_events"`
	AvgProcessingTime  string `json:"avg_processing_time"`
	QueueUtilization   string `json:"queue_utilization"`
}

// GetMetrics returns a snapshot of the pool metrics
func (wp *WorkerPool) GetMetrics() Snapshot {
	wp.metrics.mu.RLock()
	defer wp.metrics.mu.RUnlock()

	avgProcessing := time.Duration(0)
	if wp.metrics.processed > 0 {
		avgProcessing = wp.metrics.totalProcessing / time.Duration(wp.metrics.processed)
	}

	return Snapshot{
		Processed:          wp.metrics.processed,
		Failed:             wp.metrics.failed,
		BackpressureEvents: wp.metrics.backpressure,
		AvgProcessingTime:  avgProcessing.String(),
		QueueUtilization:   fmt.Sprintf("%d/%d", len(wp.jobs), cap(wp.jobs)),
	}
}

func (wp *WorkerPool) printMetrics() {
	m := wp.GetMetrics()
	logger.Info("Worker pool: processed=%d failed=%d backpressure=%d avg=%s",
		m.Processed, m.Failed, m.BackpressureEvents, m.AvgProcessingTime)
}

func (pm *PoolMetrics) recordSuccess(duration time.Duration) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.processed++
	pm.totalProcessing += duration
}

func (pm *PoolMetrics) incrementFailed() {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.failed++
}

func (pm *PoolMetrics) incrementBackpressure() {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.backpressure++
}
