package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"alliance-observatory/internal/models"
	"alliance-observatory/internal/redis"
)

var ErrQueueFull = errors.New("screenshot queue is full")

// JobUpdate is what subscribers (the websocket stream) see when a job
// reaches a terminal state.
type JobUpdate struct {
	ScreenshotID int64                   `json:"screenshot_id"`
	Status       models.ScreenshotStatus `json:"status"`
	DetectedType models.ScreenshotType   `json:"detected_type"`
	RecordsSaved int                     `json:"records_saved"`
	Degraded     bool                    `json:"degraded,omitempty"`
	Error        string                  `json:"error,omitempty"`
}

type worker struct {
	id       int
	stopChan chan bool
}

// Processor drains the screenshot queue with a small bounded pool. Jobs on
// the rate-limited recognition call run to completion; only queued jobs are
// dropped on shutdown.
type Processor struct {
	log      *slog.Logger
	pipeline *Pipeline
	redis    *redis.Client

	queue   chan Job
	workers []*worker
	wg      sync.WaitGroup
	mu      sync.RWMutex

	subMu sync.RWMutex
	subs  map[chan JobUpdate]struct{}
}

// jobTimeout bounds one screenshot end to end. Generous because each region
// crop may wait out the recognition call interval.
const jobTimeout = 10 * time.Minute

func NewProcessor(log *slog.Logger, p *Pipeline, redisClient *redis.Client, queueSize int) *Processor {
	if queueSize < 1 {
		queueSize = 256
	}
	return &Processor{
		log:      log,
		pipeline: p,
		redis:    redisClient,
		queue:    make(chan Job, queueSize),
		subs:     make(map[chan JobUpdate]struct{}),
	}
}

// Enqueue adds a job without blocking; a full queue is the caller's problem
// to report.
func (pr *Processor) Enqueue(job Job) error {
	job.EnqueuedAt = time.Now().UTC()
	select {
	case pr.queue <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

func (pr *Processor) QueueDepth() int {
	return len(pr.queue)
}

func (pr *Processor) StartWorkers(workerCount int) {
	if workerCount < 1 {
		workerCount = 2
	}
	if workerCount > 16 {
		workerCount = 16
	}

	pr.mu.Lock()
	defer pr.mu.Unlock()

	for i := 0; i < workerCount; i++ {
		w := &worker{
			id:       i + 1,
			stopChan: make(chan bool, 1),
		}
		pr.workers = append(pr.workers, w)

		pr.wg.Add(1)
		go pr.runWorker(w)
	}

	pr.log.Info("pipeline_workers_started", "count", workerCount)
}

func (pr *Processor) runWorker(w *worker) {
	defer pr.wg.Done()

	for {
		select {
		case job := <-pr.queue:
			ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
			sc := pr.pipeline.Process(ctx, job)
			cancel()

			if sc.Status == models.StatusFailed {
				pr.log.Warn("screenshot_failed",
					"worker_id", w.id,
					"screenshot_id", job.ScreenshotID,
					"error", sc.ErrorMessage,
				)
				pr.sendToDLQ(job, sc.ErrorMessage)
			}
			pr.publish(JobUpdate{
				ScreenshotID: sc.ID,
				Status:       sc.Status,
				DetectedType: sc.DetectedType,
				RecordsSaved: sc.RecordsSaved,
				Degraded:     sc.Degraded,
				Error:        sc.ErrorMessage,
			})
		case <-w.stopChan:
			pr.log.Info("worker_stopped", "worker_id", w.id)
			return
		}
	}
}

// StopWorkers signals every worker and waits. A worker mid-job finishes it
// first; jobs still queued stay unprocessed.
func (pr *Processor) StopWorkers() {
	pr.mu.Lock()
	for _, w := range pr.workers {
		select {
		case w.stopChan <- true:
		default:
		}
	}
	pr.mu.Unlock()

	pr.wg.Wait()
	pr.log.Info("all_workers_stopped")
}

func (pr *Processor) sendToDLQ(job Job, errorMsg string) {
	if pr.redis == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	data, _ := json.Marshal(map[string]interface{}{
		"screenshot_id": job.ScreenshotID,
		"alliance_id":   job.AllianceID,
		"filename":      job.Filename,
		"error":         errorMsg,
		"timestamp":     time.Now().UTC(),
	})
	pr.redis.RDB().LPush(ctx, "dlq:screenshots", data)
	pr.redis.RDB().Expire(ctx, "dlq:screenshots", 7*24*time.Hour)
}

// Subscribe registers a job-update channel. The returned cancel func must be
// called when the consumer goes away.
func (pr *Processor) Subscribe() (<-chan JobUpdate, func()) {
	ch := make(chan JobUpdate, 16)
	pr.subMu.Lock()
	pr.subs[ch] = struct{}{}
	pr.subMu.Unlock()

	cancel := func() {
		pr.subMu.Lock()
		delete(pr.subs, ch)
		pr.subMu.Unlock()
	}
	return ch, cancel
}

func (pr *Processor) publish(upd JobUpdate) {
	pr.subMu.RLock()
	defer pr.subMu.RUnlock()
	for ch := range pr.subs {
		select {
		case ch <- upd:
		default:
			// slow consumer, drop rather than stall the worker
		}
	}
}
