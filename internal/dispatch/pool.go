// Package dispatch runs the worker side of the job protocol: a bounded pool
// of goroutines executing blocking job functions, fed by a consumer that
// demultiplexes deliveries by routing key, acks after completion, and
// publishes the result back under the job type's response key.
package dispatch

import (
	"context"
	"log/slog"
	"sync"

	"github.com/tlexii/overlord/internal/protocol"
)

// JobFunc executes one job. It may block on subprocesses or synchronous HTTP
// calls; it runs on a pool slot, never on the consumer loop. A JobFunc must
// be safe to re-run for the same body: delivery is at least once.
type JobFunc func(ctx context.Context, body map[string]interface{}) (map[string]interface{}, error)

// DefaultFailureMessage is the generic text surfaced to the reply destination
// when a job function fails. Internal error detail stays in the logs.
const DefaultFailureMessage = "Server error - contact Vengel"

type poolTask struct {
	jobType string
	body    map[string]interface{}
	fn      JobFunc
	result  chan map[string]interface{}
}

// Pool is a fixed-size pool of execution slots for blocking job functions.
// Submissions beyond capacity queue in FIFO order; the broker's prefetch
// limit must not exceed the capacity, which bounds the queue.
type Pool struct {
	capacity       int
	failureMessage string
	tasks          chan *poolTask
	logger         *slog.Logger
	wg             sync.WaitGroup
	started        bool
	drained        chan struct{}
}

// NewPool creates a pool with the given number of slots. An empty
// failureMessage selects DefaultFailureMessage.
func NewPool(capacity int, failureMessage string, logger *slog.Logger) *Pool {
	if capacity <= 0 {
		capacity = 1
	}
	if failureMessage == "" {
		failureMessage = DefaultFailureMessage
	}

	return &Pool{
		capacity:       capacity,
		failureMessage: failureMessage,
		tasks:          make(chan *poolTask, capacity),
		logger:         logger,
		drained:        make(chan struct{}),
	}
}

// Capacity returns the number of slots
func (p *Pool) Capacity() int {
	return p.capacity
}

// Start spawns the slot goroutines. They run until ctx is canceled.
func (p *Pool) Start(ctx context.Context) {
	p.logger.Info("Spawning worker pool",
		slog.Int("capacity", p.capacity),
	)

	p.started = true
	for i := 0; i < p.capacity; i++ {
		p.wg.Add(1)
		go p.runSlot(ctx, i)
	}

	// After cancellation, resolve any tasks still queued (or racing into the
	// queue) with nil so no Submit waiter hangs during shutdown. Wait closes
	// the task channel, which ends the range and lets this goroutine exit.
	go func() {
		<-ctx.Done()
		for task := range p.tasks {
			task.result <- nil
		}
		close(p.drained)
	}()
}

// Wait blocks until every slot goroutine has exited and the shutdown drain
// has resolved every queued submission. Call it only after the context passed
// to Start is canceled and no further Submit calls can happen.
func (p *Pool) Wait() {
	p.wg.Wait()
	if p.started {
		close(p.tasks)
		<-p.drained
	}
	p.logger.Info("Worker pool stopped")
}

// Submit schedules fn on a free slot and returns a channel that yields the
// job's result exactly once. A failing or panicking job function yields the
// uniform failure payload instead of propagating; the pool never crashes on
// job errors.
func (p *Pool) Submit(ctx context.Context, jobType string, body map[string]interface{}, fn JobFunc) <-chan map[string]interface{} {
	task := &poolTask{
		jobType: jobType,
		body:    body,
		fn:      fn,
		result:  make(chan map[string]interface{}, 1),
	}

	select {
	case p.tasks <- task:
	case <-ctx.Done():
		// Shutting down: resolve the handle with nil so no waiter leaks.
		// The job never ran and its message must stay unacknowledged so the
		// broker redelivers it.
		task.result <- nil
	}

	return task.result
}

// runSlot is the main loop of one execution slot
func (p *Pool) runSlot(ctx context.Context, slot int) {
	defer p.wg.Done()

	p.logger.Debug("Worker slot started",
		slog.Int("slot", slot),
	)

	for {
		select {
		case <-ctx.Done():
			p.logger.Debug("Worker slot stopping - context canceled",
				slog.Int("slot", slot),
			)
			return

		case task, ok := <-p.tasks:
			if !ok {
				return
			}
			task.result <- p.execute(ctx, slot, task)
		}
	}
}

// execute runs one job function, converting errors and panics into the
// uniform failure payload.
func (p *Pool) execute(ctx context.Context, slot int, task *poolTask) (result map[string]interface{}) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Job function panicked",
				slog.Int("slot", slot),
				slog.String("job_type", task.jobType),
				slog.Any("panic", r),
				slog.Any("body", task.body),
			)
			result = protocol.FailureBody(p.failureMessage)
		}
	}()

	p.logger.Info("Executing job",
		slog.Int("slot", slot),
		slog.String("job_type", task.jobType),
	)

	out, err := task.fn(ctx, task.body)
	if err != nil {
		p.logger.Error("Job function failed",
			slog.Int("slot", slot),
			slog.String("job_type", task.jobType),
			slog.String("error", err.Error()),
			slog.Any("body", task.body),
		)
		return protocol.FailureBody(p.failureMessage)
	}

	p.logger.Info("Job completed",
		slog.Int("slot", slot),
		slog.String("job_type", task.jobType),
	)
	return out
}
