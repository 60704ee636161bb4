package svm

import (
	"sync"

	"github.com/rs/zerolog"
)

// TaskQueue runs tasks one at a time in FIFO order on a single worker.
// Push never blocks the producer.
type TaskQueue struct {
	mu      sync.Mutex
	tasks   []func()
	stopped bool

	signal   chan struct{}
	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
	logger   zerolog.Logger
}

// NewTaskQueue starts the worker goroutine.
func NewTaskQueue(logger zerolog.Logger) *TaskQueue {
	q := &TaskQueue{
		signal: make(chan struct{}, 1),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
		logger: logger.With().Str("component", "svm_task_queue").Logger(),
	}
	go q.work()
	return q
}

// Push enqueues task. It returns false once the queue is stopped.
func (q *TaskQueue) Push(task func()) bool {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return false
	}
	q.tasks = append(q.tasks, task)
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// Len returns the number of tasks waiting to run.
func (q *TaskQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// Stop waits for the running task to finish and discards the rest.
// It returns the number of discarded tasks.
func (q *TaskQueue) Stop() int {
	dropped := 0
	q.stopOnce.Do(func() {
		q.mu.Lock()
		q.stopped = true
		q.mu.Unlock()

		close(q.stopCh)
		<-q.doneCh

		q.mu.Lock()
		dropped = len(q.tasks)
		q.tasks = nil
		q.mu.Unlock()

		if dropped > 0 {
			q.logger.Warn().Int("dropped", dropped).Msg("task queue stopped with pending tasks")
		}
	})
	return dropped
}

func (q *TaskQueue) work() {
	defer close(q.doneCh)
	for {
		select {
		case <-q.stopCh:
			return
		case <-q.signal:
		}

		for {
			select {
			case <-q.stopCh:
				return
			default:
			}

			task, ok := q.pop()
			if !ok {
				break
			}
			q.run(task)
		}
	}
}

func (q *TaskQueue) pop() (func(), bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.tasks) == 0 {
		return nil, false
	}
	task := q.tasks[0]
	q.tasks[0] = nil
	q.tasks = q.tasks[1:]
	return task, true
}

func (q *TaskQueue) run(task func()) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error().Interface("panic", r).Msg("task panicked")
		}
	}()
	task()
}
