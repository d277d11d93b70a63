package storage

import (
	"sync"

	"github.com/WangYihang/Logo-Harvester/pkg/domain/entity"
)

// channel is a closable buffered channel that rejects writes after close
// instead of panicking
type channel[T any] struct {
	mu     sync.RWMutex
	ch     chan T
	closed bool
}

func newChannel[T any](size int) channel[T] {
	return channel[T]{ch: make(chan T, max(size, 1))}
}

// put writes v, blocking while the buffer is full when wait is set
func (c *channel[T]) put(v T, wait bool) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return false
	}
	if wait {
		c.ch <- v
		return true
	}
	select {
	case c.ch <- v:
		return true
	default:
		return false
	}
}

func (c *channel[T]) take() (T, bool) {
	v, ok := <-c.ch
	return v, ok
}

func (c *channel[T]) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.ch)
	}
}

// TaskQueue implements repository.TaskQueue. It is sized to the batch, so a
// failed Enqueue means the queue was closed or mis-sized.
type TaskQueue struct {
	c channel[*entity.Task]
}

// NewTaskQueue creates a task queue holding up to size tasks
func NewTaskQueue(size int) *TaskQueue {
	return &TaskQueue{c: newChannel[*entity.Task](size)}
}

// Enqueue adds a task without blocking
func (q *TaskQueue) Enqueue(task *entity.Task) bool { return q.c.put(task, false) }

// Dequeue blocks for the next task; ok is false once closed and drained
func (q *TaskQueue) Dequeue() (*entity.Task, bool) { return q.c.take() }

// Len returns the number of queued tasks
func (q *TaskQueue) Len() int { return len(q.c.ch) }

// Close stops accepting tasks
func (q *TaskQueue) Close() { q.c.close() }

// ResultQueue implements repository.ResultQueue
type ResultQueue struct {
	c channel[*entity.Result]
}

// NewResultQueue creates a result queue buffering size results
func NewResultQueue(size int) *ResultQueue {
	return &ResultQueue{c: newChannel[*entity.Result](size)}
}

// Send blocks until the result is queued; results sent after Close are dropped
func (q *ResultQueue) Send(result *entity.Result) { q.c.put(result, true) }

// Receive blocks for the next result
func (q *ResultQueue) Receive() (*entity.Result, bool) { return q.c.take() }

// Close stops accepting results
func (q *ResultQueue) Close() { q.c.close() }
