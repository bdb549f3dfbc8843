package progress

import (
	"context"
	"log/slog"
	"sync"
)

const defaultPushBuffer = 64

// pushJob is one fire-and-forget remote write.
type pushJob struct {
	name string
	fn   func(ctx context.Context) error
}

// pusher runs remote writes on a single background goroutine so callers
// never block on the network. Failures are logged by the worker, never
// returned. The queue is bounded: when it is full a job is dropped with a
// warning rather than blocking a mutation.
type pusher struct {
	jobs    chan pushJob
	pending sync.WaitGroup

	mu      sync.Mutex
	closing bool

	stopOnce sync.Once
	stopped  chan struct{}
}

func newPusher(buffer int) *pusher {
	if buffer <= 0 {
		buffer = defaultPushBuffer
	}
	p := &pusher{
		jobs:    make(chan pushJob, buffer),
		stopped: make(chan struct{}),
	}
	go p.run()
	return p
}

func (p *pusher) run() {
	for job := range p.jobs {
		if err := job.fn(context.Background()); err != nil {
			slog.Warn("background push failed", "job", job.name, "error", err)
		}
		p.pending.Done()
	}
	close(p.stopped)
}

// enqueue schedules a job without blocking. Returns false if the job was
// dropped because the queue was full or already closed.
func (p *pusher) enqueue(name string, fn func(ctx context.Context) error) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closing {
		slog.Warn("push queue closed, dropping job", "job", name)
		return false
	}
	p.pending.Add(1)
	select {
	case p.jobs <- pushJob{name: name, fn: fn}:
		return true
	default:
		p.pending.Done()
		slog.Warn("push queue full, dropping job", "job", name)
		return false
	}
}

// flush blocks until every enqueued job has finished.
func (p *pusher) flush() {
	p.pending.Wait()
}

// close drains the queue and stops the worker. Jobs enqueued afterwards are
// dropped with a warning.
func (p *pusher) close() {
	p.stopOnce.Do(func() {
		p.mu.Lock()
		p.closing = true
		p.mu.Unlock()
		p.flush()
		close(p.jobs)
		<-p.stopped
	})
}
