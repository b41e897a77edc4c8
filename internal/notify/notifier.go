package notify

import (
	"context"
	"sync"
	"time"

	"github.com/butterandcrumb/storefront-backend/pkg/logger"
)

// Task is a best-effort side effect dispatched off the critical path. Run
// failures are logged and dropped, never propagated to the dispatcher.
type Task struct {
	Kind string
	Run  func(ctx context.Context) error
}

// Notifier executes fire-and-forget tasks on a single background worker.
type Notifier struct {
	tasks   chan Task
	logg    *logger.Logger
	timeout time.Duration

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

const (
	defaultQueueSize   = 64
	defaultTaskTimeout = 30 * time.Second
)

// New starts the background worker.
func New(logg *logger.Logger) *Notifier {
	n := &Notifier{
		tasks:   make(chan Task, defaultQueueSize),
		logg:    logg,
		timeout: defaultTaskTimeout,
		done:    make(chan struct{}),
	}
	go n.run()
	return n
}

// Dispatch enqueues a task without blocking. A full queue or a closed
// notifier drops the task, which is acceptable for best-effort
// notifications; the drop is logged.
func (n *Notifier) Dispatch(task Task) bool {
	if n == nil || task.Run == nil {
		return false
	}

	// The closed check and the send share the mutex with Close so a dispatch
	// can never race the channel close.
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		n.logDrop(task, "notifier closed, dropping task")
		return false
	}
	select {
	case n.tasks <- task:
		return true
	default:
		n.logDrop(task, "notify queue full, dropping task")
		return false
	}
}

// Close stops accepting tasks and waits for the queued ones to drain. It is
// idempotent, and dispatches arriving afterwards are dropped, not panicked.
func (n *Notifier) Close() {
	if n == nil {
		return
	}
	n.mu.Lock()
	if !n.closed {
		n.closed = true
		close(n.tasks)
	}
	n.mu.Unlock()
	<-n.done
}

func (n *Notifier) logDrop(task Task, msg string) {
	if n.logg == nil {
		return
	}
	ctx := n.logg.WithField(context.Background(), "kind", task.Kind)
	n.logg.Warn(ctx, msg)
}

func (n *Notifier) run() {
	defer close(n.done)
	for task := range n.tasks {
		n.execute(task)
	}
}

func (n *Notifier) execute(task Task) {
	ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
	defer cancel()

	if n.logg != nil {
		ctx = n.logg.WithField(ctx, "kind", task.Kind)
	}

	defer func() {
		if rec := recover(); rec != nil && n.logg != nil {
			n.logg.Error(ctx, "notify task panicked", nil)
		}
	}()

	if err := task.Run(ctx); err != nil {
		if n.logg != nil {
			n.logg.Error(ctx, "notify task failed", err)
		}
		return
	}
	if n.logg != nil {
		n.logg.Info(ctx, "notify task complete")
	}
}
