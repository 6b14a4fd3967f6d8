package form

import (
	"context"
)

// Post queues fn to run on the form goroutine during the next Flush, Settle
// or Run. It is safe to call from any goroutine.
func (f *Form) Post(fn func()) {
	if fn == nil {
		return
	}
	f.post(func() error {
		fn()
		return nil
	})
}

func (f *Form) post(task func() error) {
	f.queueMu.Lock()
	f.queue = append(f.queue, task)
	f.queueMu.Unlock()

	select {
	case f.wake <- struct{}{}:
	default:
	}
}

// Flush runs every queued task, including tasks queued while flushing, and
// returns the errors they raised.
func (f *Form) Flush() error {
	f.drain()
	return f.takeErrors()
}

// Settle flushes until no debounce timer is pending and the queue is empty,
// or ctx is done.
func (f *Form) Settle(ctx context.Context) error {
	for {
		f.drain()
		if f.timers <= 0 && f.queued() == 0 {
			return f.takeErrors()
		}
		select {
		case <-ctx.Done():
			f.recordError(ctx.Err())
			return f.takeErrors()
		case <-f.wake:
		}
	}
}

// Run processes posted tasks until ctx is done. Task errors are logged.
func (f *Form) Run(ctx context.Context) error {
	for {
		f.drain()
		if err := f.takeErrors(); err != nil {
			f.log.Error("form task failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-f.wake:
		}
	}
}

func (f *Form) drain() {
	for {
		f.queueMu.Lock()
		tasks := f.queue
		f.queue = nil
		f.queueMu.Unlock()
		if len(tasks) == 0 {
			return
		}
		for _, task := range tasks {
			if f.destroyed {
				return
			}
			f.recordError(task())
		}
	}
}

func (f *Form) queued() int {
	f.queueMu.Lock()
	defer f.queueMu.Unlock()
	return len(f.queue)
}
