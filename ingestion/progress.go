package ingestion

import (
	"log/slog"
	"sync"

	"github.com/panjf2000/ants/v2"
)

// ProgressFunc receives (current, total) after each ingested row.
type ProgressFunc func(current, total int)

// progressReporter delivers updates on a single non-blocking worker. An
// update arriving while the worker is busy is dropped, so a slow consumer
// never stalls ingestion and updates are observed in order.
type progressReporter struct {
	fn     ProgressFunc
	pool   *ants.Pool
	wg     sync.WaitGroup
	logger *slog.Logger

	dropped int
}

func newProgressReporter(fn ProgressFunc, logger *slog.Logger) (*progressReporter, error) {
	r := &progressReporter{fn: fn, logger: logger}
	if fn == nil {
		return r, nil
	}
	pool, err := ants.NewPool(1, ants.WithNonblocking(true))
	if err != nil {
		return nil, err
	}
	r.pool = pool
	return r, nil
}

// report submits an update without waiting. The final update is left to finish.
func (r *progressReporter) report(current, total int) {
	if r.fn == nil || current >= total {
		return
	}
	r.wg.Add(1)
	err := r.pool.Submit(func() {
		defer r.wg.Done()
		r.fn(current, total)
	})
	if err != nil {
		r.wg.Done()
		r.dropped++
	}
}

// finish waits for the in-flight update, delivers (total, total) and stops the worker.
func (r *progressReporter) finish(total int) {
	if r.fn == nil {
		return
	}
	r.wg.Wait()
	r.fn(total, total)
	r.stop()
}

// stop waits for the in-flight update and stops the worker without a final update.
func (r *progressReporter) stop() {
	if r.pool == nil {
		return
	}
	r.wg.Wait()
	r.pool.Release()
	r.pool = nil
	if r.dropped > 0 {
		r.logger.Debug("coalesced progress updates", "dropped", r.dropped)
	}
}
