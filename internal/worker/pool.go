// Package worker runs per-tile jobs on a bounded number of goroutines.
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/MeKo-Tech/cldfoffline/internal/tile"
)

// Handler processes a single tile. It reports the number of bytes it
// produced, zero when there was nothing to do.
type Handler interface {
	Handle(ctx context.Context, coords tile.Coords) (int64, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, coords tile.Coords) (int64, error)

// Handle calls f(ctx, coords).
func (f HandlerFunc) Handle(ctx context.Context, coords tile.Coords) (int64, error) {
	return f(ctx, coords)
}

// Result is the outcome of handling one tile.
type Result struct {
	Err     error
	Coords  tile.Coords
	Bytes   int64
	Elapsed time.Duration
}

// Counts is the running tally of a pool run.
type Counts struct {
	Bytes  int64
	Done   int
	Total  int
	Failed int
}

// Succeeded is the number of finished tiles without an error.
func (c Counts) Succeeded() int { return c.Done - c.Failed }

// ProgressFunc is called with the updated counts after each tile finishes.
type ProgressFunc func(Counts)

// Config configures the worker pool.
type Config struct {
	Handler    Handler
	OnProgress ProgressFunc
	Workers    int
}

// Pool manages parallel tile jobs.
type Pool struct {
	handler    Handler
	onProgress ProgressFunc
	workers    int
}

// New creates a new worker pool.
func New(cfg Config) *Pool {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}

	return &Pool{
		workers:    workers,
		handler:    cfg.Handler,
		onProgress: cfg.OnProgress,
	}
}

// Run handles all tiles and returns one result per tile that was started.
// It blocks until every worker has finished or the context is cancelled;
// tiles not yet handed to a worker at cancellation produce no result.
func (p *Pool) Run(ctx context.Context, tiles []tile.Coords) []Result {
	if len(tiles) == 0 {
		return nil
	}

	taskCh := make(chan tile.Coords)
	resultCh := make(chan Result, len(tiles))

	var wg sync.WaitGroup
	for range p.workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.worker(ctx, taskCh, resultCh)
		}()
	}

	go func() {
		defer close(taskCh)
		for _, c := range tiles {
			select {
			case taskCh <- c:
			case <-ctx.Done():
				return
			}
		}
	}()

	results := make([]Result, 0, len(tiles))
	done := make(chan struct{})

	go func() {
		counts := Counts{Total: len(tiles)}
		for result := range resultCh {
			results = append(results, result)

			counts.Done++
			counts.Bytes += result.Bytes
			if result.Err != nil {
				counts.Failed++
			}
			if p.onProgress != nil {
				p.onProgress(counts)
			}
		}
		close(done)
	}()

	wg.Wait()
	close(resultCh)
	<-done

	return results
}

func (p *Pool) worker(ctx context.Context, tasks <-chan tile.Coords, results chan<- Result) {
	for coords := range tasks {
		if err := ctx.Err(); err != nil {
			results <- Result{Coords: coords, Err: err}
			continue
		}

		start := time.Now()
		n, err := p.handler.Handle(ctx, coords)
		results <- Result{
			Coords:  coords,
			Bytes:   n,
			Err:     err,
			Elapsed: time.Since(start),
		}
	}
}
