// internal/pipeline/pipeline.go
package pipeline

import (
	"context"
	"sync"

	"prokfmt/internal/engine"
)

// Config controls the genome pool.
type Config struct {
	Threads int // number of worker goroutines (>=1)
}

// Job is one genome and where its artifacts go.
type Job struct {
	Genome  engine.Genome
	Outputs engine.Outputs
}

// Run normalizes every job on cfg.Threads workers. visit, when non-nil, sees
// each result as it completes and is never called concurrently. The returned
// slice holds one result per job in input order; jobs not started before ctx
// was canceled carry ctx.Err(). The error is ctx.Err() or the first error
// returned by visit.
func Run(ctx context.Context, cfg Config, jobs []Job, n Normalizer, visit func(engine.Result) error) ([]engine.Result, error) {
	if cfg.Threads < 1 {
		cfg.Threads = 1
	}

	type done struct {
		idx int
		res engine.Result
	}
	work := make(chan int, cfg.Threads*2)
	results := make(chan done, cfg.Threads*2)

	// Workers
	var wg sync.WaitGroup
	wg.Add(cfg.Threads)
	for w := 0; w < cfg.Threads; w++ {
		go func() {
			defer wg.Done()
			for i := range work {
				j := jobs[i]
				var r engine.Result
				if err := ctx.Err(); err != nil {
					r = engine.Result{Genome: j.Genome.Name, Outputs: j.Outputs, Err: err}
				} else {
					r = n.Normalize(ctx, j.Genome, j.Outputs)
				}
				results <- done{idx: i, res: r}
			}
		}()
	}

	// Collector
	out := make([]engine.Result, len(jobs))
	var (
		verr error
		cwg  sync.WaitGroup
	)
	cwg.Add(1)
	go func() {
		defer cwg.Done()
		for d := range results {
			out[d.idx] = d.res
			if visit != nil && verr == nil {
				verr = visit(d.res)
			}
		}
	}()

	// Feed work
feed:
	for i := range jobs {
		select {
		case <-ctx.Done():
			for k := i; k < len(jobs); k++ {
				out[k] = engine.Result{Genome: jobs[k].Genome.Name, Outputs: jobs[k].Outputs, Err: ctx.Err()}
			}
			break feed
		case work <- i:
		}
	}

	close(work)
	wg.Wait()
	close(results)
	cwg.Wait()

	if err := ctx.Err(); err != nil {
		return out, err
	}
	return out, verr
}

// Failed returns the results that did not succeed.
func Failed(rs []engine.Result) []engine.Result {
	var bad []engine.Result
	for _, r := range rs {
		if !r.OK() {
			bad = append(bad, r)
		}
	}
	return bad
}
