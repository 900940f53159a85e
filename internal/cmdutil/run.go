// internal/cmdutil/run.go
package cmdutil

import (
	"context"

	"prokfmt/internal/config"
	"prokfmt/internal/engine"
	"prokfmt/internal/pipeline"
)

// RunPrepared sends the resolvable genomes through the pool and merges their
// results with the resolution failures, keeping manifest order. visit sees the
// resolution failures first, then pool results as they complete.
func RunPrepared(ctx context.Context, threads int, ps []config.Prepared, n pipeline.Normalizer, visit func(engine.Result) error) ([]engine.Result, error) {
	out := make([]engine.Result, len(ps))
	var (
		jobs []pipeline.Job
		idx  []int
	)
	for i, p := range ps {
		if p.Err != nil {
			out[i] = engine.Result{Genome: p.Job.Genome.Name, Outputs: p.Job.Outputs, Step: engine.StepResolve, Err: p.Err}
			if visit != nil {
				if err := visit(out[i]); err != nil {
					return out, err
				}
			}
			continue
		}
		jobs = append(jobs, p.Job)
		idx = append(idx, i)
	}
	rs, err := pipeline.Run(ctx, pipeline.Config{Threads: threads}, jobs, n, visit)
	for k, r := range rs {
		out[idx[k]] = r
	}
	return out, err
}
