package pipeline

import (
	"context"

	"prokfmt/internal/engine"
)

// Normalizer is the minimal capability the pipeline needs.
// Any engine (including fakes in tests) can satisfy this.
type Normalizer interface {
	Normalize(ctx context.Context, g engine.Genome, out engine.Outputs) engine.Result
}
