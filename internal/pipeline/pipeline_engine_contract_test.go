package pipeline

import "prokfmt/internal/engine"

// Compile-time check: the concrete engine satisfies the minimal contract.
var _ Normalizer = (*engine.Engine)(nil)
