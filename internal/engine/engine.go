// internal/engine/engine.go
package engine

import (
	"context"
	"errors"
	"path/filepath"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"prokfmt/internal/annot"
	"prokfmt/internal/contigs"
	"prokfmt/internal/gen"
	"prokfmt/internal/gff"
	"prokfmt/internal/tbl"
	"prokfmt/internal/writers"
)

// Genome is one genome's annotator output plus its contig tables.
type Genome struct {
	Name string // prefix of every locus id
	Path string // original genome path, used in diagnostics

	Tbl string
	GFF string
	FFN string

	Contigs *contigs.Map
	Sizes   contigs.Sizes
}

// AnnotationFiles fills Tbl, GFF and FFN from an annotator result directory
// holding <prefix>.tbl, <prefix>.gff and <prefix>.ffn.
func (g *Genome) AnnotationFiles(dir, prefix string) {
	g.Tbl = filepath.Join(dir, prefix+".tbl")
	g.GFF = filepath.Join(dir, prefix+".gff")
	g.FFN = filepath.Join(dir, prefix+".ffn")
}

// Outputs are the three canonical artifacts of a genome.
type Outputs struct {
	Lst string
	GFF string
	Gen string
}

// Output directory names under a collection root.
const (
	DirLst = "LSTINFO"
	DirGFF = "gff3"
	DirGen = "Genes"
)

// OutputsIn lays out a genome's artifacts under root.
func OutputsIn(root, name string) Outputs {
	return Outputs{
		Lst: filepath.Join(root, DirLst, name+".lst"),
		GFF: filepath.Join(root, DirGFF, name+".gff"),
		Gen: filepath.Join(root, DirGen, name+".gen"),
	}
}

// Step names the component a Result failed in.
type Step string

const (
	StepNone    Step = ""
	StepResolve Step = "resolve"
	StepTbl     Step = "tbl2lst"
	StepGFF     Step = "generate_gff"
	StepGen     Step = "create_gen"
)

// Result is the outcome of normalizing one genome.
type Result struct {
	Genome  string
	Outputs Outputs
	Skipped []string // gene-list entries without a sequence
	Step    Step     // failing step; StepNone on success
	Err     error
}

// OK reports success.
func (r Result) OK() bool { return r.Err == nil }

// Engine runs the normalization steps for single genomes. It holds no state
// between calls and is safe for concurrent use.
type Engine struct {
	log *zap.Logger
}

// New returns an Engine logging to log (nil disables logging).
func New(log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{log: log}
}

// Normalize runs Tbl2Lst, then GenerateGFF and CreateGen concurrently. When a
// step fails, every artifact of the genome is removed.
func (e *Engine) Normalize(ctx context.Context, g Genome, out Outputs) Result {
	log := e.log.With(zap.String("genome", g.Name))
	res := Result{Genome: g.Name, Outputs: out}

	fail := func(step Step, err error) Result {
		for _, p := range []string{out.Lst, out.GFF, out.Gen} {
			writers.Discard(p)
		}
		res.Step, res.Err = step, err
		var ae *annot.Error
		if errors.As(err, &ae) {
			log.Error("genome rejected", zap.String("step", string(step)), zap.Object("error", ae))
		} else {
			log.Error("genome failed", zap.String("step", string(step)), zap.Error(err))
		}
		return res
	}

	if err := tbl.Tbl2Lst(ctx, g.Tbl, out.Lst, g.Contigs, g.Name, g.Path, tbl.Options{Logger: log}); err != nil {
		return fail(StepTbl, err)
	}

	var (
		gffErr, genErr error
		genRes         gen.Result
	)
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		gffErr = gff.GenerateGFF(egCtx, g.Path, g.GFF, out.GFF, out.Lst, g.Sizes, g.Contigs, gff.Options{Logger: log})
		return gffErr
	})
	eg.Go(func() error {
		genRes, genErr = gen.CreateGen(egCtx, g.FFN, out.Lst, out.Gen, gen.Options{Logger: log})
		return genErr
	})
	_ = eg.Wait()

	// A step canceled because its sibling failed is not the cause.
	switch {
	case gffErr != nil && !errors.Is(gffErr, context.Canceled):
		return fail(StepGFF, gffErr)
	case genErr != nil && !errors.Is(genErr, context.Canceled):
		return fail(StepGen, genErr)
	case gffErr != nil:
		return fail(StepGFF, gffErr)
	case genErr != nil:
		return fail(StepGen, genErr)
	}

	res.Skipped = genRes.Skipped
	log.Info("genome normalized",
		zap.String("lst", out.Lst),
		zap.String("gff", out.GFF),
		zap.String("gen", out.Gen),
		zap.Int("sequences", genRes.Written),
		zap.Int("skipped", len(genRes.Skipped)),
	)
	return res
}
