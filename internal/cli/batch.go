package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"prokfmt/internal/cmdutil"
	"prokfmt/internal/config"
	"prokfmt/internal/engine"
	"prokfmt/internal/output"
)

// reportFlags select how per-genome results are printed on stdout.
type reportFlags struct {
	format   string
	noHeader bool
}

func (r *reportFlags) register(c *cobra.Command) {
	c.Flags().StringVar(&r.format, "report", "text", "per-genome report on stdout: text | jsonl")
	c.Flags().BoolVar(&r.noHeader, "no-header", false, "suppress the header line of the text report")
}

// stream reports whether rows are written as genomes finish.
func (r *reportFlags) stream() bool { return r.format == "jsonl" }

// emit prints the report unless it was streamed, and turns failed genomes
// into ExitFailed.
func (r *reportFlags) emit(st *state, rs []engine.Result, streamErr error) error {
	if streamErr != nil {
		return &exitError{code: ExitIO, err: streamErr}
	}
	bad := 0
	rows := make([]output.Row, len(rs))
	for i, res := range rs {
		rows[i] = output.FromResult(res)
		if !res.OK() {
			bad++
		}
	}
	if !r.stream() {
		if err := output.Write(r.format, st.stdout, rows, !r.noHeader); err != nil {
			return &exitError{code: ExitIO, err: err}
		}
	}
	if bad > 0 {
		return &exitError{code: ExitFailed, err: fmt.Errorf("%d of %d genomes failed", bad, len(rs)), quiet: true}
	}
	return nil
}

func (r *reportFlags) validate() error {
	for _, f := range output.Formats() {
		if f == r.format {
			return nil
		}
	}
	return usageErr("unknown --report %q", r.format)
}

func genomeCmd(st *state) *cobra.Command {
	var (
		tf     tableFlags
		rf     reportFlags
		annDir string
		prefix string
		outDir string
	)
	c := &cobra.Command{
		Use:   "genome",
		Short: "Run tbl2lst, gff and gen for one genome",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := rf.validate(); err != nil {
				return err
			}
			gs, err := tf.genomeSpec("", true)
			if err != nil {
				return err
			}
			gs.AnnotationDir, gs.Prefix = annDir, prefix
			m := &config.Manifest{OutputDir: outDir, Threads: 1, Genomes: []config.GenomeSpec{gs}}
			return runManifest(cmd, st, m, 1, rf)
		},
	}
	tf.register(c)
	rf.register(c)
	c.Flags().StringVar(&annDir, "annotation-dir", "", "directory holding <prefix>.tbl, .gff and .ffn (required)")
	c.Flags().StringVar(&prefix, "prefix", "", "annotation file prefix (default: --name)")
	c.Flags().StringVar(&outDir, "out-dir", "", "collection root for LSTINFO/, gff3/ and Genes/ (required)")
	_ = c.MarkFlagRequired("annotation-dir")
	_ = c.MarkFlagRequired("out-dir")
	return c
}

func batchCmd(st *state) *cobra.Command {
	var (
		rf       reportFlags
		manifest string
		threads  int
		outDir   string
	)
	c := &cobra.Command{
		Use:   "batch",
		Short: "Normalize every genome of a YAML manifest on a worker pool",
		Long: `Normalize every genome listed in a manifest:

  output_dir: out
  threads: 4
  genomes:
    - name: ESCO.1017.00001
      path: genomes/esco.fna
      annotation_dir: prokka/esco
      contigs_file: esco.contigs.tsv

Relative paths are taken from the manifest's directory. A genome that fails
leaves no artifacts and does not stop the others.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := rf.validate(); err != nil {
				return err
			}
			if threads < 0 {
				return usageErr("--threads must be >= 0")
			}
			m, err := config.Load(manifest)
			if err != nil {
				return usageErr("%v", err)
			}
			if outDir != "" {
				m.OutputDir = outDir
			}
			n := m.Threads
			if cmd.Flags().Changed("threads") {
				n = threads
			}
			return runManifest(cmd, st, m, n, rf)
		},
	}
	rf.register(c)
	c.Flags().StringVarP(&manifest, "manifest", "m", "", "YAML manifest (required)")
	c.Flags().IntVarP(&threads, "threads", "t", 0, "worker goroutines (0 = all CPUs; default from manifest)")
	c.Flags().StringVar(&outDir, "out-dir", "", "override the manifest output_dir")
	_ = c.MarkFlagRequired("manifest")
	return c
}

func runManifest(cmd *cobra.Command, st *state, m *config.Manifest, threads int, rf reportFlags) error {
	if err := m.Validate(); err != nil {
		return usageErr("%v", err)
	}
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	ctx := cmd.Context()
	st.log.Info("run started", zap.Int("genomes", len(m.Genomes)), zap.Int("threads", threads), zap.String("output_dir", m.OutputDir))

	ps, err := m.Prepare(ctx, threads)
	if err != nil {
		return err
	}
	for _, p := range ps {
		if p.Err != nil {
			st.log.Error("genome skipped", zap.String("genome", p.Job.Genome.Name), zap.String("step", string(engine.StepResolve)), zap.Error(p.Err))
		}
	}

	var (
		js    *output.JSONLStream
		visit func(engine.Result) error
	)
	if rf.stream() {
		js = output.NewJSONLStream(st.stdout)
		visit = func(r engine.Result) error {
			js.Send(r)
			return nil
		}
	}
	rs, err := cmdutil.RunPrepared(ctx, threads, ps, engine.New(st.log), visit)
	var streamErr error
	if js != nil {
		streamErr = js.Close()
	}
	if err != nil {
		return err
	}
	return rf.emit(st, rs, streamErr)
}
