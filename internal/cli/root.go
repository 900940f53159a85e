// Package cli wires the normalization engine to the prokfmt command line.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"prokfmt/internal/cmdutil"
	"prokfmt/internal/writers"
)

// Version is stamped at build time.
var Version = "dev"

// Exit codes.
const (
	ExitOK       = 0
	ExitFailed   = 1 // at least one genome or step failed
	ExitUsage    = 2
	ExitIO       = 3 // report could not be written
	ExitCanceled = 130
)

// exitError carries an exit code through cobra's error return. Errors that
// reach RunContext without one come from cobra itself and are usage errors.
type exitError struct {
	code  int
	err   error
	quiet bool // already reported through the log or the report
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func usageErr(format string, a ...any) error {
	return &exitError{code: ExitUsage, err: fmt.Errorf(format, a...)}
}

func failed(err error) error {
	if err == nil {
		return nil
	}
	return &exitError{code: ExitFailed, err: err}
}

// state is shared by the root command and its subcommands.
type state struct {
	stdout *bufio.Writer
	stderr io.Writer

	verbose   bool
	logFormat string
	log       *zap.Logger
}

// RunContext executes one command line and returns the process exit code.
func RunContext(ctx context.Context, argv []string, stdout, stderr io.Writer) int {
	st := &state{stdout: bufio.NewWriter(stdout), stderr: stderr, log: zap.NewNop()}
	root := newRootCmd(st)
	root.SetArgs(argv)
	root.SetOut(st.stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if ferr := st.stdout.Flush(); ferr != nil && !writers.IsBrokenPipe(ferr) && err == nil {
		err = &exitError{code: ExitIO, err: ferr}
	}
	_ = st.log.Sync()

	if err == nil {
		return ExitOK
	}
	if errors.Is(err, context.Canceled) || ctx.Err() != nil {
		return ExitCanceled
	}
	var ee *exitError
	if errors.As(err, &ee) {
		if !ee.quiet {
			_, _ = fmt.Fprintln(stderr, "prokfmt:", err)
		}
		return ee.code
	}
	_, _ = fmt.Fprintln(stderr, "prokfmt:", err)
	return ExitUsage
}

// Run is RunContext with a background context.
func Run(argv []string, stdout, stderr io.Writer) int {
	return RunContext(context.Background(), argv, stdout, stderr)
}

func newRootCmd(st *state) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prokfmt",
		Short: "Normalize prokaryotic annotator output into canonical gene files",
		Long: `prokfmt turns the per-genome output of a prokaryotic annotator
(feature table, GFF3 coordinates, per-gene nucleotide sequences) into three
canonical artifacts keyed by stable locus ids:

  LSTINFO/<genome>.lst   gene list
  gff3/<genome>.gff      GFF3 coordinates
  Genes/<genome>.gen     gene sequences`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			log, err := cmdutil.NewLogger(st.stderr, st.logFormat, st.verbose)
			if err != nil {
				return usageErr("%v", err)
			}
			st.log = log
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			_ = st.log.Sync()
		},
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &exitError{code: ExitUsage, err: err}
	})

	cmd.PersistentFlags().BoolVarP(&st.verbose, "verbose", "v", false, "debug-level logging")
	cmd.PersistentFlags().StringVar(&st.logFormat, "log-format", cmdutil.LogJSON, "log encoding on stderr: json | console")

	cmd.AddCommand(
		tbl2lstCmd(st),
		gffCmd(st),
		genCmd(st),
		genomeCmd(st),
		batchCmd(st),
	)
	return cmd
}
