// internal/cli/steps.go
package cli

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"prokfmt/internal/gen"
	"prokfmt/internal/gff"
	"prokfmt/internal/tbl"
)

func tbl2lstCmd(st *state) *cobra.Command {
	var (
		tf      tableFlags
		tblPath string
		out     string
	)
	c := &cobra.Command{
		Use:   "tbl2lst",
		Short: "Convert a feature table into the canonical gene list",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			gs, err := tf.genomeSpec("", false)
			if err != nil {
				return err
			}
			g, err := gs.ResolveContigs(cmd.Context())
			if err != nil {
				return failed(err)
			}
			return failed(tbl.Tbl2Lst(cmd.Context(), tblPath, out, g.Contigs, g.Name, g.Path, tbl.Options{Logger: st.log}))
		},
	}
	tf.register(c)
	c.Flags().StringVar(&tblPath, "tbl", "", "annotator feature table (required)")
	c.Flags().StringVarP(&out, "out", "o", "", "gene list to write (required)")
	_ = c.MarkFlagRequired("tbl")
	_ = c.MarkFlagRequired("out")
	return c
}

func gffCmd(st *state) *cobra.Command {
	var (
		tf      tableFlags
		gffPath string
		lst     string
		out     string
	)
	c := &cobra.Command{
		Use:   "gff",
		Short: "Check annotator coordinates against a gene list and write canonical GFF3",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			gs, err := tf.genomeSpec(stem(lst), true)
			if err != nil {
				return err
			}
			g, err := gs.Resolve(cmd.Context())
			if err != nil {
				return failed(err)
			}
			return failed(gff.GenerateGFF(cmd.Context(), g.Path, gffPath, out, lst, g.Sizes, g.Contigs, gff.Options{Logger: st.log}))
		},
	}
	tf.register(c)
	c.Flags().StringVar(&gffPath, "gff", "", "annotator GFF3 file (required)")
	c.Flags().StringVar(&lst, "lst", "", "gene list written by tbl2lst (required)")
	c.Flags().StringVarP(&out, "out", "o", "", "GFF3 file to write (required)")
	_ = c.MarkFlagRequired("gff")
	_ = c.MarkFlagRequired("lst")
	_ = c.MarkFlagRequired("out")
	return c
}

func genCmd(st *state) *cobra.Command {
	var ffn, lst, out string
	c := &cobra.Command{
		Use:   "gen",
		Short: "Rename annotator gene sequences to canonical locus ids",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := gen.CreateGen(cmd.Context(), ffn, lst, out, gen.Options{Logger: st.log})
			if err != nil {
				return failed(err)
			}
			st.log.Info("gen file written", zap.String("gen", out), zap.Int("sequences", res.Written), zap.Int("skipped", len(res.Skipped)))
			return nil
		},
	}
	c.Flags().StringVar(&ffn, "ffn", "", "annotator gene sequences (required; gzip or '-')")
	c.Flags().StringVar(&lst, "lst", "", "gene list written by tbl2lst (required)")
	c.Flags().StringVarP(&out, "out", "o", "", "gen file to write (required)")
	_ = c.MarkFlagRequired("ffn")
	_ = c.MarkFlagRequired("lst")
	_ = c.MarkFlagRequired("out")
	return c
}
