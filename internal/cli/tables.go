package cli

import (
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"prokfmt/internal/config"
)

// tableFlags locate a genome and its contig tables.
type tableFlags struct {
	name        string
	genomePath  string
	contigsFile string
	contigs     map[string]string
	sizesFile   string
}

func (t *tableFlags) register(c *cobra.Command) {
	c.Flags().StringVar(&t.name, "name", "", "genome name, prefix of every locus id")
	c.Flags().StringVar(&t.genomePath, "genome-path", "", "genome FASTA (sizes and diagnostics; gzip or '-')")
	c.Flags().StringVar(&t.contigsFile, "contigs", "", "TSV of original<TAB>canonical contig names")
	c.Flags().StringToStringVar(&t.contigs, "contig", nil, "original=canonical contig name (repeatable)")
	c.Flags().StringVar(&t.sizesFile, "sizes", "", "TSV of contig<TAB>length (default: measured from --genome-path)")
}

// genomeSpec turns the flags into a manifest entry so single genomes resolve the
// same way manifest genomes do. Without needSizes an explicit contig map is
// enough.
func (t *tableFlags) genomeSpec(fallbackName string, needSizes bool) (config.GenomeSpec, error) {
	g := config.GenomeSpec{
		Name:        t.name,
		Path:        t.genomePath,
		Contigs:     t.contigs,
		ContigsFile: t.contigsFile,
		SizesFile:   t.sizesFile,
	}
	if g.Name == "" {
		g.Name = fallbackName
	}
	switch {
	case g.Name == "":
		return g, usageErr("--name is required")
	case len(g.Contigs) > 0 && g.ContigsFile != "":
		return g, usageErr("--contig and --contigs are exclusive")
	case g.Path != "" || g.SizesFile != "":
	case needSizes:
		return g, usageErr("--genome-path or --sizes is required")
	case len(g.Contigs) == 0 && g.ContigsFile == "":
		return g, usageErr("--genome-path, --sizes or a contig map is required")
	}
	return g, nil
}

// stem is a file name without directory and extension.
func stem(path string) string {
	b := filepath.Base(path)
	return strings.TrimSuffix(b, filepath.Ext(b))
}
