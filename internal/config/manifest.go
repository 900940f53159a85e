// Package config loads the batch manifest and resolves each listed genome
// into the inputs the engine needs.
package config

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"prokfmt/internal/contigs"
	"prokfmt/internal/engine"
	"prokfmt/internal/pipeline"
)

// Manifest lists the genomes of one collection.
type Manifest struct {
	OutputDir string       `yaml:"output_dir"`
	Threads   int          `yaml:"threads"`
	Genomes   []GenomeSpec `yaml:"genomes"`
}

// GenomeSpec is one manifest entry. Relative paths are taken from the
// manifest's directory.
type GenomeSpec struct {
	Name          string            `yaml:"name"`
	Path          string            `yaml:"path"`           // genome FASTA
	AnnotationDir string            `yaml:"annotation_dir"` // holds <prefix>.tbl/.gff/.ffn
	Prefix        string            `yaml:"prefix"`         // defaults to Name
	Contigs       map[string]string `yaml:"contigs"`        // original -> canonical
	ContigsFile   string            `yaml:"contigs_file"`
	SizesFile     string            `yaml:"sizes_file"`
}

// Load reads and validates a manifest file.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	m.rebase(filepath.Dir(path))
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Parse decodes a single YAML document, rejecting unknown keys.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty manifest")
		}
		return nil, err
	}
	var extra any
	if err := dec.Decode(&extra); err == nil {
		return nil, fmt.Errorf("multiple YAML documents are not supported")
	} else if !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed after first YAML document: %w", err)
	}
	for i := range m.Genomes {
		if m.Genomes[i].Prefix == "" {
			m.Genomes[i].Prefix = m.Genomes[i].Name
		}
	}
	return &m, nil
}

func (m *Manifest) rebase(dir string) {
	join := func(p *string) {
		if *p != "" && *p != "-" && !filepath.IsAbs(*p) {
			*p = filepath.Join(dir, *p)
		}
	}
	join(&m.OutputDir)
	for i := range m.Genomes {
		g := &m.Genomes[i]
		join(&g.Path)
		join(&g.AnnotationDir)
		join(&g.ContigsFile)
		join(&g.SizesFile)
	}
}

// Validate checks what can be checked without touching the genome files.
func (m *Manifest) Validate() error {
	if m.OutputDir == "" {
		return fmt.Errorf("output_dir is required")
	}
	if m.Threads < 0 {
		return fmt.Errorf("threads must be >= 0, got %d", m.Threads)
	}
	if len(m.Genomes) == 0 {
		return fmt.Errorf("no genomes listed")
	}
	seen := make(map[string]bool, len(m.Genomes))
	for i, g := range m.Genomes {
		if err := g.Validate(); err != nil {
			return fmt.Errorf("genomes[%d]: %w", i, err)
		}
		if seen[g.Name] {
			return fmt.Errorf("genomes[%d]: duplicate name %q", i, g.Name)
		}
		seen[g.Name] = true
	}
	return nil
}

// Validate checks a single entry.
func (g GenomeSpec) Validate() error {
	switch {
	case g.Name == "":
		return fmt.Errorf("name is required")
	case strings.ContainsAny(g.Name, "/\\ \t"):
		return fmt.Errorf("name %q must not contain separators or blanks", g.Name)
	case g.AnnotationDir == "":
		return fmt.Errorf("%s: annotation_dir is required", g.Name)
	case len(g.Contigs) > 0 && g.ContigsFile != "":
		return fmt.Errorf("%s: contigs and contigs_file are exclusive", g.Name)
	case g.SizesFile == "" && g.Path == "":
		return fmt.Errorf("%s: path or sizes_file is required", g.Name)
	}
	return nil
}

// Resolve loads the contig tables of the entry. Sizes come from sizes_file,
// otherwise from the genome FASTA. Without a contig map every sized contig
// maps to itself.
func (g GenomeSpec) Resolve(ctx context.Context) (engine.Genome, error) {
	out := g.base()
	if out.Path == "" {
		out.Path = g.SizesFile
	}

	var err error
	if g.SizesFile != "" {
		out.Sizes, err = contigs.LoadSizesTSV(g.SizesFile)
	} else {
		out.Sizes, err = contigs.SizesFromFASTA(ctx, g.Path)
	}
	if err != nil {
		return engine.Genome{}, fmt.Errorf("%s: sizes: %w", g.Name, err)
	}

	if out.Contigs, err = g.contigMap(); err != nil {
		return engine.Genome{}, err
	}
	if out.Contigs == nil {
		out.Contigs = contigs.Identity(out.Sizes.Names()...)
	}
	return out, nil
}

// ResolveContigs is Resolve for steps that only rename contigs: an explicit
// contig map is loaded without measuring the genome. Sizes stay empty unless
// the identity map needs the contig names.
func (g GenomeSpec) ResolveContigs(ctx context.Context) (engine.Genome, error) {
	m, err := g.contigMap()
	if err != nil {
		return engine.Genome{}, err
	}
	if m == nil {
		return g.Resolve(ctx)
	}
	out := g.base()
	if out.Path == "" {
		out.Path = g.ContigsFile
	}
	out.Contigs = m
	return out, nil
}

func (g GenomeSpec) base() engine.Genome {
	out := engine.Genome{Name: g.Name, Path: g.Path}
	prefix := g.Prefix
	if prefix == "" {
		prefix = g.Name
	}
	out.AnnotationFiles(g.AnnotationDir, prefix)
	return out
}

// contigMap returns the explicit contig map, or nil when none is configured.
func (g GenomeSpec) contigMap() (*contigs.Map, error) {
	switch {
	case len(g.Contigs) > 0:
		return contigs.NewMap(g.Contigs), nil
	case g.ContigsFile != "":
		m, err := contigs.LoadMapTSV(g.ContigsFile)
		if err != nil {
			return nil, fmt.Errorf("%s: contigs: %w", g.Name, err)
		}
		return m, nil
	}
	return nil, nil
}

// Prepared is a manifest genome ready for the pool, or the reason it is not.
type Prepared struct {
	Job pipeline.Job
	Err error
}

// Prepare resolves every genome on up to threads goroutines. A genome that
// cannot be resolved is reported in its Prepared entry; the error return is
// only ever ctx.Err().
func (m *Manifest) Prepare(ctx context.Context, threads int) ([]Prepared, error) {
	if threads < 1 {
		threads = 1
	}
	out := make([]Prepared, len(m.Genomes))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(threads)
	for i, gs := range m.Genomes {
		eg.Go(func() error {
			g, err := gs.Resolve(egCtx)
			out[i] = Prepared{
				Job: pipeline.Job{Genome: g, Outputs: engine.OutputsIn(m.OutputDir, gs.Name)},
				Err: err,
			}
			if err != nil {
				out[i].Job.Genome.Name = gs.Name
			}
			return nil
		})
	}
	_ = eg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
