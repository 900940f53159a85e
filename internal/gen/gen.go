// Package gen rewrites the annotator's per-gene nucleotide file (ffn) into
// the canonical gen file, keyed by the locus ids of the gene list.
//
// Matching walks the gene list and the ffn file in step. Both files must list
// genes by increasing number; this is a precondition of the walk and is not
// checked separately. A gene-list entry without a sequence is skipped, but
// every sequence must match a gene-list entry.
package gen

import (
	"bufio"
	"context"
	"fmt"
	"regexp"
	"strconv"

	"go.uber.org/zap"

	"prokfmt/internal/annot"
	"prokfmt/internal/fasta"
	"prokfmt/internal/writers"
)

const op = "create_gen"

var (
	crisprHeader = regexp.MustCompile(`^(.+)_CRISPR([0-9]+)$`)
	geneHeader   = regexp.MustCompile(`^(.+)_([0-9]+)$`)
)

// Options tunes CreateGen.
type Options struct {
	Logger *zap.Logger // nil disables logging
}

func (o Options) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

// Result summarizes a successful extraction.
type Result struct {
	Written int
	Skipped []string // locus ids of gene-list entries without a sequence
}

// CreateGen reads ffnPath and lstPath and writes the gen file to outPath. On
// failure no file is left at outPath.
func CreateGen(ctx context.Context, ffnPath, lstPath, outPath string, opt Options) (Result, error) {
	log := opt.logger()
	recs, err := annot.LoadGeneList(lstPath)
	if err != nil {
		writers.Discard(outPath)
		return Result{}, fmt.Errorf("%s: %w", op, err)
	}

	m := newMatcher(recs, ffnPath, lstPath)
	var out []fasta.Record
	err = fasta.StreamPathCtx(ctx, ffnPath, func(r fasta.Record) error {
		g, err := m.match(r.ID)
		if err != nil {
			return err
		}
		out = append(out, fasta.Record{ID: g.ID, Desc: r.Desc, Lines: r.Lines})
		return nil
	})
	if err != nil {
		writers.Discard(outPath)
		if annot.IsValidation(err) {
			return Result{}, err
		}
		return Result{}, fmt.Errorf("%s: %s: %w", op, ffnPath, err)
	}

	if err := writers.WriteFileAtomic(outPath, func(w *bufio.Writer) error {
		for _, r := range out {
			if err := fasta.Write(w, r); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return Result{}, fmt.Errorf("%s: write %s: %w", op, outPath, err)
	}

	skipped := m.finish()
	for _, id := range skipped {
		log.Info("no sequence for gene, skipped", zap.String("locus_id", id), zap.String("ffn", ffnPath))
	}
	log.Debug("gen file written", zap.String("gen", outPath), zap.Int("sequences", len(out)))
	return Result{Written: len(out), Skipped: skipped}, nil
}

// matcher walks genes and CRISPR arrays of the gene list with two cursors.
type matcher struct {
	genes   []annot.GeneRecord
	crisprs []annot.GeneRecord
	gi, ci  int
	skipped []string

	ffn, lst string
}

func newMatcher(recs []annot.GeneRecord, ffn, lst string) *matcher {
	m := &matcher{ffn: ffn, lst: lst}
	for _, g := range recs {
		if g.Kind == annot.KindCRISPR {
			m.crisprs = append(m.crisprs, g)
		} else {
			m.genes = append(m.genes, g)
		}
	}
	return m
}

func (m *matcher) match(id string) (annot.GeneRecord, error) {
	if sm := crisprHeader.FindStringSubmatch(id); sm != nil {
		k, err := strconv.Atoi(sm[2])
		if err != nil {
			return annot.GeneRecord{}, m.unknownHeader(id)
		}
		if m.ci >= len(m.crisprs) {
			return annot.GeneRecord{}, m.unknownGene(id)
		}
		g := m.crisprs[m.ci]
		m.ci++
		if g.CrisprIndex != k {
			return annot.GeneRecord{}, &annot.Error{
				Op:   op,
				Kind: annot.KindCrisprIndexMismatch,
				Fields: map[string]string{
					"ffn":       m.ffn,
					"lst":       m.lst,
					"array":     sm[1],
					"ffn_index": strconv.Itoa(k),
					"lst_index": strconv.Itoa(g.CrisprIndex),
					"locus_id":  g.ID,
				},
				Msg: fmt.Sprintf("Problem with CRISPR numbers in %s. CRISPR >%s in ffn is CRISPR num %d, whereas it is annotated as CRISPR num %d in lst file.",
					m.lst, sm[1], k, g.CrisprIndex),
			}
		}
		return g, nil
	}

	if sm := geneHeader.FindStringSubmatch(id); sm != nil {
		n, err := strconv.Atoi(sm[2])
		if err != nil {
			return annot.GeneRecord{}, m.unknownHeader(id)
		}
		for m.gi < len(m.genes) && m.genes[m.gi].Num < n {
			m.skipped = append(m.skipped, m.genes[m.gi].ID)
			m.gi++
		}
		if m.gi < len(m.genes) && m.genes[m.gi].Num == n {
			g := m.genes[m.gi]
			m.gi++
			return g, nil
		}
		return annot.GeneRecord{}, m.unknownGene(id)
	}

	return annot.GeneRecord{}, m.unknownHeader(id)
}

// finish reports every gene-list entry that received no sequence.
func (m *matcher) finish() []string {
	for ; m.gi < len(m.genes); m.gi++ {
		m.skipped = append(m.skipped, m.genes[m.gi].ID)
	}
	for ; m.ci < len(m.crisprs); m.ci++ {
		m.skipped = append(m.skipped, m.crisprs[m.ci].ID)
	}
	return m.skipped
}

func (m *matcher) unknownHeader(id string) error {
	return &annot.Error{
		Op:     op,
		Kind:   annot.KindUnknownHeaderFormat,
		Fields: map[string]string{"ffn": m.ffn, "header": ">" + id},
		Msg:    fmt.Sprintf("Unknown header format >%s in %s.\nGen file will not be created.", id, m.ffn),
	}
}

func (m *matcher) unknownGene(id string) error {
	return &annot.Error{
		Op:     op,
		Kind:   annot.KindUnknownGene,
		Fields: map[string]string{"ffn": m.ffn, "lst": m.lst, "gene": id},
		Msg: fmt.Sprintf("Missing info for gene >%s (from %s) in %s. If it is actually present in the lst file, "+
			"check that genes are ordered by increasing number in both lst and ffn files.", id, m.ffn, m.lst),
	}
}
