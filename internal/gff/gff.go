// internal/gff/gff.go
package gff

import (
	"bufio"
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"prokfmt/internal/annot"
	"prokfmt/internal/contigs"
	"prokfmt/internal/writers"
)

const op = "generate_gff"

// Options tunes GenerateGFF.
type Options struct {
	Logger *zap.Logger // nil disables logging
}

func (o Options) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

// placed is a gene record confirmed by a coordinate row.
type placed struct {
	contig string
	rec    annot.GeneRecord
	row    Feature
}

// GenerateGFF checks the annotator coordinate file gffPath against the gene
// list at lstPath and writes the canonical GFF3 file to outPath. Every contig
// of sizes gets a header line, with or without genes. gpath names the genome
// in diagnostics. On failure no file is left at outPath.
func GenerateGFF(ctx context.Context, gpath, gffPath, outPath, lstPath string, sizes contigs.Sizes, cm *contigs.Map, opt Options) error {
	log := opt.logger()
	recs, err := annot.LoadGeneList(lstPath)
	if err != nil {
		writers.Discard(outPath)
		return fmt.Errorf("%s: %w", op, err)
	}
	rows, err := ReadFeaturesFile(ctx, gffPath)
	if err != nil {
		writers.Discard(outPath)
		return fmt.Errorf("%s: %w", op, err)
	}

	genes, err := reconcile(gpath, gffPath, lstPath, recs, rows, cm, log)
	if err != nil {
		writers.Discard(outPath)
		return err
	}

	headers, err := sizes.Headers(cm)
	if err != nil {
		writers.Discard(outPath)
		return fmt.Errorf("%s: %s: %w", op, gpath, err)
	}
	if err := writers.WriteFileAtomic(outPath, func(w *bufio.Writer) error {
		return write(w, headers, genes)
	}); err != nil {
		return fmt.Errorf("%s: write %s: %w", op, outPath, err)
	}
	log.Debug("coordinate file written",
		zap.String("gff", outPath),
		zap.Int("contigs", len(headers)),
		zap.Int("genes", len(genes)),
	)
	return nil
}

// reconcile pairs the i-th coordinate row with the i-th gene record.
func reconcile(gpath, gffPath, lstPath string, recs []annot.GeneRecord, rows []Feature, cm *contigs.Map, log *zap.Logger) ([]placed, error) {
	n := min(len(recs), len(rows))
	out := make([]placed, 0, n)
	for i := 0; i < n; i++ {
		rec, row := recs[i], rows[i]

		id, hasID := row.Attr("ID")
		tag, hasTag := row.Attr("locus_tag")
		if hasID && hasTag && !sameLocus(row.Type, id, tag) {
			return nil, &annot.Error{
				Op:   op,
				Kind: annot.KindIdentifierMismatch,
				Fields: map[string]string{
					"gff":       gffPath,
					"id":        id,
					"locus_tag": tag,
					"line":      strconv.Itoa(row.Line),
				},
				Msg: fmt.Sprintf("Problem in %s: ID=%s whereas locus_tag=%s", filepath.Base(gffPath), id, tag),
			}
		}

		if row.Start != rec.Low() {
			annotID := id
			if !hasID {
				annotID = tag
			}
			if annotID == "" {
				annotID = rec.ID
			}
			return nil, &annot.Error{
				Op:   op,
				Kind: annot.KindStartMismatch,
				Fields: map[string]string{
					"lst":          lstPath,
					"gff":          gffPath,
					"genome_path":  gpath,
					"locus_id":     rec.ID,
					"annotator_id": annotID,
					"gff_start":    strconv.Itoa(row.Start),
					"lst_start":    strconv.Itoa(rec.Low()),
				},
				Msg: fmt.Sprintf("Files %s and %s (annotation of %s) do not have the same start value for gene %s (%s): %d in gff, %d in lst",
					lstPath, gffPath, gpath, annotID, rec.ID, row.Start, rec.Low()),
			}
		}

		canon, err := cm.Resolve(row.Seqid)
		if err != nil {
			return nil, &annot.Error{
				Op:   op,
				Kind: annot.KindContigNotFound,
				Fields: map[string]string{
					"contig":      row.Seqid,
					"gff":         gffPath,
					"genome_path": gpath,
				},
				Msg: fmt.Sprintf("'%s' found in %s does not exist in %s", row.Seqid, gffPath, gpath),
			}
		}
		out = append(out, placed{contig: canon, rec: rec, row: row})
	}

	if extra := len(rows) - n; extra > 0 {
		log.Warn("coordinate rows without a gene-list entry skipped",
			zap.String("gff", gffPath), zap.Int("rows", extra), zap.Int("first_line", rows[n].Line))
	}
	if extra := len(recs) - n; extra > 0 {
		log.Warn("gene-list entries without a coordinate row skipped",
			zap.String("lst", lstPath), zap.Int("genes", extra), zap.String("first", recs[n].ID))
	}
	return out, nil
}

// write emits the version line, one sequence-region line per contig, then
// the genes grouped by contig in header order, ascending by coordinate.
// Contigs that carry genes but have no size entry come last.
func write(w *bufio.Writer, headers []contigs.Header, genes []placed) error {
	order := make([]string, 0, len(headers))
	known := make(map[string]bool, len(headers))
	for _, h := range headers {
		order = append(order, h.Name)
		known[h.Name] = true
	}
	groups := map[string][]placed{}
	for _, g := range genes {
		if !known[g.contig] {
			known[g.contig] = true
			order = append(order, g.contig)
		}
		groups[g.contig] = append(groups[g.contig], g)
	}

	if _, err := w.WriteString("##gff-version 3\n"); err != nil {
		return err
	}
	for _, h := range headers {
		if _, err := fmt.Fprintf(w, "##sequence-region %s 1 %d\n", h.Name, h.Length); err != nil {
			return err
		}
	}
	for _, c := range order {
		grp := groups[c]
		sort.SliceStable(grp, func(i, j int) bool {
			a, b := grp[i].rec, grp[j].rec
			if a.Low() != b.Low() {
				return a.Low() < b.Low()
			}
			return a.High() < b.High()
		})
		for _, g := range grp {
			if _, err := w.WriteString(FormatRow(g.contig, g.rec, g.row)); err != nil {
				return err
			}
			if err := w.WriteByte('\n'); err != nil {
				return err
			}
		}
	}
	return nil
}

// sameLocus reports whether ID and locus_tag name the same locus. Gene rows
// carry their locus tag with a "_gene" suffix as ID.
func sameLocus(typ, id, tag string) bool {
	return id == tag || (typ == "gene" && id == tag+"_gene")
}

// FormatRow renders one canonical GFF3 row for rec, keeping source, type,
// score and phase from the annotator row.
func FormatRow(contig string, rec annot.GeneRecord, row Feature) string {
	attrs := []string{"ID=" + escape(rec.ID), "locus_tag=" + escape(rec.ID)}
	if rec.GeneName != "" {
		attrs = append(attrs, "gene="+escape(rec.GeneName))
	}
	if rec.Product != "" {
		attrs = append(attrs, "product="+escape(rec.Product))
	}
	if rec.ECNumber != "" {
		ecs := strings.Split(rec.ECNumber, ",")
		for i := range ecs {
			ecs[i] = escape(ecs[i])
		}
		attrs = append(attrs, "eC_number="+strings.Join(ecs, ","))
	}
	return strings.Join([]string{
		contig,
		dot(row.Source),
		dot(row.Type),
		strconv.Itoa(rec.Low()),
		strconv.Itoa(rec.High()),
		dot(row.Score),
		annot.GFFStrand(rec.Strand()),
		dot(row.Phase),
		strings.Join(attrs, ";"),
	}, "\t")
}

func dot(s string) string {
	if s == "" {
		return "."
	}
	return s
}
