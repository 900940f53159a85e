// Package tbl converts an annotator feature table into the canonical gene
// list. It is the single source of truth for gene identity and numbering.
package tbl

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"prokfmt/internal/annot"
	"prokfmt/internal/contigs"
	"prokfmt/internal/writers"
)

const op = "tbl2lst"

// Options tunes Tbl2Lst.
type Options struct {
	Logger *zap.Logger // nil disables logging
}

func (o Options) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

// Tbl2Lst parses tblPath and writes the gene list to lstPath. gpath is the
// genome's original path and only appears in diagnostics. On failure no file
// is left at lstPath.
func Tbl2Lst(ctx context.Context, tblPath, lstPath string, cm *contigs.Map, genome, gpath string, opt Options) error {
	recs, err := ParseFile(ctx, tblPath, cm, genome, gpath)
	if err != nil {
		writers.Discard(lstPath)
		return err
	}
	if err := writers.WriteFileAtomic(lstPath, func(w *bufio.Writer) error {
		return annot.WriteGeneList(w, recs)
	}); err != nil {
		return fmt.Errorf("%s: write %s: %w", op, lstPath, err)
	}
	opt.logger().Debug("gene list written",
		zap.String("genome", genome),
		zap.String("lst", lstPath),
		zap.Int("features", len(recs)),
	)
	return nil
}

// ParseFile opens path and parses it with Parse.
func ParseFile(ctx context.Context, path string, cm *contigs.Map, genome, gpath string) ([]annot.GeneRecord, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = fh.Close() }()
	return Parse(ctx, fh, path, cm, genome, gpath)
}

// feature is a feature row with its qualifiers, before numbering.
type feature struct {
	start, end int
	typ        string
	geneName   string
	product    string
	ec         []string
	crispr     bool // rpt_family CRISPR
}

func (f *feature) kind() annot.Kind {
	k := annot.KindFromType(f.typ)
	if k == annot.KindRepeat && f.crispr {
		return annot.KindCRISPR
	}
	return k
}

// absorb fills fields f lacks from a preceding "gene" row.
func (f *feature) absorb(g *feature) {
	if f.geneName == "" {
		f.geneName = g.geneName
	}
	if f.product == "" {
		f.product = g.product
	}
	if len(f.ec) == 0 {
		f.ec = g.ec
	}
}

type parser struct {
	name   string // file name for diagnostics
	cm     *contigs.Map
	genome string
	gpath  string

	contigOrig  string
	contigCanon string
	haveContig  bool
	resolved    bool

	feats   []*feature // features of the current contig
	cur     *feature
	pending *feature // "gene" row waiting for its companion feature

	num int // genome-wide gene counter
	out []annot.GeneRecord
}

// Parse reads a feature table and returns the gene records in encounter
// order. name is used in diagnostics.
func Parse(ctx context.Context, r io.Reader, name string, cm *contigs.Map, genome, gpath string) ([]annot.GeneRecord, error) {
	p := &parser{name: name, cm: cm, genome: genome, gpath: gpath}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	ln := 0
	for sc.Scan() {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		ln++
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		var err error
		switch {
		case line[0] == '>':
			err = p.header(line[1:])
		case line[0] == '\t':
			err = p.qualifier(line)
		default:
			err = p.row(line)
		}
		if err != nil {
			if annot.IsValidation(err) {
				return nil, err
			}
			return nil, fmt.Errorf("%s: %s:%d %v", op, name, ln, err)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%s: %s: %w", op, name, err)
	}
	p.flushContig()
	return p.out, nil
}

func (p *parser) header(h string) error {
	p.flushContig()
	f := strings.Fields(h)
	switch {
	case len(f) >= 2 && f[0] == "Feature":
		p.contigOrig = f[1]
	case len(f) == 1 && f[0] != "Feature":
		p.contigOrig = f[0]
	default:
		return fmt.Errorf("bad contig header %q", ">"+h)
	}
	p.haveContig, p.resolved = true, false
	return nil
}

func (p *parser) row(line string) error {
	f := strings.Split(line, "\t")
	if len(f) < 2 {
		return fmt.Errorf("bad feature row %q", line)
	}
	start, err := coord(f[0])
	if err != nil {
		return err
	}
	end, err := coord(f[1])
	if err != nil {
		return err
	}
	// Two-column rows continue the interval list of the current feature.
	if len(f) < 3 || strings.TrimSpace(f[2]) == "" {
		if p.cur == nil {
			return fmt.Errorf("interval row %q outside a feature", line)
		}
		p.cur.end = end
		return nil
	}
	if !p.haveContig {
		return fmt.Errorf("feature row before any contig header")
	}
	if !p.resolved {
		canon, err := p.cm.Resolve(p.contigOrig)
		if err != nil {
			return &annot.Error{
				Op:   op,
				Kind: annot.KindContigNotFound,
				Fields: map[string]string{
					"contig":      p.contigOrig,
					"tbl":         p.name,
					"genome_path": p.gpath,
				},
				Msg: fmt.Sprintf("'%s' found in %s does not exist in %s", p.contigOrig, p.name, p.gpath),
			}
		}
		p.contigCanon, p.resolved = canon, true
	}
	p.finishFeature()
	p.cur = &feature{start: start, end: end, typ: strings.TrimSpace(f[2])}
	return nil
}

func (p *parser) qualifier(line string) error {
	if p.cur == nil {
		return fmt.Errorf("qualifier %q outside a feature", strings.TrimSpace(line))
	}
	key, val, _ := strings.Cut(strings.TrimLeft(line, "\t"), "\t")
	key, val = strings.TrimSpace(key), strings.TrimSpace(val)
	switch key {
	case "gene":
		p.cur.geneName = val
	case "product":
		p.cur.product = val
	case "EC_number":
		if val != "" {
			p.cur.ec = append(p.cur.ec, val)
		}
	case "rpt_family":
		if strings.EqualFold(val, "CRISPR") {
			p.cur.crispr = true
		}
	}
	return nil
}

// finishFeature closes the current feature, merging a pending "gene" row into
// it when both share coordinates. A "gene" row without such a companion keeps
// its own record, as it carries its own locus tag.
func (p *parser) finishFeature() {
	f := p.cur
	if f == nil {
		return
	}
	p.cur = nil
	if f.typ == "gene" {
		if p.pending != nil {
			p.feats = append(p.feats, p.pending)
		}
		p.pending = f
		return
	}
	if g := p.pending; g != nil {
		if g.start == f.start && g.end == f.end {
			f.absorb(g)
		} else {
			p.feats = append(p.feats, g)
		}
		p.pending = nil
	}
	p.feats = append(p.feats, f)
}

// flushContig numbers the features of the finished contig and appends them to
// the output. A contig without features contributes nothing.
func (p *parser) flushContig() {
	p.finishFeature()
	if p.pending != nil {
		p.feats = append(p.feats, p.pending)
		p.pending = nil
	}
	if len(p.feats) == 0 {
		return
	}
	tag := annot.ContigTag(p.genome, p.contigCanon)
	crispr := 0
	for i, f := range p.feats {
		g := annot.GeneRecord{
			Contig:    p.contigCanon,
			ContigTag: tag,
			Border:    i == 0 || i == len(p.feats)-1,
			Start:     f.start,
			End:       f.end,
			Kind:      f.kind(),
			GeneName:  f.geneName,
			Product:   f.product,
			ECNumber:  strings.Join(f.ec, ","),
		}
		if g.Kind == annot.KindOther {
			g.Type = f.typ
		}
		if g.Kind == annot.KindCRISPR {
			crispr++
			g.CrisprIndex = crispr
		} else {
			p.num++
			g.Num = p.num
		}
		g.ID = g.LocusID(p.genome)
		p.out = append(p.out, g)
	}
	p.feats = p.feats[:0]
}

// coord parses a coordinate, dropping the partial-feature markers < and >.
func coord(s string) (int, error) {
	s = strings.TrimLeft(strings.TrimSpace(s), "<>")
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("bad coordinate %q", s)
	}
	return n, nil
}
