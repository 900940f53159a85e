package annot

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/biogo/biogo/seq"
)

// Placeholder marks an empty gene-list field; columns are never omitted.
const Placeholder = "NA"

// Gene-list strand codes.
const (
	StrandDirect     = "D"
	StrandComplement = "C"
)

// geneListColumns: start end strand type locus gene product ec.
const geneListColumns = 8

// StrandCode renders a strand for the gene list.
func StrandCode(s seq.Strand) string {
	if s == seq.Minus {
		return StrandComplement
	}
	return StrandDirect
}

// GFFStrand renders a strand for a GFF strand column.
func GFFStrand(s seq.Strand) string {
	switch s {
	case seq.Plus:
		return "+"
	case seq.Minus:
		return "-"
	}
	return "."
}

func orNA(s string) string {
	if s == "" {
		return Placeholder
	}
	return s
}

func fromNA(s string) string {
	if s == Placeholder {
		return ""
	}
	return s
}

// FormatGeneLine renders one gene-list line without the trailing newline.
func FormatGeneLine(g GeneRecord) string {
	return strings.Join([]string{
		strconv.Itoa(g.Start),
		strconv.Itoa(g.End),
		StrandCode(g.Strand()),
		g.TypeToken(),
		g.ID,
		orNA(g.GeneName),
		orNA(g.Product),
		orNA(g.ECNumber),
	}, "\t")
}

// WriteGeneList writes one line per record in slice order.
func WriteGeneList(w io.Writer, recs []GeneRecord) error {
	bw := bufio.NewWriter(w)
	for _, g := range recs {
		if _, err := bw.WriteString(FormatGeneLine(g)); err != nil {
			return err
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// ParseGeneLine is the inverse of FormatGeneLine. Contig is left empty; the
// gene list only carries the contig tag embedded in the locus id.
func ParseGeneLine(line string) (GeneRecord, error) {
	var g GeneRecord
	f := strings.Split(line, "\t")
	if len(f) != geneListColumns {
		return g, fmt.Errorf("expected %d columns, got %d", geneListColumns, len(f))
	}
	var err error
	if g.Start, err = strconv.Atoi(f[0]); err != nil {
		return g, fmt.Errorf("bad start %q", f[0])
	}
	if g.End, err = strconv.Atoi(f[1]); err != nil {
		return g, fmt.Errorf("bad end %q", f[1])
	}
	if want := StrandCode(g.Strand()); f[2] != want {
		return g, fmt.Errorf("strand %q disagrees with coordinates %d..%d", f[2], g.Start, g.End)
	}
	g.Kind = KindFromType(f[3])
	if g.Kind == KindOther {
		g.Type = f[3]
	}
	g.ID = f[4]
	parts, err := ParseLocusID(g.ID)
	if err != nil {
		return g, err
	}
	if (parts.CrisprIndex > 0) != (g.Kind == KindCRISPR) {
		return g, fmt.Errorf("locus id %q does not match feature type %s", g.ID, f[3])
	}
	g.Num, g.CrisprIndex = parts.Num, parts.CrisprIndex
	g.ContigTag, g.Border = parts.ContigTag, parts.Border
	g.GeneName, g.Product, g.ECNumber = fromNA(f[5]), fromNA(f[6]), fromNA(f[7])
	return g, nil
}

// ReadGeneList reads a gene list written by WriteGeneList.
func ReadGeneList(r io.Reader, name string) ([]GeneRecord, error) {
	var recs []GeneRecord
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	ln := 0
	for sc.Scan() {
		ln++
		line := strings.TrimRight(sc.Text(), "\r")
		if line == "" {
			continue
		}
		g, err := ParseGeneLine(line)
		if err != nil {
			return nil, fmt.Errorf("%s:%d %v", name, ln, err)
		}
		recs = append(recs, g)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return recs, nil
}

// LoadGeneList opens and reads a gene-list file.
func LoadGeneList(path string) ([]GeneRecord, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = fh.Close() }()
	return ReadGeneList(fh, path)
}
