// Package annot holds the per-genome gene model shared by the feature-table
// parser, the coordinate reconciler and the sequence extractor.
//
// It never imports tbl, gff, gen, engine or cli; keep it domain-only.
package annot

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/biogo/biogo/seq"
)

// Kind classifies an annotated feature.
type Kind int

const (
	KindOther Kind = iota
	KindCDS
	KindTRNA
	KindRepeat
	KindCRISPR
)

// Feature type tokens as they appear in the annotator output and the gene list.
const (
	TypeCDS    = "CDS"
	TypeTRNA   = "tRNA"
	TypeRepeat = "repeat_region"
	TypeCRISPR = "CRISPR"
)

// KindFromType maps an annotator feature token to a Kind.
func KindFromType(t string) Kind {
	switch t {
	case TypeCDS:
		return KindCDS
	case TypeTRNA:
		return KindTRNA
	case TypeRepeat:
		return KindRepeat
	case TypeCRISPR:
		return KindCRISPR
	}
	return KindOther
}

func (k Kind) String() string {
	switch k {
	case KindCDS:
		return TypeCDS
	case KindTRNA:
		return TypeTRNA
	case KindRepeat:
		return TypeRepeat
	case KindCRISPR:
		return TypeCRISPR
	}
	return "other"
}

// GeneRecord is one annotated feature of a genome.
type GeneRecord struct {
	ID string // canonical locus id, see LocusID

	Num         int // genome-wide gene number; 0 for CRISPR arrays
	CrisprIndex int // per-contig CRISPR number; 0 unless Kind == KindCRISPR

	Contig    string // canonical contig (empty when read back from a gene list)
	ContigTag string // contig part of the locus id, e.g. "0001"
	Border    bool   // first or last feature of its contig

	Start, End int // 1-based, as given by the annotator

	Kind Kind
	Type string // raw annotator token, kept for KindOther

	GeneName string
	Product  string
	ECNumber string
}

// Strand is Plus when Start <= End and Minus otherwise.
func (g GeneRecord) Strand() seq.Strand {
	if g.Start > g.End {
		return seq.Minus
	}
	return seq.Plus
}

// Low and High return the leftmost and rightmost coordinates.
func (g GeneRecord) Low() int  { return min(g.Start, g.End) }
func (g GeneRecord) High() int { return max(g.Start, g.End) }

// TypeToken is the feature token written to the gene list and GFF type column.
func (g GeneRecord) TypeToken() string {
	if g.Kind == KindOther && g.Type != "" {
		return g.Type
	}
	return g.Kind.String()
}

// LocusID renders the canonical identifier:
//
//	<genome>.<b|i><contig>_<num:05d>      genes
//	<genome>.<b|i><contig>_CRISPR<index>  CRISPR arrays
func (g GeneRecord) LocusID(genome string) string {
	loc := "i"
	if g.Border {
		loc = "b"
	}
	if g.Kind == KindCRISPR {
		return fmt.Sprintf("%s.%s%s_CRISPR%d", genome, loc, g.ContigTag, g.CrisprIndex)
	}
	return fmt.Sprintf("%s.%s%s_%05d", genome, loc, g.ContigTag, g.Num)
}

// ContigTag strips "<genome>." from a canonical contig name. Names that do not
// carry the genome prefix are used as-is.
func ContigTag(genome, canonical string) string {
	if genome != "" && strings.HasPrefix(canonical, genome+".") {
		return canonical[len(genome)+1:]
	}
	return canonical
}

// LocusParts is a parsed locus id.
type LocusParts struct {
	Genome      string
	Border      bool
	ContigTag   string
	Num         int
	CrisprIndex int
}

// ParseLocusID is the inverse of GeneRecord.LocusID.
func ParseLocusID(id string) (LocusParts, error) {
	var p LocusParts
	us := strings.LastIndexByte(id, '_')
	if us <= 0 || us == len(id)-1 {
		return p, fmt.Errorf("malformed locus id %q", id)
	}
	head, tail := id[:us], id[us+1:]

	if rest, ok := strings.CutPrefix(tail, "CRISPR"); ok {
		n, err := strconv.Atoi(rest)
		if err != nil || n < 1 {
			return p, fmt.Errorf("malformed CRISPR number in locus id %q", id)
		}
		p.CrisprIndex = n
	} else {
		n, err := strconv.Atoi(tail)
		if err != nil || n < 1 {
			return p, fmt.Errorf("malformed gene number in locus id %q", id)
		}
		p.Num = n
	}

	// The contig part starts at the last "." followed by the b/i marker.
	dot := strings.LastIndexByte(head, '.')
	for dot >= 0 && (dot+1 >= len(head) || (head[dot+1] != 'b' && head[dot+1] != 'i')) {
		dot = strings.LastIndexByte(head[:dot], '.')
	}
	if dot < 0 {
		return p, fmt.Errorf("locus id %q has no contig marker", id)
	}
	p.Genome = head[:dot]
	p.Border = head[dot+1] == 'b'
	p.ContigTag = head[dot+2:]
	return p, nil
}
