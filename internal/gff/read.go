// Package gff reconciles the annotator's GFF3 coordinate file with the
// canonical gene list and writes the canonical GFF3 file.
package gff

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"strconv"
	"strings"
)

// Attr is one GFF3 attribute, percent-decoded.
type Attr struct {
	Key, Value string
}

// Feature is one data row of a GFF3 file.
type Feature struct {
	Line   int // 1-based line number in the source file
	Seqid  string
	Source string
	Type   string
	Start  int
	End    int
	Score  string
	Strand string
	Phase  string
	Attrs  []Attr
}

// Attr returns the first value of key.
func (f Feature) Attr(key string) (string, bool) {
	for _, a := range f.Attrs {
		if a.Key == key {
			return a.Value, true
		}
	}
	return "", false
}

// ReadFeaturesFile opens path and reads it with ReadFeatures.
func ReadFeaturesFile(ctx context.Context, path string) ([]Feature, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = fh.Close() }()
	return ReadFeatures(ctx, fh, path)
}

// ReadFeatures returns the data rows of a GFF3 stream. Directive and comment
// lines are skipped and reading stops at "##FASTA". A "gene" row immediately
// followed by a row on the same seqid and coordinates only shadows that row
// and is dropped; any other "gene" row is kept, matching the feature table
// parser.
func ReadFeatures(ctx context.Context, r io.Reader, name string) ([]Feature, error) {
	var (
		out     []Feature
		pending *Feature // "gene" row waiting for its companion
	)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	ln := 0
	for sc.Scan() {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		ln++
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.HasPrefix(line, "##FASTA") {
			break
		}
		if line == "" || line[0] == '#' {
			continue
		}
		f, err := parseRow(line)
		if err != nil {
			return nil, fmt.Errorf("%s:%d %v", name, ln, err)
		}
		f.Line = ln
		if pending != nil {
			if !shadows(*pending, f) {
				out = append(out, *pending)
			}
			pending = nil
		}
		if f.Type == "gene" {
			pending = &f
			continue
		}
		out = append(out, f)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if pending != nil {
		out = append(out, *pending)
	}
	return out, nil
}

// shadows reports whether gene row g is the companion of the row f after it.
func shadows(g, f Feature) bool {
	return f.Type != "gene" && g.Seqid == f.Seqid && g.Start == f.Start && g.End == f.End
}

func parseRow(line string) (Feature, error) {
	var f Feature
	col := strings.Split(line, "\t")
	if len(col) != 9 {
		return f, fmt.Errorf("expected 9 columns, got %d", len(col))
	}
	var err error
	if f.Start, err = strconv.Atoi(col[3]); err != nil {
		return f, fmt.Errorf("bad start %q", col[3])
	}
	if f.End, err = strconv.Atoi(col[4]); err != nil {
		return f, fmt.Errorf("bad end %q", col[4])
	}
	f.Seqid, f.Source, f.Type = col[0], col[1], col[2]
	f.Score, f.Strand, f.Phase = col[5], col[6], col[7]
	for _, kv := range strings.Split(col[8], ";") {
		kv = strings.TrimSpace(kv)
		if kv == "" || kv == "." {
			continue
		}
		k, v, _ := strings.Cut(kv, "=")
		f.Attrs = append(f.Attrs, Attr{Key: unescape(k), Value: unescape(v)})
	}
	return f, nil
}

func unescape(s string) string {
	if !strings.Contains(s, "%") {
		return s
	}
	if u, err := url.PathUnescape(s); err == nil {
		return u
	}
	return s
}

// escape percent-encodes the characters GFF3 reserves in attribute values.
func escape(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case ';', '=', '&', ',', '%', '\t', '\n', '\r':
			fmt.Fprintf(&b, "%%%02X", c)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
