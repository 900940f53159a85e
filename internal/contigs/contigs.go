// Package contigs resolves annotator contig names to canonical
// collection-wide names and carries the per-genome contig size table.
package contigs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"prokfmt/internal/fasta"
)

// ErrUnknownContig is returned by Resolve for names missing from the map.
var ErrUnknownContig = errors.New("unknown contig")

// Map is an immutable original → canonical contig mapping for one genome.
type Map struct {
	toCanon map[string]string
	canon   map[string]struct{}
}

// NewMap copies m.
func NewMap(m map[string]string) *Map {
	cm := &Map{
		toCanon: make(map[string]string, len(m)),
		canon:   make(map[string]struct{}, len(m)),
	}
	for orig, c := range m {
		cm.toCanon[orig] = c
		cm.canon[c] = struct{}{}
	}
	return cm
}

// Identity maps each name to itself.
func Identity(names ...string) *Map {
	m := make(map[string]string, len(names))
	for _, n := range names {
		m[n] = n
	}
	return NewMap(m)
}

// Len returns the number of original names.
func (m *Map) Len() int { return len(m.toCanon) }

// Resolve returns the canonical name for an original contig name.
func (m *Map) Resolve(orig string) (string, error) {
	if m != nil {
		if c, ok := m.toCanon[orig]; ok {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownContig, orig)
}

// Canonical accepts an original or a canonical name.
func (m *Map) Canonical(name string) (string, bool) {
	if m == nil {
		return "", false
	}
	if c, ok := m.toCanon[name]; ok {
		return c, true
	}
	if _, ok := m.canon[name]; ok {
		return name, true
	}
	return "", false
}

// LoadMapTSV reads "original<TAB>canonical" lines; blank lines and lines
// starting with '#' are skipped.
func LoadMapTSV(path string) (*Map, error) {
	m := map[string]string{}
	err := scanPairs(path, func(ln int, a, b string) error {
		if prev, dup := m[a]; dup && prev != b {
			return fmt.Errorf("%s:%d contig %q mapped twice (%q, %q)", path, ln, a, prev, b)
		}
		m[a] = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return NewMap(m), nil
}

// Header is one contig with its length.
type Header struct {
	Name   string
	Length int
}

// Sizes lists contig lengths in the order the genome declares them. Names may
// be original or canonical.
type Sizes []Header

// Names returns the contig names in order.
func (s Sizes) Names() []string {
	out := make([]string, len(s))
	for i, h := range s {
		out[i] = h.Name
	}
	return out
}

// Length returns the length recorded for name.
func (s Sizes) Length(name string) (int, bool) {
	for _, h := range s {
		if h.Name == name {
			return h.Length, true
		}
	}
	return 0, false
}

// LoadSizesTSV reads "contig<TAB>length" lines in file order. A contig listed
// twice is an error.
func LoadSizesTSV(path string) (Sizes, error) {
	var s Sizes
	seen := map[string]int{}
	err := scanPairs(path, func(ln int, a, b string) error {
		n, err := strconv.Atoi(b)
		if err != nil || n < 0 {
			return fmt.Errorf("%s:%d bad length %q", path, ln, b)
		}
		if prev, dup := seen[a]; dup {
			return fmt.Errorf("%s:%d contig %q listed twice (line %d)", path, ln, a, prev)
		}
		seen[a] = ln
		s = append(s, Header{Name: a, Length: n})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// SizesFromFASTA measures every record of a (possibly gzipped) FASTA file, in
// file order.
func SizesFromFASTA(ctx context.Context, path string) (Sizes, error) {
	var s Sizes
	seen := map[string]struct{}{}
	err := fasta.StreamPathCtx(ctx, path, func(r fasta.Record) error {
		if _, dup := seen[r.ID]; dup {
			return fmt.Errorf("%s: duplicate record %q", path, r.ID)
		}
		seen[r.ID] = struct{}{}
		s = append(s, Header{Name: r.ID, Length: r.Len()})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Headers canonicalizes the size table through m, keeping its order. Names
// unknown to m are kept verbatim. When an original and a canonical name land
// on the same contig the first entry wins; differing lengths are an error.
func (s Sizes) Headers(m *Map) ([]Header, error) {
	at := make(map[string]int, len(s))
	out := make([]Header, 0, len(s))
	for _, h := range s {
		c, ok := m.Canonical(h.Name)
		if !ok {
			c = h.Name
		}
		if i, dup := at[c]; dup {
			if out[i].Length != h.Length {
				return nil, fmt.Errorf("contig %s has conflicting lengths %d and %d", c, out[i].Length, h.Length)
			}
			continue
		}
		at[c] = len(out)
		out = append(out, Header{Name: c, Length: h.Length})
	}
	return out, nil
}

func scanPairs(path string, fn func(ln int, a, b string) error) error {
	fh, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = fh.Close() }()
	return readPairs(fh, path, fn)
}

func readPairs(r io.Reader, name string, fn func(ln int, a, b string) error) error {
	sc := bufio.NewScanner(r)
	ln := 0
	for sc.Scan() {
		ln++
		line := strings.TrimSpace(sc.Text())
		if line == "" || line[0] == '#' {
			continue
		}
		f := strings.Fields(line)
		if len(f) != 2 {
			return fmt.Errorf("%s:%d bad field count", name, ln)
		}
		if err := fn(ln, f[0], f[1]); err != nil {
			return err
		}
	}
	return sc.Err()
}
