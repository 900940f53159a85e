// Package fasta streams FASTA records without touching their payload: each
// record keeps its sequence lines exactly as read so a rewritten file differs
// from its source only in the headers.
package fasta

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// Record is one FASTA entry.
type Record struct {
	ID    string   // first whitespace-delimited header token
	Desc  string   // rest of the header, trimmed
	Lines []string // sequence lines, verbatim minus line terminators
}

// Len is the number of residues in the record.
func (r Record) Len() int {
	n := 0
	for _, l := range r.Lines {
		n += len(strings.TrimSpace(l))
	}
	return n
}

// Header renders ">ID Desc".
func (r Record) Header() string {
	if r.Desc == "" {
		return ">" + r.ID
	}
	return ">" + r.ID + " " + r.Desc
}

// StreamPathCtx opens path and calls emit for every record.
// Cancellation via ctx is checked between lines.
func StreamPathCtx(ctx context.Context, path string, emit func(Record) error) error {
	rc, err := openReader(path)
	if err != nil {
		return err
	}
	defer rc.Close()
	return StreamCtx(ctx, rc, emit)
}

// StreamCtx parses FASTA from r. Text before the first header is an error.
func StreamCtx(ctx context.Context, r io.Reader, emit func(Record) error) error {
	sc := bufio.NewScanner(r)
	const maxLine = 64 * 1024 * 1024 // allow very long single-line sequences (64 MiB)
	sc.Buffer(make([]byte, 64*1024), maxLine)

	var (
		cur  Record
		have bool
		ln   int
	)
	for sc.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		ln++
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.HasPrefix(line, ">") {
			if have {
				if err := emit(cur); err != nil {
					return err
				}
			}
			cur = parseHeader(line[1:])
			have = true
			continue
		}
		if !have {
			if strings.TrimSpace(line) == "" {
				continue
			}
			return fmt.Errorf("fasta: line %d: sequence data before first header", ln)
		}
		if line == "" {
			continue
		}
		cur.Lines = append(cur.Lines, line)
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("fasta scan: %w", err)
	}
	if have {
		return emit(cur)
	}
	return nil
}

func parseHeader(hdr string) Record {
	hdr = strings.TrimSpace(hdr)
	if i := strings.IndexAny(hdr, " \t"); i >= 0 {
		return Record{ID: hdr[:i], Desc: strings.TrimSpace(hdr[i+1:])}
	}
	return Record{ID: hdr}
}

// Write writes r as a FASTA record.
func Write(w io.Writer, r Record) error {
	if _, err := io.WriteString(w, r.Header()+"\n"); err != nil {
		return err
	}
	for _, l := range r.Lines {
		if _, err := io.WriteString(w, l+"\n"); err != nil {
			return err
		}
	}
	return nil
}
