// Package output renders the per-genome outcome of a run. It reports, it
// never aggregates: one row per genome. Reports written after the run follow
// manifest order; a JSONLStream follows completion order.
package output

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"prokfmt/internal/annot"
	"prokfmt/internal/engine"
	"prokfmt/internal/jsonlutil"
	"prokfmt/internal/writers"
)

// TSVHeader is the header row of the text report.
const TSVHeader = "genome\tstatus\tstep\tkind\tskipped\tlst\tgff\tgen\terror"

// Row statuses.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Row is the wire form of one engine.Result.
type Row struct {
	Genome  string            `json:"genome"`
	Status  string            `json:"status"`
	Step    string            `json:"step,omitempty"`
	Kind    string            `json:"kind,omitempty"`
	Skipped []string          `json:"skipped,omitempty"`
	Lst     string            `json:"lst,omitempty"`
	GFF     string            `json:"gff,omitempty"`
	Gen     string            `json:"gen,omitempty"`
	Error   string            `json:"error,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// FromResult converts a result. Artifact paths are only reported for
// genomes whose artifacts exist.
func FromResult(r engine.Result) Row {
	row := Row{Genome: r.Genome, Status: StatusOK, Skipped: r.Skipped}
	if r.OK() {
		row.Lst, row.GFF, row.Gen = r.Outputs.Lst, r.Outputs.GFF, r.Outputs.Gen
		return row
	}
	row.Status = StatusFailed
	row.Step = string(r.Step)
	row.Error = r.Err.Error()
	var ae *annot.Error
	if errors.As(r.Err, &ae) {
		row.Kind = string(ae.Kind)
		row.Fields = ae.Fields
	}
	return row
}

// Reporter writes rows in one format.
type Reporter func(w io.Writer, rows []Row, header bool) error

var reporters = map[string]Reporter{
	"text":  WriteText,
	"jsonl": WriteJSONL,
}

// Formats lists the registered report formats.
func Formats() []string {
	out := make([]string, 0, len(reporters))
	for k := range reporters {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Write dispatches to the reporter registered for format.
func Write(format string, w io.Writer, rows []Row, header bool) error {
	fn, ok := reporters[format]
	if !ok {
		return fmt.Errorf("unknown report format %q (want one of %s)", format, strings.Join(Formats(), ", "))
	}
	return fn(w, rows, header)
}

// WriteText writes one tab-separated line per row. Multi-line error
// messages are folded onto one line.
func WriteText(w io.Writer, rows []Row, header bool) error {
	if header {
		if _, err := io.WriteString(w, TSVHeader+"\n"); err != nil {
			return err
		}
	}
	for _, r := range rows {
		line := strings.Join([]string{
			r.Genome,
			r.Status,
			orDash(r.Step),
			orDash(r.Kind),
			strconv.Itoa(len(r.Skipped)),
			orDash(r.Lst),
			orDash(r.GFF),
			orDash(r.Gen),
			orDash(oneLine(r.Error)),
		}, "\t")
		if _, err := io.WriteString(w, line+"\n"); err != nil {
			return err
		}
	}
	return nil
}

// WriteJSONL writes one JSON object per row; header is ignored.
func WriteJSONL(w io.Writer, rows []Row, _ bool) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for _, r := range rows {
		if err := enc.Encode(r); err != nil {
			if writers.IsBrokenPipe(err) {
				return nil
			}
			return err
		}
	}
	return nil
}

// JSONLStream writes results as JSON lines while a run is in progress.
type JSONLStream struct {
	in   chan<- engine.Result
	done <-chan error
}

// NewJSONLStream starts the encoder. Close must be called exactly once.
func NewJSONLStream(w io.Writer) *JSONLStream {
	in, done := jsonlutil.Start(w, 64, FromResult, writers.IsBrokenPipe)
	return &JSONLStream{in: in, done: done}
}

// Send queues one result. It does not block once a write has failed.
func (s *JSONLStream) Send(r engine.Result) { s.in <- r }

// Close flushes the stream and returns the first write error.
func (s *JSONLStream) Close() error {
	close(s.in)
	return <-s.done
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
