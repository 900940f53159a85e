package annot

import (
	"errors"
	"sort"

	"go.uber.org/zap/zapcore"
)

// ErrorKind classifies genome-local validation failures.
type ErrorKind string

const (
	KindContigNotFound      ErrorKind = "contig_not_found"
	KindStartMismatch       ErrorKind = "start_mismatch"
	KindIdentifierMismatch  ErrorKind = "identifier_mismatch"
	KindUnknownHeaderFormat ErrorKind = "unknown_header_format"
	KindCrisprIndexMismatch ErrorKind = "crispr_index_mismatch"
	KindUnknownGene         ErrorKind = "unknown_gene"
)

// Sentinels, one per kind, for errors.Is.
var (
	ErrContigNotFound      = errors.New("contig not found")
	ErrStartMismatch       = errors.New("start mismatch")
	ErrIdentifierMismatch  = errors.New("identifier mismatch")
	ErrUnknownHeaderFormat = errors.New("unknown header format")
	ErrCrisprIndexMismatch = errors.New("CRISPR index mismatch")
	ErrUnknownGene         = errors.New("unknown gene")
)

var sentinels = map[ErrorKind]error{
	KindContigNotFound:      ErrContigNotFound,
	KindStartMismatch:       ErrStartMismatch,
	KindIdentifierMismatch:  ErrIdentifierMismatch,
	KindUnknownHeaderFormat: ErrUnknownHeaderFormat,
	KindCrisprIndexMismatch: ErrCrisprIndexMismatch,
	KindUnknownGene:         ErrUnknownGene,
}

// Error is a data-validation failure. Fields carries every file path and
// identifier involved so a caller can act without re-parsing the inputs.
type Error struct {
	Op     string // tbl2lst | generate_gff | create_gen
	Kind   ErrorKind
	Fields map[string]string
	Msg    string
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.Op + ": " + e.Msg
}

// Is matches the sentinel of the error's kind.
func (e *Error) Is(target error) bool {
	if e == nil {
		return false
	}
	s, ok := sentinels[e.Kind]
	return ok && s == target
}

// MarshalLogObject lets callers pass the error to zap.Object.
func (e *Error) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("op", e.Op)
	enc.AddString("kind", string(e.Kind))
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		enc.AddString(k, e.Fields[k])
	}
	enc.AddString("msg", e.Msg)
	return nil
}

// KindOf returns the validation kind carried by err, if any.
func KindOf(err error) (ErrorKind, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind, true
	}
	return "", false
}

// IsValidation reports whether err is a data-validation failure rather than
// an I/O or syntax problem.
func IsValidation(err error) bool {
	_, ok := KindOf(err)
	return ok
}
