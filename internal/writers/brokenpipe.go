package writers

import (
	"errors"
	"io"
	"syscall"
)

// IsBrokenPipe reports whether err means the reader of a report went away,
// as with `prokfmt batch | head`. The report writers treat it as a clean end
// of output; the gene-list, GFF3 and gen artifacts never go through it.
func IsBrokenPipe(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, syscall.EPIPE) || errors.Is(err, io.ErrClosedPipe)
}
