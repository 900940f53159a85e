// internal/writers/atomic.go
package writers

import (
	"bufio"
	"os"
	"path/filepath"
)

// WriteFileAtomic renders an artifact into a temporary file next to dest and
// renames it over dest only when fill succeeds. When fill fails, the
// temporary file is removed and so is any stale file already at dest, so a
// failed step never leaves an artifact behind.
func WriteFileAtomic(dest string, fill func(w *bufio.Writer) error) (err error) {
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".tmp-"+filepath.Base(dest)+"-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
			Discard(dest)
		}
	}()
	_ = os.Chmod(tmpPath, 0o644)

	bw := bufio.NewWriterSize(tmp, 64*1024)
	if err = fill(bw); err != nil {
		return err
	}
	if err = bw.Flush(); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = os.Rename(tmpPath, dest); err != nil {
		return err
	}
	_ = syncDir(dir)
	return nil
}

// Discard removes dest if present and reports whether a file was removed.
func Discard(dest string) bool {
	return os.Remove(dest) == nil
}

// syncDir best-effort fsyncs the parent directory to persist the rename.
func syncDir(dir string) error {
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
