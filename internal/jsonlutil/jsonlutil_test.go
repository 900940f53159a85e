package jsonlutil

import (
	"bytes"
	"errors"
	"testing"
)

type wire struct {
	N int `json:"n"`
}

func TestStartWritesOneLinePerValue(t *testing.T) {
	var buf bytes.Buffer
	in, done := Start(&buf, 0, func(n int) wire { return wire{N: n} }, nil)
	for i := 1; i <= 3; i++ {
		in <- i
	}
	close(in)
	if err := <-done; err != nil {
		t.Fatalf("done: %v", err)
	}
	if got, want := buf.String(), "{\"n\":1}\n{\"n\":2}\n{\"n\":3}\n"; got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

type failWriter struct{ err error }

func (f failWriter) Write([]byte) (int, error) { return 0, f.err }

func TestStartReportsAndSuppressesErrors(t *testing.T) {
	boom := errors.New("boom")
	in, done := Start(failWriter{boom}, 1, func(n int) wire { return wire{N: n} }, nil)
	in <- 1
	close(in)
	if err := <-done; !errors.Is(err, boom) {
		t.Fatalf("want boom, got %v", err)
	}

	in, done = Start(failWriter{boom}, 1, func(n int) wire { return wire{N: n} }, func(err error) bool { return errors.Is(err, boom) })
	in <- 1
	close(in)
	if err := <-done; err != nil {
		t.Fatalf("broken pipe should be swallowed, got %v", err)
	}
}
