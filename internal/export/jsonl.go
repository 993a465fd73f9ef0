package export

import (
	"archive/zip"
	"bufio"
	"bytes"
	"errors"
	"io"
	"iter"

	"encoding/json/v2"
)

// ErrFileNotFound indicates a file was not found in the bundle archive.
var ErrFileNotFound = errors.New("file not found in bundle")

// Writer streams records as JSONL into a zip archive.
type Writer struct {
	w     io.Writer
	count int
}

// NewWriter creates a JSONL writer for a path within the archive.
func NewWriter(zw *zip.Writer, path string) (*Writer, error) {
	w, err := zw.Create(path)
	if err != nil {
		return nil, err
	}
	return &Writer{w: w}, nil
}

// Write encodes a single record as a JSON line.
func (w *Writer) Write(record any) error {
	if err := json.MarshalWrite(w.w, record); err != nil {
		return err
	}
	if _, err := w.w.Write([]byte{'\n'}); err != nil {
		return err
	}
	w.count++
	return nil
}

// corruptLine preserves bytes that failed to decode as a typed record.
type corruptLine struct {
	Corrupt string `json:"corrupt"`
	Raw     []byte `json:"raw"`
}

// WriteCorrupt writes an undecodable value with its key so the bundle still
// carries the damaged bytes for inspection.
func (w *Writer) WriteCorrupt(key string, raw []byte) error {
	return w.Write(corruptLine{Corrupt: key, Raw: raw})
}

// Count returns records written so far, corrupt lines included.
func (w *Writer) Count() int {
	return w.count
}

// OpenFile finds and opens a file from a bundle archive.
func OpenFile(zr *zip.Reader, path string) (io.ReadCloser, error) {
	for _, f := range zr.File {
		if f.Name == path {
			return f.Open()
		}
	}
	return nil, ErrFileNotFound
}

// Reader streams records from a JSONL file in a bundle.
type Reader[T any] struct {
	rc      io.ReadCloser
	scanner *bufio.Scanner
}

// NewReader creates a streaming reader for type T.
func NewReader[T any](rc io.ReadCloser) *Reader[T] {
	return &Reader[T]{
		rc:      rc,
		scanner: bufio.NewScanner(rc),
	}
}

// All returns an iterator over every record in the file. Decode errors are
// yielded per line; iteration continues with the next line.
func (r *Reader[T]) All() iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		defer r.rc.Close()

		for r.scanner.Scan() {
			line := r.scanner.Bytes()
			if len(line) == 0 {
				continue
			}

			var record T
			if err := json.UnmarshalRead(bytes.NewReader(line), &record); err != nil {
				var zero T
				if !yield(zero, err) {
					return
				}
				continue
			}
			if !yield(record, nil) {
				return
			}
		}

		if err := r.scanner.Err(); err != nil {
			var zero T
			yield(zero, err)
		}
	}
}
