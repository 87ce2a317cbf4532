// Package source reads collected review records.
package source

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/helixml/archdistill/domain/review"
)

// maxLineBytes bounds one JSONL line. Diff hunks can be large.
const maxLineBytes = 64 << 20

// jsonRecord is one line of the collector output.
type jsonRecord struct {
	Repo        string `json:"repo"`
	PRNumber    int    `json:"pr_number"`
	FilePath    string `json:"file_path"`
	CommentBody string `json:"comment_body"`
	DiffContext string `json:"diff_context"`
}

// LineError reports a line that is not a valid record.
type LineError struct {
	Line int
	Err  error
}

// Error implements the error interface.
func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

// Unwrap returns the decode error.
func (e *LineError) Unwrap() error { return e.Err }

// ReadJSONL reads every record in the JSONL file at path. Blank lines are
// skipped; the first malformed line fails the read.
func ReadJSONL(path string) ([]review.RawRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open records: %w", err)
	}
	defer func() { _ = f.Close() }()

	records, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return records, nil
}

// Decode reads JSONL records from r.
func Decode(r io.Reader) ([]review.RawRecord, error) {
	records := []review.RawRecord{}

	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	line := 0
	for s.Scan() {
		line++
		raw := bytes.TrimSpace(s.Bytes())
		if len(raw) == 0 {
			continue
		}

		var rec jsonRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, &LineError{Line: line, Err: err}
		}
		records = append(records, review.NewRawRecord(rec.Repo, rec.PRNumber, rec.FilePath, rec.CommentBody, rec.DiffContext))
	}
	if err := s.Err(); err != nil {
		return nil, fmt.Errorf("scan records: %w", err)
	}
	return records, nil
}

// File is a review.RecordSource over a JSONL file.
type File struct {
	path string
}

// NewFile creates a File source.
func NewFile(path string) File { return File{path: path} }

// Path returns the file path.
func (f File) Path() string { return f.path }

// Records reads the file.
func (f File) Records(_ context.Context) ([]review.RawRecord, error) {
	return ReadJSONL(f.path)
}

var _ review.RecordSource = File{}
