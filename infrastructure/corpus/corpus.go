// Package corpus stores guideline collections as JSON files.
package corpus

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/helixml/archdistill/domain/guideline"
)

// ErrNotFound indicates the corpus file does not exist.
var ErrNotFound = errors.New("guideline corpus not found")

// File is a guideline.Corpus backed by indented JSON files.
type File struct{}

// NewFile creates a File corpus.
func NewFile() File { return File{} }

// Read loads the guidelines stored at path.
func (File) Read(path string) ([]guideline.Guideline, error) {
	return Read(path)
}

// Write replaces the file at path with guidelines.
func (File) Write(path string, guidelines []guideline.Guideline) error {
	return Write(path, guidelines)
}

// Read loads the guidelines stored at path. A missing file returns ErrNotFound.
func Read(path string) ([]guideline.Guideline, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("read corpus: %w", err)
	}

	var gs []guideline.Guideline
	if err := json.Unmarshal(data, &gs); err != nil {
		return nil, fmt.Errorf("parse corpus %s: %w", path, err)
	}
	if gs == nil {
		gs = []guideline.Guideline{}
	}
	return gs, nil
}

// Write encodes guidelines as indented JSON and replaces path atomically: the
// data goes to a temporary file in the same directory which is then renamed
// over the target. Readers see either the old or the new corpus.
func Write(path string, guidelines []guideline.Guideline) error {
	if guidelines == nil {
		guidelines = []guideline.Guideline{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(guidelines); err != nil {
		return fmt.Errorf("encode corpus: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create corpus directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp corpus: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write temp corpus: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close temp corpus: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("chmod temp corpus: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("commit corpus: %w", err)
	}
	return nil
}

var _ guideline.Corpus = File{}
