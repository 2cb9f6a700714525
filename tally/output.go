package tally

import (
	"fmt"
	"os"

	"github.com/gocarina/gocsv"
)

// Writer appends cycle records to a CSV trace file for external reporting.
type Writer struct {
	f             *os.File
	headerWritten bool
}

// NewWriter creates the trace file, truncating any existing one.
func NewWriter(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating trace file: %w", err)
	}
	return &Writer{f: f}, nil
}

// Write appends one cycle record. The header row is written once, on the
// first call.
func (w *Writer) Write(rec CycleRecord) error {
	rows := []CycleRecord{rec}

	if !w.headerWritten {
		if err := gocsv.Marshal(rows, w.f); err != nil {
			return fmt.Errorf("writing trace: %w", err)
		}
		w.headerWritten = true
		return nil
	}
	if err := gocsv.MarshalWithoutHeaders(rows, w.f); err != nil {
		return fmt.Errorf("writing trace: %w", err)
	}
	return nil
}

// Close flushes and closes the trace file.
func (w *Writer) Close() error { return w.f.Close() }

// ReadTrace loads a trace file written by Writer.
func ReadTrace(path string) ([]CycleRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening trace file: %w", err)
	}
	defer f.Close()

	var recs []CycleRecord
	if err := gocsv.Unmarshal(f, &recs); err != nil {
		return nil, fmt.Errorf("reading trace: %w", err)
	}
	return recs, nil
}
