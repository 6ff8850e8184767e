package pipeline

import (
	"errors"
	"fmt"
	"sync"

	"github.com/aluiziolira/go-audiobooks-api/models"
)

// MultiWriter fans every batch out to several writers in order.
type MultiWriter struct {
	writers []namedWriter
	mu      sync.Mutex
}

type namedWriter struct {
	name string
	OutputWriter
}

// NewDualWriter exports to a CSV file and a JSONL file at once.
func NewDualWriter(csvFilename, jsonFilename string) (*MultiWriter, error) {
	csvWriter, err := NewCSVWriter(csvFilename)
	if err != nil {
		return nil, fmt.Errorf("create csv writer: %w", err)
	}
	jsonWriter, err := NewJSONWriter(jsonFilename)
	if err != nil {
		csvWriter.Close()
		return nil, fmt.Errorf("create json writer: %w", err)
	}
	return &MultiWriter{writers: []namedWriter{
		{name: "csv", OutputWriter: csvWriter},
		{name: "json", OutputWriter: jsonWriter},
	}}, nil
}

// Write stops at the first failing writer.
func (mw *MultiWriter) Write(books []*models.Book) error {
	mw.mu.Lock()
	defer mw.mu.Unlock()

	for _, w := range mw.writers {
		if err := w.Write(books); err != nil {
			return fmt.Errorf("%s write: %w", w.name, err)
		}
	}
	return nil
}

// Close closes every writer and joins their errors.
func (mw *MultiWriter) Close() error {
	mw.mu.Lock()
	defer mw.mu.Unlock()

	var errs []error
	for _, w := range mw.writers {
		if err := w.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s close: %w", w.name, err))
		}
	}
	return errors.Join(errs...)
}

func (mw *MultiWriter) Validate() error {
	var errs []error
	for _, w := range mw.writers {
		if err := w.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("%s validation: %w", w.name, err))
		}
	}
	return errors.Join(errs...)
}
