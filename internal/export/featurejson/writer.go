// Package featurejson writes enriched feature records as JSON lines, the
// streaming enricher's file sink.
package featurejson

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"triagepipe/internal/logger"
	"triagepipe/pkg/models"
)

// Writer outputs feature records to a JSON lines file.
type Writer struct {
	file    *os.File
	encoder *json.Encoder
	mu      sync.Mutex
}

// NewWriter creates a JSONL writer for feature records.
func NewWriter(path string) (*Writer, error) {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}

	logger.Infof("Feature JSON writer initialized: %s", path)
	return &Writer{file: f, encoder: json.NewEncoder(f)}, nil
}

// WriteRecord appends one feature record.
func (w *Writer) WriteRecord(rec *models.FeatureRecord) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.encoder.Encode(rec); err != nil {
		return fmt.Errorf("failed to encode feature record: %w", err)
	}
	return nil
}

// Close closes the output file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file != nil {
		return w.file.Close()
	}
	return nil
}
