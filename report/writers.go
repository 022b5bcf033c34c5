// Package report writes per-item enrichment outcomes to disk.
package report

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/retrocellar/price-enricher/models"
)

// OutputWriter defines the interface for outcome output.
type OutputWriter interface {
	Write(estimates []models.FinalEstimate) error
	Close() error
	Validate() error
}

// Formats accepted by New.
const (
	FormatCSV  = "csv"
	FormatJSON = "json"
	FormatDual = "dual"
)

// New builds the writer for the requested format. The dual format
// derives the JSON path from the CSV path by swapping the extension.
func New(format, path string) (OutputWriter, error) {
	switch strings.ToLower(format) {
	case FormatCSV:
		return NewCSVWriter(path)
	case FormatJSON:
		return NewJSONWriter(path)
	case FormatDual:
		jsonPath := strings.TrimSuffix(path, filepath.Ext(path)) + ".json"
		return NewDualWriter(path, jsonPath)
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}
}

// CSVWriter writes outcomes to CSV.
type CSVWriter struct {
	file   *os.File
	writer *csv.Writer
	mu     sync.Mutex
}

// NewCSVWriter initialises a CSV writer and writes the header row.
func NewCSVWriter(filename string) (*CSVWriter, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}

	f, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("create csv file: %w", err)
	}

	writer := csv.NewWriter(f)
	header := []string{"row", "platform", "title", "region", "packaging", "estimate_eur", "status", "sources", "samples"}
	if err := writer.Write(header); err != nil {
		f.Close()
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		f.Close()
		return nil, fmt.Errorf("flush csv header: %w", err)
	}

	return &CSVWriter{
		file:   f,
		writer: writer,
	}, nil
}

// Write appends outcomes to the CSV output.
func (cw *CSVWriter) Write(estimates []models.FinalEstimate) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	for _, est := range estimates {
		amount := ""
		status := string(est.Reason)
		if est.HasAmount {
			amount = est.AmountEUR.StringFixed(2)
			status = "estimated"
		}
		samples := 0
		parts := make([]string, 0, len(est.Sources))
		for _, ws := range est.Sources {
			samples += ws.Estimate.SampleCount
			parts = append(parts, fmt.Sprintf("%s=%s", ws.Estimate.Source, ws.Estimate.AmountEUR.StringFixed(2)))
		}
		record := []string{
			strconv.Itoa(est.Item.RowIndex),
			est.Item.Platform,
			est.Item.Title,
			string(est.Item.Region),
			string(est.Item.Packaging()),
			amount,
			status,
			strings.Join(parts, ";"),
			strconv.Itoa(samples),
		}
		if err := cw.writer.Write(record); err != nil {
			return fmt.Errorf("write csv record: %w", err)
		}
	}
	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		return fmt.Errorf("flush csv records: %w", err)
	}
	return nil
}

// Close flushes and closes the file handle.
func (cw *CSVWriter) Close() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		return fmt.Errorf("flush csv writer: %w", err)
	}
	return cw.file.Close()
}

// Validate ensures the file has content besides the header.
func (cw *CSVWriter) Validate() error {
	info, err := cw.file.Stat()
	if err != nil {
		return fmt.Errorf("stat csv file: %w", err)
	}
	if info.Size() <= 0 {
		return fmt.Errorf("csv file is empty")
	}
	return nil
}

// JSONWriter writes newline-delimited JSON records, trace included.
type JSONWriter struct {
	file    *os.File
	writer  *bufio.Writer
	encoder *json.Encoder
	mu      sync.Mutex
}

// NewJSONWriter initialises the JSON writer.
func NewJSONWriter(filename string) (*JSONWriter, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}

	f, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("create json file: %w", err)
	}

	buffer := bufio.NewWriter(f)
	return &JSONWriter{
		file:    f,
		writer:  buffer,
		encoder: json.NewEncoder(buffer),
	}, nil
}

// Write appends outcomes in JSONL format.
func (jw *JSONWriter) Write(estimates []models.FinalEstimate) error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	for _, est := range estimates {
		if err := jw.encoder.Encode(est); err != nil {
			return fmt.Errorf("encode json record: %w", err)
		}
	}

	if err := jw.writer.Flush(); err != nil {
		return fmt.Errorf("flush json writer: %w", err)
	}

	return nil
}

// Close flushes buffers and closes the underlying file.
func (jw *JSONWriter) Close() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	if err := jw.writer.Flush(); err != nil {
		return fmt.Errorf("flush json writer: %w", err)
	}
	return jw.file.Close()
}

// Validate ensures the JSON file has data.
func (jw *JSONWriter) Validate() error {
	info, err := jw.file.Stat()
	if err != nil {
		return fmt.Errorf("stat json file: %w", err)
	}
	if info.Size() <= 0 {
		return fmt.Errorf("json file is empty")
	}
	return nil
}

func ensureDir(filename string) error {
	dir := filepath.Dir(filename)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}
