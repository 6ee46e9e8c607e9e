// Package export writes flat record lists as delimited files and reads them
// back.
package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"oas-testgen/internal/types"
)

// Record is a flat record with ordered, string-rendered columns.
type Record interface {
	Fields() []types.Field
}

// ColumnError reports a record whose columns differ from the header.
type ColumnError struct {
	Row    int
	Column string
	Reason string
}

func (e *ColumnError) Error() string {
	return fmt.Sprintf("row %d: column %q %s", e.Row, e.Column, e.Reason)
}

// Table is a decoded export: the header plus one map per data row.
type Table struct {
	Header []string
	Rows   []map[string]string
}

// WriteCSV writes records with a header taken from the first record's
// column order. Every record must carry exactly the header's columns.
// An empty list writes nothing.
func WriteCSV[T Record](w io.Writer, records []T) error {
	if len(records) == 0 {
		return nil
	}

	first := records[0].Fields()
	header := make([]string, len(first))
	index := make(map[string]int, len(first))
	for i, f := range first {
		header[i] = f.Name
		index[f.Name] = i
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}

	for n, record := range records {
		fields := record.Fields()
		row := make([]string, len(header))
		seen := make([]bool, len(header))
		for _, f := range fields {
			i, ok := index[f.Name]
			if !ok {
				return &ColumnError{Row: n + 1, Column: f.Name, Reason: "is not in the header"}
			}
			row[i] = f.Value
			seen[i] = true
		}
		for i, ok := range seen {
			if !ok {
				return &ColumnError{Row: n + 1, Column: header[i], Reason: "is missing"}
			}
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteCSVFile writes records to path, creating parent directories.
func WriteCSVFile[T Record](path string, records []T) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return WriteCSV(f, records)
}

// ReadCSV decodes an export written by WriteCSV.
func ReadCSV(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return &Table{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	table := &Table{Header: header}
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row %d: %w", len(table.Rows)+1, err)
		}
		row := make(map[string]string, len(header))
		for i, name := range header {
			row[name] = record[i]
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}
