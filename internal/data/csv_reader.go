package data

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

type CSVReader struct {
	filename string
}

func NewCSVReader(filename string) *CSVReader {
	return &CSVReader{filename: filename}
}

func (cr *CSVReader) LoadData() (*Dataset, error) {
	file, err := os.Open(cr.filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	return LoadCSV(file)
}

// LoadCSV reads a comma-delimited table with a header row.
func LoadCSV(r io.Reader) (*Dataset, error) {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		br.Discard(len(utf8BOM))
	}

	reader := csv.NewReader(br)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFileFormat, err)
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("%w: no columns to parse from file", ErrFileFormat)
	}

	header, err := normalizeHeader(records[0])
	if err != nil {
		return nil, err
	}

	return NewDataset(header, records[1:]), nil
}

func normalizeHeader(raw []string) ([]string, error) {
	header := make([]string, len(raw))
	seen := make(map[string]bool, len(raw))

	for i, name := range raw {
		name = strings.TrimSpace(name)
		if name == "" {
			name = fmt.Sprintf("Unnamed: %d", i)
		}
		if seen[name] {
			return nil, fmt.Errorf("%w: duplicate column name %q", ErrFileFormat, name)
		}
		seen[name] = true
		header[i] = name
	}

	return header, nil
}

// WriteCSV writes the raw cells of ds followed by an extra column.
func WriteCSV(w io.Writer, ds *Dataset, extraName string, extra []string) error {
	if extra != nil && len(extra) != ds.NumRows() {
		return fmt.Errorf("extra column has %d values, dataset has %d rows", len(extra), ds.NumRows())
	}

	writer := csv.NewWriter(w)

	header := ds.Names()
	if extra != nil {
		header = append(header, extraName)
	}
	if err := writer.Write(header); err != nil {
		return err
	}

	for i := 0; i < ds.NumRows(); i++ {
		record := make([]string, 0, len(header))
		for _, col := range ds.Columns {
			record = append(record, col.Cells[i])
		}
		if extra != nil {
			record = append(record, extra[i])
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func WriteCSVFile(path string, ds *Dataset, extraName string, extra []string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}

	if err := WriteCSV(file, ds, extraName, extra); err != nil {
		file.Close()
		return err
	}

	return file.Close()
}
