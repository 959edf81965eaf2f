// Package ingest turns a tabular vehicle export into the filtered vehicle list.
package ingest

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ChrissHeIs/electricco-vehicle-image-manager/models"
)

var (
	ErrEmptyFile      = errors.New("file is empty")
	ErrNotUTF8        = errors.New("file is not valid UTF-8")
	ErrMalformed      = errors.New("malformed file")
	ErrUnsupportedExt = errors.New("unsupported file type, expected .csv or .xlsx")
)

const (
	ColumnBrand       = "brand"
	ColumnModel       = "model"
	ColumnYear        = "year"
	ColumnReliability = "reliability"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ParseCSV reads a header-led CSV and keeps the rows whose reliability is at
// least MinReliability, in file order. Missing columns read as empty strings.
func ParseCSV(r io.Reader) ([]models.VehicleRecord, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if !utf8.Valid(data) {
		return nil, ErrNotUTF8
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return fromRows(rows)
}

// Parse picks the parser from the file extension. Anything that is not
// .xlsx is read as CSV.
func Parse(name string, r io.Reader) ([]models.VehicleRecord, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx":
		return ParseXLSX(r)
	case ".csv", ".txt", "":
		return ParseCSV(r)
	default:
		return nil, ErrUnsupportedExt
	}
}

type columns struct {
	brand, model, year, reliability int
}

func indexColumns(header []string) columns {
	cols := columns{brand: -1, model: -1, year: -1, reliability: -1}
	for i, name := range header {
		switch {
		case name == ColumnBrand && cols.brand < 0:
			cols.brand = i
		case name == ColumnModel && cols.model < 0:
			cols.model = i
		case name == ColumnYear && cols.year < 0:
			cols.year = i
		case name == ColumnReliability && cols.reliability < 0:
			cols.reliability = i
		}
	}
	return cols
}

func field(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

func blank(row []string) bool {
	for _, f := range row {
		if f != "" {
			return false
		}
	}
	return true
}

func fromRows(rows [][]string) ([]models.VehicleRecord, error) {
	if len(rows) == 0 {
		return nil, ErrEmptyFile
	}
	cols := indexColumns(rows[0])

	out := make([]models.VehicleRecord, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if blank(row) {
			continue
		}
		if !MeetsThreshold(field(row, cols.reliability)) {
			continue
		}
		out = append(out, models.VehicleRecord{
			Brand: field(row, cols.brand),
			Model: field(row, cols.model),
			Year:  field(row, cols.year),
		})
	}
	return out, nil
}
