package ingest

import (
	"fmt"
	"io"

	"github.com/ChrissHeIs/electricco-vehicle-image-manager/models"
	"github.com/xuri/excelize/v2"
)

// ParseXLSX reads the first worksheet with the same header and filter rules
// as ParseCSV.
func ParseXLSX(r io.Reader) ([]models.VehicleRecord, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyFile
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return fromRows(rows)
}
