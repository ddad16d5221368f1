package timetable

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gocarina/gocsv"
	"github.com/xuri/excelize/v2"

	appErrors "timetable2ics/internal/errors"
	appLog "timetable2ics/internal/log"
	"timetable2ics/internal/model"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Reader turns a CSV or XLSX timetable into validated rows.
type Reader struct {
	// Sheet selects the XLSX worksheet; empty means the first one.
	Sheet string

	validate *validator.Validate
}

// NewReader creates a Reader.
func NewReader(sheet string) *Reader {
	return &Reader{Sheet: sheet, validate: newValidator()}
}

// Read parses a CSV timetable, or an XLSX one when name ends in .xlsx or
// .xlsm.
func Read(name string, data []byte) ([]model.Row, error) {
	return NewReader("").Read(name, data)
}

// Read decodes data, picking the format from name, and validates every
// row. Any invalid row fails the whole read with all problems joined.
func (r *Reader) Read(name string, data []byte) ([]model.Row, error) {
	var (
		records [][]string
		err     error
	)
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm":
		records, err = r.xlsxRecords(data)
	default:
		records, err = csvRecords(data)
	}
	if err != nil {
		return nil, err
	}

	records = dropBlank(records)
	if len(records) == 0 {
		return nil, appErrors.New(appErrors.CodeValidation, "timetable has no header row")
	}
	if err := checkHeader(records[0]); err != nil {
		return nil, err
	}

	raws := make([]rawRow, 0, len(records)-1)
	if len(records) > 1 {
		if err := gocsv.UnmarshalCSV(&sliceReader{records: records}, &raws); err != nil {
			return nil, fmt.Errorf("decode %s: %w", name, err)
		}
	}

	rows, err := validateRows(r.validate, raws)
	if err != nil {
		return nil, err
	}

	appLog.Debug("timetable read", "name", name, "rows", len(rows))
	return rows, nil
}

func csvRecords(data []byte) ([][]string, error) {
	cr := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, utf8BOM)))
	cr.FieldsPerRecord = -1
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return records, nil
}

func (r *Reader) xlsxRecords(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	sheet := r.Sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, errors.New("xlsx has no sheets")
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	return rows, nil
}

// checkHeader reports every missing column at once.
func checkHeader(header []string) error {
	present := make(map[string]bool, len(header))
	for _, h := range header {
		present[strings.TrimSpace(h)] = true
	}

	var errs []error
	for _, col := range Columns {
		if !present[col] {
			errs = append(errs, appErrors.Validation(-1, col, "column missing from header"))
		}
	}
	return errors.Join(errs...)
}

func dropBlank(records [][]string) [][]string {
	out := records[:0]
	for _, rec := range records {
		for _, cell := range rec {
			if strings.TrimSpace(cell) != "" {
				out = append(out, rec)
				break
			}
		}
	}
	return out
}

// sliceReader feeds already-split records to gocsv. The header is
// trimmed so padded spreadsheet headings still match.
type sliceReader struct {
	records [][]string
	pos     int
}

func (s *sliceReader) Read() ([]string, error) {
	if s.pos >= len(s.records) {
		return nil, io.EOF
	}
	rec := s.records[s.pos]
	if s.pos == 0 {
		rec = trimAll(rec)
	}
	s.pos++
	return rec, nil
}

func (s *sliceReader) ReadAll() ([][]string, error) {
	var out [][]string
	for {
		rec, err := s.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
}

func trimAll(rec []string) []string {
	out := make([]string, len(rec))
	for i, v := range rec {
		out[i] = strings.TrimSpace(v)
	}
	return out
}
