package excel

import (
	"encoding/csv"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"goposthoc/domain/posthoc"
	"goposthoc/internal/errors"
)

// Record is one data row keyed by column header
type Record map[string]string

// Table is a parsed sheet: the header row plus keyed data rows
type Table struct {
	Headers []string
	Rows    []Record
}

// DataReader handles reading Excel and CSV files
type DataReader struct {
	filePath string
	fileType string // "xlsx" or "csv"
	sheet    string
}

// NewDataReader creates a new data reader that handles both Excel and CSV files
func NewDataReader(filePath string) *DataReader {
	ext := strings.ToLower(filepath.Ext(filePath))
	fileType := "xlsx"
	if ext == ".csv" {
		fileType = "csv"
	}
	return &DataReader{filePath: filePath, fileType: fileType, sheet: "Sheet1"}
}

// WithSheet selects the worksheet read from XLSX files
func (r *DataReader) WithSheet(sheet string) *DataReader {
	if sheet != "" {
		r.sheet = sheet
	}
	return r
}

// ReadData reads data from Excel or CSV files into structured format
func (r *DataReader) ReadData() (*Table, error) {
	log.Printf("[DataReader] Starting to read %s file: %s", r.fileType, r.filePath)

	if _, err := os.Stat(r.filePath); os.IsNotExist(err) {
		return nil, errors.InvalidInput("%s file not found: %s", strings.ToUpper(r.fileType), r.filePath)
	}

	switch r.fileType {
	case "csv":
		return r.readCSV()
	case "xlsx":
		return r.readSheet()
	default:
		return nil, errors.InvalidInput("unsupported file type: %s", r.fileType)
	}
}

// readSheet reads the configured sheet into structured format
func (r *DataReader) readSheet() (*Table, error) {
	startTime := time.Now()
	f, err := excelize.OpenFile(r.filePath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open Excel file")
	}
	defer f.Close()
	log.Printf("[DataReader] Excel file opened in %.2fms", float64(time.Since(startTime).Nanoseconds())/1e6)

	readStart := time.Now()
	rows, err := f.GetRows(r.sheet)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", r.sheet)
	}
	log.Printf("[DataReader] %s read in %.2fms (%d rows)", r.sheet, float64(time.Since(readStart).Nanoseconds())/1e6, len(rows))

	if len(rows) < 2 {
		return nil, errors.InsufficientData("Excel file must have at least a header row and one data row")
	}

	return r.processRows(rows)
}

// readCSV reads CSV data into structured format
func (r *DataReader) readCSV() (*Table, error) {
	file, err := os.Open(r.filePath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open CSV file")
	}
	defer file.Close()

	reader := csv.NewReader(file)
	readStart := time.Now()
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read CSV file")
	}
	log.Printf("[DataReader] CSV file read in %.2fms (%d rows)", float64(time.Since(readStart).Nanoseconds())/1e6, len(rows))

	if len(rows) < 2 {
		return nil, errors.InsufficientData("CSV file must have at least a header row and one data row")
	}

	return r.processRows(rows)
}

// processRows keys every data row by the header row
func (r *DataReader) processRows(rows [][]string) (*Table, error) {
	headerRow := rows[0]
	headers := make([]string, len(headerRow))
	for i, header := range headerRow {
		headers[i] = strings.TrimSpace(header)
	}

	var dataRows []Record
	for i := 1; i < len(rows); i++ {
		rowData := make(Record)
		for j, cell := range rows[i] {
			if j < len(headers) {
				rowData[headers[j]] = strings.TrimSpace(cell)
			}
		}
		dataRows = append(dataRows, rowData)
	}

	log.Printf("[DataReader] %s file processed (%d columns, %d rows)",
		strings.ToUpper(r.fileType), len(headers), len(dataRows))

	return &Table{
		Headers: headers,
		Rows:    dataRows,
	}, nil
}

// ReadGroups reads a long-format table and groups valueCol by groupCol.
// Rows with an empty value or group cell are skipped; group order is the
// order of first appearance.
func (r *DataReader) ReadGroups(valueCol, groupCol string) (posthoc.Groups, error) {
	data, err := r.ReadData()
	if err != nil {
		return posthoc.Groups{}, err
	}
	if err := data.requireColumns(valueCol, groupCol); err != nil {
		return posthoc.Groups{}, err
	}

	var values []float64
	var labels []string
	skipped := 0
	for i, row := range data.Rows {
		raw, label := row[valueCol], row[groupCol]
		if raw == "" || label == "" {
			skipped++
			continue
		}
		v, err := parseValue(raw)
		if err != nil {
			return posthoc.Groups{}, errors.InvalidInput("row %d: column %q: %v", i+2, valueCol, err)
		}
		values = append(values, v)
		labels = append(labels, label)
	}
	if skipped > 0 {
		log.Printf("[DataReader] Skipped %d rows with empty %q or %q", skipped, valueCol, groupCol)
	}
	return posthoc.FromObservations(values, labels), nil
}

// ReadBlocks reads a long-format table into a block design: one row per
// distinct blockCol value, one column per distinct groupCol value. Cells
// without an observation are NaN.
func (r *DataReader) ReadBlocks(valueCol, groupCol, blockCol string) (posthoc.BlockDesign, error) {
	data, err := r.ReadData()
	if err != nil {
		return posthoc.BlockDesign{}, err
	}
	if err := data.requireColumns(valueCol, groupCol, blockCol); err != nil {
		return posthoc.BlockDesign{}, err
	}

	var design posthoc.BlockDesign
	treatmentIdx := map[string]int{}
	blockIdx := map[string]int{}
	type cell struct {
		block, treatment int
		value            float64
	}
	var cells []cell

	for i, row := range data.Rows {
		raw, treatment, block := row[valueCol], row[groupCol], row[blockCol]
		if raw == "" || treatment == "" || block == "" {
			continue
		}
		v, err := parseValue(raw)
		if err != nil {
			return posthoc.BlockDesign{}, errors.InvalidInput("row %d: column %q: %v", i+2, valueCol, err)
		}
		t, ok := treatmentIdx[treatment]
		if !ok {
			t = len(design.Treatments)
			treatmentIdx[treatment] = t
			design.Treatments = append(design.Treatments, treatment)
		}
		b, ok := blockIdx[block]
		if !ok {
			b = len(design.Blocks)
			blockIdx[block] = b
			design.Blocks = append(design.Blocks, block)
		}
		cells = append(cells, cell{block: b, treatment: t, value: v})
	}

	design.Values = make([][]float64, len(design.Blocks))
	for b := range design.Values {
		design.Values[b] = make([]float64, len(design.Treatments))
		for t := range design.Values[b] {
			design.Values[b][t] = math.NaN()
		}
	}
	for _, c := range cells {
		if !math.IsNaN(design.Values[c.block][c.treatment]) {
			return posthoc.BlockDesign{}, errors.ShapeMismatch("block %q has more than one value for %q",
				design.Blocks[c.block], design.Treatments[c.treatment])
		}
		design.Values[c.block][c.treatment] = c.value
	}
	return design, nil
}

// ReadWideBlocks reads a wide table: every column is a treatment and every
// row a block. Empty cells become NaN.
func (r *DataReader) ReadWideBlocks() (posthoc.BlockDesign, error) {
	data, err := r.ReadData()
	if err != nil {
		return posthoc.BlockDesign{}, err
	}

	design := posthoc.BlockDesign{Treatments: append([]string(nil), data.Headers...)}
	for i, row := range data.Rows {
		values := make([]float64, len(data.Headers))
		for j, h := range data.Headers {
			raw := row[h]
			if raw == "" {
				values[j] = math.NaN()
				continue
			}
			v, err := parseValue(raw)
			if err != nil {
				return posthoc.BlockDesign{}, errors.InvalidInput("row %d: column %q: %v", i+2, h, err)
			}
			values[j] = v
		}
		design.Values = append(design.Values, values)
		design.Blocks = append(design.Blocks, strconv.Itoa(i+1))
	}
	return design, nil
}

// ReadColumn reads a single numeric column, skipping empty cells
func (r *DataReader) ReadColumn(valueCol string) ([]float64, error) {
	data, err := r.ReadData()
	if err != nil {
		return nil, err
	}
	if err := data.requireColumns(valueCol); err != nil {
		return nil, err
	}
	var out []float64
	for i, row := range data.Rows {
		if row[valueCol] == "" {
			continue
		}
		v, err := parseValue(row[valueCol])
		if err != nil {
			return nil, errors.InvalidInput("row %d: column %q: %v", i+2, valueCol, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func (d *Table) requireColumns(cols ...string) error {
	present := make(map[string]bool, len(d.Headers))
	for _, h := range d.Headers {
		present[h] = true
	}
	var missing []string
	for _, c := range cols {
		if !present[c] {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return errors.InvalidInput("missing columns %s (have %s)", strings.Join(missing, ", "), strings.Join(d.Headers, ", "))
	}
	return nil
}

func parseValue(raw string) (float64, error) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", ""), 64)
	if err != nil {
		return 0, fmt.Errorf("%q is not numeric", raw)
	}
	return v, nil
}
