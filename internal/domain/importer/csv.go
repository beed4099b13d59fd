package importer

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"pharmaledger/internal/core/apperror"
)

// Columns of the import file. Only name and quantity are required.
var (
	TemplateColumns = []string{"name", "quantity", "mrp", "cost_price", "selling_price", "expiry_date"}
	RequiredColumns = []string{"name", "quantity"}
)

// DecodeCSV reads a header-mapped CSV file into rows. Column order is free and
// unknown columns are ignored. Row.Line is the file line, the header being line 1.
func DecodeCSV(r io.Reader) ([]Row, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, apperror.NewValidation("import file is empty")
		}
		return nil, apperror.NewValidation(fmt.Sprintf("error reading file: %v", err))
	}

	index := make(map[string]int, len(header))
	for i, col := range header {
		col = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(col, "\ufeff")))
		if _, dup := index[col]; !dup {
			index[col] = i
		}
	}

	var missing []string
	for _, col := range RequiredColumns {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, apperror.NewValidation(fmt.Sprintf("Missing required columns: %s", strings.Join(missing, ", "))).
			WithDetail("required_columns", RequiredColumns).
			WithDetail("found_columns", header)
	}

	cell := func(record []string, col string) string {
		i, ok := index[col]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var rows []Row
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, apperror.NewValidation(fmt.Sprintf("error reading file: %v", err))
		}
		line, _ := reader.FieldPos(0)
		rows = append(rows, Row{
			Line:         line,
			Name:         cell(record, "name"),
			Quantity:     cell(record, "quantity"),
			MRP:          cell(record, "mrp"),
			CostPrice:    cell(record, "cost_price"),
			SellingPrice: cell(record, "selling_price"),
			ExpiryDate:   cell(record, "expiry_date"),
		})
	}
	return rows, nil
}

// Template returns a sample import file.
func Template() []byte {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.WriteAll([][]string{
		TemplateColumns,
		{"Paracetamol 500mg", "100", "30", "15", "25", "2027-12-31"},
		{"Amoxicillin 250mg", "50", "75", "45", "65", "2027-06-30"},
		{"Ibuprofen 400mg", "75", "50", "30", "40", "2027-09-15"},
	})
	return buf.Bytes()
}
