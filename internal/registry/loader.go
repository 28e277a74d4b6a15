// Package registry loads the supplier/vendor sheet and holds the current
// immutable registry snapshot.
package registry

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/akashrathod3565/Vendor-Automation-Application/internal/model"
)

// SchemaError is returned when the source lacks a required column.
type SchemaError struct {
	Source  string
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("registry %s: missing required column(s) %s (need SupplierName and VendorEmail, case-insensitive)",
		e.Source, strings.Join(e.Missing, ", "))
}

// IsSchemaError reports whether err is (or wraps) a *SchemaError.
func IsSchemaError(err error) bool {
	var se *SchemaError
	return errors.As(err, &se)
}

// Header aliases, checked in order after lowercasing and trimming.
var (
	supplierColumns = []string{"suppliername", "supplier"}
	emailColumns    = []string{"vendoremail", "email", "vendor"}
	nameColumns     = []string{"vendorname"}
	addressColumns  = []string{"vendoraddress", "address"}
	ccColumns       = []string{"cc"}
)

// LoadFile reads a registry from an .xlsx workbook (first sheet) or a
// .csv file.
func LoadFile(path string) (*model.Registry, error) {
	var (
		rows [][]string
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		rows, err = readWorkbook(path)
	case ".csv":
		rows, err = readCSV(path)
	default:
		return nil, fmt.Errorf("unsupported registry file type %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}
	return FromRows(path, rows)
}

func readWorkbook(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening workbook %s: %w", path, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, &SchemaError{Source: path, Missing: []string{"SupplierName", "VendorEmail"}}
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("reading sheet %q: %w", sheets[0], err)
	}
	return rows, nil
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	var rows [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		rows = append(rows, rec)
	}
	return rows, nil
}

// FromRows builds a registry from a header row followed by data rows.
// Rows without a supplier or email are dropped; a cell holding several
// comma separated addresses yields one vendor record per address.
func FromRows(source string, rows [][]string) (*model.Registry, error) {
	if len(rows) == 0 {
		return nil, &SchemaError{Source: source, Missing: []string{"SupplierName", "VendorEmail"}}
	}

	index := make(map[string]int, len(rows[0]))
	for i, h := range rows[0] {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, dup := index[key]; !dup {
			index[key] = i
		}
	}

	supplierCol := findColumn(index, supplierColumns)
	emailCol := findColumn(index, emailColumns)
	var missing []string
	if supplierCol < 0 {
		missing = append(missing, "SupplierName")
	}
	if emailCol < 0 {
		missing = append(missing, "VendorEmail")
	}
	if len(missing) > 0 {
		return nil, &SchemaError{Source: source, Missing: missing}
	}
	nameCol := findColumn(index, nameColumns)
	addressCol := findColumn(index, addressColumns)
	ccCol := findColumn(index, ccColumns)

	reg := &model.Registry{Source: source}
	position := make(map[string]int)
	seen := make(map[string]map[string]bool)

	for _, row := range rows[1:] {
		supplier := cell(row, supplierCol)
		rawEmails := cell(row, emailCol)
		if supplier == "" || rawEmails == "" {
			continue
		}

		pos, ok := position[supplier]
		if !ok {
			pos = len(reg.Suppliers)
			position[supplier] = pos
			seen[supplier] = make(map[string]bool)
			reg.Suppliers = append(reg.Suppliers, model.Supplier{Name: supplier})
		}

		for _, part := range strings.Split(rawEmails, ",") {
			email := strings.ToLower(strings.TrimSpace(part))
			if email == "" || seen[supplier][email] {
				continue
			}
			seen[supplier][email] = true
			reg.Suppliers[pos].Vendors = append(reg.Suppliers[pos].Vendors, model.VendorRecord{
				Email:       email,
				DisplayName: cell(row, nameCol),
				Address:     cell(row, addressCol),
				CC:          cell(row, ccCol),
			})
		}
	}

	// Drop suppliers whose rows held only blank addresses.
	kept := reg.Suppliers[:0]
	for _, s := range reg.Suppliers {
		if len(s.Vendors) > 0 {
			kept = append(kept, s)
		}
	}
	reg.Suppliers = kept

	return reg, nil
}

func findColumn(index map[string]int, aliases []string) int {
	for _, a := range aliases {
		if i, ok := index[a]; ok {
			return i
		}
	}
	return -1
}

// cell returns the trimmed value at col, treating spreadsheet "nan"
// placeholders as empty.
func cell(row []string, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}
	v := strings.TrimSpace(row[col])
	if strings.EqualFold(v, "nan") {
		return ""
	}
	return v
}
