// Package excel provides the spreadsheet helpers the extraction pipelines
// rely on: reading Excel/CSV content as CSV strings, locating rows,
// converting workbooks to CSV files, and maintaining the master output file.
package excel

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/xuri/excelize/v2"

	"github.com/sheetflow-ai/sheetflow/log"
)

// ReadOptions controls how spreadsheet content is rendered to CSV.
type ReadOptions struct {
	// MaxRows limits output to the first N rows when positive.
	MaxRows int
	// Separator is the CSV field separator. Defaults to ','.
	Separator rune
}

func (o ReadOptions) sep() rune {
	if o.Separator == 0 {
		return ','
	}
	return o.Separator
}

// ReadAsCSVString reads an .xlsx or .csv file and returns its content as a
// CSV formatted string.
func ReadAsCSVString(path string, opts ReadOptions) (string, error) {
	rows, err := ReadRows(path, opts)
	if err != nil {
		return "", err
	}
	return writeCSVString(rows, opts.sep())
}

// ReadRows reads an .xlsx or .csv file into a row/column matrix.
func ReadRows(path string, opts ReadOptions) ([][]string, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("file not found: %s", path)
	}

	var rows [][]string
	var err error
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		rows, err = readCSVRows(path, opts.sep())
	case ".xlsx", ".xls":
		rows, err = readExcelRows(path)
	default:
		return nil, fmt.Errorf("invalid file type: %s", ext)
	}
	if err != nil {
		return nil, err
	}

	if opts.MaxRows > 0 && len(rows) > opts.MaxRows {
		rows = rows[:opts.MaxRows]
	}
	return rows, nil
}

// SheetName returns the first sheet name of a workbook. CSV files report
// their base filename.
func SheetName(path string) (string, error) {
	if strings.ToLower(filepath.Ext(path)) == ".csv" {
		return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)), nil
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	return f.GetSheetName(0), nil
}

// ConvertToCSV converts an .xlsx file to a sibling .csv file and returns its
// path. A .csv input is returned unchanged.
func ConvertToCSV(path string, sep rune) (string, error) {
	if strings.ToLower(filepath.Ext(path)) == ".csv" {
		return path, nil
	}

	rows, err := readExcelRows(path)
	if err != nil {
		return "", err
	}

	csvPath := strings.TrimSuffix(path, filepath.Ext(path)) + ".csv"
	if err := writeCSVFile(csvPath, rows, sep); err != nil {
		return "", err
	}

	log.Debug("converted %s to %s", path, csvPath)
	return csvPath, nil
}

// RowNumber finds the 1-based row number whose joined content equals the
// given row content.
func RowNumber(path, rowContent string, sep rune) (int, error) {
	rows, err := ReadRows(path, ReadOptions{Separator: sep})
	if err != nil {
		return 0, err
	}

	target := strings.TrimSpace(rowContent)
	for i, row := range rows {
		if strings.TrimSpace(strings.Join(row, string(sep))) == target {
			return i + 1, nil
		}
	}
	return 0, fmt.Errorf("content %q not found in %s", rowContent, path)
}

// MostSimilarRow returns the row of the CSV file most similar to target,
// as a joined CSV line. Similarity uses difflib's ratio over characters.
func MostSimilarRow(path, target string, sep rune) (string, error) {
	rows, err := ReadRows(path, ReadOptions{Separator: sep})
	if err != nil {
		return "", err
	}
	if len(rows) == 0 {
		return "", fmt.Errorf("no rows in %s", path)
	}

	best := ""
	bestRatio := -1.0
	for _, row := range rows {
		line := strings.Join(row, string(sep))
		matcher := difflib.NewMatcher(strings.Split(target, ""), strings.Split(line, ""))
		if ratio := matcher.Ratio(); ratio > bestRatio {
			bestRatio = ratio
			best = line
		}
	}
	return best, nil
}

// ReplaceRows replaces the rows in [start, end] (1-based, inclusive) of the
// input file with the rows of csvData, writing the result to outputPath.
func ReplaceRows(inputPath, outputPath, csvData string, start, end int, sep rune) error {
	rows, err := ReadRows(inputPath, ReadOptions{Separator: sep})
	if err != nil {
		return err
	}
	if start < 1 || end < start || end > len(rows) {
		return fmt.Errorf("invalid replacement range [%d, %d] for %d rows", start, end, len(rows))
	}

	replacement, err := parseCSVString(csvData, sep)
	if err != nil {
		return err
	}

	var out [][]string
	out = append(out, rows[:start-1]...)
	out = append(out, replacement...)
	out = append(out, rows[end:]...)

	return writeRowsToFile(outputPath, out, sep)
}

// DeleteColumnsContaining removes from a CSV string every column whose
// header cell matches one of the given values.
func DeleteColumnsContaining(csvData string, values []string, sep rune) (string, error) {
	rows, err := parseCSVString(csvData, sep)
	if err != nil {
		return "", err
	}
	if len(rows) == 0 {
		return csvData, nil
	}

	drop := make(map[int]bool)
	for i, cell := range rows[0] {
		for _, value := range values {
			if strings.TrimSpace(cell) == strings.TrimSpace(value) {
				drop[i] = true
			}
		}
	}

	var out [][]string
	for _, row := range rows {
		var kept []string
		for i, cell := range row {
			if !drop[i] {
				kept = append(kept, cell)
			}
		}
		out = append(out, kept)
	}
	return writeCSVString(out, sep)
}

// CountContentLines counts the data lines of a CSV string: non-empty lines
// that contain something besides separators.
func CountContentLines(csvData string, sep rune) int {
	count := 0
	for _, line := range strings.Split(csvData, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if strings.Trim(trimmed, string(sep)+" \"") == "" {
			continue
		}
		count++
	}
	return count
}

func readCSVRows(path string, sep rune) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open csv file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = sep
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv file %s: %w", path, err)
	}
	return rows, nil
}

func readExcelRows(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook %s: %w", path, err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}
	return rows, nil
}

func parseCSVString(data string, sep rune) ([][]string, error) {
	r := csv.NewReader(strings.NewReader(data))
	r.Comma = sep
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse csv data: %w", err)
	}
	return rows, nil
}

func writeCSVString(rows [][]string, sep rune) (string, error) {
	var sb strings.Builder
	w := csv.NewWriter(&sb)
	w.Comma = sep
	if err := w.WriteAll(rows); err != nil {
		return "", fmt.Errorf("failed to render csv: %w", err)
	}
	w.Flush()
	return sb.String(), nil
}

func writeCSVFile(path string, rows [][]string, sep rune) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	w.Comma = sep
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	w.Flush()
	return w.Error()
}

func writeRowsToFile(path string, rows [][]string, sep rune) error {
	if strings.ToLower(filepath.Ext(path)) == ".csv" {
		return writeCSVFile(path, rows, sep)
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return fmt.Errorf("failed to compute cell name: %w", err)
		}
		cells := make([]any, len(row))
		for j, v := range row {
			cells[j] = v
		}
		if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save %s: %w", path, err)
	}
	return nil
}
