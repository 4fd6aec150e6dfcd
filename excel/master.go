package excel

import (
	"fmt"
	"os"
	"strings"

	"github.com/sheetflow-ai/sheetflow/log"
)

// MasterFile accumulates extracted rows from many source spreadsheets into a
// single CSV output.
type MasterFile struct {
	Path      string
	Separator rune
}

// NewMasterFile creates the output file with the given header columns unless
// it already exists.
func NewMasterFile(path string, columns []string, sep rune) (*MasterFile, error) {
	if sep == 0 {
		sep = ','
	}
	m := &MasterFile{Path: path, Separator: sep}

	if _, err := os.Stat(path); err == nil {
		return m, nil
	}

	header := append([]string(nil), columns...)
	if err := writeCSVFile(path, [][]string{header}, sep); err != nil {
		return nil, err
	}
	log.Info("created master file %s", path)
	return m, nil
}

// AppendCSV appends the data rows of csvData to the master file. When the
// data's first row matches the master header it is skipped. Each appended
// row gets source appended as its last column when source is non-empty.
func (m *MasterFile) AppendCSV(csvData, source string) (int, error) {
	existing, err := readCSVRows(m.Path, m.Separator)
	if err != nil {
		return 0, err
	}
	if len(existing) == 0 {
		return 0, fmt.Errorf("master file %s has no header", m.Path)
	}

	incoming, err := parseCSVString(csvData, m.Separator)
	if err != nil {
		return 0, err
	}
	if len(incoming) > 0 && sameHeader(incoming[0], existing[0]) {
		incoming = incoming[1:]
	}

	appended := 0
	for _, row := range incoming {
		if strings.TrimSpace(strings.Join(row, "")) == "" {
			continue
		}
		if source != "" {
			row = append(row, source)
		}
		existing = append(existing, row)
		appended++
	}

	if err := writeCSVFile(m.Path, existing, m.Separator); err != nil {
		return 0, err
	}
	log.Debug("appended %d rows from %s to %s", appended, source, m.Path)
	return appended, nil
}

// Rows returns the current content of the master file, header included.
func (m *MasterFile) Rows() ([][]string, error) {
	return readCSVRows(m.Path, m.Separator)
}

func sameHeader(a, b []string) bool {
	limit := len(a)
	if len(b) < limit {
		limit = len(b)
	}
	if limit == 0 {
		return false
	}
	for i := 0; i < limit; i++ {
		if strings.TrimSpace(a[i]) != strings.TrimSpace(b[i]) {
			return false
		}
	}
	return true
}
