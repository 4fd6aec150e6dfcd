package transform

import (
	"fmt"
	"strings"
)

// OutputMap pairs a parametrization header with one of its rows, producing a
// mapping from output column name to the source column holding its value.
// Empty cells mean the output column has no source and are skipped.
func OutputMap(header, row []string) (map[string]string, error) {
	if len(header) == 0 {
		return nil, fmt.Errorf("parametrization header is empty")
	}
	if len(row) > len(header) {
		return nil, fmt.Errorf("parametrization row has %d cells for %d columns", len(row), len(header))
	}

	out := make(map[string]string, len(header))
	for i, cell := range row {
		name := strings.TrimSpace(header[i])
		value := strings.TrimSpace(cell)
		if name == "" || value == "" {
			continue
		}
		out[name] = value
	}
	return out, nil
}

// ProjectRows reorders source rows into the given output column order using
// the mapping produced by OutputMap. Output columns without a mapped source
// column yield empty cells.
func ProjectRows(sourceHeader []string, rows [][]string, outputColumns []string, mapping map[string]string) [][]string {
	index := make(map[string]int, len(sourceHeader))
	for i, name := range sourceHeader {
		index[strings.TrimSpace(name)] = i
	}

	out := make([][]string, 0, len(rows))
	for _, row := range rows {
		projected := make([]string, len(outputColumns))
		for j, outCol := range outputColumns {
			source, ok := mapping[strings.TrimSpace(outCol)]
			if !ok {
				continue
			}
			if i, ok := index[source]; ok && i < len(row) {
				projected[j] = row[i]
			}
		}
		out = append(out, projected)
	}
	return out
}
