package extract

import (
	"fmt"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/sheetflow-ai/sheetflow/excel"
	"github.com/sheetflow-ai/sheetflow/transform"
)

// Template describes one known spreadsheet layout: the header it carries and
// how its columns map to the master output columns.
type Template struct {
	// Name identifies the template.
	Name string
	// Header is the source header the template expects, cells joined by ';'.
	Header string
	// Mapping maps output column names to source column names.
	Mapping map[string]string
}

// TemplateSet is the parsed parametrization file.
type TemplateSet struct {
	// OutputColumns is the column order of the master output.
	OutputColumns []string
	// Templates holds the known layouts.
	Templates []Template
}

// LoadTemplates reads a parametrization CSV. The first column is the
// template name, the second the expected source header, and every remaining
// column is an output column whose cells name the source column feeding it.
func LoadTemplates(path string, sep rune) (*TemplateSet, error) {
	rows, err := excel.ReadRows(path, excel.ReadOptions{Separator: sep})
	if err != nil {
		return nil, err
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("parametrization file %s has no template rows", path)
	}

	header := rows[0]
	if len(header) < 3 {
		return nil, fmt.Errorf("parametrization file %s needs name, header and at least one output column", path)
	}

	set := &TemplateSet{OutputColumns: trimAll(header[2:])}
	for i, row := range rows[1:] {
		if len(row) < 2 || strings.TrimSpace(row[0]) == "" {
			continue
		}
		mapping, err := transform.OutputMap(header[2:], row[2:])
		if err != nil {
			return nil, fmt.Errorf("template row %d: %w", i+2, err)
		}
		set.Templates = append(set.Templates, Template{
			Name:    strings.TrimSpace(row[0]),
			Header:  strings.TrimSpace(row[1]),
			Mapping: mapping,
		})
	}
	if len(set.Templates) == 0 {
		return nil, fmt.Errorf("parametrization file %s has no template rows", path)
	}
	return set, nil
}

// BestMatch returns the template whose header is most similar to header,
// together with the similarity ratio.
func (s *TemplateSet) BestMatch(header string) (Template, float64) {
	var best Template
	bestRatio := -1.0
	for _, tpl := range s.Templates {
		matcher := difflib.NewMatcher(strings.Split(header, ""), strings.Split(tpl.Header, ""))
		if ratio := matcher.Ratio(); ratio > bestRatio {
			bestRatio = ratio
			best = tpl
		}
	}
	return best, bestRatio
}

// ByName returns the template with the given name.
func (s *TemplateSet) ByName(name string) (Template, bool) {
	for _, tpl := range s.Templates {
		if tpl.Name == name {
			return tpl, true
		}
	}
	return Template{}, false
}

func trimAll(cells []string) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		out[i] = strings.TrimSpace(c)
	}
	return out
}
