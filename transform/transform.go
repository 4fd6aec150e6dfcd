// Package transform holds the small text and record transformations used as
// nodes in extraction flows. Each function is pure so it can be wired into a
// graph or called directly.
package transform

import (
	"fmt"
	"regexp"
	"strings"
)

// RemoveLines removes the given 1-based line numbers from text.
func RemoveLines(text string, lineNumbers []int) string {
	if len(lineNumbers) == 0 {
		return text
	}

	drop := make(map[int]bool, len(lineNumbers))
	for _, n := range lineNumbers {
		drop[n] = true
	}

	lines := strings.Split(text, "\n")
	kept := make([]string, 0, len(lines))
	for i, line := range lines {
		if !drop[i+1] {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

// RemoveLineRange removes lines [start, end] (1-based, inclusive) from text.
func RemoveLineRange(text string, start, end int) string {
	var nums []int
	for n := start; n <= end; n++ {
		nums = append(nums, n)
	}
	return RemoveLines(text, nums)
}

// SplitLines splits text into trimmed non-empty lines.
func SplitLines(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// SplitList splits text on a separator into trimmed non-empty items.
func SplitList(text, sep string) []string {
	var out []string
	for _, item := range strings.Split(text, sep) {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// CombineTexts joins texts with the separator, skipping empty entries.
func CombineTexts(texts []string, sep string) string {
	var kept []string
	for _, t := range texts {
		if strings.TrimSpace(t) != "" {
			kept = append(kept, t)
		}
	}
	return strings.Join(kept, sep)
}

// MergeRecords merges a list of records left to right. Later values win on
// key conflicts. The inputs are not modified.
func MergeRecords(records []map[string]any) map[string]any {
	out := make(map[string]any)
	for _, rec := range records {
		for k, v := range rec {
			out[k] = v
		}
	}
	return out
}

// Route matches text against a regular expression and returns the matched
// branch name: "true" when the pattern matches, "false" otherwise.
func Route(text, pattern string) (string, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return "", fmt.Errorf("invalid routing pattern %q: %w", pattern, err)
	}
	if re.MatchString(text) {
		return "true", nil
	}
	return "false", nil
}
