package excel

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func writeTempCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "table.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func writeTempXLSX(t *testing.T, rows [][]string) string {
	t.Helper()
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		cells := make([]any, len(row))
		for j, v := range row {
			cells[j] = v
		}
		require.NoError(t, f.SetSheetRow(sheet, cell, &cells))
	}
	path := filepath.Join(t.TempDir(), "table.xlsx")
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())
	return path
}

func TestReadAsCSVString_CSV(t *testing.T) {
	path := writeTempCSV(t, "Nome,Valor\nJoana,100\nRui,200\n")

	out, err := ReadAsCSVString(path, ReadOptions{})
	require.NoError(t, err)
	assert.Equal(t, "Nome,Valor\nJoana,100\nRui,200\n", out)
}

func TestReadAsCSVString_MaxRows(t *testing.T) {
	path := writeTempCSV(t, "Nome,Valor\nJoana,100\nRui,200\n")

	out, err := ReadAsCSVString(path, ReadOptions{MaxRows: 2})
	require.NoError(t, err)
	assert.Equal(t, "Nome,Valor\nJoana,100\n", out)
}

func TestReadAsCSVString_XLSX(t *testing.T) {
	path := writeTempXLSX(t, [][]string{{"Nome", "Valor"}, {"Joana", "100"}})

	out, err := ReadAsCSVString(path, ReadOptions{})
	require.NoError(t, err)
	assert.Contains(t, out, "Nome,Valor")
	assert.Contains(t, out, "Joana,100")
}

func TestReadAsCSVString_Errors(t *testing.T) {
	_, err := ReadAsCSVString("/nonexistent/file.csv", ReadOptions{})
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))
	_, err = ReadAsCSVString(path, ReadOptions{})
	assert.ErrorContains(t, err, "invalid file type")
}

func TestConvertToCSV(t *testing.T) {
	path := writeTempXLSX(t, [][]string{{"Nome", "Valor"}, {"Joana", "100"}})

	csvPath, err := ConvertToCSV(path, ',')
	require.NoError(t, err)
	assert.Equal(t, strings.TrimSuffix(path, ".xlsx")+".csv", csvPath)

	data, err := os.ReadFile(csvPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Joana,100")

	// CSV input passes through.
	same, err := ConvertToCSV(csvPath, ',')
	require.NoError(t, err)
	assert.Equal(t, csvPath, same)
}

func TestSheetName(t *testing.T) {
	xlsx := writeTempXLSX(t, [][]string{{"a"}})
	name, err := SheetName(xlsx)
	require.NoError(t, err)
	assert.Equal(t, "Sheet1", name)

	csvPath := writeTempCSV(t, "a\n")
	name, err = SheetName(csvPath)
	require.NoError(t, err)
	assert.Equal(t, "table", name)
}

func TestRowNumber(t *testing.T) {
	path := writeTempCSV(t, "Nome,Valor\nJoana,100\nRui,200\n")

	n, err := RowNumber(path, "Rui,200", ',')
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	_, err = RowNumber(path, "Maria,1", ',')
	assert.Error(t, err)
}

func TestMostSimilarRow(t *testing.T) {
	path := writeTempCSV(t, "Nome,Valor\nJoana Prates,100\nRui Costa,200\n")

	row, err := MostSimilarRow(path, "Joana Prats,100", ',')
	require.NoError(t, err)
	assert.Equal(t, "Joana Prates,100", row)
}

func TestReplaceRows(t *testing.T) {
	in := writeTempCSV(t, "Nome,Valor\nJoana,100\nRui,200\nAna,300\n")
	out := filepath.Join(t.TempDir(), "out.csv")

	err := ReplaceRows(in, out, "Bruno,150\nCarla,250\n", 2, 3, ',')
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "Nome,Valor\nBruno,150\nCarla,250\nAna,300\n", string(data))
}

func TestReplaceRows_InvalidRange(t *testing.T) {
	in := writeTempCSV(t, "Nome,Valor\nJoana,100\n")
	err := ReplaceRows(in, in, "x,y\n", 3, 5, ',')
	assert.ErrorContains(t, err, "invalid replacement range")
}

func TestDeleteColumnsContaining(t *testing.T) {
	out, err := DeleteColumnsContaining("Nome,Interno,Valor\nJoana,x,100\n", []string{"Interno"}, ',')
	require.NoError(t, err)
	assert.Equal(t, "Nome,Valor\nJoana,100\n", out)
}

func TestCountContentLines(t *testing.T) {
	assert.Equal(t, 2, CountContentLines("a,b\nc,d\n\n,,\n", ','))
	assert.Equal(t, 0, CountContentLines("", ','))
}

func TestMasterFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "master.csv")

	m, err := NewMasterFile(path, []string{"Nome", "Valor", "Ficheiro"}, ',')
	require.NoError(t, err)

	n, err := m.AppendCSV("Nome,Valor\nJoana,100\nRui,200\n", "fundo_a.xlsx")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	rows, err := m.Rows()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Joana", "100", "fundo_a.xlsx"}, rows[1])
	assert.Equal(t, []string{"Rui", "200", "fundo_a.xlsx"}, rows[2])

	// Creating again on an existing file keeps the content.
	_, err = NewMasterFile(path, []string{"Nome"}, ',')
	require.NoError(t, err)
	rows, err = m.Rows()
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}
