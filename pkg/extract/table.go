package extract

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/xuri/excelize/v2"
)

func csvText(data []byte) (string, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	rows, err := r.ReadAll()
	if err != nil {
		return "", fmt.Errorf("failed to parse csv: %w", err)
	}
	return renderTable(rows), nil
}

func xlsxText(data []byte) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	var sb strings.Builder
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return "", fmt.Errorf("failed to read sheet %s: %w", sheet, err)
		}
		if len(rows) == 0 {
			continue
		}
		sb.WriteString(sheet)
		sb.WriteString("\n")
		sb.WriteString(renderTable(rows))
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

// renderTable prints rows as an aligned plain-text table, the first row as
// header and a leading index column like a dataframe dump.
func renderTable(rows [][]string) string {
	if len(rows) == 0 {
		return ""
	}

	width := 0
	for _, row := range rows {
		width = max(width, len(row))
	}

	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetBorder(false)
	table.SetColumnSeparator(" ")
	table.SetHeaderLine(false)
	table.SetTablePadding(" ")
	table.SetNoWhiteSpace(true)

	table.SetHeader(append([]string{""}, pad(rows[0], width)...))
	for i, row := range rows[1:] {
		table.Append(append([]string{fmt.Sprint(i)}, pad(row, width)...))
	}
	table.Render()

	return buf.String()
}

func pad(row []string, width int) []string {
	out := make([]string, width)
	copy(out, row)
	return out
}
