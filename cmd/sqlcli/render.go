package main

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/shopspring/decimal"

	sqlcli "github.com/semihalev/go-sqlcli"
)

// maxCell caps the rendered width of one value.
const maxCell = 60

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	cellStyle = lipgloss.NewStyle().Padding(0, 1)

	numberStyle = cellStyle.
			Align(lipgloss.Right)

	nullStyle = cellStyle.
			Foreground(lipgloss.Color("#666666"))

	borderStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#7D56F4"))

	countStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFD166"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))
)

// renderTable draws a result set. A positive width bounds the table.
func renderTable(cols []sqlcli.Column, rows [][]any, width int) string {
	headers := make([]string, len(cols))
	numeric := make([]bool, len(cols))
	for i, c := range cols {
		headers[i] = c.Name
		numeric[i] = c.TypeCode == sqlcli.CodeNumber
	}

	cells := make([][]string, len(rows))
	nulls := make([][]bool, len(rows))
	for r, row := range rows {
		cells[r] = make([]string, len(cols))
		nulls[r] = make([]bool, len(cols))
		for i := range cols {
			var v any
			if i < len(row) {
				v = row[i]
			}
			cells[r][i] = formatValue(v)
			nulls[r][i] = v == nil
		}
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		Headers(headers...).
		Rows(cells...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case row >= 0 && row < len(nulls) && nulls[row][col]:
				return nullStyle
			case col < len(numeric) && numeric[col]:
				return numberStyle
			}
			return cellStyle
		})
	if width > 0 {
		t = t.Width(width)
	}
	return t.Render()
}

// formatValue renders a decoded column value as text.
func formatValue(v any) string {
	var s string
	switch x := v.(type) {
	case nil:
		return "NULL"
	case string:
		s = x
	case []byte:
		s = "0x" + hex.EncodeToString(x)
	case int64:
		s = strconv.FormatInt(x, 10)
	case float64:
		s = strconv.FormatFloat(x, 'g', -1, 64)
	case bool:
		s = strconv.FormatBool(x)
	case decimal.Decimal:
		s = x.String()
	case time.Time:
		s = formatTime(x)
	default:
		s = fmt.Sprint(v)
	}
	s = strings.ReplaceAll(s, "\n", `\n`)
	if r := []rune(s); len(r) > maxCell {
		s = string(r[:maxCell-1]) + "…"
	}
	return s
}

// formatTime drops the parts a DATE or TIME column does not carry.
func formatTime(t time.Time) string {
	switch {
	case t.Year() == 0 && t.Month() == time.January && t.Day() == 1:
		return t.Format("15:04:05.999999999")
	case t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0:
		return t.Format("2006-01-02")
	}
	return t.Format("2006-01-02 15:04:05.999999999")
}
