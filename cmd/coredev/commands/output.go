package commands

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

var (
	colorAccent = lipgloss.Color("#20B9B4")
	colorMuted  = lipgloss.Color("#5F6B73")
	colorOK     = lipgloss.Color("#2CD7C7")
	colorFail   = lipgloss.Color("#E74C3C")
)

var styles = struct {
	Header lipgloss.Style
	Cell   lipgloss.Style
	Border lipgloss.Style
	OK     lipgloss.Style
	Fail   lipgloss.Style
	Muted  lipgloss.Style
}{
	Header: lipgloss.NewStyle().Bold(true).Foreground(colorAccent).Padding(0, 1),
	Cell:   lipgloss.NewStyle().Padding(0, 1),
	Border: lipgloss.NewStyle().Foreground(colorMuted),
	OK:     lipgloss.NewStyle().Foreground(colorOK),
	Fail:   lipgloss.NewStyle().Foreground(colorFail),
	Muted:  lipgloss.NewStyle().Foreground(colorMuted),
}

// renderTable writes a bordered table. Rows shorter than headers are padded.
func renderTable(w io.Writer, headers []string, rows [][]string) {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(styles.Border).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return styles.Header
			}
			return styles.Cell
		})
	for _, r := range rows {
		for len(r) < len(headers) {
			r = append(r, "")
		}
		t.Row(r...)
	}
	_, _ = fmt.Fprintln(w, t.Render())
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func statusMark(ok bool) string {
	if ok {
		return styles.OK.Render("✓")
	}
	return styles.Fail.Render("✗")
}
