package cli

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/David-Botos/data-quality/pkg/model"
)

// styles defines the lipgloss styles used for terminal output
var styles = struct {
	Bold    lipgloss.Style
	Success lipgloss.Style
	Error   lipgloss.Style
	Warning lipgloss.Style
	Info    lipgloss.Style
	Muted   lipgloss.Style
	Cell    lipgloss.Style
	Border  lipgloss.Style
}{
	Bold:    lipgloss.NewStyle().Bold(true),
	Success: lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true),
	Error:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
	Warning: lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true),
	Info:    lipgloss.NewStyle().Foreground(lipgloss.Color("86")),
	Muted:   lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
	Cell:    lipgloss.NewStyle().Padding(0, 1),
	Border:  lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
}

func printSuccess(w io.Writer, format string, args ...interface{}) {
	fmt.Fprintln(w, styles.Success.Render("✓ "+fmt.Sprintf(format, args...)))
}

func printError(w io.Writer, format string, args ...interface{}) {
	fmt.Fprintln(w, styles.Error.Render("✗ "+fmt.Sprintf(format, args...)))
}

func printWarning(w io.Writer, format string, args ...interface{}) {
	fmt.Fprintln(w, styles.Warning.Render("⚠ "+fmt.Sprintf(format, args...)))
}

func printInfo(w io.Writer, format string, args ...interface{}) {
	fmt.Fprintln(w, styles.Info.Render(fmt.Sprintf(format, args...)))
}

func printHeading(w io.Writer, format string, args ...interface{}) {
	fmt.Fprintln(w, styles.Bold.Render(fmt.Sprintf(format, args...)))
}

// statusStyle colours a check status
func statusStyle(s model.Status) lipgloss.Style {
	switch s {
	case model.StatusPass:
		return styles.Success
	case model.StatusFail, model.StatusError:
		return styles.Error
	case model.StatusWarning:
		return styles.Warning
	default:
		return styles.Info
	}
}

// printTable renders rows under a header row
func printTable(w io.Writer, columns []string, rows [][]string) {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(styles.Border).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return styles.Cell.Bold(true)
			}
			return styles.Cell
		}).
		Headers(columns...).
		Rows(rows...)
	fmt.Fprintln(w, t.Render())
}
