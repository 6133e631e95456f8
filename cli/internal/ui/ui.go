package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"
	"github.com/pterm/pterm"
)

var (
	// Colors
	PrimaryColor   = lipgloss.Color("#00D9FF")
	SuccessColor   = lipgloss.Color("#00FF88")
	WarningColor   = lipgloss.Color("#FFB800")
	ErrorColor     = lipgloss.Color("#FF4444")
	InfoColor      = lipgloss.Color("#00D9FF")
	SecondaryColor = lipgloss.Color("#6C757D")

	// Styles
	TitleStyle = lipgloss.NewStyle().
			Foreground(PrimaryColor).
			Bold(true).
			MarginBottom(1)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(SuccessColor).
			Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ErrorColor).
			Bold(true)

	WarningStyle = lipgloss.NewStyle().
			Foreground(WarningColor).
			Bold(true)

	InfoStyle = lipgloss.NewStyle().
			Foreground(InfoColor)

	SecondaryStyle = lipgloss.NewStyle().
			Foreground(SecondaryColor)
)

// PrintHeader writes a boxed title to w
func PrintHeader(w io.Writer, title string, subtitle string) {
	width := 80
	if tw := pterm.GetTerminalWidth(); tw > 0 {
		width = tw
	}

	header := lipgloss.NewStyle().
		Width(width).
		Align(lipgloss.Center).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(PrimaryColor).
		Padding(1, 2).
		Render(
			lipgloss.JoinVertical(
				lipgloss.Center,
				TitleStyle.Render(title),
				SecondaryStyle.Render(subtitle),
			),
		)

	fmt.Fprintln(w, header)
	fmt.Fprintln(w)
}

// PrintSuccess writes a success message to w
func PrintSuccess(w io.Writer, format string, args ...any) {
	message := fmt.Sprintf(format, args...)
	fmt.Fprintln(w, SuccessStyle.Render("✓ "+message))
}

// PrintError writes an error message to w
func PrintError(w io.Writer, format string, args ...any) {
	message := fmt.Sprintf(format, args...)
	fmt.Fprintln(w, ErrorStyle.Render("✗ "+message))
}

// PrintWarning writes a warning message to w
func PrintWarning(w io.Writer, format string, args ...any) {
	message := fmt.Sprintf(format, args...)
	fmt.Fprintln(w, WarningStyle.Render("⚠ "+message))
}

// PrintInfo writes an info message to w
func PrintInfo(w io.Writer, format string, args ...any) {
	message := fmt.Sprintf(format, args...)
	fmt.Fprintln(w, InfoStyle.Render("ℹ "+message))
}

// PrintTable writes a table to w using pterm
func PrintTable(w io.Writer, headers []string, rows [][]string) error {
	tableData := pterm.TableData{headers}
	tableData = append(tableData, rows...)
	out, err := pterm.DefaultTable.WithHasHeader().WithData(tableData).Srender()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, out)
	return err
}

// PrintMarkdown renders markdown content to w
func PrintMarkdown(w io.Writer, content string) error {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return err
	}

	out, err := r.Render(content)
	if err != nil {
		return err
	}

	_, err = fmt.Fprint(w, out)
	return err
}

// sqlKeywords are highlighted by PrintSQL.
var sqlKeywords = map[string]bool{
	"SELECT": true, "FROM": true, "WHERE": true, "AND": true, "OR": true,
	"LEFT": true, "INNER": true, "JOIN": true, "ON": true, "ORDER": true,
	"GROUP": true, "BY": true, "LIMIT": true, "OFFSET": true, "ASC": true,
	"DESC": true, "INSERT": true, "INTO": true, "VALUES": true, "UPDATE": true,
	"SET": true, "DELETE": true, "LIKE": true, "NOT": true, "AS": true,
}

// HighlightSQL colors the keywords of a statement. Colors are dropped when
// the output is not a terminal.
func HighlightSQL(sql string) string {
	kw := color.New(color.FgCyan, color.Bold)
	words := strings.Split(sql, " ")
	for i, w := range words {
		if sqlKeywords[w] {
			words[i] = kw.Sprint(w)
		}
	}
	return strings.Join(words, " ")
}

// PrintSQL writes a statement and its bound parameters to w
func PrintSQL(w io.Writer, sql string, args []any) {
	fmt.Fprintln(w, HighlightSQL(sql))
	if len(args) == 0 {
		return
	}
	params := color.New(color.FgYellow)
	for i, a := range args {
		fmt.Fprintf(w, "  %s %#v\n", params.Sprintf("$%d", i+1), a)
	}
}
