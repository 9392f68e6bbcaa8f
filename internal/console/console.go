// Package console prints human-facing progress lines with lipgloss styles.
package console

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
)

const (
	Green  = lipgloss.Color("#52B788")
	Amber  = lipgloss.Color("#CC8B3F")
	Red    = lipgloss.Color("#AC3835")
	Cyan   = lipgloss.Color("#3097C6")
	Cream  = lipgloss.Color("#F3DBB2")
	Muted  = lipgloss.Color("#8A8A8A")
	Accent = lipgloss.Color("#D33061")
)

var (
	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(Cream).
		Background(Accent).
		Padding(0, 1)

	Banner = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(Green).
		Padding(0, 1)

	StepStyle = lipgloss.NewStyle().Foreground(Cyan).Bold(true)
	OKStyle   = lipgloss.NewStyle().Foreground(Green)
	WarnStyle = lipgloss.NewStyle().Foreground(Amber)
	ErrStyle  = lipgloss.NewStyle().Foreground(Red).Bold(true)
	DimStyle  = lipgloss.NewStyle().Foreground(Muted)
)

// Printer writes styled lines to w. Styling is dropped when NO_COLOR is set.
type Printer struct {
	w     io.Writer
	plain bool
}

func New(w io.Writer) *Printer {
	_, noColor := os.LookupEnv("NO_COLOR")
	return &Printer{w: w, plain: noColor}
}

func (p *Printer) render(s lipgloss.Style, text string) string {
	if p.plain {
		return text
	}
	return s.Render(text)
}

func (p *Printer) Banner(title, body string) {
	if p.plain {
		fmt.Fprintf(p.w, "== %s ==\n%s\n", title, body)
		return
	}
	fmt.Fprintln(p.w, Banner.Render(Title.Render(title)+"\n"+body))
}

// Step prints "[i/n] text".
func (p *Printer) Step(i, n int, format string, args ...any) {
	prefix := fmt.Sprintf("[%d/%d]", i, n)
	fmt.Fprintf(p.w, "%s %s\n", p.render(StepStyle, prefix), fmt.Sprintf(format, args...))
}

func (p *Printer) OK(format string, args ...any) {
	fmt.Fprintln(p.w, p.render(OKStyle, "✓ "+fmt.Sprintf(format, args...)))
}

func (p *Printer) Warn(format string, args ...any) {
	fmt.Fprintln(p.w, p.render(WarnStyle, "! "+fmt.Sprintf(format, args...)))
}

func (p *Printer) Fail(format string, args ...any) {
	fmt.Fprintln(p.w, p.render(ErrStyle, "✗ "+fmt.Sprintf(format, args...)))
}

func (p *Printer) Dim(format string, args ...any) {
	fmt.Fprintln(p.w, p.render(DimStyle, fmt.Sprintf(format, args...)))
}
