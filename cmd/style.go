package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/term"
)

var (
	infoStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	doneStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true)
	detailStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// printer writes operator messages, styled only when w is a terminal so
// pipes and tests see plain text.
type printer struct {
	w      io.Writer
	styled bool
}

func newPrinter(w io.Writer) *printer {
	return &printer{w: w, styled: isTerminal(w)}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(f.Fd())
}

func (p *printer) line(style lipgloss.Style, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if p.styled {
		msg = style.Render(msg)
	}
	fmt.Fprintln(p.w, msg)
}

func (p *printer) info(format string, args ...any)   { p.line(infoStyle, format, args...) }
func (p *printer) warn(format string, args ...any)   { p.line(warnStyle, format, args...) }
func (p *printer) done(format string, args ...any)   { p.line(doneStyle, format, args...) }
func (p *printer) detail(format string, args ...any) { p.line(detailStyle, format, args...) }
