package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/arin/lmchat/internal/conversation"
)

const wrapWidth = 80

// IsStdoutTTY reports whether stdout is a terminal.
func IsStdoutTTY() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// Markdown renders markdown for terminal display. It returns content
// unchanged if no renderer can be built or rendering fails.
func Markdown(content string) string {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(wrapWidth),
	)
	if err != nil {
		return content
	}
	out, err := r.Render(content)
	if err != nil {
		return content
	}
	return out
}

// RenderTranscript prints msgs to w. Assistant replies are rendered as
// markdown when markdown is true; otherwise everything is printed verbatim
// so piped output stays clean.
func RenderTranscript(w io.Writer, system string, msgs []conversation.Message, markdown bool) {
	dim := color.New(color.FgHiBlack)
	cyan := color.New(color.FgCyan, color.Bold)
	green := color.New(color.FgGreen, color.Bold)

	if system != "" {
		dim.Fprintf(w, "system: %s\n\n", system)
	}
	for _, m := range msgs {
		switch m.Role {
		case conversation.RoleUser:
			cyan.Fprint(w, "you: ")
			fmt.Fprintln(w, m.Content)
			fmt.Fprintln(w)
		case conversation.RoleAssistant:
			green.Fprintln(w, "assistant:")
			if markdown {
				fmt.Fprint(w, Markdown(m.Content))
			} else {
				fmt.Fprintln(w, strings.TrimRight(m.Content, "\n"))
			}
			fmt.Fprintln(w)
		default:
			dim.Fprintf(w, "%s: %s\n\n", m.Role, m.Content)
		}
	}
}
