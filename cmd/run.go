package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/arin/lmchat/internal/ai"
	"github.com/arin/lmchat/internal/conversation"
	"github.com/arin/lmchat/internal/session"
	"github.com/arin/lmchat/internal/ui"
)

const maxStdinChars = 16000

func runOnce(cmd *cobra.Command, args []string) error {
	prompt := strings.Join(args, " ")

	// Piped input is sent along with the prompt.
	if stdinData := readStdin(); stdinData != "" {
		if prompt == "" {
			prompt = stdinData
		} else {
			prompt = prompt + "\n\n" + stdinData
		}
	}
	if strings.TrimSpace(prompt) == "" {
		return fmt.Errorf("please provide a prompt\n\nUsage: lmchat <prompt>\nExample: lmchat explain TCP slow start\n\nRun 'lmchat chat' for an interactive session")
	}

	st, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	client := ai.NewClient()
	if err := ensureModel(cmd.Context(), client, st); err != nil {
		return err
	}

	conv := conversation.New()
	system := st.cfg.SystemPrompt
	if cmd.Flags().Changed("system") {
		system = flagSystem
	}
	conv.SetSystemPrompt(system)

	printer := ui.NewStreamPrinter(os.Stdout, "")
	printer.Spinner = ui.NewSpinner("Waiting for " + st.params.Model + "...")
	ctl := newController(cmd, st, client, conv, printer)
	defer ctl.Close()

	interrupts, stop := notifyInterrupts()
	defer stop()

	// The printer stops the spinner on the first output.
	printer.Spinner.Start()
	defer printer.Spinner.Stop()
	h, err := ctl.Send(cmd.Context(), st.params, prompt)
	if err != nil {
		return err
	}
	waitTurn(h, interrupts)

	recordTurn(cmd.Context(), st.params, conv.LastPrompt(), h)

	if h.State() == session.Failed {
		return fmt.Errorf("stream failed: %w", h.Err())
	}
	if verboseStats {
		color.New(color.FgHiBlack).Fprintf(os.Stderr, "  %s\n", ui.FormatStats(h.Stats()))
	}
	return nil
}

var verboseStats bool

func init() {
	rootCmd.Flags().BoolVarP(&verboseStats, "verbose", "v", false, "Print stream statistics after the reply")
}

// readStdin reads piped input if available.
func readStdin() string {
	info, err := os.Stdin.Stat()
	if err != nil {
		return ""
	}
	// Check if data is being piped in (not a terminal).
	if (info.Mode() & os.ModeCharDevice) != 0 {
		return ""
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return ""
	}
	s := strings.TrimSpace(string(data))
	if len(s) > maxStdinChars {
		s = s[:maxStdinChars] + "\n... (truncated)"
	}
	return s
}
