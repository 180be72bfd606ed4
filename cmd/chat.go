package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/arin/lmchat/internal/ai"
	"github.com/arin/lmchat/internal/config"
	"github.com/arin/lmchat/internal/conversation"
	"github.com/arin/lmchat/internal/logging"
	"github.com/arin/lmchat/internal/session"
	"github.com/arin/lmchat/internal/store"
	"github.com/arin/lmchat/internal/ui"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat session",
	Long: `Start a conversational session with the active server. The transcript
is saved per server and restored the next time you chat with it.

Commands:
  /retry             send the last prompt again
  /clear             clear the transcript
  /clear-history     clear the transcript
  /system [text]     show or set the system prompt
  /model [id]        show or switch the model for this session
  /models            list the server's models
  /stats             show statistics for the last reply
  /exit              quit

Ctrl-C stops a streaming reply; at the prompt it quits.`,
	RunE: runChat,
}

// chatSession is the state of one interactive run.
type chatSession struct {
	ctx     context.Context
	st      *settings
	client  *ai.Client
	db      *store.Store
	conv    *conversation.Conversation
	ctl     *session.Controller
	printer *ui.StreamPrinter
}

func runChat(cmd *cobra.Command, args []string) error {
	st, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	client := ai.NewClient()
	if err := ensureModel(ctx, client, st); err != nil {
		return err
	}

	db, err := store.Open(filepath.Join(config.Dir(), store.FileName))
	if err != nil {
		return fmt.Errorf("failed to open transcript store: %w", err)
	}
	defer db.Close()

	cs := &chatSession{ctx: ctx, st: st, client: client, db: db, conv: conversation.New()}
	if err := cs.restore(); err != nil {
		return err
	}

	cs.printer = ui.NewStreamPrinter(os.Stderr, "")
	persist := session.Funcs{
		Done:      cs.save,
		Cancelled: cs.save,
		Error:     func(error) { cs.save() },
	}
	cs.ctl = newController(cmd, st, client, cs.conv, session.Multi(cs.printer, persist))
	defer cs.ctl.Close()

	cyan := color.New(color.FgCyan, color.Bold)
	dim := color.New(color.FgHiBlack)
	green := color.New(color.FgGreen)

	fmt.Fprintln(os.Stderr)
	cyan.Fprintln(os.Stderr, "  lmchat")
	dim.Fprintf(os.Stderr, "  %s · %s\n", st.server, st.params.Model)
	if n := cs.conv.Len(); n > 0 {
		dim.Fprintf(os.Stderr, "  Restored %d messages. /clear to start over.\n", n)
	}
	dim.Fprintf(os.Stderr, "  Type /exit to quit.\n\n")

	interrupts, stop := notifyInterrupts()
	defer stop()

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	for {
		green.Fprint(os.Stderr, "  you → ")

		var input string
		select {
		case line, ok := <-lines:
			if !ok {
				fmt.Fprintln(os.Stderr)
				return nil
			}
			input = strings.TrimSpace(line)
		case <-interrupts:
			dim.Fprintf(os.Stderr, "\n  Bye.\n\n")
			return nil
		}
		if input == "" {
			continue
		}

		switch {
		case input == "/retry":
			cs.turn(cs.conv.LastPrompt(), interrupts, true)
		case strings.HasPrefix(input, "/"):
			quit, err := cs.command(input)
			if err != nil {
				color.New(color.FgRed).Fprintf(os.Stderr, "  %v\n\n", err)
			}
			if quit {
				return nil
			}
		default:
			cs.turn(input, interrupts, false)
		}
	}
}

// turn streams one reply to the terminal.
func (cs *chatSession) turn(prompt string, interrupts <-chan os.Signal, retry bool) {
	cyan := color.New(color.FgCyan, color.Bold)
	red := color.New(color.FgRed)

	cs.printer.Reset()
	cyan.Fprint(os.Stderr, "  ai  → ")
	sp := ui.NewSpinner("Thinking...")
	cs.printer.Spinner = sp
	sp.Start()
	defer sp.Stop()

	var h *session.Handle
	var err error
	if retry {
		h, err = cs.ctl.Retry(cs.ctx, cs.st.params)
	} else {
		h, err = cs.ctl.Send(cs.ctx, cs.st.params, prompt)
	}
	if err != nil {
		sp.Stop()
		red.Fprintf(os.Stderr, "%v\n\n", err)
		return
	}
	waitTurn(h, interrupts)
	recordTurn(cs.ctx, cs.st.params, prompt, h)
}

// command runs a slash command other than /retry.
func (cs *chatSession) command(input string) (quit bool, err error) {
	dim := color.New(color.FgHiBlack)
	name, arg, _ := strings.Cut(input, " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case "/exit", "/quit":
		dim.Fprintf(os.Stderr, "\n  Bye.\n\n")
		return true, nil

	case "/clear", "/clear-history":
		label := "(cleared)"
		if name == "/clear-history" {
			label = "(history cleared)"
		}
		status, err := cs.ctl.Clear(label)
		if err != nil {
			return false, err
		}
		cs.save()
		dim.Fprintf(os.Stderr, "  %s\n\n", status)

	case "/system":
		if arg == "" {
			if s := cs.conv.SystemPrompt(); s != "" {
				dim.Fprintf(os.Stderr, "  system: %s\n\n", s)
			} else {
				dim.Fprintf(os.Stderr, "  No system prompt. Use /system <text> to set one.\n\n")
			}
			return false, nil
		}
		cs.conv.SetSystemPrompt(arg)
		if err := cs.db.SaveSystem(cs.ctx, cs.st.server, arg); err != nil {
			return false, err
		}
		dim.Fprintf(os.Stderr, "  System prompt saved.\n\n")

	case "/model":
		if arg == "" {
			dim.Fprintf(os.Stderr, "  model: %s\n\n", cs.st.params.Model)
			return false, nil
		}
		cs.st.params.Model = arg
		dim.Fprintf(os.Stderr, "  Using %s for this session.\n\n", arg)

	case "/models":
		sp := ui.NewSpinner("Loading models...")
		sp.Start()
		models, err := cs.client.ListModels(cs.ctx, cs.st.server)
		if err != nil {
			sp.Fail(err.Error())
			return false, nil
		}
		sp.Success("Models loaded.")
		printModels(models, cs.st.params.Model)
		fmt.Fprintln(os.Stderr)

	case "/stats":
		h := cs.ctl.Last()
		if h == nil {
			dim.Fprintf(os.Stderr, "  Nothing streamed yet.\n\n")
			return false, nil
		}
		dim.Fprintf(os.Stderr, "  %s (%s)\n\n", ui.FormatStats(h.Stats()), h.State())

	case "/help":
		dim.Fprintln(os.Stderr, "  /retry /clear /clear-history /system [text] /model [id] /models /stats /exit")
		fmt.Fprintln(os.Stderr)

	default:
		return false, fmt.Errorf("unknown command %s (try /help)", name)
	}
	return false, nil
}

// restore loads the saved transcript and system prompt for the server. An
// explicit system_prompt in config wins only when nothing is saved.
func (cs *chatSession) restore() error {
	snap, err := cs.db.LoadSnapshot(cs.ctx, cs.st.server)
	if err != nil {
		return err
	}
	if err := cs.conv.Restore(snap); err != nil {
		return err
	}
	system, err := cs.db.LoadSystem(cs.ctx, cs.st.server)
	if err != nil {
		return err
	}
	if system == "" {
		system = cs.st.cfg.SystemPrompt
	}
	cs.conv.SetSystemPrompt(system)
	return nil
}

// save persists the transcript. It runs on the stream goroutine after the
// reply is finished.
func (cs *chatSession) save() {
	if err := cs.db.SaveSnapshot(context.WithoutCancel(cs.ctx), cs.st.server, cs.conv.Snapshot()); err != nil {
		logging.FromContext(cs.ctx).Debug("snapshot save failed", "error", err)
	}
}
