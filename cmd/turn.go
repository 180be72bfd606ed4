package cmd

import (
	"context"
	"os"
	"os/signal"

	"github.com/arin/lmchat/internal/history"
	"github.com/arin/lmchat/internal/logging"
	"github.com/arin/lmchat/internal/session"
	"github.com/arin/lmchat/internal/stats"
)

// waitTurn blocks until h ends. An interrupt cancels the stream instead of
// killing the process; it reports whether that happened.
func waitTurn(h *session.Handle, interrupts <-chan os.Signal) bool {
	select {
	case <-h.Done():
		return false
	case <-interrupts:
		h.Cancel()
		<-h.Done()
		return true
	}
}

// notifyInterrupts returns a channel receiving Ctrl-C and a function to
// stop delivery.
func notifyInterrupts() (<-chan os.Signal, func()) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt)
	return ch, func() { signal.Stop(ch) }
}

// recordTurn appends the finished turn to history and stats. Failures only
// reach the debug log; they must not interrupt the conversation.
func recordTurn(ctx context.Context, p session.Params, prompt string, h *session.Handle) {
	log := logging.FromContext(ctx)
	st := h.Stats()
	outcome := h.State().String()

	entry := history.Entry{
		Endpoint: p.Endpoint,
		Model:    p.Model,
		Prompt:   prompt,
		Outcome:  outcome,
		Chars:    st.Chars,
	}
	if err := h.Err(); err != nil {
		entry.Error = err.Error()
	}
	if err := history.Save(entry); err != nil {
		log.Debug("history save failed", "error", err)
	}

	if err := stats.Save(stats.Record{
		Endpoint: p.Endpoint,
		Model:    p.Model,
		Outcome:  outcome,
		Chunks:   st.Chunks,
		Chars:    st.Chars,
		Elapsed:  st.Elapsed(),
	}); err != nil {
		log.Debug("stats save failed", "error", err)
	}
}
