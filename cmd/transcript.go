package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/arin/lmchat/internal/config"
	"github.com/arin/lmchat/internal/store"
	"github.com/arin/lmchat/internal/ui"
)

var (
	transcriptList   bool
	transcriptDelete bool
	transcriptPlain  bool
)

var transcriptCmd = &cobra.Command{
	Use:   "transcript",
	Short: "Show the saved chat transcript for the active server",
	Long: `Print the conversation saved by 'lmchat chat' for the active server.
Replies are rendered as markdown when stdout is a terminal.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := store.Open(filepath.Join(config.Dir(), store.FileName))
		if err != nil {
			return fmt.Errorf("failed to open transcript store: %w", err)
		}
		defer db.Close()
		ctx := cmd.Context()

		if transcriptList {
			endpoints, err := db.Endpoints(ctx)
			if err != nil {
				return err
			}
			if len(endpoints) == 0 {
				fmt.Println("No saved transcripts.")
			}
			for _, e := range endpoints {
				fmt.Println(e)
			}
			return nil
		}

		st, err := loadSettings(cmd)
		if err != nil {
			return err
		}

		if transcriptDelete {
			if err := db.Delete(ctx, st.server); err != nil {
				return err
			}
			fmt.Printf("Deleted transcript for %s.\n", st.server)
			return nil
		}

		snap, err := db.LoadSnapshot(ctx, st.server)
		if err != nil {
			return err
		}
		system, err := db.LoadSystem(ctx, st.server)
		if err != nil {
			return err
		}
		if len(snap.Conversation) == 0 {
			color.New(color.FgHiBlack).Fprintf(os.Stderr, "No transcript saved for %s.\n", st.server)
			return nil
		}

		ui.RenderTranscript(os.Stdout, system, snap.Conversation, ui.IsStdoutTTY() && !transcriptPlain)
		return nil
	},
}

func init() {
	transcriptCmd.Flags().BoolVar(&transcriptList, "list", false, "List servers with a saved transcript")
	transcriptCmd.Flags().BoolVar(&transcriptDelete, "delete", false, "Delete the saved transcript and system prompt")
	transcriptCmd.Flags().BoolVar(&transcriptPlain, "plain", false, "Do not render markdown")
}
