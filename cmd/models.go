package cmd

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/arin/lmchat/internal/ai"
	"github.com/arin/lmchat/internal/ui"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the models served by the active server",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := loadSettings(cmd)
		if err != nil {
			return err
		}

		sp := ui.NewSpinner("Loading models...")
		sp.Start()
		models, err := ai.NewClient().ListModels(cmd.Context(), st.server)
		if err != nil {
			sp.Stop()
			return err
		}
		sp.Success("Models loaded.")

		if len(models) == 0 {
			color.New(color.FgHiBlack).Fprintf(os.Stderr, "  %s serves no models.\n", st.server)
			return nil
		}
		printModels(models, st.params.Model)
		return nil
	},
}

// printModels lists model ids, marking current.
func printModels(models []ai.Model, current string) {
	green := color.New(color.FgGreen)
	dim := color.New(color.FgHiBlack)
	for _, m := range models {
		if m.ID == current {
			green.Fprintf(os.Stderr, "  ● %s\n", m.ID)
			continue
		}
		fmt.Fprintf(os.Stderr, "    %s", m.ID)
		if m.OwnedBy != "" {
			dim.Fprintf(os.Stderr, "  (%s)", m.OwnedBy)
		}
		fmt.Fprintln(os.Stderr)
	}
}
