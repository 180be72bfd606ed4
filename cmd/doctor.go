package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/arin/lmchat/internal/ai"
	"github.com/arin/lmchat/internal/config"
	"github.com/arin/lmchat/internal/store"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check system health and configuration",
	Long: `Run a health check on your lmchat setup.
Verifies the config file, server connectivity, model availability
and the transcript store.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		green := color.New(color.FgGreen)
		red := color.New(color.FgRed)
		yellow := color.New(color.FgYellow)
		dim := color.New(color.FgHiBlack)
		cyan := color.New(color.FgCyan, color.Bold)

		cyan.Fprintf(os.Stderr, "\n  lmchat doctor\n\n")

		pass, fail, warn := 0, 0, 0

		check := func(name string, fn func() (string, error)) {
			detail, err := fn()
			if err != nil {
				if strings.HasPrefix(err.Error(), "warn:") {
					yellow.Fprintf(os.Stderr, "  ⚠ %s\n", name)
					dim.Fprintf(os.Stderr, "    %s\n", strings.TrimPrefix(err.Error(), "warn:"))
					warn++
				} else {
					red.Fprintf(os.Stderr, "  ✗ %s\n", name)
					dim.Fprintf(os.Stderr, "    %s\n", err.Error())
					fail++
				}
			} else {
				green.Fprintf(os.Stderr, "  ✓ %s", name)
				if detail != "" {
					dim.Fprintf(os.Stderr, " (%s)", detail)
				}
				fmt.Fprintln(os.Stderr)
				pass++
			}
		}

		// 1. Config directory
		check("Config directory", func() (string, error) {
			dir := config.Dir()
			info, err := os.Stat(dir)
			if err != nil {
				return "", fmt.Errorf("warn:%s not found; it will be created on first use", dir)
			}
			if !info.IsDir() {
				return "", fmt.Errorf("%s exists but is not a directory", dir)
			}
			return dir, nil
		})

		// 2. Config file
		var st *settings
		check("Config file", func() (string, error) {
			var err error
			st, err = loadSettings(cmd)
			if err != nil {
				return "", err
			}
			if _, err := os.Stat(config.Path()); err != nil {
				return "defaults", nil
			}
			return config.Path(), nil
		})
		if st == nil {
			fmt.Fprintln(os.Stderr)
			red.Fprintf(os.Stderr, "  Fix the config file first: lmchat config show\n\n")
			return nil
		}

		// 3. Server reachable
		client := ai.NewClient()
		var models []ai.Model
		check(fmt.Sprintf("Server reachable (%s)", st.server), func() (string, error) {
			var err error
			models, err = client.ListModels(cmd.Context(), st.server)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("%d models", len(models)), nil
		})

		// 4. Model available
		check("Model available", func() (string, error) {
			if len(models) == 0 {
				return "", fmt.Errorf("warn:no models listed; load one in your server")
			}
			if st.params.Model == "" {
				return "", fmt.Errorf("warn:no model configured; using %s (set one: lmchat config set model <id>)", models[0].ID)
			}
			for _, m := range models {
				if m.ID == st.params.Model {
					return m.ID, nil
				}
			}
			return "", fmt.Errorf("%s is not served by %s; run: lmchat models", st.params.Model, st.server)
		})

		// 5. Transcript store
		check("Transcript store", func() (string, error) {
			path := filepath.Join(config.Dir(), store.FileName)
			db, err := store.Open(path)
			if err != nil {
				return "", err
			}
			defer db.Close()
			endpoints, err := db.Endpoints(cmd.Context())
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("%d saved transcripts", len(endpoints)), nil
		})

		// 6. OS and arch
		check("System info", func() (string, error) {
			return fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH), nil
		})

		// Summary
		fmt.Fprintln(os.Stderr)
		total := pass + fail + warn
		if fail == 0 && warn == 0 {
			green.Fprintf(os.Stderr, "  All %d checks passed. You're good to go.\n\n", total)
		} else if fail == 0 {
			yellow.Fprintf(os.Stderr, "  %d passed, %d warnings. Everything works, but some things could be better.\n\n", pass, warn)
		} else {
			red.Fprintf(os.Stderr, "  %d passed, %d failed, %d warnings. Fix the failures above.\n\n", pass, fail, warn)
		}

		return nil
	},
}
