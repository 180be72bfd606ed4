package cmd

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/arin/lmchat/internal/config"
	"github.com/arin/lmchat/internal/servers"
)

var serversCmd = &cobra.Command{
	Use:   "servers",
	Short: "Manage known inference servers",
	RunE:  listServers,
}

var serversListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved servers",
	RunE:  listServers,
}

var serversAddCmd = &cobra.Command{
	Use:   "add <nick> <url>",
	Short: "Add a server, or rename the one with the same URL",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := servers.Upsert(servers.Server{Nick: args[0], URL: args[1]})
		if err != nil {
			return fmt.Errorf("failed to save server: %w", err)
		}
		fmt.Printf("Saved %s (%s).\n", s.Nick, s.URL)
		return nil
	},
}

var serversRemoveCmd = &cobra.Command{
	Use:   "remove <url|nick>",
	Short: "Remove a saved server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := servers.Remove(args[0]); err != nil {
			return err
		}
		fmt.Printf("Removed %s.\n", args[0])
		return nil
	},
}

var serversUseCmd = &cobra.Command{
	Use:   "use <url|nick>",
	Short: "Make a server the active one",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		url := args[0]
		if s, err := servers.Find(args[0]); err == nil {
			url = s.URL
		} else if s, err := servers.Upsert(servers.Server{URL: args[0]}); err == nil {
			url = s.URL
		} else {
			return err
		}
		if err := config.Set(config.KeyServer, url); err != nil {
			return fmt.Errorf("failed to save active server: %w", err)
		}
		fmt.Printf("Active server set to %s.\n", url)
		return nil
	},
}

func listServers(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	active, err := resolveServer(cfg)
	if err != nil {
		return err
	}

	green := color.New(color.FgGreen)
	dim := color.New(color.FgHiBlack)
	for _, s := range servers.Load() {
		if s.URL == active {
			green.Fprintf(os.Stdout, "● %-12s %s\n", s.Nick, s.URL)
			continue
		}
		fmt.Printf("  %-12s ", s.Nick)
		dim.Println(s.URL)
	}
	return nil
}

func init() {
	serversCmd.AddCommand(serversListCmd)
	serversCmd.AddCommand(serversAddCmd)
	serversCmd.AddCommand(serversRemoveCmd)
	serversCmd.AddCommand(serversUseCmd)
}
