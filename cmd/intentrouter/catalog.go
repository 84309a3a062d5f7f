package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/intentrouter/internal/registry"
)

var catalogAll bool

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Inspect the routing catalog",
	Long: `Inspect the agents, skills and commands requests are routed to.

Entries come from three layers: builtin, user (catalog.user_dir) and
project (catalog.project_dir). When several layers define the same name,
the higher priority wins, then project over user over builtin, then the
most recently modified file.`,
}

var catalogListCmd = &cobra.Command{
	Use:   "list",
	Short: "List resolved catalog entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(false)
		if err != nil {
			return err
		}
		defer a.Close()

		cat := a.fileCatalog()
		entries := cat.Resolved()
		if catalogAll {
			entries = cat.ListEntries()
		}

		out := cmd.OutOrStdout()
		for _, e := range entries {
			fmt.Fprintf(out, "%-16s %-8s %-8s p=%-3d %s\n",
				e.Name, e.Type, color.HiBlackString(string(e.Source)), e.Priority, strings.Join(e.Keywords, ", "))
		}
		return nil
	},
}

var catalogResolveCmd = &cobra.Command{
	Use:   "resolve <name>",
	Short: "Show which definition of an entry wins",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(false)
		if err != nil {
			return err
		}
		defer a.Close()

		entry, err := registry.Resolve(args[0], a.fileCatalog().ListEntries())
		if err != nil {
			return fmt.Errorf("%s: %w", args[0], err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, titleStyle.Render(entry.Name))
		field(out, "type", entry.Type)
		field(out, "source", string(entry.Source))
		field(out, "priority", fmt.Sprintf("%d", entry.Priority))
		if entry.Category != "" {
			field(out, "category", entry.Category)
		}
		if entry.Description != "" {
			field(out, "description", entry.Description)
		}
		field(out, "keywords", strings.Join(entry.Keywords, ", "))
		return nil
	},
}

func init() {
	catalogListCmd.Flags().BoolVar(&catalogAll, "all", false, "Include overridden definitions")
	catalogCmd.AddCommand(catalogListCmd)
	catalogCmd.AddCommand(catalogResolveCmd)
}
