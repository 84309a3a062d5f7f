package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the intent cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache size and the most recently used entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(false)
		if err != nil {
			return err
		}
		defer a.Close()

		c, err := a.openCache(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if c == nil {
			fmt.Fprintln(out, "Intent cache is disabled (cache.enabled=false).")
			return nil
		}

		stats := c.Stats()
		fmt.Fprintln(out, titleStyle.Render("Intent cache"))
		field(out, "backend", a.cfg.Cache.Backend)
		field(out, "entries", fmt.Sprintf("%d / %d", stats.Size, stats.Capacity))
		field(out, "ttl", a.cfg.Cache.TTL.String())

		entries := c.Entries()
		if len(entries) > 10 {
			entries = entries[:10]
		}
		if len(entries) > 0 {
			fmt.Fprintln(out)
		}
		for _, e := range entries {
			fmt.Fprintf(out, "  %-14s %-9s hits=%-4d %s\n", e.Intent.TaskType, e.Intent.Complexity, e.AccessCount, truncateText(e.Text, 60))
		}
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every cached intent",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(false)
		if err != nil {
			return err
		}
		defer a.Close()

		c, err := a.openCache(cmd.Context())
		if err != nil {
			return err
		}
		if c == nil {
			fmt.Fprintln(cmd.OutOrStdout(), "Intent cache is disabled (cache.enabled=false).")
			return nil
		}
		n := c.Len()
		c.Clear()
		if err := c.Flush(cmd.Context()); err != nil {
			return fmt.Errorf("clear cache store: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d cached intents.\n", n)
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheClearCmd)
}

func truncateText(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}
