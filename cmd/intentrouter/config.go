package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ShayCichocki/intentrouter/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or initialize configuration",
	Long: `Show or initialize configuration.

Configuration is stored at ~/.config/intentrouter/config.yaml.
Project-specific overrides can be placed in .intentrouter.yaml, and any key
can be overridden with INTENTROUTER_<SECTION>_<KEY>.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration as YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		display := *cfg
		display.Anthropic.APIKey = config.MaskAPIKey(mustKey(cfg))

		data, err := yaml.Marshal(configView(&display))
		if err != nil {
			return fmt.Errorf("marshal config: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "# credentials: %s\n%s", config.GetAPIKeySource(cfg), data)
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file locations",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		field(out, "user", config.GetUserConfigPath())
		project := config.GetProjectConfigPath()
		if project == "" {
			project = "(none)"
		}
		field(out, "project", project)
	},
}

var configInitForce bool

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default user config",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.GetUserConfigPath()
		if _, err := os.Stat(path); err == nil && !configInitForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		} else if err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		if err := config.Save(config.Default()); err != nil {
			return err
		}
		printStatus("✓", "Wrote "+path, color.FgGreen)
		return nil
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "Overwrite an existing config")
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configInitCmd)
}

func mustKey(cfg *config.Config) string {
	key, _ := config.GetAPIKey(cfg)
	return key
}

// configView mirrors config.Config with yaml keys for display.
func configView(cfg *config.Config) map[string]any {
	return map[string]any{
		"anthropic": map[string]any{
			"api_key":     cfg.Anthropic.APIKey,
			"model":       cfg.Anthropic.Model,
			"max_tokens":  cfg.Anthropic.MaxTokens,
			"use_bedrock": cfg.Anthropic.UseBedrock,
			"aws_region":  cfg.Anthropic.AWSRegion,
			"aws_profile": cfg.Anthropic.AWSProfile,
		},
		"gate": map[string]any{
			"confidence_threshold": cfg.Gate.ConfidenceThreshold,
			"max_tokens":           cfg.Gate.MaxTokens,
		},
		"escalation": map[string]any{
			"timeout":      cfg.Escalation.Timeout.String(),
			"max_attempts": cfg.Escalation.MaxAttempts,
			"retry_delay":  cfg.Escalation.RetryDelay.String(),
		},
		"cache": map[string]any{
			"enabled":    cfg.Cache.Enabled,
			"backend":    cfg.Cache.Backend,
			"capacity":   cfg.Cache.Capacity,
			"ttl":        cfg.Cache.TTL.String(),
			"path":       cfg.Cache.Path,
			"redis_addr": cfg.Cache.RedisAddr,
			"redis_key":  cfg.Cache.RedisKey,
		},
		"scheduler": map[string]any{
			"workers":      cfg.Scheduler.Workers,
			"task_timeout": cfg.Scheduler.TaskTimeout.String(),
		},
		"catalog": map[string]any{
			"user_dir":    cfg.Catalog.UserDir,
			"project_dir": cfg.Catalog.ProjectDir,
			"watch":       cfg.Catalog.Watch,
		},
		"history": map[string]any{
			"enabled":   cfg.History.Enabled,
			"retention": cfg.History.Retention.String(),
		},
		"logging": map[string]any{
			"level": cfg.Logging.Level,
			"file":  cfg.Logging.File,
		},
		"lexicon": cfg.Lexicon,
	}
}
