package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ShayCichocki/intentrouter/internal/api"
	"github.com/ShayCichocki/intentrouter/internal/config"
	"github.com/ShayCichocki/intentrouter/internal/orchestrator"
	"github.com/ShayCichocki/intentrouter/pkg/models"
)

var (
	routeDryRun      bool
	routeVerbose     bool
	routeJSON        bool
	routeNoCache     bool
	routeWorkers     int
	routeTaskTimeout time.Duration
)

var routeCmd = &cobra.Command{
	Use:   "route <text>",
	Short: "Classify a request and run it",
	Long: `Classify a free-text request and run it.

Parallelizable requests (lists of modules, "包含" style breakdowns, or
explicit orderings) are split into subtasks, leveled into phases by their
dependencies, and run on a bounded worker pool. A subtask whose dependency
failed is skipped. Everything else runs as a single task.

Without an API key or Bedrock, --dry-run is required: classification falls
back to the keyword classifier and nothing is executed.

Examples:
  intentrouter route "实现用户管理、商品管理、订单处理"
  intentrouter route --dry-run --verbose "first write tests, then implement the feature"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRoute,
}

func init() {
	routeCmd.Flags().BoolVar(&routeDryRun, "dry-run", false, "Classify and plan without executing")
	routeCmd.Flags().BoolVarP(&routeVerbose, "verbose", "v", false, "Show the full routing trace and live progress")
	routeCmd.Flags().BoolVar(&routeJSON, "json", false, "Print the result as JSON")
	routeCmd.Flags().BoolVar(&routeNoCache, "no-cache", false, "Bypass the intent cache")
	routeCmd.Flags().IntVar(&routeWorkers, "workers", 0, "Worker pool size (default: scheduler.workers)")
	routeCmd.Flags().DurationVar(&routeTaskTimeout, "task-timeout", 0, "Per-subtask timeout (default: scheduler.task_timeout)")
}

func runRoute(cmd *cobra.Command, args []string) error {
	text := strings.TrimSpace(strings.Join(args, " "))
	if text == "" {
		return orchestrator.ErrEmptyRequest
	}

	a, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	if !routeDryRun && !config.HasModelBackend(a.cfg) {
		return fmt.Errorf("%w: set ANTHROPIC_API_KEY or anthropic.use_bedrock, or pass --dry-run", config.ErrNoAPIKey)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := routerOptions(ctx, a)

	catalog := a.fileCatalog()
	if a.cfg.Catalog.Watch {
		go func() {
			if err := catalog.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Warn("catalog watch stopped", zap.Error(err))
			}
		}()
	}

	var executor *api.Executor
	client, err := a.modelClient()
	if err != nil {
		return fmt.Errorf("create API client: %w", err)
	}
	if client != nil {
		runner := api.NewRunner(client, a.cfg.Anthropic.MaxTokens)
		opts = append(opts, orchestrator.WithClassifier(api.NewClassifier(runner, a.logger.Named("classifier"))))
		executor = api.NewExecutor(runner, "", a.logger.Named("executor"))
	}

	var progress sync.WaitGroup
	if routeVerbose && !routeJSON {
		emitter := orchestrator.NewEventEmitter(64, a.logger)
		opts = append(opts, orchestrator.WithEventEmitter(emitter))
		progress.Add(1)
		go func() {
			defer progress.Done()
			for ev := range emitter.Events() {
				renderEvent(cmd.ErrOrStderr(), ev)
			}
		}()
		defer func() {
			emitter.Close()
			progress.Wait()
		}()
	}

	required := orchestrator.RequiredConfig{Catalog: catalog}
	if executor != nil {
		required.Executor = executor
	}
	router := orchestrator.New(required, opts...)

	res, err := router.Route(ctx, models.Request{Text: text, Verbose: routeVerbose, DryRun: routeDryRun})
	if err != nil {
		return err
	}

	if routeJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	renderResult(cmd.OutOrStdout(), res, routeVerbose)

	if client != nil && routeVerbose {
		in, out := client.Tracker().Total()
		fmt.Fprintf(cmd.OutOrStdout(), "\nTokens: %d in / %d out (~$%.4f)\n", in, out, client.Tracker().Cost())
	}
	if res.Aggregated != nil && (res.Aggregated.Failed > 0 || res.Aggregated.Cancelled) {
		return fmt.Errorf("run %s: %d failed, %d skipped", res.RunID, res.Aggregated.Failed, res.Aggregated.Skipped)
	}
	return nil
}

// routerOptions maps config and flags onto router options.
func routerOptions(ctx context.Context, a *app) []orchestrator.Option {
	workers := a.cfg.Scheduler.Workers
	if routeWorkers > 0 {
		workers = routeWorkers
	}
	timeout := a.cfg.Scheduler.TaskTimeout
	if routeTaskTimeout > 0 {
		timeout = routeTaskTimeout
	}

	opts := []orchestrator.Option{
		orchestrator.WithLogger(a.logger.Named("router")),
		orchestrator.WithLexicon(a.cfg.Lexicon),
		orchestrator.WithScoring(a.cfg.Classifier),
		orchestrator.WithGateConfig(a.cfg.Gate),
		orchestrator.WithEscalation(a.cfg.Escalation),
		orchestrator.WithWorkers(workers),
		orchestrator.WithTaskTimeout(timeout),
	}

	if !routeNoCache {
		if c := a.intentCache(ctx); c != nil {
			opts = append(opts, orchestrator.WithCache(c))
		}
	}

	if a.cfg.History.Enabled {
		db, err := a.stateDB()
		if err != nil {
			a.logger.Warn("run history unavailable", zap.Error(err))
		} else {
			opts = append(opts, orchestrator.WithRunRecorder(db))
		}
	}
	return opts
}
