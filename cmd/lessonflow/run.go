// cmd/lessonflow/run.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/valpere/LessonFlow/internal/config"
	"github.com/valpere/LessonFlow/internal/engine"
	"github.com/valpere/LessonFlow/internal/monitoring"
	"github.com/valpere/LessonFlow/internal/navigator"
	"github.com/valpere/LessonFlow/internal/output"
	"github.com/valpere/LessonFlow/internal/platform"
	"github.com/valpere/LessonFlow/internal/utils"
	"github.com/valpere/LessonFlow/internal/validator"
	"github.com/valpere/LessonFlow/pkg/types"
)

type runOptions struct {
	level    string
	lesson   string
	auto     bool
	headless bool
	review   bool
}

func newRunCmd(root *rootOptions) *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Extract a level, a single lesson, or lessons entered interactively",
		Example: `  lessonflow run --config lessonflow.yaml --level a1 --auto --headless
  lessonflow run --lesson https://app.dataqa.example/lesson/a1/l3
  lessonflow run`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.level != "" && opts.lesson != "" {
				return utils.NewError(utils.ErrCodeInvalidConfig, "--level and --lesson are mutually exclusive").Build()
			}
			cfg, err := loadConfig(root.configFile)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("headless") {
				cfg.Browser.Headless = opts.headless
			} else if !opts.auto {
				// supervised runs need a visible window
				cfg.Browser.Headless = false
			}
			return executeRun(cmd, root, opts, cfg)
		},
	}
	cmd.Flags().StringVar(&opts.level, "level", "", "extract every pending lesson of a level")
	cmd.Flags().StringVar(&opts.lesson, "lesson", "", "extract a single lesson URL")
	cmd.Flags().BoolVar(&opts.auto, "auto", false, "run unattended, never prompt the operator")
	cmd.Flags().BoolVar(&opts.headless, "headless", true, "hide the browser window")
	cmd.Flags().BoolVar(&opts.review, "review", false, "review every recorded screen in the terminal")
	return cmd
}

func executeRun(cmd *cobra.Command, root *rootOptions, opts *runOptions, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := newLogger(cfg, root.verbose)
	if err != nil {
		return err
	}
	defer logger.Sync()

	p, err := platform.Get(cfg.Platform, cfg.BaseURL)
	if err != nil {
		return utils.WrapError(err, utils.ErrCodeInvalidConfig, "unknown platform")
	}
	registry, err := p.Registry(cfg.ScreenTypes)
	if err != nil {
		return utils.WrapError(err, utils.ErrCodeInvalidConfig, "invalid screen types")
	}

	limits := config.NewLiveLimits(cfg.Limits)
	var metrics *monitoring.Metrics
	if cfg.Metrics.Enabled {
		metrics = monitoring.NewMetrics(monitoring.MetricsConfig{EnableGoMetrics: true})
	}
	if root.configFile != "" {
		watcher, err := config.NewConfigWatcher(root.configFile, logger)
		if err != nil {
			logger.Warnf("config hot reload disabled: %v", err)
		} else {
			defer watcher.Close()
			limits.Bind(watcher)
			watcher.OnChange(func(*config.Config) { metrics.RecordConfigReload() })
		}
	}

	mirrors, err := output.NewManager(ctx, &cfg.Output, logger)
	if err != nil {
		return utils.WrapError(err, utils.ErrCodeOutputFailed, "failed to open output mirrors")
	}
	defer mirrors.Close()
	mirrors.OnError(func(name string, err error) { metrics.RecordMirrorError(name) })

	tracker := monitoring.NewRunTracker(p.Name, opts.level)
	if cfg.Metrics.Enabled {
		startStatusServer(ctx, cfg, metrics, tracker, mirrors.Index(), logger)
	}

	nav, err := navigator.Launch(cfg, p, logger)
	if err != nil {
		return err
	}
	defer nav.Close()

	var terminal *validator.Terminal
	var v validator.Validator = validator.Auto{}
	if !opts.auto {
		terminal = validator.NewTerminal(validator.TerminalOptions{
			ReviewScreens: opts.review,
			Color:         true,
		}, logger)
		v = terminal
	}

	runner := engine.NewRunner(nav, registry, engine.RunnerOptions{
		Config:  cfg,
		Mirrors: mirrors,
		Retry:   errorService,
		Session: engine.Options{
			Timeouts:   cfg.Timeouts,
			Limits:     limits,
			Supervised: !opts.auto,
			Review:     opts.review,
			Validator:  v,
			Metrics:    metrics,
			Tracker:    tracker,
			Logger:     logger,
		},
	})
	if err := runner.EnsureLogin(ctx); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch {
	case opts.level != "":
		report, err := runner.RunLevel(ctx, opts.level)
		if report != nil {
			fmt.Fprintln(out, report.String())
		}
		return err
	case opts.lesson != "":
		return runOne(ctx, cmd, runner, p, opts.lesson)
	case terminal == nil:
		return utils.NewError(utils.ErrCodeInvalidConfig, "--auto needs --level or --lesson").Build()
	default:
		return interactive(ctx, cmd, runner, p, terminal)
	}
}

func runOne(ctx context.Context, cmd *cobra.Command, runner *engine.Runner, p *platform.Platform, url string) error {
	meta := types.LessonMeta{
		Key:      utils.LessonKeyFromURL(url),
		URL:      url,
		Platform: p.Name,
	}
	res, err := runner.RunLesson(ctx, meta)
	if res != nil && res.Extraction != nil {
		printResult(cmd, res)
	}
	return err
}

func printResult(cmd *cobra.Command, res *engine.Result) {
	le := res.Extraction
	line := fmt.Sprintf("%s: %s, %d screen(s), %d iteration(s) in %s",
		le.Lesson.Key, le.Status, len(le.Screens), res.Iterations, utils.FormatDuration(res.Duration))
	if le.AbortReason != "" {
		line += fmt.Sprintf(" (%s)", le.AbortReason)
	}
	if res.File != "" {
		line += " -> " + res.File
	}
	fmt.Fprintln(cmd.OutOrStdout(), line)
}

// interactive reads lesson URLs until the operator enters an empty line
func interactive(ctx context.Context, cmd *cobra.Command, runner *engine.Runner, p *platform.Platform, terminal *validator.Terminal) error {
	for {
		answer, ok, err := terminal.Prompt(ctx, "Lesson URL (empty to quit):")
		if err != nil {
			return err
		}
		answer = strings.TrimSpace(answer)
		if !ok || answer == "" {
			return nil
		}
		if !utils.IsValidURL(answer) {
			fmt.Fprintf(cmd.ErrOrStderr(), "not a URL: %s\n", answer)
			continue
		}
		if err := runOne(ctx, cmd, runner, p, answer); err != nil {
			if engine.IsFatal(ctx, err) {
				return err
			}
			fmt.Fprint(cmd.ErrOrStderr(), errorService.FormatErrorForCLI(err))
		}
	}
}

func startStatusServer(ctx context.Context, cfg *config.Config, metrics *monitoring.Metrics,
	tracker *monitoring.RunTracker, index *output.Index, logger utils.Logger) {
	health := monitoring.NewHealthManager(5 * time.Second)
	health.RegisterCheck(monitoring.DirectoryHealthCheck("output_dir", cfg.OutputDir))
	health.RegisterCheck(monitoring.GoroutineHealthCheck(1000))

	server := monitoring.NewServer(metrics, health, tracker, logger)
	if index != nil {
		health.RegisterCheck(monitoring.DatabaseHealthCheck("lesson_index", func(ctx context.Context) error {
			_, err := index.Stats(ctx)
			return err
		}))
		server.SetLessonLookup(index)
	}

	go func() {
		if err := server.Start(ctx, cfg.Metrics.ListenAddress); err != nil {
			logger.Errorf("status server stopped: %v", err)
		}
	}()
}
