// cmd/lessonflow/main.go
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/valpere/LessonFlow/internal/config"
	lferrors "github.com/valpere/LessonFlow/internal/errors"
	"github.com/valpere/LessonFlow/internal/output"
	"github.com/valpere/LessonFlow/internal/utils"
)

// Version information (set by build flags)
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

// Global error service instance
var errorService = lferrors.NewService()

type rootOptions struct {
	configFile string
	verbose    bool
}

func main() {
	opts := &rootOptions{}
	root := newRootCmd(opts)
	if err := root.Execute(); err != nil {
		errorService = errorService.WithVerbose(opts.verbose)
		fmt.Fprint(os.Stderr, errorService.FormatErrorForCLI(err))
		os.Exit(errorService.GetExitCode(err))
	}
}

func newRootCmd(opts *rootOptions) *cobra.Command {
	root := &cobra.Command{
		Use:   "lessonflow",
		Short: "Walk interactive lessons in a browser and extract their screens",
		Long: `LessonFlow drives a browser through interactive lessons, classifies every
screen, records its content to JSON and answers it to reach the next one.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// .env is optional
			_ = godotenv.Load()
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "configuration file (YAML)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "verbose output")

	root.AddCommand(
		newRunCmd(opts),
		newValidateCmd(opts),
		newExportCmd(opts),
		newStatsCmd(opts),
		newVersionCmd(),
	)
	return root
}

// loadConfig reads the configuration file, or the defaults when none is given
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.DefaultConfig(), nil
	}
	cfg, err := config.LoadFromFile(path)
	if err != nil {
		return nil, utils.WrapError(err, utils.ErrCodeInvalidConfig, fmt.Sprintf("failed to load %s", path))
	}
	return cfg, nil
}

func newLogger(cfg *config.Config, verbose bool) (utils.Logger, error) {
	level, err := utils.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		return nil, utils.WrapError(err, utils.ErrCodeInvalidConfig, "invalid log_level")
	}
	if verbose {
		level = utils.DebugLevel
	}
	return utils.NewLoggerWithLevel(level, false)
}

func newValidateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <config>",
		Short: "Check a configuration file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadFromFile(args[0])
			if err != nil {
				return utils.WrapError(err, utils.ErrCodeInvalidConfig, fmt.Sprintf("configuration file '%s' is invalid", args[0]))
			}
			out := cmd.OutOrStdout()
			result := cfg.ValidateWithDetails()
			fmt.Fprintf(out, "✓ Configuration file '%s' is valid\n", args[0])
			for _, w := range result.Warnings {
				fmt.Fprintf(out, "  warning: %s\n", w)
			}
			if opts.verbose {
				fmt.Fprintf(out, "  platform:     %s\n", cfg.Platform)
				fmt.Fprintf(out, "  output_dir:   %s\n", cfg.OutputDir)
				fmt.Fprintf(out, "  progress_dir: %s\n", cfg.ProgressDir)
				fmt.Fprintf(out, "  max_screens:  %d\n", cfg.Limits.MaxScreens)
				fmt.Fprintf(out, "  screen types: %d override(s)\n", len(cfg.ScreenTypes))
			}
			return nil
		},
	}
}

func newExportCmd(opts *rootOptions) *cobra.Command {
	var outputDir, file string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a review workbook from the lesson JSON files",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts.configFile)
			if err != nil {
				return err
			}
			if outputDir == "" {
				outputDir = cfg.OutputDir
			}
			if file == "" {
				file = cfg.Output.Workbook
			}
			if file == "" {
				file = "review.xlsx"
			}

			lessons, err := output.LoadLessons(outputDir)
			if err != nil {
				return utils.WrapError(err, utils.ErrCodeOutputFailed, "failed to load lessons")
			}
			if err := output.ExportWorkbook(file, lessons); err != nil {
				return utils.WrapError(err, utils.ErrCodeOutputFailed, "failed to write workbook")
			}
			abs, _ := filepath.Abs(file)
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Exported %d lesson(s) to %s\n", len(lessons), abs)
			return nil
		},
	}
	cmd.Flags().StringVar(&outputDir, "output-dir", "", "directory with lesson JSON files (default: output_dir)")
	cmd.Flags().StringVar(&file, "file", "", "workbook path (default: output.workbook or review.xlsx)")
	return cmd
}

func newStatsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print lesson index statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts.configFile)
			if err != nil {
				return err
			}
			if cfg.Output.Index.DSN == "" {
				return utils.NewError(utils.ErrCodeInvalidConfig, "no lesson index configured").
					WithUserMessage("Set output.index.driver and output.index.dsn in the configuration file.").
					Build()
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			ix, err := output.NewIndex(ctx, output.IndexOptions{
				Driver: cfg.Output.Index.Driver,
				DSN:    cfg.Output.Index.DSN,
			}, utils.NewNopLogger())
			if err != nil {
				return utils.WrapError(err, utils.ErrCodeOutputFailed, "failed to open lesson index")
			}
			defer ix.Close()

			stats, err := ix.Stats(ctx)
			if err != nil {
				return utils.WrapError(err, utils.ErrCodeOutputFailed, "failed to read lesson index")
			}
			printStats(cmd.OutOrStdout(), stats)
			return nil
		},
	}
}

func printStats(w io.Writer, stats output.IndexStats) {
	fmt.Fprintf(w, "Index (%s)\n", stats.Driver)
	fmt.Fprintf(w, "  lessons:          %d\n", stats.Lessons)
	fmt.Fprintf(w, "  completed:        %d\n", stats.Completed)
	fmt.Fprintf(w, "  screens:          %d\n", stats.Screens)
	fmt.Fprintf(w, "  open connections: %d\n", stats.OpenConns)
	if stats.DatabaseBytes > 0 {
		fmt.Fprintf(w, "  database size:    %d bytes\n", stats.DatabaseBytes)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			printVersion(cmd.OutOrStdout())
		},
	}
}

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "LessonFlow %s\n", version)
	fmt.Fprintf(w, "Build time: %s\n", buildTime)
	fmt.Fprintf(w, "Git commit: %s\n", gitCommit)
}
