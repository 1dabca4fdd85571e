package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/alexeyavdey/gptbot/internal/config"
)

var (
	// Global flags
	configPath string
	verbose    bool
	userID     int64

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "gptbot",
	Short: "gptbot - conversational task tracker with a mentor",
	Long: `gptbot is a conversational task tracker.

It onboards each user through an anxiety-aware wizard, turns free-form
messages into task operations via an LLM intent resolver, runs guided
evening reflection sessions, and delivers daily digests and deadline
reminders in the background.

Run without arguments to start the interactive chat.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// .env is optional; real env vars win either way.
		_ = godotenv.Load()
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: runChat,
}

// serveCmd starts the console transport loop plus the scheduler.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the interactive chat loop with the scheduler running",
	RunE:  runChat,
}

// digestCmd sends a digest immediately, outside the daily schedule.
var digestCmd = &cobra.Command{
	Use:   "digest",
	Short: "Compose and print the daily digest for a user right now",
	RunE:  runManualDigest,
}

// taskCmd groups direct task utilities that skip the conversation.
var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Task utilities (no LLM involved)",
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the user's tasks",
	RunE:  runTaskList,
}

var taskAddCmd = &cobra.Command{
	Use:   "add [title]",
	Short: "Add a task directly",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runTaskAdd,
}

var taskPriority string

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "gptbot.yaml", "path to the YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().Int64Var(&userID, "user", 1, "user id to act as")
	taskAddCmd.Flags().StringVar(&taskPriority, "priority", "medium", "low, medium, high or urgent")

	taskCmd.AddCommand(taskListCmd)
	taskCmd.AddCommand(taskAddCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(digestCmd)
	rootCmd.AddCommand(taskCmd)
}

// initLogger builds the process logger from the config, with the
// verbose flag forcing debug level.
func initLogger(cfg *config.Config) error {
	zc := zap.NewProductionConfig()
	if cfg.Logging.Format == "console" {
		zc = zap.NewDevelopmentConfig()
	}
	level, err := zapcore.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}
	if verbose {
		level = zapcore.DebugLevel
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	if cfg.Logging.File != "" {
		zc.OutputPaths = []string{cfg.Logging.File}
	}

	logger, err = zc.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
