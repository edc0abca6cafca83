package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/swipe-story/internal/auth"
	"github.com/fpang/swipe-story/internal/cli"
	"github.com/fpang/swipe-story/internal/config"
	"github.com/fpang/swipe-story/internal/ingest"
	"github.com/fpang/swipe-story/internal/lambdaboot"
	"github.com/fpang/swipe-story/internal/logging"
	"github.com/fpang/swipe-story/internal/session"
	"github.com/fpang/swipe-story/internal/store"
	"github.com/fpang/swipe-story/internal/ui"
)

// CLI flags
var (
	directoryFlag string
	maxDepthFlag  int
	limitFlag     int
	orderFlag     string
	configFlag    string
	logFileFlag   string
	logLevelFlag  string
	promptFlag    bool
)

var rootCmd = &cobra.Command{
	Use:   "swipe-tui",
	Short: "Swipe through a folder of photos in the terminal",
	Long: `Swipe TUI shows a folder's photos one card at a time. Keep with → or k,
delete with ← or d, undo with u. When every photo is reviewed you can copy a
story script to the clipboard or send the keepers to a video service.

Nothing is deleted from disk: decisions live for the session only.

Examples:
  swipe-tui --directory ~/Pictures/lisbon
  swipe-tui -d ./trip --order taken --limit 50
  swipe-tui            # opens a folder picker
  swipe-tui --prompt   # asks for the folder on the terminal instead`,
	Run: runMain,
}

func init() {
	rootCmd.Flags().StringVarP(&directoryFlag, "directory", "d", "", "Directory containing photos to review")
	rootCmd.Flags().IntVar(&maxDepthFlag, "max-depth", 0, "Maximum recursion depth (0 = unlimited)")
	rootCmd.Flags().IntVar(&limitFlag, "limit", 0, "Maximum photos to load (0 = unlimited)")
	rootCmd.Flags().StringVar(&orderFlag, "order", "name", "Card order: name or taken")
	rootCmd.Flags().StringVar(&configFlag, "config", "", "Path to config file")
	rootCmd.Flags().StringVar(&logFileFlag, "log-file", filepath.Join(os.TempDir(), "swipe-tui.log"), "Where to write logs while the UI is running")
	rootCmd.Flags().StringVar(&logLevelFlag, "log-level", "info", "Log level: trace, debug, info, warn, error")
	rootCmd.Flags().BoolVar(&promptFlag, "prompt", false, "Ask for the directory on the terminal instead of a dialog")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runMain(cmd *cobra.Command, args []string) {
	logging.Init()

	order, err := ingest.ParseOrder(orderFlag)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid --order")
	}

	var cfg *config.Config
	if configFlag != "" {
		cfg, err = config.LoadFile(configFlag)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	dirPath := directoryFlag
	if dirPath == "" && promptFlag {
		dirPath = cli.PromptForDirectory()
	}
	if dirPath != "" {
		dirPath = cli.ValidateAndResolveDirectory(dirPath)
	}

	// From here on the terminal belongs to the UI.
	logFile, err := os.OpenFile(logFileFlag, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		log.Fatal().Err(err).Str("path", logFileFlag).Msg("Failed to open log file")
	}
	defer logFile.Close()
	logging.InitTo(logFile, logLevelFlag)

	// Sessions last as long as the process.
	st := store.NewMemoryStore()
	ctx := context.Background()
	keys := auth.NewResolver(nil, cfg.Env)
	configured := lambdaboot.ConfiguredServices(ctx, keys)
	videos := lambdaboot.NewVideoClient(cfg, keys, st)
	defer videos.Close()

	model := ui.NewModel(ui.Options{
		Sessions: session.NewManager(st),
		Videos:   videos,
		Services: lambdaboot.VideoServices(configured, cfg.Video.Service),
		Dir:      dirPath,
		DirOptions: ingest.DirOptions{
			MaxDepth: maxDepthFlag,
			Limit:    limitFlag,
			Order:    order,
		},
	})

	log.Info().Str("dir", dirPath).Str("order", string(order)).Msg("Starting swipe TUI")
	if _, err := tea.NewProgram(model, tea.WithAltScreen()).Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
