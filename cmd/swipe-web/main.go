package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/swipe-story/internal/api"
	"github.com/fpang/swipe-story/internal/cli"
	"github.com/fpang/swipe-story/internal/config"
	"github.com/fpang/swipe-story/internal/lambdaboot"
	"github.com/fpang/swipe-story/internal/logging"
	"github.com/fpang/swipe-story/internal/session"
)

// Set at build time via -ldflags.
var (
	commitHash = "dev"
	buildTime  = ""
)

// CLI flags
var (
	configFlag     string
	portFlag       int
	staticFlag     string
	storeFlag      string
	modelFlag      string
	ssmFlag        bool
	skipValidation bool
)

var rootCmd = &cobra.Command{
	Use:   "swipe-web",
	Short: "Web server for swipe photo triage and travel story videos",
	Long: `Swipe Web serves the swipe triage API: upload photos, keep or delete them one
card at a time, export the keepers as a ZIP or an HTML storybook, and turn
them into a short travel video with one of the supported video services.

Configuration is read from $SWIPE_CONFIG or ~/.config/swipe-story/config.yaml,
then environment variables, then flags.

Examples:
  swipe-web
  swipe-web --port 9090 --static ./web/dist
  swipe-web --store memory
  swipe-web --ssm   # read API keys from SSM Parameter Store`,
	Run: runMain,
}

func init() {
	rootCmd.Flags().StringVar(&configFlag, "config", "", "Path to config file")
	rootCmd.Flags().IntVar(&portFlag, "port", 0, "Port to listen on (default from config, 8080)")
	rootCmd.Flags().StringVar(&staticFlag, "static", "", "Directory of frontend files to serve at /")
	rootCmd.Flags().StringVar(&storeFlag, "store", "", "Session store: memory, sqlite, or dynamo")
	rootCmd.Flags().StringVarP(&modelFlag, "model", "m", "", "Gemini model for storybooks")
	rootCmd.Flags().BoolVar(&ssmFlag, "ssm", false, "Resolve API keys from SSM Parameter Store")
	rootCmd.Flags().BoolVar(&skipValidation, "skip-validation", false, "Do not validate the Gemini API key at startup")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() *config.Config {
	var (
		cfg *config.Config
		err error
	)
	if configFlag != "" {
		cfg, err = config.LoadFile(configFlag)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	if portFlag != 0 {
		cfg.Server.Port = portFlag
	}
	if staticFlag != "" {
		cfg.Server.StaticDir = staticFlag
	}
	if storeFlag != "" {
		cfg.Store.Backend = storeFlag
	}
	if modelFlag != "" {
		cfg.Gemini.Model = modelFlag
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	return cfg
}

func runMain(cmd *cobra.Command, args []string) {
	initStart := time.Now()
	logging.Init()
	cfg := loadConfig()

	ctx := context.Background()
	backends, err := lambdaboot.OpenBackends(ctx, cfg, lambdaboot.Options{UseSSM: ssmFlag})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open backends")
	}
	defer backends.Close()

	configured := lambdaboot.ConfiguredServices(ctx, backends.Keys)
	videos := lambdaboot.NewVideoClient(cfg, backends.Keys, backends.Store)
	narr := cli.InitNarrator(ctx, backends.Keys, cfg.Gemini.Model, !skipValidation && configured["gemini"])

	handler := api.NewRouter(api.Config{
		Sessions:          session.NewManager(backends.Store),
		Blobs:             backends.Blobs,
		Videos:            videos,
		Narrator:          narr,
		ServiceName:       "swipe-web",
		Configured:        configured,
		StaticDir:         cfg.Server.StaticDir,
		BackgroundPolling: true,
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	startup := lambdaboot.StartupLog("swipe-web", initStart).
		CommitHash(commitHash).
		BuildTime(buildTime).
		Config("port", fmt.Sprint(cfg.Server.Port)).
		Config("videoService", cfg.Video.Service).
		Resource("store", cfg.Store.Backend, cfg.StoreLocation()).
		Resource("blobs", cfg.Blobs.Backend, cfg.BlobLocation()).
		Feature("gemini", narr != nil).
		Feature("staticFrontend", cfg.Server.StaticDir != "")
	for _, name := range lambdaboot.VideoServices(configured, cfg.Video.Service) {
		startup = startup.Feature("video:"+name, true)
	}
	startup.Log()

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info().Msg("Shutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Warn().Err(err).Msg("HTTP shutdown incomplete")
		}
	}()

	fmt.Printf("\n  Swipe Story: http://localhost:%d\n\n", cfg.Server.Port)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("Server failed")
	}
	// Pollers still running record their tasks as interrupted.
	videos.Close()
}
