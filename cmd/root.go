package cmd

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/pyama86/dispatchd/handler"
	"github.com/spf13/cobra"
)

var (
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "dispatchd",
	Short: "dispatchd is a duty roster and incident escalation service",
	Run: func(cmd *cobra.Command, args []string) {
		if err := run(); err != nil {
			slog.Error("Failed to run command", slog.Any("error", err))
			os.Exit(1)
		}
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "start the API server and periodic jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run()
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// デフォルトはホームディレクトリのdispatchd.toml
	home, err := os.UserHomeDir()
	if err != nil {
		slog.Error("Failed to get user home directory", slog.Any("error", err))
		os.Exit(1)
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", path.Join(home, "dispatchd.toml"), "config file path")
	rootCmd.AddCommand(serveCmd)
}

func loadEnv() {
	if _, err := os.Stat(".env"); err == nil {
		err := godotenv.Load()
		if err != nil {
			log.Fatal("Error loading .env file")
		}
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	loadEnv()

	slog.Info("Server started")
	if err := handler.Handle(ctx, configPath); err != nil {
		return err
	}
	slog.Info("Server stopped")
	return nil
}
