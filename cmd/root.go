package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/social-studio/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "social-studio",
	Short: "Social content generation service",
	Long: `Turns short text into platform-ready social posts with hosted language models
and generates matching images.

  serve     run the HTTP API (content routes, image routes, /health, /metrics)
  generate  run one content workflow (tweet, thread, linkedin, instagram, youtube, voiceover)
  image     submit an image job and wait for its URL`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
