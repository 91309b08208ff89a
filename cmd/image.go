package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/social-studio/internal/imagegen"
)

var (
	imagePrompt      string
	imageAspectRatio string
)

var imageCmd = &cobra.Command{
	Use:   "image",
	Short: "Generate one image and print its URL",
	RunE: func(cmd *cobra.Command, args []string) error {
		if imagePrompt == "" {
			return eris.New("--prompt is required")
		}
		if err := cfg.Validate("image"); err != nil {
			return err
		}

		job, err := newGenerator(cfg, newMetrics(cfg)).Run(cmd.Context(), imagePrompt, imageAspectRatio)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), map[string]any{
			"image_url":     job.URL,
			"prediction_id": job.PredictionID,
			"polls":         job.Polls,
		})
	},
}

func init() {
	imageCmd.Flags().StringVar(&imagePrompt, "prompt", "", "image prompt")
	imageCmd.Flags().StringVar(&imageAspectRatio, "aspect-ratio", imagegen.AspectSquare, "aspect ratio, e.g. 1:1 or 16:9")
	rootCmd.AddCommand(imageCmd)
}
