package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "imgable-ai",
	Short: "Background AI analysis service for the Imgable photo library",
	Long: `Imgable AI drains the photo analysis queue and runs each photo through
face detection and clustering, zero-shot object/scene tagging, and
date-stamp OCR. Results are written back to PostgreSQL and a small
HTTP API exposes worker control, queue state, and metrics.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
