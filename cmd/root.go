package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/chapter-report/internal/config"
)

var cfg *config.Config

var (
	chapterID    string
	outputFormat string
	outputPath   string
)

var rootCmd = &cobra.Command{
	Use:   "chapter-report",
	Short: "Chapter networking report engine",
	Long:  "Builds referral, one-to-one, combination and TYFCB reports from chapter slip audits, merges periods, compares periods and classifies members into performance tiers.",
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
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&chapterID, "chapter", "", "chapter id")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "format", "json", "output format: json or xlsx")
	rootCmd.PersistentFlags().StringVarP(&outputPath, "output", "o", "", "output file (default stdout)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
