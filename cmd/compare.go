package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/chapter-report/internal/assemble"
	"github.com/sells-group/chapter-report/internal/model"
	"github.com/sells-group/chapter-report/internal/render"
)

var (
	compareCurrent  string
	comparePrevious string
)

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Compare two stored periods",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := requireChapter(); err != nil {
			return err
		}
		if compareCurrent == "" || comparePrevious == "" {
			return eris.New("--current and --previous are required")
		}

		env, err := initPipeline(ctx, "compare")
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := env.Service.Compare(ctx, chapterID, model.Period(compareCurrent), model.Period(comparePrevious))
		if err != nil {
			return err
		}

		payload := assemble.Comparison(res)
		return emit(cmd, payload, func() (*xlsx.File, error) { return render.Comparison(payload) })
	},
}

func init() {
	compareCmd.Flags().StringVar(&compareCurrent, "current", "", "current period")
	compareCmd.Flags().StringVar(&comparePrevious, "previous", "", "previous period")
	rootCmd.AddCommand(compareCmd)
}
