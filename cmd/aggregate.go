package main

import (
	"github.com/spf13/cobra"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/sells-group/chapter-report/internal/assemble"
	"github.com/sells-group/chapter-report/internal/render"
)

var (
	aggregatePeriods []string
	aggregateAll     bool
)

var aggregateCmd = &cobra.Command{
	Use:   "aggregate",
	Short: "Merge stored period reports into one range report",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := requireChapter(); err != nil {
			return err
		}

		env, err := initPipeline(ctx, "aggregate")
		if err != nil {
			return err
		}
		defer env.Close()

		periods := toPeriods(aggregatePeriods)
		if aggregateAll {
			if periods, err = env.Service.Periods(ctx, chapterID); err != nil {
				return err
			}
		}

		agg, err := env.Service.Aggregate(ctx, chapterID, periods)
		if err != nil {
			return err
		}
		if partial := agg.Partial(); len(partial) > 0 {
			zap.L().Info("aggregate: members missing from some periods", zap.Int("partial", len(partial)))
		}

		payload := assemble.Aggregate(agg)
		return emit(cmd, payload, func() (*xlsx.File, error) { return render.Aggregate(payload) })
	},
}

func init() {
	aggregateCmd.Flags().StringSliceVar(&aggregatePeriods, "periods", nil, "comma-separated periods to merge")
	aggregateCmd.Flags().BoolVar(&aggregateAll, "all", false, "merge every stored period")
	rootCmd.AddCommand(aggregateCmd)
}
