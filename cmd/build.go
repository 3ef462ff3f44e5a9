package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/chapter-report/internal/classify"
	"github.com/sells-group/chapter-report/internal/model"
)

var (
	buildPeriods []string
	buildAll     bool
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Rebuild period reports from slip audits and store them",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := requireChapter(); err != nil {
			return err
		}

		env, err := initPipeline(ctx, "build")
		if err != nil {
			return err
		}
		defer env.Close()

		periods := toPeriods(buildPeriods)
		if buildAll {
			periods, err = env.Source.ListPeriods(chapterID)
			if err != nil {
				return err
			}
		}
		if len(periods) == 0 {
			return eris.New("give --period at least once or --all")
		}

		reps, err := env.Service.RebuildAll(ctx, chapterID, periods)
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "PERIOD\tMEMBERS\tREFERRALS\tONE-TO-ONES\tGREEN\tORANGE\tORANGE-LOW\tRED")
		for _, rep := range reps {
			counts := classify.Summarize(rep.Tiers)
			fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\t%d\t%d\n",
				rep.Period, rep.Axis.Len(), rep.Referral.Total(), rep.OneToOne.Total()/2,
				counts[model.TierGreen], counts[model.TierOrange], counts[model.TierOrangeLow], counts[model.TierRed],
			)
		}
		return tw.Flush()
	},
}

func toPeriods(raw []string) []model.Period {
	out := make([]model.Period, 0, len(raw))
	for _, p := range raw {
		out = append(out, model.Period(p))
	}
	return out
}

func init() {
	buildCmd.Flags().StringSliceVar(&buildPeriods, "period", nil, "period to rebuild (repeatable)")
	buildCmd.Flags().BoolVar(&buildAll, "all", false, "rebuild every period found under ingest.dir")
	rootCmd.AddCommand(buildCmd)
}
