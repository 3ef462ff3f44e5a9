package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/chapter-report/internal/assemble"
	"github.com/sells-group/chapter-report/internal/model"
	"github.com/sells-group/chapter-report/internal/render"
)

var periodCmd = &cobra.Command{
	Use:   "period <period>",
	Short: "Print the stored report of one period",
	Args:  cobra.ExactArgs(1),
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

		rep, err := env.Service.Period(ctx, chapterID, model.Period(args[0]))
		if err != nil {
			return eris.Wrapf(err, "load period %s", args[0])
		}
		payload := assemble.Period(rep)
		return emit(cmd, payload, func() (*xlsx.File, error) { return render.Period(payload) })
	},
}

func init() {
	rootCmd.AddCommand(periodCmd)
}
