package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/chapter-report/internal/identity"
	"github.com/sells-group/chapter-report/internal/model"
)

var (
	aliasRaw    string
	aliasTarget string
	aliasKey    string
	aliasNote   string
)

var aliasCmd = &cobra.Command{
	Use:   "alias",
	Short: "Manage member name aliases",
}

var aliasAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Map a raw spelling to a member",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := requireChapter(); err != nil {
			return err
		}

		env, err := initPipeline(ctx, "alias")
		if err != nil {
			return err
		}
		defer env.Close()

		alias := identity.Alias{
			RawName: aliasRaw,
			Target:  aliasTarget,
			Key:     model.MemberKey(aliasKey),
			Note:    aliasNote,
		}
		if err := env.Service.AddAlias(ctx, chapterID, alias); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "alias %q saved; rebuild affected periods to apply it\n", aliasRaw)
		return nil
	},
}

var aliasListCmd = &cobra.Command{
	Use:   "list",
	Short: "List effective aliases",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := requireChapter(); err != nil {
			return err
		}

		env, err := initPipeline(ctx, "alias")
		if err != nil {
			return err
		}
		defer env.Close()

		aliases, err := env.Service.Aliases(ctx, chapterID)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "RAW NAME\tTARGET\tMEMBER KEY\tNOTE")
		for _, a := range aliases {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", a.RawName, a.Target, a.Key, a.Note)
		}
		return tw.Flush()
	},
}

var aliasRemoveCmd = &cobra.Command{
	Use:   "remove",
	Short: "Delete a stored alias",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := requireChapter(); err != nil {
			return err
		}
		if aliasRaw == "" {
			return eris.New("--raw is required")
		}

		env, err := initPipeline(ctx, "alias")
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Service.RemoveAlias(ctx, chapterID, aliasRaw); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "alias %q removed\n", aliasRaw)
		return nil
	},
}

func init() {
	aliasAddCmd.Flags().StringVar(&aliasRaw, "raw", "", "raw spelling as it appears on slips")
	aliasAddCmd.Flags().StringVar(&aliasTarget, "target", "", "canonical member name")
	aliasAddCmd.Flags().StringVar(&aliasKey, "key", "", "member key (instead of --target)")
	aliasAddCmd.Flags().StringVar(&aliasNote, "note", "", "free-form note")
	aliasRemoveCmd.Flags().StringVar(&aliasRaw, "raw", "", "raw spelling to remove")

	aliasCmd.AddCommand(aliasAddCmd, aliasListCmd, aliasRemoveCmd)
	rootCmd.AddCommand(aliasCmd)
}
