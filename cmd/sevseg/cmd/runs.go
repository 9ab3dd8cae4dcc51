package cmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/MeKo-Tech/sevseg/internal/store"
	"github.com/spf13/cobra"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recorded runs, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		asJSON, _ := cmd.Flags().GetBool("json")

		st, err := openExistingStore(GetConfig())
		if err != nil {
			return err
		}
		defer closeStore(st)

		runs, err := st.Runs(limit)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if asJSON {
			if runs == nil {
				runs = []store.Run{}
			}
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(runs)
		}

		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		_, _ = fmt.Fprintln(tw, "RUN\tMODE\tSTATE\tSTARTED\tREADINGS\tSOURCE")
		for _, r := range runs {
			_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
				r.ID, r.Mode, r.State, r.StartedAt.Local().Format(time.DateTime), r.ResultCount, r.Source)
		}
		return tw.Flush()
	},
}

func init() {
	rootCmd.AddCommand(runsCmd)
	runsCmd.Flags().Int("limit", 20, "maximum number of runs to list (0 lists all)")
	runsCmd.Flags().Bool("json", false, "print JSON")
}
