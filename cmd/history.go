package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/dataloom-cli/internal/utils"
)

var (
	histSession  string
	histLimit    int
	histJSON     bool
	histSessions bool
	histDelete   bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List stored questions and results",
	RunE: func(cmd *cobra.Command, args []string) error {
		c := effectiveConfig()
		store, err := openHistory(c)
		if err != nil {
			return err
		}
		if store == nil {
			return fmt.Errorf("history is disabled (set history_enabled: true)")
		}
		defer store.Close()
		out := cmd.OutOrStdout()
		ctx := cmd.Context()

		if histDelete {
			if histSession == "" {
				return fmt.Errorf("--delete requires --session")
			}
			n, err := store.DeleteSession(ctx, histSession)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "✓ Deleted %d entries from session %s\n", n, histSession)
			return nil
		}

		if histSessions {
			sessions, err := store.Sessions(ctx)
			if err != nil {
				return err
			}
			if histJSON {
				b, err := utils.PrettyJSON(sessions)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, string(b))
				return nil
			}
			if len(sessions) == 0 {
				fmt.Fprintln(out, "No sessions found")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "SESSION\tENTRIES\tFIRST\tLAST")
			for _, s := range sessions {
				fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", s.ID, s.Entries, s.First.Format("2006-01-02 15:04"), s.Last.Format("2006-01-02 15:04"))
			}
			return tw.Flush()
		}

		entries, err := store.List(ctx, histSession, histLimit)
		if err != nil {
			return err
		}
		if histJSON {
			b, err := utils.PrettyJSON(entries)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, string(b))
			return nil
		}
		if len(entries) == 0 {
			fmt.Fprintln(out, "No history entries found")
			return nil
		}
		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "TIME\tSESSION\tTYPE\tQUERY\tRESULT")
		for _, e := range entries {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
				e.Timestamp.Local().Format("2006-01-02 15:04:05"), shortID(e.SessionID), e.Type, e.Query, firstLine(e.Content))
		}
		return tw.Flush()
	},
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().StringVar(&histSession, "session", "", "only entries of this session id")
	historyCmd.Flags().IntVarP(&histLimit, "limit", "n", 20, "maximum entries to list")
	historyCmd.Flags().BoolVar(&histJSON, "json", false, "print as JSON")
	historyCmd.Flags().BoolVar(&histSessions, "sessions", false, "list sessions instead of entries")
	historyCmd.Flags().BoolVar(&histDelete, "delete", false, "delete the entries of --session")
}
