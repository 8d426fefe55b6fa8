package cmd

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/KaramelBytes/dataloom-cli/internal/history"
	"github.com/KaramelBytes/dataloom-cli/internal/pipeline"
	"github.com/KaramelBytes/dataloom-cli/internal/table"
)

var (
	sesLoad      loadFlags
	sesRetries   int
	sesOutputDir string
	sesVerbose   bool
	sesNoHistory bool
)

var sessionCmd = &cobra.Command{
	Use:   "session <file>",
	Short: "Ask questions about a table interactively",
	Long: `Session loads the table once and reads one question per line from stdin.

Commands:
  :history   list the questions answered in this session
  :quit      exit (EOF also exits)`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		df, err := sesLoad.load(args[0])
		if err != nil {
			return err
		}
		c := effectiveConfig()
		rt, _, err := buildRuntime(c, runtimeOptions{ProviderFlag: flagProvider})
		if err != nil {
			return err
		}
		opts := pipelineOptions{Runtime: rt, Model: selectModel(c, flagModel), Retries: sesRetries, OutputDir: sesOutputDir}
		if sesVerbose {
			opts.Verbose = cmd.ErrOrStderr()
		}
		p, _ := newPipeline(c, opts)

		var store *history.Store
		if !sesNoHistory {
			store, err = openHistory(c)
			if err != nil {
				logger.Warn("history unavailable; keeping session in memory", zap.Error(err))
				store = nil
			}
		}
		if store != nil {
			defer store.Close()
		}
		sess := history.NewSession(store)
		defer sess.Close()

		return runSession(cmd, p, sess, df, cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

func runSession(cmd *cobra.Command, p *pipeline.Pipeline, sess *history.Session, df *table.Frame, in io.Reader, out io.Writer) error {
	fmt.Fprintf(out, "Loaded %d rows x %d columns: %s\n", df.Len(), len(df.Columns()), strings.Join(df.Columns(), ", "))
	fmt.Fprintf(out, "Session %s. Type a question, :history or :quit.\n", sess.ID)

	sc := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !sc.Scan() {
			fmt.Fprintln(out)
			return sc.Err()
		}
		line := strings.TrimSpace(sc.Text())
		switch line {
		case "":
			continue
		case ":quit", ":q", ":exit":
			return nil
		case ":history":
			entries := sess.Entries()
			if len(entries) == 0 {
				fmt.Fprintln(out, "(no entries yet)")
			}
			for i, e := range entries {
				fmt.Fprintf(out, "%d. [%s] %s -> %s\n", i+1, e.Type, e.Query, firstLine(e.Content))
			}
			continue
		}
		if err := cmd.Context().Err(); err != nil {
			return err
		}
		res := p.Run(cmd.Context(), line, df)
		if _, err := sess.Record(cmd.Context(), line, res); err != nil {
			logger.Warn("failed to record history", zap.Error(err))
		}
		fmt.Fprintln(out, strings.TrimRight(res.Text(), "\n"))
	}
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " ..."
	}
	return s
}

func init() {
	rootCmd.AddCommand(sessionCmd)
	addLoadFlags(sessionCmd, &sesLoad)
	sessionCmd.Flags().IntVar(&sesRetries, "max-retries", 0, "maximum attempts per question (default from config)")
	sessionCmd.Flags().StringVar(&sesOutputDir, "output-dir", "", "directory for plot files (default from config)")
	sessionCmd.Flags().BoolVarP(&sesVerbose, "verbose", "v", false, "print the interpreted action and each attempt's snippet")
	sessionCmd.Flags().BoolVar(&sesNoHistory, "no-history", false, "keep the session in memory only")
}
