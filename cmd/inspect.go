package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/dataloom-cli/internal/stats"
	"github.com/KaramelBytes/dataloom-cli/internal/utils"
)

var (
	insLoad       loadFlags
	insOutputPath string
	insHeadRows   int
	insDescribe   bool
	insQuiet      bool
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <file>",
	Short: "Show the schema and first rows of a CSV/TSV/XLSX table",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		df, err := insLoad.load(args[0])
		if err != nil {
			return err
		}
		var b strings.Builder
		b.WriteString(df.Preview(insHeadRows))
		if insDescribe && len(df.NumericColumns()) > 0 {
			b.WriteString("\n[DESCRIBE]\n")
			b.WriteString(stats.Describe(df).Markdown(0))
		}
		md := b.String()

		out := cmd.OutOrStdout()
		if insOutputPath != "" {
			if err := utils.SafeWriteFile(insOutputPath, []byte(md)); err != nil {
				return fmt.Errorf("write output: %w", err)
			}
			fmt.Fprintf(out, "✓ Wrote inspection to %s\n", insOutputPath)
		} else {
			fmt.Fprintln(out, md)
		}
		if !insQuiet {
			fmt.Fprintf(out, "Estimated prompt tokens for this preview: ~%d\n", utils.CountTokens(md))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	addLoadFlags(inspectCmd, &insLoad)
	inspectCmd.Flags().StringVarP(&insOutputPath, "output", "o", "", "optional path to write the inspection (Markdown)")
	inspectCmd.Flags().IntVar(&insHeadRows, "head", 5, "number of rows to preview")
	inspectCmd.Flags().BoolVar(&insDescribe, "describe", false, "append summary statistics for numeric columns")
	inspectCmd.Flags().BoolVarP(&insQuiet, "quiet", "q", false, "omit the token estimate")
}
