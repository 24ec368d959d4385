package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/routelens/routelens/internal/core"
	"github.com/routelens/routelens/internal/core/query"
	"github.com/routelens/routelens/internal/output"
)

var classifyOutput string

var classifyCmd = &cobra.Command{
	Use:   "classify <query>...",
	Short: "Show how queries would be interpreted, without network calls",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := output.ParseFormat(classifyOutput)
		if err != nil {
			return err
		}

		classified := make([]core.ClassifiedQuery, 0, len(args))
		for _, raw := range args {
			classified = append(classified, query.Classify(raw))
		}

		rendered, err := output.FormatClassified(format, args, classified)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), rendered)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(classifyCmd)
	classifyCmd.Flags().StringVarP(&classifyOutput, "output", "o", "table", "output format: table, json, markdown, yaml")
}
