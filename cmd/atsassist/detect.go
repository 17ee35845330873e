package main

import (
	"github.com/spf13/cobra"

	"atsassist/internal/detector"
)

var detectCmd = &cobra.Command{
	Use:   "detect <url>...",
	Short: "Classify URLs into ATS platform and page type",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, u := range args {
			if err := printJSON(cmd.OutOrStdout(), detector.Detect(u)); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(detectCmd)
}
