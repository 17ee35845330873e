package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"atsassist/internal/cdp"
	"atsassist/internal/detector"
)

var tabsURL string

var tabsCmd = &cobra.Command{
	Use:   "tabs",
	Short: "List browser page tabs with their detected page context",
	RunE: func(cmd *cobra.Command, _ []string) error {
		url := tabsURL
		if url == "" {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			url = cfg.DevTools.URL
		}
		if url == "" {
			return fmt.Errorf("devtools url is not configured, use --devtools or devtools.url")
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
		defer cancel()
		tabs, err := cdp.New(url, nil).ListTabs(ctx)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tPLATFORM\tPAGE\tENTITY\tURL")
		for _, t := range tabs {
			pc := detector.Detect(t.URL)
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", t.ID, dash(pc.Platform), dash(string(pc.PageType)), dash(pc.EntityID), t.URL)
		}
		return w.Flush()
	},
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func init() {
	tabsCmd.Flags().StringVar(&tabsURL, "devtools", "", "DevTools endpoint, e.g. http://127.0.0.1:9222")
	rootCmd.AddCommand(tabsCmd)
}
