package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/pcg-live/monitor/internal/locale"
)

var labelsCmd = &cobra.Command{
	Use:   "labels [locale]",
	Short: "Print the localized labels for a locale",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		catalog, err := locale.Load(cfg.Locale.File)
		if err != nil {
			return err
		}
		loc := cfg.Locale.Default
		if len(args) == 1 {
			loc = args[0]
		}

		labels := catalog.Labels(loc)
		keys := make([]string, 0, len(labels))
		for k := range labels {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		out := cmd.OutOrStdout()
		for _, k := range keys {
			fmt.Fprintf(out, "%-36s %s\n", k, labels[k])
		}
		return nil
	},
}
