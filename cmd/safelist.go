package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"risk-vetting-engine/normalize"
)

var safelistCmd = &cobra.Command{
	Use:   "safelist",
	Short: "Inspect the trusted-host list",
}

var safelistLookupCmd = &cobra.Command{
	Use:   "lookup <host>",
	Short: "Print the trusted label for a host",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := buildApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		n, err := a.cache.Reload(ctx)
		if err != nil {
			return err
		}

		host := normalize.Host(args[0])
		if host == "" {
			host = normalize.StripWWW(args[0])
		}
		label, ok := a.cache.Lookup(host)
		out := cmd.OutOrStdout()
		if !ok {
			fmt.Fprintf(out, "%s: not trusted (%d entries checked)\n", host, n)
			return nil
		}
		fmt.Fprintf(out, "%s: %s\n", host, label)
		return nil
	},
}

func init() {
	safelistCmd.AddCommand(safelistLookupCmd)
	rootCmd.AddCommand(safelistCmd)
}
