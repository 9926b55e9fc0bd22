package cmd

import (
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"

	"risk-vetting-engine/risk"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan one artifact and print its verdict as JSON",
}

func scanSubcommand(use, short string, kind risk.Kind) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <input>",
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := buildApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.cache.LoadIfNeeded(ctx); err != nil {
				a.logger.Warnw("[Scan] safe-list not loaded", "error", err)
			}

			v, err := a.engine.Scan(ctx, kind, strings.Join(args, " "))
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			enc.SetEscapeHTML(false)
			return enc.Encode(v)
		},
	}
}

func init() {
	scanCmd.AddCommand(
		scanSubcommand("url", "Scan a link, following its redirects", risk.KindURL),
		scanSubcommand("qr", "Scan a decoded QR payload", risk.KindQRPayload),
		scanSubcommand("text", "Scan an SMS or free text message", risk.KindSMSText),
		scanSubcommand("phone", "Scan a phone number", risk.KindPhone),
		scanSubcommand("bank", "Scan a bank account number", risk.KindBankAccount),
	)
	rootCmd.AddCommand(scanCmd)
}
