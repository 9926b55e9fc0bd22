package cmd

import (
	"github.com/spf13/cobra"
)

var (
	debugMode bool
	seedFile  string
	envFile   string
)

var rootCmd = &cobra.Command{
	Use:          "riskvet",
	Short:        "riskvet - risk verdicts for links, QR codes, messages, phone numbers and bank accounts",
	SilenceUsage: true,
}

func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&seedFile, "seed", "", "YAML seed with trusted links, blacklist entries and reports")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Load environment from this file instead of .env")
}
