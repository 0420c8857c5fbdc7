package main

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "hospital-frontend",
	Short: "Hospital management web frontend",
	Long: `hospital-frontend serves the hospital management UI backend. It keeps the
browser session, validates and refreshes gateway tokens on every request,
enforces role and ownership rules, and forwards data calls to the API gateway.

Configuration is read from the environment (APP_ENV, APP_PORT, GATEWAY_BASE_URL,
SESSION_SECRET, SESSION_STORE, ...).`,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(checkGatewayCmd)
	rootCmd.AddCommand(genKeyCmd)
}
