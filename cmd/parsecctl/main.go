package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "parsecctl",
	Short: "parsecctl drives the Parsec client library from the command line",
	Long: `parsecctl is a thin command-line front end over the parsecclient
library. Its only command is status, which loads the configuration
file and prints it. The full CLI surface (create-organization,
bootstrap-organization, share-workspace, and friends) is an external
collaborator this repository does not implement.`,
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "path to the client configuration file")
	_ = rootCmd.MarkPersistentFlagRequired("config")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "output logs in JSON format")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(statusCmd)
}
