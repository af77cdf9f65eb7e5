package main

import (
	"fmt"

	"github.com/parsec-cloud/libparsec-go/internal/config"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the resolved client configuration",
	Long: `status loads the client configuration file and prints the
resolved settings. It does not open a local device (that requires a
device key file, a concern this repository treats as an external
collaborator — see spec's "Persisted state").`,
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return err
	}

	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	fmt.Printf("server:       %s\n", cfg.ServerURL)
	fmt.Printf("organization: %s\n", cfg.OrganizationID)
	fmt.Printf("storage dir:  %s\n", cfg.StorageDir)
	fmt.Printf("log level:    %s\n", cfg.Log.Level)
	return nil
}
