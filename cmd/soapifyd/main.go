package main

import (
	"fmt"
	"os"

	"github.com/soapify-health/soapify/internal/cli"
	"github.com/soapify-health/soapify/internal/cli/admin"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "soapifyd",
		Short: "Soapify daemon and CLI",
		Long:  "Soapify daemon for running the SOAP note API server and managing doctor accounts",
	}

	cli.AddHelpJSONFlag(rootCmd)
	rootCmd.AddCommand(admin.ServeCmd())
	rootCmd.AddCommand(admin.DoctorCmd())

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
