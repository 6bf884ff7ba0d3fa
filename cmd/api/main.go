package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/jwalitptl/medvault-api/internal/config"
)

var configFile string

func main() {
	// a missing .env file is fine
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:          "medvault",
		Short:        "MedVault patient health record service",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default: config.yaml, or $CONFIG_FILE)")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(nextIDCmd())
	rootCmd.AddCommand(drugsCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	if configFile != "" {
		return config.Load(configFile)
	}
	return config.LoadConfig()
}
