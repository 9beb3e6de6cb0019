package main // Entry point package

import (
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "glossary",
	Short: "Finiti glossary API",
	Long: `Runs the glossary administration API and its maintenance tasks.
Configuration is read from the environment (and .env when present).`,
	SilenceUsage: true,
}

func init() {
	serveCmd.Flags().Bool("migrate", false, "apply the schema before serving")
	rootCmd.AddCommand(serveCmd, migrateCmd, promoteCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}
