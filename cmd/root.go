package cmd

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/obsfinder/obsfinder/internal/querycmd"
)

func NewRootCmd(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "obsfinder",
		Short: "Fetch Gaia DR3 and 2MASS sources around a sky position",
		Long: `Obsfinder queries the ESA Gaia archive and the IRSA 2MASS service through
their asynchronous TAP interfaces, cleans the returned sources and saves them
as CSV or Parquet files.

Settings come from built-in defaults, an optional YAML file and OBSFINDER_*
environment variables (a .env file in the working directory is honoured).`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()
		},
	}

	cmd.AddCommand(querycmd.NewFetchCmd(version))
	cmd.AddCommand(querycmd.NewProfilesCmd())
	cmd.AddCommand(querycmd.NewInspectCmd())

	return cmd
}
