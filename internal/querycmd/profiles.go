package querycmd

import (
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/obsfinder/obsfinder/internal/config"
	"github.com/obsfinder/obsfinder/internal/profile"
)

// NewProfilesCmd creates the profiles command
func NewProfilesCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "profiles",
		Short: "List the catalog profiles and the services they query",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"Profile", "Description", "Service", "Default", "Columns"})

			for _, name := range profile.Names() {
				p, err := profile.Lookup(name)
				if err != nil {
					return err
				}
				endpoint := p.Service
				if svc, err := cfg.Service(p.Service); err == nil {
					endpoint = svc.BaseURL
				}
				t.AppendRow(table.Row{p.Name, p.Description, endpoint, p.DefaultExt, strings.Join(p.Codes(), ",")})
			}

			t.Render()
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "YAML configuration file (default $OBSFINDER_CONFIG)")

	return cmd
}
