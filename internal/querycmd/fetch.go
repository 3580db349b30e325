// Package querycmd implements the obsfinder subcommands.
package querycmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/obsfinder/obsfinder/internal/catalog"
	"github.com/obsfinder/obsfinder/internal/config"
	"github.com/obsfinder/obsfinder/internal/finder"
	"github.com/obsfinder/obsfinder/internal/logging"
	"github.com/obsfinder/obsfinder/internal/manifest"
	"github.com/obsfinder/obsfinder/internal/profile"
	"github.com/obsfinder/obsfinder/internal/region"
)

type fetchOptions struct {
	long, lat, sizeArcmin float64
	dir, name             string
	proxy                 string
	configPath            string
	zeroPoint             bool
	verbose               bool
	writeManifest         bool
	pollInterval          time.Duration
	timeout               time.Duration
}

// NewFetchCmd creates the fetch command
func NewFetchCmd(version string) *cobra.Command {
	var opts fetchOptions

	cmd := &cobra.Command{
		Use:   "fetch <" + strings.Join(profile.Names(), "|") + ">",
		Short: "Query a catalog around a sky position and save the cleaned sources",
		Long: `Fetch runs the selected catalog profile over a square window centred on
galactic coordinates (l, b), cleans the returned sources and writes them to a
CSV or Parquet file.

Windows crossing l=0/360 are queried in two parts and merged.`,
		Example: `  # 2MASS sources in a 5 arcmin window
  obsfinder fetch 2mass -l 10.5 -b -0.3

  # Gaia x 2MASS across the longitude seam, through a proxy
  obsfinder fetch gaia2mass -l 0 -b 0 -p 12 --proxy 11.0.0.254:3142 -v

  # Raw Gaia parallaxes, custom file name
  obsfinder fetch gaia -l 120 -b 5 -n field.csv`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: profile.Names(),
		RunE: func(cmd *cobra.Command, args []string) error {
			logging.Setup(cmd.ErrOrStderr(), opts.verbose)
			return runFetch(cmd, args[0], version, opts)
		},
	}

	cmd.Flags().Float64VarP(&opts.long, "long", "l", 0, "Window centre galactic longitude in degrees [0, 360)")
	cmd.Flags().Float64VarP(&opts.lat, "lat", "b", 0, "Window centre galactic latitude in degrees [-90, 90]")
	cmd.Flags().Float64VarP(&opts.sizeArcmin, "size", "p", 5, "Window width in arcminutes")
	cmd.Flags().StringVarP(&opts.dir, "dir", "d", "", "Output directory (default: working directory)")
	cmd.Flags().StringVarP(&opts.name, "name", "n", "", "Output file name; .parquet selects the Parquet container")
	cmd.Flags().StringVar(&opts.proxy, "proxy", "", "Forward proxy as host:port")
	cmd.Flags().BoolVar(&opts.zeroPoint, "pi", true, "Subtract the global parallax zero-point offset (cross-match profile only)")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log progress at debug level")
	cmd.Flags().BoolVar(&opts.writeManifest, "manifest", false, "Write a YAML run manifest next to the output")
	cmd.Flags().DurationVar(&opts.pollInterval, "poll-interval", catalog.DefaultPollInterval, "Job status polling interval")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", catalog.DefaultTimeout, "Maximum time to wait for each query job")
	cmd.Flags().StringVar(&opts.configPath, "config", "", "YAML configuration file (default $OBSFINDER_CONFIG)")

	_ = cmd.MarkFlagRequired("long")
	_ = cmd.MarkFlagRequired("lat")

	return cmd
}

func runFetch(cmd *cobra.Command, profileName, version string, opts fetchOptions) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("proxy") {
		cfg.HTTP.Proxy = opts.proxy
	}
	if flags.Changed("poll-interval") {
		cfg.Query.PollInterval = opts.pollInterval
	}
	if flags.Changed("timeout") {
		cfg.Query.Timeout = opts.timeout
	}
	zeroPoint := cfg.ZeroPoint.Enabled
	if flags.Changed("pi") {
		zeroPoint = opts.zeroPoint
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	transport, err := catalog.NewHTTPTransport(cfg.HTTP.Proxy, cfg.HTTP.Timeout)
	if err != nil {
		return err
	}

	obs, err := finder.New(cfg, transport).GetObservations(cmd.Context(), finder.Request{
		Profile:    profileName,
		Region:     region.FromArcmin(opts.long, opts.lat, opts.sizeArcmin),
		OutputDir:  opts.dir,
		OutputName: opts.name,
		ZeroPoint:  zeroPoint,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%d %s sources saved in %s\n", obs.Kept, obs.Profile, obs.Path)

	if opts.writeManifest {
		p, err := profile.Lookup(obs.Profile)
		if err != nil {
			return err
		}
		path := manifest.Path(obs.Path)
		if err := manifest.Write(path, manifest.New(obs, version, p.Service, p.Codes())); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Run manifest saved in %s\n", path)
	}

	return nil
}
