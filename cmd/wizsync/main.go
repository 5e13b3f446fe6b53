// Command wizsync keeps a local folder of wizard configuration files in sync
// with the wizard API.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/docwiz/wizsync/internal/config"
	"github.com/docwiz/wizsync/internal/report"
)

var (
	// v carries defaults, file, environment and bound flags.
	v = config.NewViper()

	cfgFile string
	noColor bool

	cfg       *config.Config
	logger    *report.Logger
	logCloser io.Closer
)

var rootCmd = &cobra.Command{
	Use:   "wizsync",
	Short: "Synchronize wizard configuration files with the wizard API",
	Long: `wizsync mirrors every remote wizard into a local folder:

  <root>/wizards/<ID> - <Name>/WizardConfiguration.xml
  <root>/wizards/<ID> - <Name>/EventTemplate.xml

Run "wizsync daemon" to download all wizards and then upload local edits as
they are saved. Configuration is read from .wizsync.toml, WIZSYNC_* environment
variables and flags.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(v, cfgFile)
		if err != nil {
			return err
		}
		cfg = loaded

		logger, logCloser = report.Setup(report.Options{
			Console:    os.Stderr,
			NoColor:    noColor,
			Verbose:    cfg.Log.Verbose,
			File:       cfg.Log.File,
			MaxSizeMB:  cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
		})
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logCloser != nil {
			_ = logCloser.Close()
		}
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "Config file (default: ./"+config.FileName+" or ~/"+config.FileName+")")
	flags.BoolVar(&noColor, "no-color", false, "Disable colored output")
	flags.String("root", "", "Directory holding the wizards folder")
	flags.String("endpoint", "", "Endpoint name from the endpoint table")
	flags.String("url", "", "API host URL, overrides the endpoint entry")
	flags.String("base", "", "API base path, overrides the endpoint entry")
	flags.String("user", "", "User name (the password is read from WIZSYNC_PASSWORD or prompted)")
	flags.Duration("timeout", 0, "Timeout for each remote call")
	flags.String("policy", "", "Conflict policy: prompt, keep-local or overwrite")
	flags.String("log-file", "", "Also write JSON logs to this file")
	flags.BoolP("verbose", "v", false, "Show debug output, including every HTTP call")

	bindFlag("root", flags.Lookup("root"))
	bindFlag("endpoint", flags.Lookup("endpoint"))
	bindFlag("url", flags.Lookup("url"))
	bindFlag("base", flags.Lookup("base"))
	bindFlag("user", flags.Lookup("user"))
	bindFlag("request_timeout", flags.Lookup("timeout"))
	bindFlag("conflict_policy", flags.Lookup("policy"))
	bindFlag("log.file", flags.Lookup("log-file"))
	bindFlag("log.verbose", flags.Lookup("verbose"))
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
