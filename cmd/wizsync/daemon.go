package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/docwiz/wizsync/internal/daemon"
	"github.com/docwiz/wizsync/internal/dashboard"
	"github.com/docwiz/wizsync/internal/dispatch"
	"github.com/docwiz/wizsync/internal/mirror"
	"github.com/docwiz/wizsync/internal/prompt"
	"github.com/docwiz/wizsync/internal/reconcile"
	"github.com/docwiz/wizsync/internal/remote"
	"github.com/docwiz/wizsync/internal/report"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Sync all wizards, then upload local changes as they are saved",
	Long: `Download every remote wizard into <root>/wizards, then watch that folder and
upload each saved WizardConfiguration.xml or EventTemplate.xml.

Configurations are validated by the API before upload; rejected files are
reported and left untouched. Stop with Ctrl+C.

With --dashboard-port set, sync events are also streamed over WebSocket:
  ws://127.0.0.1:<port>/ws`,
	RunE: runDaemon,
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Download all wizards once and exit",
	Long: `Run a single synchronization pass: create folders for new wizards, download
missing files and resolve files that differ from the remote copy according to
the conflict policy.`,
	RunE: runSync,
}

func init() {
	daemonCmd.Flags().Int("dashboard-port", 0, "Serve the live dashboard on this port (0 disables it)")
	bindFlag("dashboard.port", daemonCmd.Flags().Lookup("dashboard-port"))

	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(syncCmd)
}

// newDaemon wires the sync pipeline for one authenticated session.
func newDaemon(session *remote.Session, p *prompt.Prompter, sinks report.Reporter) (*daemon.Daemon, error) {
	m := mirror.NewOS(cfg.Root)
	syncer := reconcile.New(session, m, p.ResolverFor(cfg.Policy()), sinks)
	dispatcher := dispatch.New(session, m, sinks)
	return daemon.New(syncer, dispatcher, daemon.Config{
		Mirror:   m,
		Reporter: sinks,
		Logger:   logger.Slog(),
	})
}

func runDaemon(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p := newPrompter()
	session, err := connect(ctx, p)
	if err != nil {
		return err
	}

	sinks, closeSinks, err := openSinks()
	if err != nil {
		return err
	}
	defer closeSinks()

	var server *dashboard.Server
	if cfg.Dashboard.Port > 0 {
		server = dashboard.NewServer(dashboard.Config{
			Port:   cfg.Dashboard.Port,
			Logger: logger.Slog(),
		})
		sinks = report.Multi(sinks, dashboard.NewHandler(server))
	}

	d, err := newDaemon(session, p, sinks)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	if server != nil {
		g.Go(func() error {
			return server.Run(gctx)
		})
		fmt.Fprintf(os.Stderr, "Dashboard: http://127.0.0.1:%d/\n", cfg.Dashboard.Port)
	}
	g.Go(func() error {
		return d.Run(gctx)
	})
	fmt.Fprintf(os.Stderr, "Watching %s (Ctrl+C to stop)\n", cfg.Root)

	return g.Wait()
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p := newPrompter()
	session, err := connect(ctx, p)
	if err != nil {
		return err
	}

	sinks, closeSinks, err := openSinks()
	if err != nil {
		return err
	}
	defer closeSinks()

	d, err := newDaemon(session, p, sinks)
	if err != nil {
		return err
	}

	summary, err := d.RunOnce(ctx)
	if err != nil {
		return err
	}
	if summary.Failed > 0 {
		return fmt.Errorf("%d artifacts failed to sync", summary.Failed)
	}
	return nil
}
