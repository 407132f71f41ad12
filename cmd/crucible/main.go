package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jbweber/crucible/internal/config"
)

var (
	version = "dev"
	commit  = "unknown"
)

var (
	configPath   string
	outputFormat string
	noHeaders    bool
)

// app is built once flags are parsed and shared by every subcommand.
var app *App

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if app != nil {
		app.Close()
	}
	if err != nil {
		exit(err)
	}
}

var rootCmd = &cobra.Command{
	Use:   "crucible",
	Short: "Crucible - libvirt VM and container lifecycle manager",
	Long: `Crucible manages KVM virtual machines and LXC containers on a single
libvirt host from declarative YAML definitions.

It renders libvirt domain XML, runs device side effects such as PCI detach
with rollback, refuses starts that would attach an exclusive host device
twice, and drives start, shutdown, destroy, suspend, resume and delete.`,
	Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		v := config.New()
		if err := config.BindFlags(v, cmd.Flags()); err != nil {
			return fmt.Errorf("failed to bind flags: %w", err)
		}
		settings, err := config.Load(v, configPath)
		if err != nil {
			return err
		}
		app, err = NewApp(settings)
		return err
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "config file (default "+config.DefaultPath+")")
	flags.String(config.KeySocket, "", "libvirtd socket path")
	flags.Duration(config.KeyTimeout, 0, "libvirtd dial timeout")
	flags.String(config.KeyLogLevel, "", "log level (debug, info, warn, error)")
	flags.String(config.KeyOVMFDir, "", "directory holding OVMF firmware images")
	flags.String(config.KeyCPUMapDir, "", "directory holding libvirt's CPU map")
	flags.String(config.KeyIDMappedRootDir, "", "base directory for id-mapped container roots")
	flags.String(config.KeyServiceUnit, "", "systemd unit to start before connecting")

	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(renderCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(shutdownCmd)
	rootCmd.AddCommand(destroyCmd)
	rootCmd.AddCommand(suspendCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(testConnCmd)
}
