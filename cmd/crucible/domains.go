package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jbweber/crucible/internal/device"
	"github.com/jbweber/crucible/internal/domain"
	"github.com/jbweber/crucible/internal/lifecycle"
	"github.com/jbweber/crucible/internal/loader"
	"github.com/jbweber/crucible/internal/output"
)

var shutdownTimeout time.Duration

var errInvalid = errors.New("definition is not valid")

func init() {
	validateCmd.Flags().StringVarP(&outputFormat, "output", "o", "table", "output format (table, yaml, json)")
	validateCmd.Flags().BoolVar(&noHeaders, "no-headers", false, "omit table headers")

	shutdownCmd.Flags().DurationVar(&shutdownTimeout, "shutdown-timeout", 0,
		"how long to wait for the guest to power off (default from the definition)")
}

var validateCmd = &cobra.Command{
	Use:   "validate <definition.yaml>",
	Short: "Validate a domain definition",
	Long: `Validate a VirtualMachine or Container definition without touching libvirt.

Every field is checked, including each device's own configuration, and all
failures are reported together.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := output.ValidateFormat(outputFormat); err != nil {
			return err
		}
		formatter, err := output.NewFormatter(output.Options{
			Format:    output.Format(outputFormat),
			NoHeaders: noHeaders,
		})
		if err != nil {
			return err
		}

		_, err = app.LoadDomain(args[0])
		var errs device.ValidationErrors
		if err != nil && !errors.As(err, &errs) {
			return err
		}

		result, ferr := formatter.FormatValidationErrors(errs)
		if ferr != nil {
			return fmt.Errorf("failed to format output: %w", ferr)
		}
		fmt.Print(result)

		if len(errs) > 0 {
			return fmt.Errorf("%s: %w", args[0], errInvalid)
		}
		return nil
	},
}

var renderCmd = &cobra.Command{
	Use:   "render <definition.yaml>",
	Short: "Print the libvirt domain XML for a definition",
	Long: `Render the libvirt domain XML a definition would be started with.

Nothing is prepared on the host, so a container is rendered with its
configured root rather than its id-mapped mount.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := app.LoadDomain(args[0])
		if err != nil {
			return err
		}

		var rc domain.RuntimeContext
		if c, ok := d.(*domain.Container); ok {
			rc.Root = c.ContainerConfig().Root
		}

		desc, err := d.Description(rc)
		if err != nil {
			return fmt.Errorf("failed to describe domain: %w", err)
		}
		xml, err := domain.Marshal(desc)
		if err != nil {
			return fmt.Errorf("failed to marshal domain XML: %w", err)
		}

		fmt.Println(xml)
		return nil
	},
}

// lifecycleCommand builds a subcommand that loads a definition and runs one
// lifecycle operation on it.
func lifecycleCommand(use, short, long, done string, op func(ctx context.Context, m *lifecycle.Manager, d domain.Domain) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <definition.yaml>",
		Short: short,
		Long:  long,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := app.LoadDomain(args[0])
			if err != nil {
				return err
			}

			m := app.Manager(URIFor(d), nil)
			if err := op(cmd.Context(), m, d); err != nil {
				return err
			}

			fmt.Printf("✓ %s %s\n", d.Config().Name, done)
			return nil
		},
	}
}

var startCmd = lifecycleCommand("start", "Start a domain",
	`Define and start the domain described by a definition file.

Devices are checked for availability and for conflicts with running
domains first. Device side effects run in order and are rolled back if a
later step fails.

Side effects that live in this process, such as the websockify proxy of a
web display, end when crucible exits. Use crucible serve to keep them.`,
	"started",
	func(ctx context.Context, m *lifecycle.Manager, d domain.Domain) error {
		return m.Start(ctx, d)
	})

var shutdownCmd = lifecycleCommand("shutdown", "Ask a domain to power off",
	`Send ACPI shutdown requests to the domain once a second until it stops or
the timeout expires.`,
	"shut down",
	func(ctx context.Context, m *lifecycle.Manager, d domain.Domain) error {
		return m.Shutdown(ctx, d, shutdownTimeout)
	})

var destroyCmd = lifecycleCommand("destroy", "Force a domain off",
	`Immediately stop the domain, like pulling its power cord.`,
	"destroyed",
	func(ctx context.Context, m *lifecycle.Manager, d domain.Domain) error {
		return m.Destroy(ctx, d)
	})

var suspendCmd = lifecycleCommand("suspend", "Pause a running domain",
	`Pause the domain's virtual CPUs. Memory stays allocated.`,
	"suspended",
	func(ctx context.Context, m *lifecycle.Manager, d domain.Domain) error {
		return m.Suspend(ctx, d)
	})

var resumeCmd = lifecycleCommand("resume", "Resume a suspended domain",
	`Resume a domain paused with crucible suspend.`,
	"resumed",
	func(ctx context.Context, m *lifecycle.Manager, d domain.Domain) error {
		return m.Resume(ctx, d)
	})

var deleteCmd = lifecycleCommand("delete", "Remove a domain from libvirt",
	`Undefine the domain. A running or paused domain is destroyed first.

For virtual machines the NVRAM file is removed as well. Disk images and
container roots are left alone.`,
	"deleted",
	func(ctx context.Context, m *lifecycle.Manager, d domain.Domain) error {
		return m.Delete(ctx, d)
	})

// exitCode maps lifecycle errors to process exit codes for scripts.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case lifecycle.IsNotFound(err):
		return 3
	case errors.Is(err, errInvalid), loader.IsValidationError(err):
		return 2
	}
	return 1
}

func exit(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(exitCode(err))
}
