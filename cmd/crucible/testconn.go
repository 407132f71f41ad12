package main

import (
	"fmt"

	"github.com/spf13/cobra"

	crlibvirt "github.com/jbweber/crucible/internal/libvirt"
)

var testConnCmd = &cobra.Command{
	Use:   "test-conn",
	Short: "Test libvirt connection",
	Long: `Test connectivity to the libvirt daemon and display version information
for the QEMU and LXC drivers.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("Testing libvirt connection on %s...\n", app.Settings.Socket)

		for _, uri := range []string{crlibvirt.URIVMs, crlibvirt.URIContainers} {
			l, err := app.Connection(uri).Libvirt(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to connect to %s: %w", uri, err)
			}
			fmt.Printf("✓ Connected to %s\n", uri)

			// libvirt encodes 8.6.0 as 8006000
			version, err := l.ConnectGetLibVersion()
			if err != nil {
				return fmt.Errorf("failed to get libvirt version: %w", err)
			}
			fmt.Printf("  Libvirt version: %d.%d.%d\n", version/1000000, (version%1000000)/1000, version%1000)

			hostname, err := l.ConnectGetHostname()
			if err != nil {
				return fmt.Errorf("failed to get hostname: %w", err)
			}
			fmt.Printf("  Hypervisor hostname: %s\n", hostname)
		}

		fmt.Println("\nConnection test successful!")
		return nil
	},
}
