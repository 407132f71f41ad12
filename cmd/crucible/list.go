package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jbweber/crucible/api/v1alpha1"
	crlibvirt "github.com/jbweber/crucible/internal/libvirt"
	"github.com/jbweber/crucible/internal/output"
)

func init() {
	listCmd.Flags().StringVarP(&outputFormat, "output", "o", "table", "output format (table, yaml, json)")
	listCmd.Flags().BoolVar(&noHeaders, "no-headers", false, "omit table headers")
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List domains",
	Long: `List the virtual machines and containers libvirt knows about.

Shows each domain's name, kind, UUID, state and resources. A driver that
cannot be reached is reported and skipped.

Output formats:
  -o table  Human-readable table (default)
  -o yaml   YAML stream, one document per domain
  -o json   JSON array`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := output.ValidateFormat(outputFormat); err != nil {
			return err
		}

		var all []output.DomainStatus
		var failed int
		for _, uri := range []string{crlibvirt.URIVMs, crlibvirt.URIContainers} {
			statuses, err := listDomains(cmd.Context(), uri)
			if err != nil {
				app.Log.Error(err, "Failed to list domains", "uri", uri)
				failed++
				continue
			}
			all = append(all, statuses...)
		}
		if failed == 2 {
			return fmt.Errorf("failed to reach libvirt")
		}

		formatter, err := output.NewFormatter(output.Options{
			Format:    output.Format(outputFormat),
			NoHeaders: noHeaders,
		})
		if err != nil {
			return err
		}
		result, err := formatter.FormatDomainList(all)
		if err != nil {
			return fmt.Errorf("failed to format output: %w", err)
		}

		fmt.Print(result)
		return nil
	},
}

func listDomains(ctx context.Context, uri string) ([]output.DomainStatus, error) {
	infos, err := app.Manager(uri, nil).ListDomains(ctx)
	if err != nil {
		return nil, err
	}

	kind := v1alpha1.VirtualMachineKind
	if uri == crlibvirt.URIContainers {
		kind = v1alpha1.ContainerKind
	}

	statuses := make([]output.DomainStatus, 0, len(infos))
	for _, info := range infos {
		status := output.DomainStatus{
			Name:   info.Name,
			Kind:   info.Kind,
			UUID:   info.UUID,
			State:  string(info.State),
			VCPUs:  info.VCPUs,
			Memory: info.Memory,
		}
		if status.Kind == "" {
			status.Kind = kind
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}
