package output

import (
	"bytes"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/jbweber/crucible/internal/device"
)

// TableFormatter formats output as human-readable tables.
type TableFormatter struct {
	// NoHeaders omits the header row.
	NoHeaders bool

	now func() time.Time
}

func (f *TableFormatter) since(t time.Time) time.Duration {
	if f.now == nil {
		return time.Since(t)
	}
	return f.now().Sub(t)
}

// FormatDomain formats a single domain as a table row.
func (f *TableFormatter) FormatDomain(d DomainStatus) (string, error) {
	return f.FormatDomainList([]DomainStatus{d})
}

// FormatDomainList formats a list of domains as a table.
func (f *TableFormatter) FormatDomainList(ds []DomainStatus) (string, error) {
	if len(ds) == 0 {
		return "No domains found\n", nil
	}

	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	if !f.NoHeaders {
		_, _ = fmt.Fprintln(w, "NAME\tKIND\tUUID\tSTATE\tVCPUS\tMEMORY\tAGE")
	}

	for _, d := range ds {
		state := d.State
		if state == "" {
			state = "-"
		}
		vcpus := "-"
		if d.VCPUs > 0 {
			vcpus = fmt.Sprintf("%d", d.VCPUs)
		}
		memory := "-"
		if d.Memory > 0 {
			memory = fmt.Sprintf("%d MiB", d.Memory)
		}
		age := "-"
		if d.StartedAt != nil {
			age = formatAge(f.since(*d.StartedAt))
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			d.Name, d.Kind, d.UUID, state, vcpus, memory, age)
	}

	_ = w.Flush()
	return buf.String(), nil
}

// FormatValidationErrors formats validation failures as a table.
func (f *TableFormatter) FormatValidationErrors(errs device.ValidationErrors) (string, error) {
	if len(errs) == 0 {
		return "Valid\n", nil
	}

	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	if !f.NoHeaders {
		_, _ = fmt.Fprintln(w, "FIELD\tMESSAGE")
	}
	for _, e := range errs {
		field := e.Field
		if field == "" {
			field = "-"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\n", field, e.Message)
	}

	_ = w.Flush()
	return buf.String(), nil
}

// formatAge formats a duration as a human-readable age string.
// Examples: "5s", "2m", "3h", "4d", "2w", "1y"
func formatAge(d time.Duration) string {
	// clock skew
	if d < 0 {
		return "unknown"
	}

	seconds := int(d.Seconds())

	// Less than 1 minute
	if seconds < 60 {
		return fmt.Sprintf("%ds", seconds)
	}

	minutes := seconds / 60
	// Less than 1 hour
	if minutes < 60 {
		return fmt.Sprintf("%dm", minutes)
	}

	hours := minutes / 60
	// Less than 1 day
	if hours < 24 {
		return fmt.Sprintf("%dh", hours)
	}

	days := hours / 24
	// Less than 1 week
	if days < 7 {
		return fmt.Sprintf("%dd", days)
	}

	weeks := days / 7
	// Less than ~2 months (8 weeks)
	if weeks < 8 {
		return fmt.Sprintf("%dw", weeks)
	}

	// More than 2 months, show in approximate years/days
	years := days / 365
	if years > 0 {
		return fmt.Sprintf("%dy", years)
	}

	return fmt.Sprintf("%dd", days)
}
