// Package output provides formatters for displaying crucible domains and
// validation results in various formats (table, YAML, JSON).
package output

import (
	"fmt"
	"time"

	"github.com/jbweber/crucible/internal/device"
)

// Format represents an output format type.
type Format string

const (
	// FormatTable is a human-readable table format.
	FormatTable Format = "table"
	// FormatYAML is a YAML format.
	FormatYAML Format = "yaml"
	// FormatJSON is a JSON format for machine consumption.
	FormatJSON Format = "json"
)

// DomainStatus is what crucible reports about one domain.
type DomainStatus struct {
	Name  string `json:"name" yaml:"name"`
	Kind  string `json:"kind" yaml:"kind"`
	UUID  string `json:"uuid" yaml:"uuid"`
	State string `json:"state" yaml:"state"`
	VCPUs uint   `json:"vcpus" yaml:"vcpus"`
	// Memory is in MiB.
	Memory uint `json:"memory" yaml:"memory"`
	// StartedAt is nil when crucible did not start the domain itself.
	StartedAt *time.Time `json:"startedAt,omitempty" yaml:"startedAt,omitempty"`
}

// FieldError is one validation failure.
type FieldError struct {
	Field   string `json:"field" yaml:"field"`
	Message string `json:"message" yaml:"message"`
}

func fieldErrors(errs device.ValidationErrors) []FieldError {
	out := make([]FieldError, 0, len(errs))
	for _, e := range errs {
		out = append(out, FieldError{Field: e.Field, Message: e.Message})
	}
	return out
}

// Formatter formats crucible output.
type Formatter interface {
	// FormatDomain formats a single domain.
	FormatDomain(d DomainStatus) (string, error)

	// FormatDomainList formats a list of domains.
	FormatDomainList(ds []DomainStatus) (string, error)

	// FormatValidationErrors formats the result of validating a definition.
	FormatValidationErrors(errs device.ValidationErrors) (string, error)
}

// Options contains options for formatting output.
type Options struct {
	// Format specifies the output format.
	Format Format
	// NoHeaders omits headers in table format.
	NoHeaders bool
}

// NewFormatter creates a new Formatter based on the specified format.
func NewFormatter(opts Options) (Formatter, error) {
	switch opts.Format {
	case FormatTable:
		return &TableFormatter{NoHeaders: opts.NoHeaders, now: time.Now}, nil
	case FormatYAML:
		return &YAMLFormatter{}, nil
	case FormatJSON:
		return &JSONFormatter{}, nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s (supported: table, yaml, json)", opts.Format)
	}
}

// ValidateFormat checks if a format string is valid.
func ValidateFormat(format string) error {
	f := Format(format)
	switch f {
	case FormatTable, FormatYAML, FormatJSON:
		return nil
	default:
		return fmt.Errorf("invalid format: %s (valid formats: table, yaml, json)", format)
	}
}
