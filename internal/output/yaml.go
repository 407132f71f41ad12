package output

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/jbweber/crucible/internal/device"
)

// YAMLFormatter formats output as YAML.
type YAMLFormatter struct{}

// FormatDomain formats a single domain as YAML.
func (f *YAMLFormatter) FormatDomain(d DomainStatus) (string, error) {
	data, err := yaml.Marshal(d)
	if err != nil {
		return "", fmt.Errorf("failed to marshal domain to YAML: %w", err)
	}
	return string(data), nil
}

// FormatDomainList formats a list of domains as a YAML stream, one document
// per domain.
func (f *YAMLFormatter) FormatDomainList(ds []DomainStatus) (string, error) {
	var buf bytes.Buffer
	for i, d := range ds {
		data, err := yaml.Marshal(d)
		if err != nil {
			return "", fmt.Errorf("failed to marshal domain %s to YAML: %w", d.Name, err)
		}
		if i > 0 {
			buf.WriteString("---\n")
		}
		buf.Write(data)
	}
	return buf.String(), nil
}

// FormatValidationErrors formats validation failures as a YAML list.
func (f *YAMLFormatter) FormatValidationErrors(errs device.ValidationErrors) (string, error) {
	data, err := yaml.Marshal(fieldErrors(errs))
	if err != nil {
		return "", fmt.Errorf("failed to marshal validation errors to YAML: %w", err)
	}
	return string(data), nil
}
