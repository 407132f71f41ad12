package output

import (
	"encoding/json"
	"fmt"

	"github.com/jbweber/crucible/internal/device"
)

// JSONFormatter formats output as JSON.
type JSONFormatter struct{}

// FormatDomain formats a single domain as JSON.
func (f *JSONFormatter) FormatDomain(d DomainStatus) (string, error) {
	return marshalJSON(d, "domain")
}

// FormatDomainList formats a list of domains as a JSON array.
func (f *JSONFormatter) FormatDomainList(ds []DomainStatus) (string, error) {
	if len(ds) == 0 {
		return "[]\n", nil
	}
	return marshalJSON(ds, "domains")
}

// FormatValidationErrors formats validation failures as a JSON array.
func (f *JSONFormatter) FormatValidationErrors(errs device.ValidationErrors) (string, error) {
	return marshalJSON(fieldErrors(errs), "validation errors")
}

func marshalJSON(v any, what string) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal %s to JSON: %w", what, err)
	}
	return string(data) + "\n", nil
}
