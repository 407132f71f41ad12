package device

import "strings"

// ValidationError is one configuration problem, keyed by the offending field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) String() string {
	return e.Field + ": " + e.Message
}

// ValidationErrors accumulates configuration problems. An empty list means
// the configuration is valid. It is returned as a value, never as an error.
type ValidationErrors []ValidationError

// Add appends a field/message pair.
func (v *ValidationErrors) Add(field, message string) {
	*v = append(*v, ValidationError{Field: field, Message: message})
}

// Error joins the entries as "field: message" lines.
func (v ValidationErrors) Error() string {
	lines := make([]string, len(v))
	for i, e := range v {
		lines[i] = e.String()
	}
	return strings.Join(lines, "\n")
}

// OperationalError is a host side failure: detaching a PCI function, mounting
// an id-mapped root, spawning a helper process.
type OperationalError struct {
	Op  string
	Err error
}

func (e *OperationalError) Error() string {
	if e.Err == nil {
		return e.Op
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *OperationalError) Unwrap() error { return e.Err }
