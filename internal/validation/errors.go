package validation

import (
	"sort"
	"strings"
)

// FieldErrors maps a form field name to the message shown next to it.
type FieldErrors map[string]string

// Add records err under field; nil errors are ignored and the first message wins.
func (fe FieldErrors) Add(field string, err error) {
	if err == nil {
		return
	}
	if _, exists := fe[field]; exists {
		return
	}
	fe[field] = err.Error()
}

// Set records a message under field, replacing any earlier one.
func (fe FieldErrors) Set(field, message string) {
	fe[field] = message
}

func (fe FieldErrors) Empty() bool {
	return len(fe) == 0
}

// Err returns fe as an error, or nil when there are no field errors.
func (fe FieldErrors) Err() error {
	if fe.Empty() {
		return nil
	}
	return fe
}

func (fe FieldErrors) Error() string {
	fields := make([]string, 0, len(fe))
	for field := range fe {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, field+": "+fe[field])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}
