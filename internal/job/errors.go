package job

import "fmt"

// Kind classifies a validation failure.
type Kind int

const (
	// Missing is a required value that was not given.
	Missing Kind = iota
	// Invalid is a value with the wrong form.
	Invalid
	// NotFound is a path that does not exist or lacks required content.
	NotFound
	// OutOfRange is a number outside what the demo allows.
	OutOfRange
)

func (k Kind) String() string {
	switch k {
	case Missing:
		return "missing"
	case Invalid:
		return "invalid"
	case NotFound:
		return "not found"
	case OutOfRange:
		return "out of range"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ValidationError reports a rejected input field. Field is the flag name
// without the leading dash.
type ValidationError struct {
	Field string
	Kind  Kind
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Kind == Missing {
		return fmt.Sprintf("Invalid input: -%s must be set.", e.Field)
	}
	return fmt.Sprintf("Invalid -%s value: %s", e.Field, e.Msg)
}

func invalid(field string, kind Kind, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func missing(field string) *ValidationError {
	return &ValidationError{Field: field, Kind: Missing}
}
