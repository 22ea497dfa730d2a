package models

import "fmt"

// ErrorKind classifies a genome parse failure.
type ErrorKind string

const (
	// ErrorKindStructural covers unrecognized lines, malformed bracketed
	// indices and trailing text after an assignment.
	ErrorKindStructural ErrorKind = "structural"
	// ErrorKindValue covers bad value characters, unknown key symbols and
	// truncated output-tag pairs inside a packed property string.
	ErrorKindValue ErrorKind = "value"
	// ErrorKindResidual is reported when a packed string was not fully consumed.
	ErrorKindResidual ErrorKind = "residual"
)

// ParseError describes why a genome file, or a single packed string, was rejected.
type ParseError struct {
	Kind    ErrorKind `json:"kind"`
	Line    int       `json:"line,omitempty"`   // 1-based, 0 when not tied to a file line
	Content string    `json:"content"`          // offending line, or the packed string
	Offset  int       `json:"offset,omitempty"` // byte offset inside the packed string
	Reason  string    `json:"reason"`
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s (%s error): %q", e.Line, e.Reason, e.Kind, e.Content)
	}
	return fmt.Sprintf("%s (%s error) at offset %d: %q", e.Reason, e.Kind, e.Offset, e.Content)
}
