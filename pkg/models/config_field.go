package models

// FieldInput decides how a UI renders a configurable value.
// It is a display hint only.
type FieldInput string

const (
	InputPlain  FieldInput = "plain"
	InputSecret FieldInput = "secret"
)

// ValueKind is the literal kind of the detected assignment.
type ValueKind string

const (
	KindString ValueKind = "string"
	KindNumber ValueKind = "number"
)

// ConfigField is a configurable constant detected in a script header.
type ConfigField struct {
	Name     string     `json:"name"`
	Value    string     `json:"value"`
	Input    FieldInput `json:"input"`
	Kind     ValueKind  `json:"kind"`
	Raw      bool       `json:"raw,omitempty"`
	Required bool       `json:"required"`
	Line     int        `json:"line"`
}

// Secret reports whether the field should be masked when displayed.
func (f ConfigField) Secret() bool {
	return f.Input == InputSecret
}
