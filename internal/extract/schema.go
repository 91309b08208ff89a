// Package extract recovers structured fields from free-form model output.
//
// Model replies are supposed to be JSON but frequently are not: they arrive
// wrapped in code fences, with unescaped quotes, with values split across
// lines, or as loose "key: value" text. Extraction runs an ordered chain of
// parsers and never fails; a field that cannot be recovered is "".
package extract

import (
	"bytes"
	"encoding/json"

	"github.com/rotisserie/eris"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Strategy selects how a field is recovered when the reply is not a valid
// JSON document.
type Strategy int

const (
	// StrategyKeyValue reads the field from a "key: value" line.
	StrategyKeyValue Strategy = iota
	// StrategyJSONKey decodes the JSON value that follows "key": in the raw
	// text, then falls back to the line scan.
	StrategyJSONKey
	// StrategyMarker takes the span between the $# and #$ markers, then falls
	// back to the line scan, then to the whole raw text.
	StrategyMarker
)

func (s Strategy) String() string {
	switch s {
	case StrategyKeyValue:
		return "keyvalue"
	case StrategyJSONKey:
		return "jsonkey"
	case StrategyMarker:
		return "marker"
	default:
		return "unknown"
	}
}

// Field describes one expected output value.
type Field struct {
	Name     string
	Required bool
	Strategy Strategy

	// Multiline keeps appending continuation lines to the value during the
	// line scan until the next known key.
	Multiline bool
	// UnescapeNewlines turns literal `\n` sequences into newlines.
	UnescapeNewlines bool
	// StripQuotes drops double quotes that were escaped inside the value.
	StripQuotes bool
}

// Schema is an ordered set of uniquely named fields.
type Schema struct {
	name      string
	fields    []Field
	index     map[string]int
	validator *jsonschema.Schema
}

// NewSchema builds a schema and compiles the JSON Schema used by the strict
// decode layer. Field names must be unique and at most one field may use the
// marker strategy, since markers are searched across the whole reply.
func NewSchema(name string, fields ...Field) (*Schema, error) {
	if name == "" {
		return nil, eris.New("extract: schema name is required")
	}
	if len(fields) == 0 {
		return nil, eris.Errorf("extract: schema %s has no fields", name)
	}

	s := &Schema{
		name:   name,
		fields: make([]Field, 0, len(fields)),
		index:  make(map[string]int, len(fields)),
	}

	markers := 0
	for _, f := range fields {
		if f.Name == "" {
			return nil, eris.Errorf("extract: schema %s has a field without a name", name)
		}
		if _, dup := s.index[f.Name]; dup {
			return nil, eris.Errorf("extract: schema %s: duplicate field %q", name, f.Name)
		}
		if f.Strategy == StrategyMarker {
			markers++
		}
		s.index[f.Name] = len(s.fields)
		s.fields = append(s.fields, f)
	}
	if markers > 1 {
		return nil, eris.Errorf("extract: schema %s: only one marker field is allowed, got %d", name, markers)
	}

	v, err := compileValidator(name, s.fields)
	if err != nil {
		return nil, err
	}
	s.validator = v

	return s, nil
}

// MustSchema is like NewSchema but panics on error. Intended for package-level
// schema definitions.
func MustSchema(name string, fields ...Field) *Schema {
	s, err := NewSchema(name, fields...)
	if err != nil {
		panic(err)
	}
	return s
}

// Name returns the schema name.
func (s *Schema) Name() string { return s.name }

// Fields returns a copy of the fields in declaration order.
func (s *Schema) Fields() []Field {
	out := make([]Field, len(s.fields))
	copy(out, s.fields)
	return out
}

// Field looks up a field by name.
func (s *Schema) Field(name string) (Field, bool) {
	i, ok := s.index[name]
	if !ok {
		return Field{}, false
	}
	return s.fields[i], true
}

// Names returns the field names in declaration order.
func (s *Schema) Names() []string {
	names := make([]string, len(s.fields))
	for i, f := range s.fields {
		names[i] = f.Name
	}
	return names
}

// Required returns the names of required fields in declaration order.
func (s *Schema) Required() []string {
	var names []string
	for _, f := range s.fields {
		if f.Required {
			names = append(names, f.Name)
		}
	}
	return names
}

func (s *Schema) has(name string) bool {
	_, ok := s.index[name]
	return ok
}

// JSONSchema returns the JSON Schema document the strict decode layer
// validates against.
func (s *Schema) JSONSchema() map[string]any {
	return buildJSONSchema(s.fields)
}

func buildJSONSchema(fields []Field) map[string]any {
	props := make(map[string]any, len(fields))
	required := []string{}
	for _, f := range fields {
		props[f.Name] = map[string]any{}
		if f.Required {
			required = append(required, f.Name)
		}
	}
	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

func compileValidator(name string, fields []Field) (*jsonschema.Schema, error) {
	b, err := json.Marshal(buildJSONSchema(fields))
	if err != nil {
		return nil, eris.Wrapf(err, "extract: marshal schema %s", name)
	}

	url := name + ".json"
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(url, bytes.NewReader(b)); err != nil {
		return nil, eris.Wrapf(err, "extract: add schema %s", name)
	}
	v, err := compiler.Compile(url)
	if err != nil {
		return nil, eris.Wrapf(err, "extract: compile schema %s", name)
	}
	return v, nil
}
