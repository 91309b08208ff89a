package extract

import (
	"bytes"
	"encoding/json"
)

// Layer names the parser that produced a field value.
type Layer string

const (
	// LayerJSON is a strict decode of the whole reply.
	LayerJSON Layer = "json"
	// LayerFragment is a `"key": value` fragment found in broken JSON.
	LayerFragment Layer = "fragment"
	// LayerMarker is the text between $# and #$.
	LayerMarker Layer = "marker"
	// LayerKeyValue is a key:value line scan.
	LayerKeyValue Layer = "keyvalue"
	// LayerRaw is the whole reply used as the value.
	LayerRaw Layer = "raw"
	// LayerNone means no layer produced a value.
	LayerNone Layer = "none"
)

// Record is an immutable mapping from every schema field to a string value.
// A field that could not be recovered maps to "".
type Record struct {
	schema  string
	names   []string
	values  map[string]string
	sources map[string]Layer
}

// EmptyRecord returns a record with every field of s set to "".
func EmptyRecord(s *Schema) Record {
	r := newRecord(s)
	for _, n := range r.names {
		r.values[n] = ""
		r.sources[n] = LayerNone
	}
	return r
}

func newRecord(s *Schema) Record {
	names := s.Names()
	return Record{
		schema:  s.Name(),
		names:   names,
		values:  make(map[string]string, len(names)),
		sources: make(map[string]Layer, len(names)),
	}
}

// Schema returns the name of the schema the record was built for.
func (r Record) Schema() string { return r.schema }

// Get returns the value of name, or "" if the field is unknown or empty.
func (r Record) Get(name string) string { return r.values[name] }

// Source reports which layer produced the value of name.
func (r Record) Source(name string) Layer {
	if l, ok := r.sources[name]; ok {
		return l
	}
	return LayerNone
}

// Fields returns the field names in schema order.
func (r Record) Fields() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Map returns a copy of the field values.
func (r Record) Map() map[string]string {
	out := make(map[string]string, len(r.values))
	for k, v := range r.values {
		out[k] = v
	}
	return out
}

// IsEmpty reports whether every field is "".
func (r Record) IsEmpty() bool {
	for _, v := range r.values {
		if v != "" {
			return false
		}
	}
	return true
}

// MarshalJSON encodes the record as an object with keys in schema order.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, n := range r.names {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(n)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(r.values[n])
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
