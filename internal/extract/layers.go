package extract

import (
	"encoding/json"
	"strings"
)

const (
	markerStart = "$#"
	markerEnd   = "#$"
)

// decodeStrict decodes raw as a single JSON object after stripping code
// fences and cutting the outermost brace window. The object must satisfy the
// schema's required fields.
func decodeStrict(raw string, s *Schema) (map[string]any, string) {
	doc, ok := braceWindow(stripFences(raw))
	if !ok {
		return nil, "no json object"
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(doc), &obj); err != nil {
		return nil, "invalid json"
	}
	if err := s.validator.Validate(obj); err != nil {
		return nil, "schema mismatch"
	}
	return obj, ""
}

// jsonText renders a decoded JSON value as a field string. Strings pass
// through unchanged, null is "", anything else is its JSON encoding.
func jsonText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

type markerResult int

const (
	markerMissing markerResult = iota
	markerFound
	markerDegenerate
)

// markerSpan returns the trimmed text between the first $# and the first #$
// that starts at or after the end of that $#. If the first #$ in the text
// precedes the first $#, the span is degenerate and the value is "".
func markerSpan(text string) (string, markerResult) {
	start := strings.Index(text, markerStart)
	firstEnd := strings.Index(text, markerEnd)
	if start < 0 || firstEnd < 0 {
		return "", markerMissing
	}
	if firstEnd < start {
		return "", markerDegenerate
	}

	from := start + len(markerStart)
	end := strings.Index(text[from:], markerEnd)
	if end < 0 {
		return "", markerMissing
	}
	return strings.TrimSpace(text[from : from+end]), markerFound
}

// jsonFragment finds the first `"name":` in raw and decodes the JSON value
// that follows it.
func jsonFragment(raw, name string) (string, bool) {
	key := `"` + name + `"`
	rest := raw
	for {
		i := strings.Index(rest, key)
		if i < 0 {
			return "", false
		}
		rest = rest[i+len(key):]
		trimmed := strings.TrimLeft(rest, " \t")
		if !strings.HasPrefix(trimmed, ":") {
			continue
		}

		body := trimmed[1:]
		var v any
		dec := json.NewDecoder(strings.NewReader(body))
		if err := dec.Decode(&v); err != nil {
			return "", false
		}
		// A value cut short by an unescaped quote is followed by more text
		// instead of a delimiter.
		after := strings.TrimLeft(body[dec.InputOffset():], " \t\r")
		if after != "" && !strings.ContainsAny(after[:1], ",}\n") {
			return "", false
		}
		return jsonText(v), true
	}
}

// scanLines runs the key:value line scan over raw. Keys and values are
// cleaned, and a later line with the same key overwrites an earlier one.
// Multiline fields of s keep absorbing continuation lines until the next
// known key, a structural line or the end of the text.
func scanLines(raw string, s *Schema) map[string]string {
	out := make(map[string]string)
	active := ""

	for _, line := range strings.Split(raw, "\n") {
		if isStructural(line) {
			active = ""
			continue
		}

		if k, v, ok := strings.Cut(line, ":"); ok {
			key := Cleanup(k)
			if s.has(key) || active == "" {
				out[key] = Cleanup(v)
				active = ""
				if f, known := s.Field(key); known && f.Multiline {
					active = key
				}
				continue
			}
		}

		if active == "" {
			continue
		}
		part := Cleanup(line)
		if part == "" {
			continue
		}
		if out[active] == "" {
			out[active] = part
		} else {
			out[active] += " " + part
		}
	}
	return out
}
