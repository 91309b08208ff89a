package extract

import "strings"

// Cleanup normalizes a scalar lifted out of loose model text: surrounding
// whitespace, one wrapping double quote on each side, one trailing comma and
// escaped quotes are removed. It repeats until the value stops changing, so
// Cleanup(Cleanup(s)) == Cleanup(s).
func Cleanup(s string) string {
	for {
		next := cleanupOnce(s)
		if next == s {
			return s
		}
		s = next
	}
}

func cleanupOnce(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, `"`)
	s = strings.TrimSuffix(s, `"`)
	s = strings.TrimSuffix(s, ",")
	s = strings.TrimSpace(s)
	return strings.ReplaceAll(s, `\"`, "")
}

// isStructural reports whether a line carries only JSON punctuation or a
// code fence.
func isStructural(line string) bool {
	t := strings.TrimSpace(line)
	switch t {
	case "{", "}", "},", "[", "]", "],":
		return true
	}
	return strings.HasPrefix(t, "```")
}

// stripFences removes a leading ```json (or ```) fence and a trailing ```.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if i := strings.Index(s, "\n"); i >= 0 {
			s = s[i+1:]
		} else {
			s = strings.TrimPrefix(s, "```json")
			s = strings.TrimPrefix(s, "```")
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// braceWindow returns the text from the first '{' to the last '}'.
func braceWindow(s string) (string, bool) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}

func applyFilters(f Field, v string) string {
	if f.UnescapeNewlines {
		v = strings.ReplaceAll(v, `\n`, "\n")
	}
	if f.StripQuotes {
		v = strings.ReplaceAll(v, `\"`, "")
		v = strings.ReplaceAll(v, `"`, "")
	}
	return v
}
