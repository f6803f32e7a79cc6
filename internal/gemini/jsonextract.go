package gemini

// extractJSON returns the first balanced JSON object found in s. It walks
// the text from the first '{', tracking brace depth and skipping string
// literals (including escapes), so surrounding prose, markdown fences or a
// trailing apology from the model do not break parsing.
func extractJSON(s string) (string, bool) {
	start := -1
	for i, r := range s {
		if r == '{' {
			start = i
			break
		}
	}
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
