package routing

import (
	"errors"
	"fmt"
)

// ErrMalformedOutput is returned when model output holds no usable result.
var ErrMalformedOutput = errors.New("malformed model output")

// ExtractJSON returns the first complete top-level JSON object in text.
// Models wrap JSON in prose or code fences; both are skipped.
func ExtractJSON(text string) ([]byte, error) {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(text); i++ {
		c := text[i]
		if start < 0 {
			if c == '{' {
				start = i
				depth = 1
			}
			continue
		}

		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return []byte(text[start : i+1]), nil
			}
		}
	}

	if start < 0 {
		return nil, fmt.Errorf("%w: no JSON object found", ErrMalformedOutput)
	}
	return nil, fmt.Errorf("%w: unterminated JSON object", ErrMalformedOutput)
}
