// Package extract pulls a candidate JSON object out of unstructured model output.
package extract

import (
	"strings"

	"github.com/dukex/autograph/pkg/apperr"
)

// FirstObject returns the first top-level, brace-balanced JSON object in text.
// Braces inside JSON string literals do not count towards the balance.
func FirstObject(text string) (string, bool) {
	for start := strings.IndexByte(text, '{'); start >= 0; {
		if end, ok := balancedEnd(text, start); ok {
			return text[start : end+1], true
		}

		next := strings.IndexByte(text[start+1:], '{')
		if next < 0 {
			break
		}

		start += next + 1
	}

	return "", false
}

// Object is FirstObject reporting the absence of an object as an upstream generation error.
func Object(text string) (string, error) {
	candidate, ok := FirstObject(text)
	if !ok {
		return "", apperr.New("extract.Object", apperr.KindUpstreamGeneration, "model did not return a JSON object")
	}

	return candidate, nil
}

// balancedEnd returns the index of the brace closing the object opened at start.
func balancedEnd(text string, start int) (int, bool) {
	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(text); i++ {
		c := text[i]

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
				return i, true
			}
		}
	}

	return 0, false
}
