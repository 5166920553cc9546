package gemini

import "strings"

// ObjectScanner extracts complete top-level JSON objects from a streamed JSON
// array that arrives in arbitrary chunk sizes. Gemini's streaming endpoint
// does not use SSE: the body is one giant `[ {..}, {..}, ... ]` written
// incrementally, so object boundaries must be recovered by bracket counting.
//
// The scanner is resumable: a chunk boundary may fall inside a string, inside
// an escape pair, or mid-brace, and the four state fields carry exactly enough
// information to continue. No character is ever re-examined across chunks.
//
// Depth accounting: depth 0 is outside the enclosing array, depth 1 is between
// array elements, depth >1 is inside an object. Characters at depth 0 or 1
// (commas, whitespace, the array brackets themselves) are discarded.
type ObjectScanner struct {
	buf      strings.Builder
	depth    int
	inString bool
	escaped  bool
}

// Feed consumes one chunk and returns the complete JSON objects it finished,
// in order. May return nothing (chunk ended mid-object) or several objects.
//
// Iteration is byte-wise: every structural character is ASCII, and non-ASCII
// string content passes through untouched, so a chunk boundary inside a
// multi-byte rune needs no special handling.
func (s *ObjectScanner) Feed(chunk string) []string {
	var objects []string
	for i := 0; i < len(chunk); i++ {
		c := chunk[i]
		// An escape inside a string swallows the next character whole, so
		// the sequence \" never toggles inString.
		if s.inString && !s.escaped && c == '\\' {
			s.escaped = true
			s.buf.WriteByte(c)
			continue
		}
		if s.inString && s.escaped {
			s.escaped = false
			s.buf.WriteByte(c)
			continue
		}

		if c == '"' && !s.escaped {
			s.inString = !s.inString
		} else if (c == '{' || c == '[') && !s.inString {
			s.depth++
		} else if (c == '}' || c == ']') && !s.inString {
			s.depth--
		}

		if s.depth > 1 {
			if s.inString && c == '\n' {
				// Raw newlines inside string values would make the buffered
				// object invalid JSON.
				s.buf.WriteString(`\n`)
			} else {
				s.buf.WriteByte(c)
			}
		} else if s.depth == 1 && s.buf.Len() > 0 {
			// The closing brace took us from inside the object back to the
			// array level. It was counted but not buffered; restore it.
			s.buf.WriteByte('}')
			objects = append(objects, s.buf.String())
			s.buf.Reset()
		}
	}
	return objects
}

// Flush reports the leftover buffer at end of stream. A non-empty leftover is
// a truncated object: the caller logs and skips it rather than failing the
// whole stream.
func (s *ObjectScanner) Flush() (string, bool) {
	if s.buf.Len() == 0 {
		return "", false
	}
	leftover := s.buf.String()
	s.buf.Reset()
	return leftover, true
}
