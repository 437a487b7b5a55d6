package stream

// scanner finds the end of one JSON object in a growing buffer.
// State survives between calls so an object arriving one byte at a time is
// scanned once overall, not once per Feed.
type scanner struct {
	pos      int // next byte to examine
	depth    int
	inString bool
	escaped  bool
}

func (s *scanner) reset() {
	*s = scanner{}
}

// advance continues scanning buf, which must start with '{'. It returns the
// length of the object and true once its closing brace is found.
// Braces inside strings are ignored; a backslash escapes the next byte.
func (s *scanner) advance(buf []byte) (int, bool) {
	for ; s.pos < len(buf); s.pos++ {
		c := buf[s.pos]

		if s.inString {
			switch {
			case s.escaped:
				s.escaped = false
			case c == '\\':
				s.escaped = true
			case c == '"':
				s.inString = false
			}
			continue
		}

		switch c {
		case '"':
			s.inString = true
		case '{':
			s.depth++
		case '}':
			s.depth--
			if s.depth == 0 {
				s.pos++
				return s.pos, true
			}
		}
	}
	return 0, false
}

// scanObject reports the length of the complete object at the start of buf.
func scanObject(buf []byte) (int, bool) {
	var s scanner
	return s.advance(buf)
}

// skipSpace returns the number of leading JSON whitespace bytes in buf.
func skipSpace(buf []byte) int {
	i := 0
	for i < len(buf) {
		switch buf[i] {
		case ' ', '\t', '\n', '\r':
			i++
		default:
			return i
		}
	}
	return i
}
