package manifest

import "strings"

// Canonical normalizes incidental formatting in an instruction line so
// that semantically identical instructions hash identically: runs of
// spaces and tabs collapse to a single space and leading/trailing
// whitespace is dropped. Quoted regions are preserved verbatim because
// whitespace inside them is content, not formatting.
func Canonical(line string) string {
	var b strings.Builder
	var quote byte
	pending := false

	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case quote != 0:
			b.WriteByte(c)
			if c == quote {
				quote = 0
			}
		case c == ' ' || c == '\t':
			pending = true
		default:
			if pending && b.Len() > 0 {
				b.WriteByte(' ')
			}
			pending = false
			b.WriteByte(c)
			if c == '\'' || c == '"' {
				quote = c
			}
		}
	}

	return b.String()
}

// splitFields splits a canonical line on single spaces, keeping quoted
// regions attached to the field they appear in.
func splitFields(line string) []string {
	var fields []string
	var b strings.Builder
	var quote byte

	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case quote != 0:
			b.WriteByte(c)
			if c == quote {
				quote = 0
			}
		case c == ' ':
			if b.Len() > 0 {
				fields = append(fields, b.String())
				b.Reset()
			}
		default:
			b.WriteByte(c)
			if c == '\'' || c == '"' {
				quote = c
			}
		}
	}
	if b.Len() > 0 {
		fields = append(fields, b.String())
	}

	return fields
}
