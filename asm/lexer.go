package asm

import "strings"

// line is one source line split into its meaningful fields: an optional
// label, an optional mnemonic, and its operand tokens. Comments (from '#'
// to end of line) and blank lines are stripped before this point.
type line struct {
	no       int
	label    string
	mnemonic string
	operands []string
}

// splitLines tokenizes source text into a slice of lines, one per non-empty
// input line. It never returns an error; malformed operand lists are a
// parse-stage concern, not a lexing one.
func splitLines(src string) []line {
	var out []line
	for i, raw := range strings.Split(src, "\n") {
		text := raw
		if idx := strings.IndexByte(text, '#'); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}

		l := line{no: i + 1}

		if colon := strings.IndexByte(text, ':'); colon >= 0 && !looksLikeOperandList(text[:colon]) {
			l.label = strings.TrimSpace(text[:colon])
			text = strings.TrimSpace(text[colon+1:])
			if text == "" {
				out = append(out, l)
				continue
			}
		}

		fields := tokenizeInstruction(text)
		if len(fields) == 0 {
			out = append(out, l)
			continue
		}
		l.mnemonic = fields[0]
		l.operands = fields[1:]
		out = append(out, l)
	}
	return out
}

// looksLikeOperandList rejects false-positive label colons, e.g. inside a
// JLT's third operand there is never a colon, so this only guards against
// pathological input; kept simple on purpose.
func looksLikeOperandList(s string) bool {
	return strings.ContainsAny(s, " \t,")
}

// tokenizeInstruction splits "MNEMONIC a, b, c" into ["MNEMONIC","a","b","c"].
func tokenizeInstruction(text string) []string {
	replaced := strings.ReplaceAll(text, ",", " ")
	return strings.Fields(replaced)
}
