package protocol

// Escape protects field content for transmission by doubling backslashes and
// prefixing field separators with a backslash.
func Escape(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' || s[i] == '#' {
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(out)
}

// Unescape reverses Escape. A backslash introduces a one-character escape
// copying the next byte literally; a dangling trailing backslash is emitted
// literally rather than dropped.
func Unescape(s string) string {
	out := make([]byte, 0, len(s))
	esc := false
	for i := 0; i < len(s); i++ {
		switch {
		case esc:
			out = append(out, s[i])
			esc = false
		case s[i] == '\\':
			esc = true
		default:
			out = append(out, s[i])
		}
	}
	if esc {
		out = append(out, '\\')
	}
	return string(out)
}

// SplitEscaped splits line on unescaped occurrences of sep, resolving escape
// sequences as it scans. The parts come out already unescaped, and there is
// always exactly one more part than unescaped separators in the input.
func SplitEscaped(line string, sep byte) []string {
	parts := make([]string, 0, 8)
	cur := make([]byte, 0, len(line))
	esc := false
	for i := 0; i < len(line); i++ {
		switch {
		case esc:
			cur = append(cur, line[i])
			esc = false
		case line[i] == '\\':
			esc = true
		case line[i] == sep:
			parts = append(parts, string(cur))
			cur = cur[:0]
		default:
			cur = append(cur, line[i])
		}
	}
	if esc {
		cur = append(cur, '\\')
	}
	return append(parts, string(cur))
}
