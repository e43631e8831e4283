package collapse

type lineState int

const (
	startOfLine  lineState = iota // leading whitespace
	middleOfLine                  // digits
	endOfLine                     // trailing whitespace
)

// IsEndOfStack reports whether line, ignoring surrounding whitespace, is made
// only of ASCII digits. It looks at raw bytes and never decodes or allocates,
// so it is safe to run on input that has not been validated yet.
func IsEndOfStack(line []byte) bool {
	state := startOfLine
	for _, c := range line {
		switch state {
		case startOfLine:
			switch {
			case IsSpace(c):
			case isDigit(c):
				state = middleOfLine
			default:
				return false
			}
		case middleOfLine:
			switch {
			case isDigit(c):
			case IsSpace(c):
				state = endOfLine
			default:
				return false
			}
		case endOfLine:
			if !IsSpace(c) {
				return false
			}
		}
	}
	return state != startOfLine
}

// IsSpace reports whether c is ASCII whitespace.
func IsSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\v', '\f', '\r':
		return true
	}
	return false
}

// TrimSpace trims ASCII whitespace from both ends of b.
func TrimSpace(b []byte) []byte {
	i, j := 0, len(b)
	for i < j && IsSpace(b[i]) {
		i++
	}
	for j > i && IsSpace(b[j-1]) {
		j--
	}
	return b[i:j]
}

// ParseCount parses b as an unsigned decimal count.
// ok is false when b is not made only of digits; err is set on overflow.
func ParseCount(b []byte) (n uint64, ok bool, err error) {
	if len(b) == 0 {
		return 0, false, nil
	}
	for _, c := range b {
		if !isDigit(c) {
			return 0, false, nil
		}
	}
	for _, c := range b {
		d := uint64(c - '0')
		if n > (1<<64-1-d)/10 {
			return 0, true, ErrCountOverflow
		}
		n = n*10 + d
	}
	return n, true, nil
}

func isDigit(c byte) bool {
	return '0' <= c && c <= '9'
}
