package dtrace

import (
	"strings"
	"unicode"

	"github.com/danpilch/foldstack/pkg/symbol"
)

const inlineSuffix = "_[i]"

// removeOffset scans a frame once, reporting which later clean-ups it needs
// and returning it without the text from its last '+' onwards.
func removeOffset(line string) (hasInlines, couldBeCpp, hasSemicolon bool, frame string) {
	lastOffset := len(line)
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case '>':
			if i > 0 && line[i-1] == '-' {
				hasInlines = true
			}
		case ':':
			if i > 0 && line[i-1] == ':' {
				couldBeCpp = true
			}
		case ';':
			hasSemicolon = true
		case '+':
			lastOffset = i
		}
	}
	return hasInlines, couldBeCpp, hasSemicolon, line[:lastOffset]
}

// uncpp drops a C++ argument list: everything from the last '(' or '<'
// after the first "::" is cut.
func uncpp(probe string) string {
	scope := strings.Index(probe, "::")
	if scope < 0 {
		return probe
	}
	open := strings.LastIndexAny(probe[scope+2:], "(<")
	if open < 0 {
		return probe
	}
	return probe[:scope+2+open]
}

// transformFunctionName applies transform to the function part of a
// "module`function[+offset]" frame. The frame is returned untouched when
// transform reports no change.
func (o Options) transformFunctionName(frame string, transform func(string) (string, bool)) string {
	i := strings.IndexByte(frame, '`')
	if i < 0 {
		return frame
	}
	pname, fn := frame[:i], frame[i+1:]

	if o.IncludeOffset {
		if j := strings.LastIndexByte(fn, '+'); j >= 0 {
			if out, changed := transform(strings.TrimRightFunc(fn[:j], unicode.IsSpace)); changed {
				return pname + "`" + out + "+" + fn[j+1:]
			}
			return frame
		}
	}

	if out, changed := transform(strings.TrimRightFunc(fn, unicode.IsSpace)); changed {
		return pname + "`" + out
	}
	return frame
}

// frames turns one raw stack line into display frames in root-to-leaf order.
// A line with an inline chain `a->b->c` yields a, b_[i], c_[i].
func (o Options) frames(line string, dst []string) []string {
	var hasInlines, couldBeCpp, hasSemicolon bool
	frame := line
	if o.IncludeOffset {
		hasInlines, couldBeCpp, hasSemicolon = true, true, true
	} else {
		hasInlines, couldBeCpp, hasSemicolon, frame = removeOffset(line)
	}

	if couldBeCpp {
		frame = uncpp(frame)
	}

	switch {
	case frame == "":
		frame = "-"
	case o.Demangle:
		frame = o.transformFunctionName(frame, symbol.Demangle)
	default:
		frame = o.transformFunctionName(frame, symbol.FixRust)
	}

	if hasInlines {
		first := true
		for _, fn := range strings.Split(frame, "->") {
			fn = strings.TrimLeft(fn, "L")
			if hasSemicolon {
				fn = strings.ReplaceAll(fn, ";", ":")
			}
			if !first {
				fn += inlineSuffix
			}
			first = false
			dst = append(dst, fn)
		}
		return dst
	}
	if hasSemicolon {
		return append(dst, strings.ReplaceAll(frame, ";", ":"))
	}
	return append(dst, frame)
}
