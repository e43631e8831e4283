package dtrace

import (
	"strconv"
	"strings"

	"github.com/danpilch/foldstack/pkg/collapse"
)

// IsApplicable reports whether sample looks like DTrace stack output. After
// the header, it needs to see at least one frame line and then a count line.
func (f *Folder) IsApplicable(sample string) collapse.Applicability {
	foundEmptyLine := false
	foundStackLine := false
	for len(sample) > 0 {
		var line string
		if i := strings.IndexByte(sample, '\n'); i >= 0 {
			line, sample = sample[:i], sample[i+1:]
		} else {
			line, sample = sample, ""
		}

		line = strings.TrimSpace(line)
		switch {
		case line == "":
			foundEmptyLine = true
		case !foundEmptyLine:
		case isCountLine(line):
			if foundStackLine {
				return collapse.Applicable
			}
			return collapse.NotApplicable
		case strings.Contains(line, "`") || isHexAddress(line):
			foundStackLine = true
		default:
			return collapse.NotApplicable
		}
	}
	return collapse.Undetermined
}

func isCountLine(line string) bool {
	_, ok, err := collapse.ParseCount([]byte(line))
	return ok && err == nil
}

func isHexAddress(line string) bool {
	if !strings.HasPrefix(line, "0x") {
		return false
	}
	_, err := strconv.ParseUint(line[2:], 16, 64)
	return err == nil
}
