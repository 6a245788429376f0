package version

import (
	"regexp"
	"strings"
)

var nameVersionRe = regexp.MustCompile(`[0-9]+(\.[0-9]+)((\.|a|b|d|v)[0-9]+)+`)

const nameTrailer = " .-_v"

// SplitNameVersion splits a filename-like string into name and version:
//
//	TextWrangler2.3b1           -> TextWrangler, 2.3b1
//	AdobePhotoshopCS3-11.2.1    -> AdobePhotoshopCS3, 11.2.1
//	MicrosoftOffice2008v12.2.1  -> MicrosoftOffice2008, 12.2.1
//
// The version is empty when nothing version-like is found.
func SplitNameVersion(s string) (string, string) {
	if loc := nameVersionRe.FindStringIndex(s); loc != nil {
		return strings.TrimRight(s[:loc[0]], nameTrailer), s[loc[0]:loc[1]]
	}

	// Walk back from the end collecting digits, dots and underscores.
	// Only one qualifier letter may appear in the suffix.
	start := len(s)
	qualifier := false
	for start > 0 {
		c := s[start-1]
		if isVersionChar(c) {
			start--
			continue
		}
		if strings.IndexByte("abdv", c) >= 0 && !qualifier {
			qualifier = true
			start--
			continue
		}
		break
	}

	if start == len(s) {
		return s, ""
	}

	// The version must begin with a digit.
	for start < len(s) && !(s[start] >= '0' && s[start] <= '9') {
		start++
	}
	return strings.TrimRight(s[:start], nameTrailer), s[start:]
}

func isVersionChar(c byte) bool {
	return (c >= '0' && c <= '9') || c == '.' || c == '_'
}
