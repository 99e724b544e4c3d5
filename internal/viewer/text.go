package viewer

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// payloadText turns a payload into printable text. Payloads that are not
// valid UTF-8 are decoded as Windows-1252, which is what geometry files
// written on Windows usually are. Control characters other than newline and
// tab are shown as '.' so a payload cannot drive the terminal.
func payloadText(p []byte) string {
	s := string(p)
	if !utf8.Valid(p) {
		decoded, err := charmap.Windows1252.NewDecoder().Bytes(p)
		if err == nil {
			s = string(decoded)
		} else {
			s = strings.ToValidUTF8(s, "?")
		}
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return '.'
		}
		return r
	}, s)
}

// firstLine returns the first non-empty line of s, cut to max runes.
func firstLine(s string, max int) string {
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if utf8.RuneCountInString(line) > max {
			r := []rune(line)
			return string(r[:max]) + "..."
		}
		return line
	}
	return ""
}
