package table

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

var (
	reCRLF       = regexp.MustCompile(`\r\n?`)
	reMultiSpace = regexp.MustCompile(` {2,}`)
	reWrapped    = regexp.MustCompile(`(?s)^(["'])(.*)(["']),?$`)

	literalEscapes = strings.NewReplacer(`\r\n`, "\r\n", `\n`, "\n", `\r`, "\r", `\t`, "\t")
)

// Normalize canonicalizes raw OCR text into ordered, non-empty, single-spaced lines
// whose columns are separated by ColumnSeparator.
// Normalize(strings.Join(Normalize(x), "\n")) equals Normalize(x).
func Normalize(raw string) []string {
	if raw == "" {
		return []string{}
	}
	s := strings.ToValidUTF8(raw, "")
	s = literalEscapes.Replace(s)
	s = reCRLF.ReplaceAllString(s, "\n")
	s = norm.NFC.String(s)
	s = unwrapQuotes(s)
	s = strings.ReplaceAll(s, "\t", ColumnSeparator)

	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, ln := range lines {
		ln = strings.TrimSpace(reMultiSpace.ReplaceAllString(ln, " "))
		if ln != "" {
			out = append(out, ln)
		}
	}
	return out
}

// unwrapQuotes strips an enclosing pair of matching quotes (and a trailing comma)
// when the quote character does not also occur inside. It repeats until no wrapper
// is left so that a second pass has nothing to strip.
func unwrapQuotes(s string) string {
	for {
		m := reWrapped.FindStringSubmatch(strings.TrimSpace(s))
		if m == nil || m[1] != m[3] || strings.Contains(m[2], m[1]) {
			return s
		}
		s = m[2]
	}
}

// CoerceText turns arbitrary decoded input into text for Normalize. It never fails.
func CoerceText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		if utf8.Valid(t) {
			return string(t)
		}
		return strings.ToValidUTF8(string(t), "")
	case []string:
		return strings.Join(t, "\n")
	case []any:
		parts := make([]string, 0, len(t))
		for _, p := range t {
			parts = append(parts, CoerceText(p))
		}
		return strings.Join(parts, "\n")
	case fmt.Stringer:
		return t.String()
	case error:
		return t.Error()
	default:
		return fmt.Sprint(t)
	}
}
