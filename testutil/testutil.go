// Package testutil holds small test helpers shared across the engine's
// packages: a heredoc stripper for writing readable script fixtures in Go
// source, and a string-capturing Logger for asserting on trigger/query
// trace output.
package testutil

import (
	"fmt"
	"regexp"
	"strings"
)

var stripHeredocRegex = regexp.MustCompilePOSIX("^\t*")

// StripHeredoc removes the common leading-tab indentation from a
// backtick-quoted block, so CozoScript fixtures can be indented to match
// surrounding Go code without the indentation becoming part of the script.
func StripHeredoc(heredoc string) string {
	heredoc = strings.TrimPrefix(heredoc, "\n")
	lines := strings.Split(heredoc, "\n")

	minIndent := -1
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		indent := len(stripHeredocRegex.FindString(line))
		if minIndent == -1 || indent < minIndent {
			minIndent = indent
		}
	}
	if minIndent <= 0 {
		return heredoc
	}

	for i, line := range lines {
		if len(line) >= minIndent {
			lines[i] = line[minIndent:]
		}
	}
	return strings.Join(lines, "\n")
}

// StringLogger implements storage.Logger, capturing everything written to
// it so tests can assert on trigger/query trace output.
type StringLogger struct {
	buf strings.Builder
}

func (l *StringLogger) Print(v ...any) {
	fmt.Fprint(&l.buf, v...)
}

func (l *StringLogger) Printf(format string, v ...any) {
	fmt.Fprintf(&l.buf, format, v...)
}

func (l *StringLogger) Println(v ...any) {
	fmt.Fprintln(&l.buf, v...)
}

func (l *StringLogger) String() string {
	return l.buf.String()
}
