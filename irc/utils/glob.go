// Copyright (c) 2020 Shivaram Lingamneni <slingamn@cs.stanford.edu>
// Copyright (c) 2026 Rearguard contributors
// released under the MIT license

package utils

import (
	"regexp"
	"regexp/syntax"
	"strings"
	"unicode/utf8"
)

// CompileGlob compiles a glob, where * matches any run of characters and ?
// matches exactly one, into a regexp anchored at both ends.
func CompileGlob(glob string, foldCase bool) (*regexp.Regexp, error) {
	if !utf8.ValidString(glob) {
		return nil, &syntax.Error{Code: syntax.ErrInvalidUTF8, Expr: glob}
	}

	var buf strings.Builder
	if foldCase {
		buf.WriteString("(?i)")
	}
	buf.WriteByte('^')
	for _, r := range glob {
		switch r {
		case '*':
			buf.WriteString(".*")
		case '?':
			buf.WriteByte('.')
		default:
			buf.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	buf.WriteByte('$')
	return regexp.Compile(buf.String())
}
