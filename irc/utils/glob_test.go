// Copyright (c) 2020 Shivaram Lingamneni <slingamn@cs.stanford.edu>
// Copyright (c) 2026 Rearguard contributors
// released under the MIT license

package utils

import (
	"testing"
)

func assertMatches(glob, str string, foldCase, match bool, t *testing.T) {
	t.Helper()
	re, err := CompileGlob(glob, foldCase)
	if err != nil {
		t.Fatalf("couldn't compile %s: %v", glob, err)
	}
	if re.MatchString(str) != match {
		t.Errorf("should %s match %s? %t, but got %t instead", glob, str, match, !match)
	}
}

func TestGlob(t *testing.T) {
	assertMatches("https://chat.example.com", "https://chat.example.com", false, true, t)
	assertMatches("https://*.example.com", "https://chat.example.com", false, true, t)
	assertMatches("*://*.example.com", "http://chat.example.com", false, true, t)
	assertMatches("*://*.example.com", "https://example.com", false, false, t)
	assertMatches("*://*.example.com", "https://chat.example.com.evil", false, false, t)

	assertMatches("", "", false, true, t)
	assertMatches("", "x", false, false, t)
	assertMatches("*", "", false, true, t)
	assertMatches("*", "x", false, true, t)

	assertMatches("c?b", "cab", false, true, t)
	assertMatches("c?b", "cb", false, false, t)
	assertMatches("a.b", "axb", false, false, t)

	assertMatches("https://*.EXAMPLE.com", "https://chat.example.COM", true, true, t)
	assertMatches("https://*.EXAMPLE.com", "https://chat.example.COM", false, false, t)
}

func TestGlobInvalidUTF8(t *testing.T) {
	if _, err := CompileGlob("bad\xffglob", false); err == nil {
		t.Errorf("compiled a glob that is not valid UTF-8")
	}
}
