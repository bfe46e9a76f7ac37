package utils

import "strings"

// MatchField reports whether a dot-separated field path matches the given
// pattern. Patterns may contain:
//   - '*' inside a segment, matching any characters up to the next '.'
//   - a trailing ".*", matching the whole remaining path
//
// A bare "*" pattern matches every field.
func MatchField(field, pattern string) bool {
	if pattern == "*" {
		return true
	}
	if rest, ok := strings.CutSuffix(pattern, ".*"); ok {
		return field == rest || strings.HasPrefix(field, rest+".")
	}
	fieldSegs := strings.Split(field, ".")
	patSegs := strings.Split(pattern, ".")
	if len(fieldSegs) != len(patSegs) {
		return false
	}
	for i := range patSegs {
		if !matchSegment(fieldSegs[i], patSegs[i]) {
			return false
		}
	}
	return true
}

// MatchAnyField reports whether the field matches at least one pattern.
func MatchAnyField(field string, patterns []string) bool {
	for _, p := range patterns {
		if MatchField(field, p) {
			return true
		}
	}
	return false
}

// matchSegment matches one path segment against a pattern segment where
// '*' matches any run of characters.
func matchSegment(seg, pattern string) bool {
	parts := strings.Split(pattern, "*")
	if len(parts) == 1 {
		return seg == pattern
	}
	if !strings.HasPrefix(seg, parts[0]) {
		return false
	}
	seg = seg[len(parts[0]):]
	for _, part := range parts[1 : len(parts)-1] {
		i := strings.Index(seg, part)
		if i < 0 {
			return false
		}
		seg = seg[i+len(part):]
	}
	return strings.HasSuffix(seg, parts[len(parts)-1])
}
