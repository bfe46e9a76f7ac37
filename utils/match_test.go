package utils

import "testing"

func TestMatchField(t *testing.T) {
	cases := []struct {
		field   string
		pattern string
		want    bool
	}{
		{"name", "name", true},
		{"name", "email", false},
		{"anything.at.all", "*", true},
		{"meta.color", "meta.*", true},
		{"meta.theme.dark", "meta.*", true},
		{"meta", "meta.*", true},
		{"metadata", "meta.*", false},
		{"profile.email", "profile.e*", true},
		{"profile.email", "profile.p*", false},
		{"a.b.c", "a.*.c", true},
		{"a.b", "a.*.c", false},
		{"settings.ui", "settings.u*i", true},
	}
	for _, tc := range cases {
		if got := MatchField(tc.field, tc.pattern); got != tc.want {
			t.Fatalf("MatchField(%q, %q) = %v, want %v", tc.field, tc.pattern, got, tc.want)
		}
	}
}

func TestMatchAnyField(t *testing.T) {
	patterns := []string{"name", "meta.*"}
	if !MatchAnyField("meta.color", patterns) {
		t.Fatalf("expected meta.color to match one of %v", patterns)
	}
	if MatchAnyField("password", patterns) {
		t.Fatalf("expected password to match none of %v", patterns)
	}
}
