package textutil

import "testing"

func TestSanitizeFileName(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Glacier Story", "Glacier Story"},
		{"a/b\\c:d", "a-b-c-d"},
		{"what?<>|", "what"},
		{"  padded  ", "padded"},
	}
	for _, tc := range cases {
		if got := SanitizeFileName(tc.in); got != tc.want {
			t.Errorf("SanitizeFileName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSlug(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Glacier Story", "glacier-story"},
		{"The  Deep_Sea", "the--deep-sea"},
		{"!!!", "output"},
		{"", "output"},
		{"MixedCASE123", "mixedcase123"},
	}
	for _, tc := range cases {
		if got := Slug(tc.in, "output"); got != tc.want {
			t.Errorf("Slug(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
