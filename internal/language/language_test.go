package language

import (
	"reflect"
	"testing"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		input string
		want  string
	}{
		{"zh", "zh"},
		{"ZH", "zh"},
		{" zh-CN ", "zh"},
		{"zh-Hant", "zh"},
		{"en", "en"},
		{"en-US", "en"},
		{"jpn", "ja"},
		{"fra", "fr"},
		{"", ""},
		{"not-a-language!", ""},
	}
	for _, tc := range cases {
		if got := Normalize(tc.input); got != tc.want {
			t.Errorf("Normalize(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}

func TestDisplayName(t *testing.T) {
	if got := DisplayName("zh"); got != "Chinese" {
		t.Fatalf("DisplayName(zh) = %q", got)
	}
	if got := DisplayName("en"); got != "English" {
		t.Fatalf("DisplayName(en) = %q", got)
	}
	if got := DisplayName(""); got != "Unknown" {
		t.Fatalf("DisplayName(empty) = %q", got)
	}
}

func TestTargetsIsTotal(t *testing.T) {
	cases := []struct {
		detected string
		want     []string
	}{
		{"zh", []string{"en"}},
		{"zh-CN", []string{"en"}},
		{"en", []string{"zh"}},
		{"en-GB", []string{"zh"}},
		{"ja", []string{"zh", "en"}},
		{"de", []string{"zh", "en"}},
		// Cantonese keeps its own base tag and needs written Chinese too.
		{"yue", []string{"zh", "en"}},
		{"", []string{"zh", "en"}},
		{"??", []string{"zh", "en"}},
	}
	for _, tc := range cases {
		got := Targets(tc.detected)
		if !reflect.DeepEqual(got, tc.want) {
			t.Errorf("Targets(%q) = %v, want %v", tc.detected, got, tc.want)
		}
		if len(got) == 0 {
			t.Errorf("Targets(%q) returned no targets", tc.detected)
		}
	}
}
