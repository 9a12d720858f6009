// Package language normalizes speech-recognition language codes and decides
// which translation targets a detected source language requires.
package language

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Chinese and English are the subtitle languages sublingo produces. Every
// routing decision resolves to some subset of these two.
const (
	Chinese = "zh"
	English = "en"
)

var namer = display.English.Languages()

// Normalize converts any recognized language identifier (ISO 639-1/2 codes,
// BCP 47 tags, full names the recognizer might emit) to its ISO 639-1 base
// code. Returns empty string for unrecognized input.
func Normalize(code string) string {
	trimmed := strings.ToLower(strings.TrimSpace(code))
	if trimmed == "" {
		return ""
	}
	tag, err := language.Parse(trimmed)
	if err != nil {
		return ""
	}
	base, confidence := tag.Base()
	if confidence == language.No {
		return ""
	}
	return base.String()
}

// DisplayName returns a human-readable English name for a language code.
// Returns "Unknown" for empty or unrecognized input.
func DisplayName(code string) string {
	normalized := Normalize(code)
	if normalized == "" {
		return "Unknown"
	}
	tag, err := language.Parse(normalized)
	if err != nil {
		return "Unknown"
	}
	if name := namer.Name(tag); name != "" {
		return name
	}
	return "Unknown"
}

// IsChinese reports whether the code resolves to Chinese in any script.
func IsChinese(code string) bool {
	return Normalize(code) == Chinese
}

// IsEnglish reports whether the code resolves to English.
func IsEnglish(code string) bool {
	return Normalize(code) == English
}

// Targets maps a detected source language to the translation targets needed
// for a bilingual Chinese/English subtitle track. Chinese sources need only
// English, English sources need only Chinese, and everything else (including
// an unrecognized detection) needs both.
func Targets(detected string) []string {
	switch Normalize(detected) {
	case Chinese:
		return []string{English}
	case English:
		return []string{Chinese}
	default:
		return []string{Chinese, English}
	}
}
