// Package language normalizes language codes and verifies that
// generated text actually reads as the requested language.
package language

import (
	"strings"

	"github.com/abadojack/whatlanggo"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Normalize reduces a language tag of any case and specificity to its
// two-letter base code, so "EN", "en-US" and the legacy "fre" all map
// onto a supported code. Tokens that are not recognized tags map to "".
func Normalize(token string) string {
	token = strings.TrimSpace(token)
	if token == "" {
		return ""
	}
	tag, err := language.Parse(token)
	if err != nil {
		return ""
	}
	base, conf := tag.Base()
	if conf == language.No {
		return ""
	}
	return base.String()
}

// Resolve maps a user-supplied token onto one of the supported codes.
// Besides the tags Normalize accepts, it recognizes spelled-out English
// names such as "French". Returns "" when the token matches none of the
// supported languages.
func Resolve(token string, supported []string) string {
	norm := Normalize(token)
	for _, code := range supported {
		if norm == code {
			return code
		}
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return ""
	}
	names := display.English.Languages()
	for _, code := range supported {
		tag, err := language.Parse(code)
		if err != nil {
			continue
		}
		if strings.EqualFold(names.Name(tag), token) {
			return code
		}
	}
	return ""
}

// Detect returns the ISO 639-1 code of the dominant language in text,
// or "" when the text gives no usable signal.
func Detect(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	return whatlanggo.DetectLang(text).Iso6391()
}

// minDetectLength is the shortest text worth running detection on.
// Below this the detector guesses.
const minDetectLength = 20

// Matches reports whether text reads as the expected language. Short
// fragments and inconclusive detections are accepted.
func Matches(text, expected string) bool {
	if len(strings.TrimSpace(text)) < minDetectLength {
		return true
	}
	detected := Detect(text)
	if detected == "" {
		return true
	}
	detectedBase, conf := language.All.Make(detected).Base()
	if conf == language.No {
		return true
	}
	expectedBase, conf := language.All.Make(expected).Base()
	if conf == language.No {
		return true
	}
	return detectedBase == expectedBase
}
