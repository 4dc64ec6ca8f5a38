// Package jurisdiction matches legal region codes against partner coverage.
//
// A code is either an ISO-style two letter country ("US") or a
// country-subdivision pair ("US-CA"). Country coverage includes every
// subdivision of that country; subdivision coverage includes nothing else.
package jurisdiction

import (
	"regexp"
	"strings"

	dErrors "beacon/pkg/domain-errors"
)

var codePattern = regexp.MustCompile(`^[A-Z]{2}(-[A-Z0-9]{1,3})?$`)

// IsValid reports whether code is a country or country-subdivision code.
func IsValid(code string) bool {
	return codePattern.MatchString(code)
}

// Validate returns a validation error naming the bad code.
func Validate(code string) error {
	if !IsValid(code) {
		return dErrors.New(dErrors.CodeValidation, "invalid jurisdiction code: "+quote(code))
	}
	return nil
}

// Split returns the country and the subdivision ("" for country codes).
// The caller must have validated code.
func Split(code string) (country, subdivision string) {
	country, subdivision, _ = strings.Cut(code, "-")
	return country, subdivision
}

// Covers reports whether a coverage list includes code.
func Covers(coverage []string, code string) bool {
	if !IsValid(code) {
		return false
	}
	country, subdivision := Split(code)
	for _, c := range coverage {
		if c == code {
			return true
		}
		if subdivision != "" && c == country {
			return true
		}
	}
	return false
}

func quote(s string) string {
	return `"` + s + `"`
}
