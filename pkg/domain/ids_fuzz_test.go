package domain

import (
	"testing"
	"unicode/utf8"
)

// FuzzParseSignalID checks that parsing never panics on arbitrary input and
// that accepted values round-trip unchanged.
func FuzzParseSignalID(f *testing.F) {
	f.Add("")
	f.Add("sig_1")
	f.Add("'; DROP TABLE signals;--")
	f.Add(string([]byte{0x00, 0x01, 0x02}))
	f.Add("sig_1\x00suffix")

	f.Fuzz(func(t *testing.T, input string) {
		id, err := ParseSignalID(input)
		if err == nil {
			roundTrip, err2 := ParseSignalID(id.String())
			if err2 != nil {
				t.Errorf("valid ID failed round-trip: %v", err2)
			}
			if roundTrip != id {
				t.Error("round-trip changed ID value")
			}
			if len(input) > MaxIDLength {
				t.Error("oversized input was accepted")
			}
		}
		if !utf8.ValidString(input) && err == nil {
			t.Error("non-UTF8 input was accepted")
		}
	})
}
