// Package reasons maps free-text reason words to the canonical checkbox values of the attestation form.
package reasons

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Code is the canonical reason value. It is also the value attribute of the form checkbox.
type Code string

const (
	Travel      Code = "travail"
	Shopping    Code = "achats"
	Health      Code = "sante"
	Family      Code = "famille"
	Disability  Code = "handicap"
	SportAnimal Code = "sport_animaux"
	Summons     Code = "convocation"
	Mission     Code = "missions"
	Childcare   Code = "enfants"
)

type entry struct {
	word string
	code Code
}

// catalog keeps the words in the order they are listed to users.
var catalog = []entry{
	{"travail", Travel},
	{"achats", Shopping},
	{"sante", Health},
	{"famille", Family},
	{"handicap", Disability},
	{"sport_animaux", SportAnimal},
	{"sport", SportAnimal},
	{"animaux", SportAnimal},
	{"convocation", Summons},
	{"missions", Mission},
	{"enfants", Childcare},
}

var byWord = func() map[string]Code {
	m := make(map[string]Code, len(catalog))
	for _, e := range catalog {
		m[e.word] = e.code
	}
	return m
}()

// Lookup resolves free text to a reason code. The text is normalized first,
// so case and diacritics do not matter.
func Lookup(text string) (Code, bool) {
	code, ok := byWord[Normalize(text)]
	return code, ok
}

// Valid reports whether c is one of the canonical codes.
func (c Code) Valid() bool {
	for _, e := range catalog {
		if e.code == c {
			return true
		}
	}
	return false
}

// Words returns every accepted reason word in catalog order.
func Words() []string {
	out := make([]string, len(catalog))
	for i, e := range catalog {
		out[i] = e.word
	}
	return out
}

// Example is the reason word used in usage hints.
func Example() string {
	return catalog[0].word
}

// Normalize lower-cases s and strips combining diacritical marks.
func Normalize(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, strings.ToLower(s))
	if err != nil {
		return strings.ToLower(s)
	}
	return out
}
