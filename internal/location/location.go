// Package location holds the data model shared by the pipeline, the cache
// and the dispatcher: location keys and resolved measurements.
package location

import "strings"

// Separator joins city and country in a location token ("city@country").
const Separator = "@"

// Key identifies a location by country and city. Its canonical string form
// is "city@country" and it is the only key the reply cache uses.
type Key struct {
	Country string
	City    string
}

// NewKey builds a key from a country and a city label.
func NewKey(country, city string) Key {
	return Key{Country: country, City: city}
}

// ParseKey splits a "city@country" token on the first separator.
// ok is false when the token has no separator. No other validation is done:
// either side may be empty and is passed to the provider as is.
func ParseKey(token string) (Key, bool) {
	city, country, ok := strings.Cut(token, Separator)
	if !ok {
		return Key{}, false
	}
	return Key{Country: country, City: city}, true
}

// String returns the canonical "city@country" form.
func (k Key) String() string {
	return k.City + Separator + k.Country
}

// IsComplete reports whether both the country and the city are set.
func (k Key) IsComplete() bool {
	return k.Country != "" && k.City != ""
}

// Measurement is one resolved sensor reading for a location. Value keeps the
// provider's decimal text verbatim, with a '.' separator.
type Measurement struct {
	Parameter string
	Unit      string
	Value     string
	Country   string
	City      string
}

// Key returns the location key built from the resolved labels.
func (m Measurement) Key() Key {
	return NewKey(m.Country, m.City)
}
