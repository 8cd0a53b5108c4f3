// Package intent classifies incoming chat text into the route the
// dispatcher takes.
package intent

import (
	"strings"

	"github.com/garyellow/airquality-linebot-go/internal/config"
	"github.com/garyellow/airquality-linebot-go/internal/location"
)

// Kind enumerates the intents.
type Kind int

const (
	Invalid Kind = iota
	Reset
	Start
	KnownCountry
	KnownCity
)

func (k Kind) String() string {
	switch k {
	case Reset:
		return "reset"
	case Start:
		return "start"
	case KnownCountry:
		return "country"
	case KnownCity:
		return "city"
	default:
		return "invalid"
	}
}

// Intent is the classified purpose of one message.
type Intent struct {
	Kind Kind
	// Country is set for KnownCountry.
	Country string
	// Location is set for KnownCity. Token is the raw text it was parsed from.
	Location location.Key
	Token    string
}

// Classifier decides the intent of a message from the configured keywords
// and country list. It is immutable and safe for concurrent use.
type Classifier struct {
	resetCommand string
	startCommand string
	countries    map[string]struct{}
}

// NewClassifier creates a Classifier from the bot configuration.
func NewClassifier(cfg config.Bot) *Classifier {
	countries := make(map[string]struct{}, len(cfg.Countries))
	for _, c := range cfg.Countries {
		countries[c] = struct{}{}
	}
	return &Classifier{
		resetCommand: cfg.ResetCommand,
		startCommand: cfg.StartCommand,
		countries:    countries,
	}
}

// Classify returns exactly one intent for text. The order is fixed:
// navigation commands first, then exact country names, then anything shaped
// like "city@country", else Invalid. Matching is exact and case-sensitive.
func (c *Classifier) Classify(text string) Intent {
	switch {
	case text == c.resetCommand:
		return Intent{Kind: Reset}
	case text == c.startCommand:
		return Intent{Kind: Start}
	}

	if _, ok := c.countries[text]; ok {
		return Intent{Kind: KnownCountry, Country: text}
	}

	if strings.Contains(text, location.Separator) {
		key, _ := location.ParseKey(text)
		return Intent{Kind: KnownCity, Location: key, Token: text}
	}

	return Intent{Kind: Invalid}
}
