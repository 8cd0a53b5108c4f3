// Package reply formats the outgoing chat replies. Everything here is pure:
// a Builder turns configured texts and resolved data into Reply values that
// the chat transport renders.
package reply

import (
	"fmt"
	"slices"
	"strings"

	"github.com/garyellow/airquality-linebot-go/internal/config"
)

// Reply is a transport-neutral outgoing chat message.
type Reply struct {
	Text string
	// Options are rendered by the transport as tappable buttons, in order.
	Options []string
	// SingleUse marks the options as disposable after one tap.
	SingleUse bool
}

// Clone returns a deep copy so cached replies never share option slices.
func (r Reply) Clone() Reply {
	r.Options = slices.Clone(r.Options)
	return r
}

// Builder formats replies from the immutable bot configuration.
type Builder struct {
	cfg config.Bot
}

// NewBuilder creates a Builder. The country list is copied.
func NewBuilder(cfg config.Bot) *Builder {
	cfg.Countries = slices.Clone(cfg.Countries)
	return &Builder{cfg: cfg}
}

// Start lists every configured country after the "back to start" option.
func (b *Builder) Start() Reply {
	return Reply{
		Text:    b.cfg.WelcomeMessage,
		Options: b.withReset(b.cfg.Countries),
	}
}

// CityList lists the given city tokens, or returns the not-found message
// without options when there are none.
func (b *Builder) CityList(cities []string) Reply {
	if len(cities) == 0 {
		return b.NotFound()
	}
	return Reply{
		Text:    b.cfg.StartMessage,
		Options: b.withReset(cities),
	}
}

// Measurement fills the values template with parameter, city, value and unit.
// The chat transport wants a decimal comma, so every '.' in value becomes ','.
func (b *Builder) Measurement(parameter, city, value, unit string) Reply {
	value = strings.ReplaceAll(value, ".", ",")
	return Reply{
		Text:      fmt.Sprintf(b.cfg.ValuesFormat, parameter, city, value, unit),
		Options:   []string{b.cfg.StartCommand},
		SingleUse: true,
	}
}

// Invalid returns the fixed invalid-command warning.
func (b *Builder) Invalid() Reply {
	return Reply{Text: b.cfg.InvalidCommandMessage}
}

// NotFound returns the location-not-found warning.
func (b *Builder) NotFound() Reply {
	return Reply{Text: b.cfg.NotFoundMessage}
}

func (b *Builder) withReset(items []string) []string {
	options := make([]string, 0, len(items)+1)
	options = append(options, b.cfg.StartCommand)
	return append(options, items...)
}
