// Package alert publishes machine-readable measurement events to a
// downstream sink (Kafka, Redis pub/sub or the log).
package alert

import (
	"encoding/json"

	"github.com/garyellow/airquality-linebot-go/internal/location"
)

// Event is the alert emitted for every resolved measurement.
type Event struct {
	Country   string
	City      string
	Parameter string
	Value     string
	Unit      string
}

// NewEvent builds an event from a measurement.
func NewEvent(m location.Measurement) Event {
	return Event{
		Country:   m.Country,
		City:      m.City,
		Parameter: m.Parameter,
		Value:     m.Value,
		Unit:      m.Unit,
	}
}

// Key returns the location key used to partition events.
func (e Event) Key() string {
	return location.NewKey(e.Country, e.City).String()
}

type wireEvent struct {
	Country   string `json:"country"`
	City      string `json:"city"`
	Parameter string `json:"parameter"`
	Value     string `json:"value"`
}

// MarshalJSON encodes the event as a flat object of four strings.
// value carries "<value> <unit>" with the provider's decimal text.
func (e Event) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireEvent{
		Country:   e.Country,
		City:      e.City,
		Parameter: e.Parameter,
		Value:     e.Value + " " + e.Unit,
	})
}
