package reply

import (
	"strings"
	"testing"

	"github.com/garyellow/airquality-linebot-go/internal/config"
	"github.com/stretchr/testify/assert"
)

func testBot() config.Bot {
	return config.Bot{
		ResetCommand:          "/start",
		StartCommand:          "Start",
		Countries:             []string{"BR", "US"},
		WelcomeMessage:        "welcome",
		StartMessage:          "choose a city",
		InvalidCommandMessage: "invalid command",
		NotFoundMessage:       "location not found",
		ValuesFormat:          "%s in %s: %s %s (v1.0)",
	}
}

func TestBuilder_Start(t *testing.T) {
	b := NewBuilder(testBot())

	got := b.Start()
	assert.Equal(t, "welcome", got.Text)
	assert.Equal(t, []string{"Start", "BR", "US"}, got.Options)
	assert.False(t, got.SingleUse)
}

func TestBuilder_Start_DoesNotAliasConfig(t *testing.T) {
	cfg := testBot()
	b := NewBuilder(cfg)
	cfg.Countries[0] = "XX"

	assert.Equal(t, []string{"Start", "BR", "US"}, b.Start().Options)
}

func TestBuilder_CityList(t *testing.T) {
	b := NewBuilder(testBot())

	got := b.CityList([]string{"Recife@BR", "São Paulo@BR"})
	assert.Equal(t, "choose a city", got.Text)
	assert.Equal(t, []string{"Start", "Recife@BR", "São Paulo@BR"}, got.Options)

	empty := b.CityList(nil)
	assert.Equal(t, "location not found", empty.Text)
	assert.Empty(t, empty.Options)
}

func TestBuilder_Measurement(t *testing.T) {
	b := NewBuilder(testBot())

	got := b.Measurement("pm25", "São Paulo", "12.3", "µg/m³")

	assert.Equal(t, "pm25 in São Paulo: 12,3 µg/m³ (v1.0)", got.Text, "only the value separator changes")
	assert.Equal(t, []string{"Start"}, got.Options)
	assert.True(t, got.SingleUse)
}

func TestBuilder_Measurement_DecimalComma(t *testing.T) {
	b := NewBuilder(testBot())

	for _, value := range []string{"0.5", "12.34", "100", "1.000.5"} {
		got := b.Measurement("no2", "Lima", value, "ppm")
		want := strings.ReplaceAll(value, ".", ",")
		assert.Contains(t, got.Text, ": "+want+" ppm", "value %q", value)
	}
}

func TestBuilder_Invalid(t *testing.T) {
	got := NewBuilder(testBot()).Invalid()
	assert.Equal(t, Reply{Text: "invalid command"}, got)
}

func TestReply_Clone(t *testing.T) {
	orig := Reply{Text: "t", Options: []string{"a"}}
	clone := orig.Clone()
	clone.Options[0] = "b"
	assert.Equal(t, "a", orig.Options[0])
}
