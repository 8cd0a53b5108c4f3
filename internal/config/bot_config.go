package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ValuesSlots is the number of %s placeholders the values template must carry:
// parameter, city, value and unit, in that order.
const ValuesSlots = 4

// Default bot texts. Operators are expected to override them.
const (
	DefaultResetCommand    = "/start"
	DefaultStartCommand    = "Start"
	DefaultWelcomeMessage  = "Hi! Pick a country to check its air quality."
	DefaultStartMessage    = "Pick a city."
	DefaultInvalidMessage  = "Sorry, I did not understand that. Tap Start to begin again."
	DefaultNotFoundMessage = "No data found for that location."
	DefaultValuesFormat    = "%s in %s: %s %s"
)

// Bot is the immutable set of operator-supplied strings that drive
// classification and reply formatting. It is built once at startup and
// passed by value; callers must not modify Countries.
type Bot struct {
	ResetCommand string // reset keyword, e.g. "/start"
	StartCommand string // start keyword, also the label of the "back to start" option
	Countries    []string

	WelcomeMessage        string
	StartMessage          string
	InvalidCommandMessage string
	NotFoundMessage       string
	ValuesFormat          string
}

// LoadBot reads the bot texts from the environment, falling back to defaults.
func LoadBot() Bot {
	return Bot{
		ResetCommand:          getEnv(EnvResetCommand, DefaultResetCommand),
		StartCommand:          getEnv(EnvStartCommand, DefaultStartCommand),
		Countries:             SplitList(getEnv(EnvCountries, "")),
		WelcomeMessage:        getEnv(EnvMsgWelcome, DefaultWelcomeMessage),
		StartMessage:          getEnv(EnvMsgStart, DefaultStartMessage),
		InvalidCommandMessage: getEnv(EnvMsgInvalid, DefaultInvalidMessage),
		NotFoundMessage:       getEnv(EnvMsgNotFound, DefaultNotFoundMessage),
		ValuesFormat:          getEnv(EnvMsgValuesFormat, DefaultValuesFormat),
	}
}

// Validate checks if the bot configuration is usable.
func (b Bot) Validate() error {
	var errs []error

	if b.ResetCommand == "" {
		errs = append(errs, errors.New(EnvResetCommand+" must not be empty"))
	}
	if b.StartCommand == "" {
		errs = append(errs, errors.New(EnvStartCommand+" must not be empty"))
	}
	if len(b.Countries) == 0 {
		errs = append(errs, errors.New(EnvCountries+" must list at least one country"))
	}
	if slices.Contains(b.Countries, b.ResetCommand) || slices.Contains(b.Countries, b.StartCommand) {
		errs = append(errs, errors.New("a country name collides with the reset or start command"))
	}
	for name, msg := range map[string]string{
		EnvMsgWelcome:  b.WelcomeMessage,
		EnvMsgStart:    b.StartMessage,
		EnvMsgInvalid:  b.InvalidCommandMessage,
		EnvMsgNotFound: b.NotFoundMessage,
	} {
		if msg == "" {
			errs = append(errs, errors.New(name+" must not be empty"))
		}
	}
	if err := checkValuesFormat(b.ValuesFormat); err != nil {
		errs = append(errs, fmt.Errorf("%s: %w", EnvMsgValuesFormat, err))
	}

	return errors.Join(errs...)
}

// valuesSentinels stand in for parameter, city, value and unit when a values
// template is test-rendered.
var valuesSentinels = [ValuesSlots]string{"\x00parameter", "\x00city", "\x00value", "\x00unit"}

// checkValuesFormat renders format with four sentinels. fmt reports a bad
// verb, a missing argument or an unused one as "%!" in the output.
func checkValuesFormat(format string) error {
	out := fmt.Sprintf(format, valuesSentinels[0], valuesSentinels[1], valuesSentinels[2], valuesSentinels[3])
	if strings.Contains(out, "%!") {
		return fmt.Errorf("template must take exactly %d string values: %q renders as %q", ValuesSlots, format, out)
	}
	for _, s := range valuesSentinels {
		if !strings.Contains(out, s) {
			return fmt.Errorf("template must use all %d values", ValuesSlots)
		}
	}
	return nil
}
