// Package lineutil converts chat replies into LINE Messaging API messages.
package lineutil

import (
	"strings"

	"github.com/garyellow/airquality-linebot-go/internal/reply"
	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
)

// Action is an alias for the LINE SDK action interface for convenience.
type Action = messaging_api.ActionInterface

// NewTextMessage creates a text message, truncated to the LINE limit.
func NewTextMessage(text string) *messaging_api.TextMessage {
	return &messaging_api.TextMessage{
		Text: TruncateRunes(text, MaxTextMessageLength),
	}
}

// NewMessageAction creates an action that sends text when tapped.
// The label is cut to the quick reply label limit.
func NewMessageAction(label, text string) Action {
	return &messaging_api.MessageAction{
		Label: TruncateRunes(label, MaxQuickReplyLabel),
		Text:  TruncateRunes(text, MaxMessageActionText),
	}
}

// NewQuickReply creates quick reply buttons, one per option.
// Options past the LINE item limit are dropped. Returns nil for no options.
func NewQuickReply(options []string) *messaging_api.QuickReply {
	if len(options) == 0 {
		return nil
	}
	if len(options) > MaxQuickReplyItemCount {
		options = options[:MaxQuickReplyItemCount]
	}

	items := make([]messaging_api.QuickReplyItem, len(options))
	for i, opt := range options {
		items[i] = messaging_api.QuickReplyItem{
			Action: NewMessageAction(opt, opt),
		}
	}
	return &messaging_api.QuickReply{Items: items}
}

// FromReply renders r as a text message with its options as quick replies.
// Options past the quick reply limit are listed one per line in the text, so
// the user can still type them. LINE hides quick replies once the user
// answers, so SingleUse needs no extra handling.
func FromReply(r reply.Reply) *messaging_api.TextMessage {
	text := r.Text
	if len(r.Options) > MaxQuickReplyItemCount {
		text += "\n" + strings.Join(r.Options[MaxQuickReplyItemCount:], "\n")
	}
	msg := NewTextMessage(text)
	msg.QuickReply = NewQuickReply(r.Options)
	return msg
}

// FromReplies renders replies in order.
func FromReplies(replies []reply.Reply) []messaging_api.MessageInterface {
	out := make([]messaging_api.MessageInterface, len(replies))
	for i, r := range replies {
		out[i] = FromReply(r)
	}
	return out
}

// Batch splits messages into chunks of at most size.
func Batch(messages []messaging_api.MessageInterface, size int) [][]messaging_api.MessageInterface {
	if size <= 0 || len(messages) == 0 {
		return nil
	}
	batches := make([][]messaging_api.MessageInterface, 0, (len(messages)+size-1)/size)
	for start := 0; start < len(messages); start += size {
		end := min(start+size, len(messages))
		batches = append(batches, messages[start:end])
	}
	return batches
}

// TruncateRunes cuts text to maxRunes runes, ending with "..." when cut.
func TruncateRunes(text string, maxRunes int) string {
	runes := []rune(text)
	if len(runes) <= maxRunes {
		return text
	}
	if maxRunes <= 3 {
		return string(runes[:maxRunes])
	}
	return string(runes[:maxRunes-3]) + "..."
}
