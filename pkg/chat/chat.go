// Package chat abstracts the chat transport: inbound events from users and
// the outbound actions the bot can perform. The flow dispatcher depends only
// on these types, never on a concrete messenger API.
package chat

import "context"

// EventKind discriminates inbound events.
type EventKind int

// Inbound event kinds.
const (
	EventCommand EventKind = iota
	EventCallback
	EventText
	EventLocation
)

// Event is one inbound chat event, normalized from the transport.
type Event struct {
	Kind   EventKind
	ChatID int64

	Command    string // EventCommand: command name without the slash
	Callback   string // EventCallback: opaque token, may embed an identifier
	CallbackID string // EventCallback: transport handle for acknowledging
	Text       string // EventText
	Lat, Lng   float64
}

// Button is one inline keyboard button: a label and the callback token it
// sends back when pressed.
type Button struct {
	Label string
	Token string
}

// Keyboard is an ordered list of button rows.
type Keyboard [][]Button

// Row builds a single-button keyboard row.
func Row(label, token string) []Button {
	return []Button{{Label: label, Token: token}}
}

// Sender is the outbound half of the transport. Message text uses a simple
// HTML subset (bold, italic); the adapter maps it to the transport's rich
// text support.
type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
	SendMessageWithKeyboard(ctx context.Context, chatID int64, text string, kb Keyboard) error
	SendLocation(ctx context.Context, chatID int64, lat, lng float64) error
	SendDocument(ctx context.Context, chatID int64, filename string, data []byte, caption string) error
	// RequestLocation sends text with a one-time reply keyboard asking the
	// user to share their device location.
	RequestLocation(ctx context.Context, chatID int64, text, buttonLabel string) error
	// AckCallback acknowledges a callback event so the client stops showing
	// a progress indicator.
	AckCallback(ctx context.Context, callbackID string) error
}
